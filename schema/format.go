package schema

import (
	"encoding/json"
	"fmt"
	"iter"
	"strconv"
	"strings"
	"time"

	"tanker/tankerr"
)

// timeLayouts is the small whitelist of ISO-ish formats accepted for
// timestamp/timestamptz/date string values, per §4.1.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05-07:00",
	"2006-01-02",
}

// timetupler is satisfied by any value exposing a time-tuple-like API
// (the moral equivalent of a stdlib time.Time).
type timetupler interface {
	UTC() time.Time
}

// FormatOptions controls one Format call; it mirrors the "astype?,
// array_dim?" overrides spec.md §4.1 allows at the call site.
type FormatOptions struct {
	AsType   CType
	ArrayDim int
	Encoding string
}

// FormatOption mutates FormatOptions.
type FormatOption func(*FormatOptions)

// AsType overrides the column's declared type for this Format call.
func AsType(t CType) FormatOption { return func(o *FormatOptions) { o.AsType = t } }

// ArrayDim overrides the column's declared array dimension.
func ArrayDim(d int) FormatOption { return func(o *FormatOptions) { o.ArrayDim = d } }

// Encoding sets the text encoding used to decode []byte input destined
// for a varchar column.
func Encoding(enc string) FormatOption { return func(o *FormatOptions) { o.Encoding = enc } }

// Format yields, per row, the backend-ready value for each element of
// values, coerced according to the column's declared type (or an
// override from opts). It is lazy: no element past what the caller
// consumes is coerced.
func (c *Column) Format(values []any, opts ...FormatOption) iter.Seq2[any, error] {
	o := FormatOptions{AsType: c.CType, ArrayDim: c.ArrayDim}
	for _, opt := range opts {
		opt(&o)
	}

	return func(yield func(any, error) bool) {
		for _, v := range values {
			out, err := formatOne(c.Name, o.AsType, o.ArrayDim, v, o.Encoding)
			if !yield(out, err) {
				return
			}
		}
	}
}

// FormatAll drains Format into a slice, returning the first error
// encountered (if any), matching the "fatal for the batch" failure mode
// of §4.1/§7.
func (c *Column) FormatAll(values []any, opts ...FormatOption) ([]any, error) {
	out := make([]any, 0, len(values))
	for v, err := range c.Format(values, opts...) {
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func formatOne(column string, ctype CType, dim int, v any, encoding string) (any, error) {
	if dim > 0 {
		return formatArray(column, ctype, dim, v, encoding)
	}
	if isNullish(v) {
		return nil, nil
	}
	switch ctype {
	case CTypeInteger, CTypeBigint:
		return formatInteger(column, ctype, v)
	case CTypeFloat:
		return formatFloat(column, v)
	case CTypeBool:
		return formatBool(column, v)
	case CTypeVarchar:
		return formatVarchar(v, encoding)
	case CTypeDate:
		return formatTimestamp(column, v, true)
	case CTypeTimestamp, CTypeTimestampTZ:
		return formatTimestamp(column, v, false)
	case CTypeJSONB:
		return formatJSONB(column, v)
	case CTypeBytea:
		return formatBytea(column, v)
	case CTypeM2O:
		return formatInteger(column, ctype, v)
	default:
		return nil, tankerr.NewCoercionError(column, string(ctype), v)
	}
}

func isNullish(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok && s == "" {
		return false // empty string is only null for varchar, handled there
	}
	return false
}

func formatInteger(column string, ctype CType, v any) (any, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case float32:
		return int64(n), nil
	case string:
		i, err := parseIntLiteral(n)
		if err != nil {
			return nil, tankerr.NewCoercionError(column, string(ctype), v)
		}
		return i, nil
	default:
		return nil, tankerr.NewCoercionError(column, string(ctype), v)
	}
}

func formatFloat(column string, v any) (any, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return nil, tankerr.NewCoercionError(column, string(CTypeFloat), v)
		}
		return f, nil
	default:
		return nil, tankerr.NewCoercionError(column, string(CTypeFloat), v)
	}
}

func formatBool(column string, v any) (any, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return nil, tankerr.NewCoercionError(column, string(CTypeBool), v)
		}
		return parsed, nil
	case int, int64:
		return fmt.Sprint(b) != "0", nil
	default:
		return nil, tankerr.NewCoercionError(column, string(CTypeBool), v)
	}
}

func formatVarchar(v any, encoding string) (any, error) {
	switch s := v.(type) {
	case string:
		if s == "" {
			return nil, nil
		}
		return s, nil
	case []byte:
		if len(s) == 0 {
			return nil, nil
		}
		if encoding == "" || strings.EqualFold(encoding, "utf-8") {
			return string(s), nil
		}
		return decodeBytes(s, encoding)
	case fmt.Stringer:
		str := s.String()
		if str == "" {
			return nil, nil
		}
		return str, nil
	default:
		return fmt.Sprint(v), nil
	}
}

func formatTimestamp(column string, v any, truncateToDate bool) (any, error) {
	var t time.Time
	switch val := v.(type) {
	case time.Time:
		t = val
	case timetupler:
		t = val.UTC()
	case int64:
		t = time.Unix(0, val) // nanosecond-epoch
	case float64:
		t = time.Unix(0, int64(val))
	case string:
		parsed, ok := parseWhitelisted(val)
		if !ok {
			return nil, tankerr.NewCoercionError(column, "timestamp", v)
		}
		t = parsed
	default:
		return nil, tankerr.NewCoercionError(column, "timestamp", v)
	}
	if truncateToDate {
		t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	}
	return t, nil
}

func parseWhitelisted(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func formatJSONB(column string, v any) (any, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, tankerr.NewCoercionError(column, "jsonb", v)
	}
	return string(b), nil
}

func formatBytea(column string, v any) (any, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	default:
		return nil, tankerr.NewCoercionError(column, "bytea", v)
	}
}

// formatArray recursively formats each cell, emitting the backend's
// array literal "{v1,v2,...}" with "null" for nulls, per §4.1.
func formatArray(column string, ctype CType, dim int, v any, encoding string) (any, error) {
	if v == nil {
		return nil, nil
	}
	cells, ok := v.([]any)
	if !ok {
		return nil, tankerr.NewCoercionError(column, string(ctype)+strings.Repeat("[]", dim), v)
	}

	parts := make([]string, 0, len(cells))
	for _, cell := range cells {
		formatted, err := formatOne(column, ctype, dim-1, cell, encoding)
		if err != nil {
			return nil, err
		}
		if formatted == nil {
			parts = append(parts, "null")
			continue
		}
		if inner, ok := formatted.(string); ok && dim == 1 {
			parts = append(parts, quoteArrayElement(inner))
			continue
		}
		parts = append(parts, fmt.Sprint(formatted))
	}
	return "{" + strings.Join(parts, ",") + "}", nil
}

func quoteArrayElement(s string) string {
	if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
		return s // nested array literal, already delimited
	}
	escaped := strings.ReplaceAll(s, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	return `"` + escaped + `"`
}

// decodeBytes decodes b using a named encoding. Only a small set of
// single-byte encodings are supported without pulling in a general
// charset-conversion dependency; anything else falls back to verbatim
// bytes-as-string, matching the "ensure string" wording of §4.1.
func decodeBytes(b []byte, encoding string) (string, error) {
	switch strings.ToLower(encoding) {
	case "latin1", "iso-8859-1":
		runes := make([]rune, len(b))
		for i, c := range b {
			runes[i] = rune(c)
		}
		return string(runes), nil
	default:
		return string(b), nil
	}
}
