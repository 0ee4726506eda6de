// Package expr implements the prefix s-expression language used for
// filters, select lists, and order/group expressions: a lexer, parser,
// and evaluator producing a SQL fragment with %s placeholders alongside
// a parallel parameter vector.
package expr

import (
	"fmt"
	"strings"

	"tanker/reference"
	"tanker/tankerr"
)

// Env is the evaluation environment for one expression tree (or
// sub-tree, for a nested "from" sub-select).
type Env struct {
	Refs   *reference.Set
	Fields map[string]string // field name -> dotted path, resolved via Refs.GetRef
	Parent *Env

	Kwargs     map[string]any
	Positional []any

	Quote func(string) string

	autoIdx *int
}

// NewEnv builds a root Env. Quote defaults to double-quote identifiers
// when nil.
func NewEnv(refs *reference.Set, fields map[string]string, kwargs map[string]any, positional []any, quote func(string) string) *Env {
	if quote == nil {
		quote = func(s string) string { return `"` + s + `"` }
	}
	zero := 0
	return &Env{Refs: refs, Fields: fields, Kwargs: kwargs, Positional: positional, Quote: quote, autoIdx: &zero}
}

// Sub builds a child Env rooted at a nested reference.Set, for a "from"
// sub-select. It inherits Kwargs/Positional/Quote and chains Parent so
// "_parent...." symbols can walk back up.
func (e *Env) Sub(refs *reference.Set, fields map[string]string) *Env {
	zero := 0
	return &Env{Refs: refs, Fields: fields, Parent: e, Kwargs: e.Kwargs, Positional: e.Positional, Quote: e.Quote, autoIdx: &zero}
}

// Eval evaluates node against env, returning a SQL fragment with %s
// placeholders and the parameters bound to them, in order.
func Eval(node Node, env *Env) (string, []any, error) {
	switch n := node.(type) {
	case Symbol:
		sql, err := resolveSymbol(env, n.Name)
		if err != nil {
			return "", nil, err
		}
		return sql, nil, nil
	case Param:
		v, err := resolveParam(env, n)
		if err != nil {
			return "", nil, err
		}
		return "%s", []any{v}, nil
	case IntLit:
		return "%s", []any{n.Value}, nil
	case FloatLit:
		return "%s", []any{n.Value}, nil
	case StrLit:
		return "%s", []any{n.Value}, nil
	case Call:
		fn, ok := builtins[n.Op]
		if !ok {
			return "", nil, tankerr.NewExpressionError(fmt.Sprintf("%q not understood", n.Op), -1)
		}
		return fn(env, n.Args)
	default:
		return "", nil, tankerr.NewExpressionError("unrecognized node", -1)
	}
}

func resolveSymbol(env *Env, name string) (string, error) {
	if name == "true" || name == "false" {
		return strings.ToUpper(name), nil
	}
	if name == "null" {
		return "NULL", nil
	}

	segments := strings.Split(name, ".")
	cur := env
	for len(segments) > 0 && segments[0] == "_parent" {
		if cur.Parent == nil {
			return "", tankerr.NewExpressionError(fmt.Sprintf("%q not understood: no parent scope", name), -1)
		}
		cur = cur.Parent
		segments = segments[1:]
	}
	rest := strings.Join(segments, ".")
	return resolveInEnv(cur, rest, name)
}

func resolveInEnv(env *Env, name, original string) (string, error) {
	if path, ok := env.Fields[name]; ok {
		ref, err := env.Refs.GetRef(path)
		if err != nil {
			return "", err
		}
		return quotedRef(env.Quote, ref), nil
	}

	ref, err := env.Refs.GetRef(name)
	if err != nil {
		return "", tankerr.NewExpressionError(fmt.Sprintf("%q not understood", original), -1)
	}
	return quotedRef(env.Quote, ref), nil
}

func quotedRef(quote func(string) string, ref reference.Reference) string {
	return quote(ref.JoinAlias) + "." + quote(ref.RemoteField)
}

func resolveParam(env *Env, p Param) (any, error) {
	var v any
	if p.Name == "" {
		idx := p.Index
		if idx < 0 {
			idx = *env.autoIdx
			*env.autoIdx++
		}
		if idx < 0 || idx >= len(env.Positional) {
			return nil, tankerr.NewExpressionError(fmt.Sprintf("positional parameter {%d} out of range", idx), -1)
		}
		v = env.Positional[idx]
	} else {
		bound, ok := env.Kwargs[p.Name]
		if !ok {
			return nil, tankerr.NewExpressionError(fmt.Sprintf("parameter %q not bound", p.Name), -1)
		}
		v = bound
		for _, seg := range p.Path {
			next, err := lookupAttr(v, seg)
			if err != nil {
				return nil, err
			}
			v = next
		}
	}
	return applyConv(v, p.Conv), nil
}

func lookupAttr(v any, key string) (any, error) {
	switch m := v.(type) {
	case map[string]any:
		next, ok := m[key]
		if !ok {
			return nil, tankerr.NewExpressionError(fmt.Sprintf("parameter path %q not found", key), -1)
		}
		return next, nil
	default:
		return nil, tankerr.NewExpressionError(fmt.Sprintf("cannot resolve %q on non-mapping parameter", key), -1)
	}
}

// applyConv applies the small set of "!conv" modifiers the grammar
// allows; an unknown or empty conv is a no-op passthrough.
func applyConv(v any, conv string) any {
	switch conv {
	case "s":
		return fmt.Sprint(v)
	case "r":
		return fmt.Sprintf("%#v", v)
	default:
		return v
	}
}
