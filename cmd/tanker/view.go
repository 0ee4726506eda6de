package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"tanker"
	"tanker/schema"
	"tanker/view"
)

func openPool(ctx context.Context, f *commonFlags) (*tanker.Pool, error) {
	_, cfg, err := loadConfig(f)
	if err != nil {
		return nil, err
	}
	return tanker.Open(ctx, cfg.DBURI, cfg)
}

// defaultView builds the view the CLI operates through for a bare table
// name: "id" plus every DefaultFields entry, so write/delete can always
// key on "id" the way a thin driver with no field-projection flags needs
// to (ddl.go's seedTable instead keys on the table's declared natural
// key, since seed rows never carry an id).
func defaultView(t *schema.Table, reg *schema.Registry) (*view.View, error) {
	fields := []view.ViewField{{Name: "id", Kind: view.FieldColumn, Path: "id"}}
	names, err := t.DefaultFields(reg)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		kind := view.FieldColumn
		if strings.Contains(name, ".") {
			kind = view.FieldPath
		}
		fields = append(fields, view.ViewField{Name: name, Kind: kind, Path: name})
	}
	return view.New(t, reg, fields)
}

func parseOrder(sorts []string) []view.OrderItem {
	out := make([]view.OrderItem, 0, len(sorts))
	for _, s := range sorts {
		col, dir, ok := strings.Cut(s, ":")
		if !ok {
			out = append(out, view.OrderItem{Col: s, Dir: "ASC"})
			continue
		}
		out = append(out, view.OrderItem{Col: col, Dir: strings.ToUpper(dir)})
	}
	return out
}

func loadRowData(f *commonFlags) ([]map[string]any, error) {
	if f.file == "" {
		return nil, fmt.Errorf("tanker: --file is required")
	}
	raw, err := readRowFile(f.file)
	if err != nil {
		return nil, fmt.Errorf("tanker: read %q: %w", f.file, err)
	}
	var rows []map[string]any
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("tanker: parse %q as a JSON array of row objects: %w", f.file, err)
	}
	return rows, nil
}

func limitPtr(f *commonFlags) *int {
	if !f.hasLimit {
		return nil
	}
	l := f.limit
	return &l
}

func offsetPtr(f *commonFlags) *int {
	if !f.hasOffset {
		return nil
	}
	o := f.offset
	return &o
}
