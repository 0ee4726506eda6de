// Package stage builds the staging-table SQL the write pipeline drives:
// creation, bulk load, pre/post-image filter purge, apply, and teardown
// (§4.6). It emits SQL text and parameter vectors; the tanker package
// executes them against a live connection.
package stage

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"tanker/schema"
)

// Plan is one staging table's lifecycle for a single write-pipeline run.
type Plan struct {
	Table       string // staging table name, suffixed with a random token on distributed backends
	BaseTable   string
	Columns     []string // mirrors the view's backing columns, in order
	KeyCols     []string
	Distributed bool
}

// NewPlan names the staging table. On a distributed SQL backend the
// staging table is permanent (not a session-local TEMP table) so it is
// given a random suffix to avoid colliding with concurrent writers,
// per §4.6 step 3.
func NewPlan(baseTable string, columns []string, keyCols []string, distributed bool) *Plan {
	name := "tmp_" + baseTable
	if distributed {
		name += "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	}
	return &Plan{Table: name, BaseTable: baseTable, Columns: columns, KeyCols: keyCols, Distributed: distributed}
}

// CreateSQL emits the staging table's DDL: every mirrored column plus a
// plain INTEGER "_stage_id" column, with NOT NULL on key columns, per §4.6
// step 3. "_stage_id" is not auto-populated; bulk loads leave it NULL.
func (p *Plan) CreateSQL(quote func(string) string, columnType func(string) string) string {
	defs := make([]string, 0, len(p.Columns)+1)
	defs = append(defs, quote("_stage_id")+" INTEGER")
	isKey := map[string]bool{}
	for _, k := range p.KeyCols {
		isKey[k] = true
	}
	for _, c := range p.Columns {
		def := quote(c) + " " + columnType(c)
		if isKey[c] {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	table := p.Table
	if p.Distributed {
		return fmt.Sprintf("CREATE TABLE %s (%s)", quote(table), strings.Join(defs, ", "))
	}
	return fmt.Sprintf("CREATE TEMPORARY TABLE %s (%s)", quote(table), strings.Join(defs, ", "))
}

// DropSQL drops the staging table, the teardown half of §4.6 step 9.
func (p *Plan) DropSQL(quote func(string) string) string {
	return "DROP TABLE " + quote(p.Table)
}

// InsertSQL emits a prepared multi-row INSERT for the fallback bulk-load
// path, used when the backend offers no COPY-style channel.
func (p *Plan) InsertSQL(quote func(string) string, placeholder func(int) string, rowCount int) string {
	quoted := make([]string, len(p.Columns))
	for i, c := range p.Columns {
		quoted[i] = quote(c)
	}
	rowTpl := make([]string, len(p.Columns))
	rows := make([]string, rowCount)
	n := 0
	for r := 0; r < rowCount; r++ {
		for i := range p.Columns {
			n++
			rowTpl[i] = placeholder(n)
		}
		rows[r] = "(" + strings.Join(rowTpl, ", ") + ")"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", quote(p.Table), strings.Join(quoted, ", "), strings.Join(rows, ", "))
}

// JoinCondition emits "tmp.key_i = main.key_i AND ..." for every key
// column, per §4.6 step 4.
func (p *Plan) JoinCondition(quote func(string) string) string {
	conds := make([]string, len(p.KeyCols))
	for i, k := range p.KeyCols {
		conds[i] = fmt.Sprintf("%s.%s = %s.%s", quote(p.Table), quote(k), quote(p.BaseTable), quote(k))
	}
	return strings.Join(conds, " AND ")
}

// PurgePreImageSQL deletes from staging every row whose existing
// main-table image no longer satisfies filterSQL (§4.6 step 5).
func (p *Plan) PurgePreImageSQL(quote func(string) string, filterSQL string) string {
	return fmt.Sprintf(
		"DELETE FROM %s WHERE EXISTS (SELECT 1 FROM %s WHERE %s AND NOT (%s))",
		quote(p.Table), quote(p.BaseTable), p.JoinCondition(quote), filterSQL,
	)
}

// PurgePostImageSQL deletes from staging every row whose proposed image
// (the staging row itself) violates filterSQL — filterSQL is expected to
// have been rendered with field references rebound to the staging
// table's alias, per §4.6 step 6 / §4.3's table-aliases override.
func (p *Plan) PurgePostImageSQL(quote func(string) string, filterSQL string) string {
	return fmt.Sprintf("DELETE FROM %s WHERE NOT (%s)", quote(p.Table), filterSQL)
}

// UpsertApplySQL emits the preferred upsert apply path (§4.6 step 7):
// one INSERT ... SELECT ... ON CONFLICT (key) DO UPDATE / DO NOTHING.
func (p *Plan) UpsertApplySQL(quote func(string) string, update bool) string {
	quoted := make([]string, len(p.Columns))
	for i, c := range p.Columns {
		quoted[i] = quote(c)
	}
	keyList := make([]string, len(p.KeyCols))
	for i, k := range p.KeyCols {
		keyList[i] = quote(k)
	}
	cols := strings.Join(quoted, ", ")
	sql := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) DO ",
		quote(p.BaseTable), cols, cols, quote(p.Table), strings.Join(keyList, ", "))

	if !update {
		return sql + "NOTHING"
	}

	isKey := map[string]bool{}
	for _, k := range p.KeyCols {
		isKey[k] = true
	}
	var sets []string
	for _, c := range p.Columns {
		if isKey[c] {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", quote(c), quote(c)))
	}
	if len(sets) == 0 {
		return sql + "NOTHING"
	}
	return sql + "UPDATE SET " + strings.Join(sets, ", ")
}

// MySQLUpsertApplySQL emits MySQL's upsert dialect, which has no ON
// CONFLICT clause: INSERT ... ON DUPLICATE KEY UPDATE col = VALUES(col),
// or INSERT IGNORE when update is false (§4.6 step 7, upsert path).
func (p *Plan) MySQLUpsertApplySQL(quote func(string) string, update bool) string {
	quoted := make([]string, len(p.Columns))
	for i, c := range p.Columns {
		quoted[i] = quote(c)
	}
	cols := strings.Join(quoted, ", ")
	selectSQL := fmt.Sprintf("SELECT %s FROM %s", cols, quote(p.Table))

	isKey := map[string]bool{}
	for _, k := range p.KeyCols {
		isKey[k] = true
	}
	var sets []string
	if update {
		for _, c := range p.Columns {
			if isKey[c] {
				continue
			}
			sets = append(sets, fmt.Sprintf("%s = VALUES(%s)", quote(c), quote(c)))
		}
	}
	if len(sets) == 0 {
		return fmt.Sprintf("INSERT IGNORE INTO %s (%s) %s", quote(p.BaseTable), cols, selectSQL)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) %s ON DUPLICATE KEY UPDATE %s", quote(p.BaseTable), cols, selectSQL, strings.Join(sets, ", "))
}

// LegacyApplySQL emits the two-statement apply path for backends without
// upsert support: an insert of brand-new rows, followed by a correlated
// update of existing ones (§4.6 step 7, legacy path).
func (p *Plan) LegacyApplySQL(quote func(string) string) (insertSQL, updateSQL string) {
	quoted := make([]string, len(p.Columns))
	for i, c := range p.Columns {
		quoted[i] = quote(c)
	}
	cols := strings.Join(quoted, ", ")
	join := p.JoinCondition(quote)

	insertSQL = fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s WHERE NOT EXISTS (SELECT 1 FROM %s WHERE %s)",
		quote(p.BaseTable), cols, cols, quote(p.Table), quote(p.BaseTable), join,
	)

	isKey := map[string]bool{}
	for _, k := range p.KeyCols {
		isKey[k] = true
	}
	var sets []string
	for _, c := range p.Columns {
		if isKey[c] {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = %s.%s", quote(c), quote(p.Table), quote(c)))
	}
	updateSQL = fmt.Sprintf(
		"UPDATE %s SET %s FROM %s WHERE %s",
		quote(p.BaseTable), strings.Join(sets, ", "), quote(p.Table), join,
	)
	return insertSQL, updateSQL
}

// EmbeddedApplySQL emits the embedded-backend apply path: INSERT OR
// REPLACE, preserving any non-view column by joining the existing row
// (§4.6 step 7, embedded backend).
func (p *Plan) EmbeddedApplySQL(quote func(string) string, allColumns []string) string {
	preserved := make([]string, 0, len(allColumns))
	viewCols := map[string]bool{}
	for _, c := range p.Columns {
		viewCols[c] = true
	}
	for _, c := range allColumns {
		if viewCols[c] {
			preserved = append(preserved, fmt.Sprintf("%s.%s", quote(p.Table), quote(c)))
			continue
		}
		preserved = append(preserved, fmt.Sprintf("%s.%s", quote(p.BaseTable), quote(c)))
	}
	quotedAll := make([]string, len(allColumns))
	for i, c := range allColumns {
		quotedAll[i] = quote(c)
	}
	return fmt.Sprintf(
		"INSERT OR REPLACE INTO %s (%s) SELECT %s FROM %s LEFT JOIN %s ON %s",
		quote(p.BaseTable), strings.Join(quotedAll, ", "), strings.Join(preserved, ", "),
		quote(p.Table), quote(p.BaseTable), p.JoinCondition(quote),
	)
}

// JoinDeleteSQL deletes from the main table every row that matches
// staging on key columns (negate=false), or every row that does NOT
// match staging (negate=true, the "swap" form), via a correlated EXISTS
// (NOT EXISTS when negated) subquery on the key columns.
func (p *Plan) JoinDeleteSQL(quote func(string) string, negate bool) string {
	exists := "EXISTS"
	if negate {
		exists = "NOT EXISTS"
	}
	return fmt.Sprintf("DELETE FROM %s WHERE %s (SELECT 1 FROM %s WHERE %s)", quote(p.BaseTable), exists, quote(p.Table), p.JoinCondition(quote))
}

// PurgeMainSQL deletes from the main table rows absent from staging and
// matching filterSQL, via LEFT JOIN tmp WHERE tmp.key IS NULL (§4.6 step 8).
func (p *Plan) PurgeMainSQL(quote func(string) string, filterSQL string) string {
	nullChecks := make([]string, len(p.KeyCols))
	for i, k := range p.KeyCols {
		nullChecks[i] = fmt.Sprintf("%s.%s IS NULL", quote(p.Table), quote(k))
	}
	where := strings.Join(nullChecks, " AND ")
	if filterSQL != "" {
		where = fmt.Sprintf("(%s) AND (%s)", where, filterSQL)
	}
	return fmt.Sprintf(
		"DELETE FROM %s WHERE %s.%s IN (SELECT %s.%s FROM %s LEFT JOIN %s ON %s WHERE %s)",
		quote(p.BaseTable), quote(p.BaseTable), quote("id"),
		quote(p.BaseTable), quote("id"), quote(p.BaseTable), quote(p.Table), p.JoinCondition(quote), where,
	)
}

// columnType renders a backend-portable type-name fallback for a
// schema.Column, used by CreateSQL when no backend-specific DDL
// generator is wired in.
func columnType(col *schema.Column) string {
	switch col.CType {
	case schema.CTypeM2O:
		return "BIGINT"
	default:
		return strings.ToUpper(string(col.CType)) + strings.Repeat("[]", col.ArrayDim)
	}
}

// ColumnType is the exported form of columnType, for callers building a
// columnType callback for CreateSQL from a schema.Table.
func ColumnType(t *schema.Table, name string) string {
	c := t.FindColumn(name)
	if c == nil {
		return "TEXT"
	}
	return columnType(c)
}
