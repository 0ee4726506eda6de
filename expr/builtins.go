package expr

import (
	"fmt"
	"strings"

	"tanker/tankerr"
)

type opFunc func(env *Env, args []Node) (string, []any, error)

// aggregateOps is recognized separately so the core can auto-derive
// GROUP BY for a select list that mixes aggregate and non-aggregate
// fields (§4.4/§4.5).
var aggregateOps = map[string]bool{
	"avg": true, "count": true, "max": true, "min": true, "sum": true,
	"bool_and": true, "bool_or": true, "every": true,
}

// IsAggregate reports whether op names one of the recognized aggregate
// functions.
func IsAggregate(op string) bool { return aggregateOps[op] }

var builtins map[string]opFunc

func init() {
	builtins = map[string]opFunc{
		"and": variadicInfix("AND", 2),
		"or":  variadicInfix("OR", 2),
		"+":   variadicInfix("+", 1),
		"-":   negOrInfix,
		"*":   variadicInfix("*", 1),
		"/":   variadicInfix("/", 2),
		">=":  variadicInfix(">=", 2),
		"<=":  variadicInfix("<=", 2),
		"=":   variadicInfix("=", 2),
		">":   variadicInfix(">", 2),
		"<":   variadicInfix("<", 2),
		"!=":  variadicInfix("!=", 2),
		"like":  variadicInfix("LIKE", 2),
		"ilike": variadicInfix("ILIKE", 2),
		"is":    variadicInfix("IS", 2),
		"isnot": infixKeyword("IS NOT"),
		"not":   unaryPrefix("NOT"),
		"in":    inOp(false),
		"notin": inOp(true),
		"exists": existsOp,
		"where":  whereOp,
		"select": selectOp(""),
		"select-distinct": selectOp("DISTINCT "),
		"cast":       castOp,
		"extract":    extractOp,
		"floor":      unaryFunc("FLOOR"),
		"date_trunc": dateTruncOp,
		"true":       literalOp("TRUE"),
		"false":      literalOp("FALSE"),
		"strftime":   strftimeOp,
		"any":        unaryFunc("ANY"),
		"all":        unaryFunc("ALL"),
		"unnest":     unaryFunc("UNNEST"),
		"->>":        infixKeyword("->>"),
		"from":       fromOp,
	}
	for _, name := range []string{"avg", "count", "max", "min", "sum", "bool_and", "bool_or", "every"} {
		builtins[name] = aggregateFunc(strings.ToUpper(name))
	}
}

func evalAll(env *Env, args []Node) ([]string, []any, error) {
	sqls := make([]string, 0, len(args))
	var params []any
	for _, a := range args {
		s, p, err := Eval(a, env)
		if err != nil {
			return nil, nil, err
		}
		sqls = append(sqls, s)
		params = append(params, p...)
	}
	return sqls, params, nil
}

func variadicInfix(sqlOp string, minArgs int) opFunc {
	return func(env *Env, args []Node) (string, []any, error) {
		if len(args) < minArgs {
			return "", nil, tankerr.NewExpressionError(fmt.Sprintf("%q requires at least %d argument(s)", sqlOp, minArgs), -1)
		}
		sqls, params, err := evalAll(env, args)
		if err != nil {
			return "", nil, err
		}
		return "(" + strings.Join(sqls, " "+sqlOp+" ") + ")", params, nil
	}
}

func infixKeyword(sqlOp string) opFunc {
	return func(env *Env, args []Node) (string, []any, error) {
		if len(args) != 2 {
			return "", nil, tankerr.NewExpressionError(fmt.Sprintf("%q requires exactly 2 arguments", sqlOp), -1)
		}
		sqls, params, err := evalAll(env, args)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("(%s %s %s)", sqls[0], sqlOp, sqls[1]), params, nil
	}
}

// negOrInfix implements "-" as binary subtraction when given 2+ args, and
// as unary prefix negation (§4.4) when given exactly 1.
func negOrInfix(env *Env, args []Node) (string, []any, error) {
	if len(args) == 1 {
		sql, params, err := Eval(args[0], env)
		if err != nil {
			return "", nil, err
		}
		return "(-" + sql + ")", params, nil
	}
	return variadicInfix("-", 2)(env, args)
}

func unaryPrefix(keyword string) opFunc {
	return func(env *Env, args []Node) (string, []any, error) {
		if len(args) != 1 {
			return "", nil, tankerr.NewExpressionError(fmt.Sprintf("%q takes exactly one argument", keyword), -1)
		}
		sql, params, err := Eval(args[0], env)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("%s (%s)", keyword, sql), params, nil
	}
}

func unaryFunc(name string) opFunc {
	return func(env *Env, args []Node) (string, []any, error) {
		if len(args) != 1 {
			return "", nil, tankerr.NewExpressionError(fmt.Sprintf("%q takes exactly one argument", name), -1)
		}
		sql, params, err := Eval(args[0], env)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("%s(%s)", name, sql), params, nil
	}
}

func aggregateFunc(name string) opFunc {
	return func(env *Env, args []Node) (string, []any, error) {
		if len(args) == 0 && name == "COUNT" {
			return "COUNT(*)", nil, nil
		}
		sqls, params, err := evalAll(env, args)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("%s(%s)", name, strings.Join(sqls, ", ")), params, nil
	}
}

func literalOp(sql string) opFunc {
	return func(env *Env, args []Node) (string, []any, error) {
		if len(args) != 0 {
			return "", nil, tankerr.NewExpressionError(fmt.Sprintf("%q takes no arguments", sql), -1)
		}
		return sql, nil, nil
	}
}

func inOp(negate bool) opFunc {
	return func(env *Env, args []Node) (string, []any, error) {
		if len(args) < 2 {
			return "", nil, tankerr.NewExpressionError("in/notin requires a left side and at least one value", -1)
		}
		left, leftParams, err := Eval(args[0], env)
		if err != nil {
			return "", nil, err
		}

		keyword := "IN"
		if negate {
			keyword = "NOT IN"
		}

		if len(args) == 2 {
			if sub, ok := args[1].(Call); ok && sub.Op == "from" {
				sql, params, err := Eval(sub, env)
				if err != nil {
					return "", nil, err
				}
				return fmt.Sprintf("(%s %s (%s))", left, keyword, sql), append(leftParams, params...), nil
			}
		}

		rest, restParams, err := evalAll(env, args[1:])
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("(%s %s (%s))", left, keyword, strings.Join(rest, ", ")), append(leftParams, restParams...), nil
	}
}

func existsOp(env *Env, args []Node) (string, []any, error) {
	if len(args) != 1 {
		return "", nil, tankerr.NewExpressionError(`"exists" takes exactly one argument`, -1)
	}
	sql, params, err := Eval(args[0], env)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("EXISTS (%s)", sql), params, nil
}

func whereOp(env *Env, args []Node) (string, []any, error) {
	if len(args) == 0 {
		return "", nil, tankerr.NewExpressionError(`"where" requires at least one clause`, -1)
	}
	sqls, params, err := evalAll(env, args)
	if err != nil {
		return "", nil, err
	}
	return strings.Join(sqls, " AND "), params, nil
}

func selectOp(prefix string) opFunc {
	return func(env *Env, args []Node) (string, []any, error) {
		if len(args) == 0 {
			return "", nil, tankerr.NewExpressionError(`"select" requires at least one item`, -1)
		}
		sqls := make([]string, 0, len(args))
		var params []any
		for _, a := range args {
			if lit, ok := a.(IntLit); ok {
				// integer select items (e.g. "SELECT 1") are rendered inline
				sqls = append(sqls, fmt.Sprint(lit.Value))
				continue
			}
			s, p, err := Eval(a, env)
			if err != nil {
				return "", nil, err
			}
			sqls = append(sqls, s)
			params = append(params, p...)
		}
		return prefix + strings.Join(sqls, ", "), params, nil
	}
}

func castOp(env *Env, args []Node) (string, []any, error) {
	if len(args) != 2 {
		return "", nil, tankerr.NewExpressionError(`"cast" requires exactly 2 arguments`, -1)
	}
	sql, params, err := Eval(args[0], env)
	if err != nil {
		return "", nil, err
	}
	typeName, err := literalSymbolOrString(args[1])
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("CAST(%s AS %s)", sql, typeName), params, nil
}

func extractOp(env *Env, args []Node) (string, []any, error) {
	if len(args) != 2 {
		return "", nil, tankerr.NewExpressionError(`"extract" requires exactly 2 arguments`, -1)
	}
	field, err := literalSymbolOrString(args[0])
	if err != nil {
		return "", nil, err
	}
	sql, params, err := Eval(args[1], env)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("EXTRACT(%s FROM %s)", field, sql), params, nil
}

func dateTruncOp(env *Env, args []Node) (string, []any, error) {
	if len(args) != 2 {
		return "", nil, tankerr.NewExpressionError(`"date_trunc" requires exactly 2 arguments`, -1)
	}
	unit, err := literalSymbolOrString(args[0])
	if err != nil {
		return "", nil, err
	}
	sql, params, err := Eval(args[1], env)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("DATE_TRUNC('%s', %s)", unit, sql), params, nil
}

func strftimeOp(env *Env, args []Node) (string, []any, error) {
	if len(args) != 2 {
		return "", nil, tankerr.NewExpressionError(`"strftime" requires exactly 2 arguments`, -1)
	}
	sqls, params, err := evalAll(env, args)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("STRFTIME(%s, %s)", sqls[0], sqls[1]), params, nil
}

func literalSymbolOrString(n Node) (string, error) {
	switch v := n.(type) {
	case Symbol:
		return v.Name, nil
	case StrLit:
		return v.Value, nil
	default:
		return "", tankerr.NewExpressionError("expected a bare symbol or string literal here", -1)
	}
}

// fromOp opens a sub-select: a fresh Expression rooted at the named
// table, producing SELECT … FROM "table" <joins> <tail>, per §4.4.
func fromOp(env *Env, args []Node) (string, []any, error) {
	if len(args) < 1 {
		return "", nil, tankerr.NewExpressionError(`"from" requires a table name`, -1)
	}
	table, ok := args[0].(Symbol)
	if !ok {
		return "", nil, tankerr.NewExpressionError(`"from" requires a bare table-name symbol`, -1)
	}

	childRefs := env.Refs.Sub(table.Name)
	subEnv := env.Sub(childRefs, nil)

	selectSQL := "SELECT *"
	var tailParts []string
	var params []any

	for _, tailNode := range args[1:] {
		if call, ok := tailNode.(Call); ok && (call.Op == "select" || call.Op == "select-distinct") {
			prefix := "SELECT "
			if call.Op == "select-distinct" {
				prefix = "SELECT DISTINCT "
			}
			sql, p, err := Eval(call, subEnv)
			if err != nil {
				return "", nil, err
			}
			selectSQL = prefix + sql
			params = append(params, p...)
			continue
		}
		if call, ok := tailNode.(Call); ok && call.Op == "where" {
			sql, p, err := Eval(call, subEnv)
			if err != nil {
				return "", nil, err
			}
			tailParts = append(tailParts, "WHERE "+sql)
			params = append(params, p...)
			continue
		}
		sql, p, err := Eval(tailNode, subEnv)
		if err != nil {
			return "", nil, err
		}
		tailParts = append(tailParts, sql)
		params = append(params, p...)
	}

	sql := selectSQL + " FROM " + env.Quote(table.Name) + childRefs.GetSQLJoins(env.Quote)
	if len(tailParts) > 0 {
		sql += " " + strings.Join(tailParts, " ")
	}
	return sql, params, nil
}
