package sqlbuilder

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/user/relaygate/internal/config"
)

// mssqlInWarningThreshold is the row count above which SQL Server's IN list
// behaves badly enough (parser cost, plan cache bloat) that the source flags
// it; relaygate logs a warning rather than rejecting the request.
const mssqlInWarningThreshold = 1000

// WhereWarning is a non-fatal observation surfaced during WHERE compilation
// (currently: an oversized IN list against MSSQL).
type WhereWarning struct {
	Message string
}

// BuildWhere composes the WHERE clause (without the leading "WHERE"
// keyword) over every resolved param that has a matching conditionSchema
// entry. Params with no entry are not filterable and are silently ignored —
// the paramsMapping/validators stage already rejected anything unexpected.
func (c *Context) BuildWhere(schema map[string]config.ConditionEntry, resolved map[string]any) (string, []WhereWarning, error) {
	var fragments []string
	var warnings []WhereWarning

	for key, entry := range schema {
		val, ok := resolved[key]
		if !ok || val == nil {
			continue
		}
		frag, warn, err := c.buildEntry(entry, val)
		if err != nil {
			return "", nil, fmt.Errorf("condition %q: %w", key, err)
		}
		if warn != "" {
			warnings = append(warnings, WhereWarning{Message: warn})
		}
		fragments = append(fragments, frag)
	}

	return strings.Join(fragments, " AND "), warnings, nil
}

func (c *Context) buildEntry(entry config.ConditionEntry, val any) (string, string, error) {
	logic := entry.Logic
	if logic == "" {
		logic = config.LogicAnd
	}
	op := strings.ToLower(strings.TrimSpace(entry.Operator))

	var parts []string
	var warning string
	for _, field := range entry.Fields {
		part, warn, err := c.buildOperator(c.quote(field), op, val)
		if err != nil {
			return "", "", err
		}
		if warn != "" {
			warning = warn
		}
		parts = append(parts, part)
	}
	joined := strings.Join(parts, " "+string(logic)+" ")
	if len(parts) > 1 {
		joined = "(" + joined + ")"
	}
	return joined, warning, nil
}

func (c *Context) buildOperator(column, op string, val any) (string, string, error) {
	switch op {
	case "=", ">", "<", ">=", "<=", "!=", "<>":
		return fmt.Sprintf("%s %s %s", column, op, c.Bind(val)), "", nil
	case "like":
		return fmt.Sprintf("%s LIKE %s", column, c.Bind(likePattern(val))), "", nil
	case "not like":
		return fmt.Sprintf("%s NOT LIKE %s", column, c.Bind(likePattern(val))), "", nil
	case "in", "not in":
		items := toSlice(val)
		if len(items) == 0 {
			if op == "not in" {
				return "1=1", "", nil
			}
			return "1=0", "", nil
		}
		var warning string
		if c.Dialect == config.MSSQL && len(items) > mssqlInWarningThreshold {
			warning = fmt.Sprintf("IN list of %d values against MSSQL exceeds the recommended %d", len(items), mssqlInWarningThreshold)
		}
		placeholders := make([]string, len(items))
		for i, item := range items {
			placeholders[i] = c.Bind(item)
		}
		keyword := "IN"
		if op == "not in" {
			keyword = "NOT IN"
		}
		return fmt.Sprintf("%s %s (%s)", column, keyword, strings.Join(placeholders, ", ")), warning, nil
	case "between", "not between":
		items := toSlice(val)
		if len(items) != 2 {
			return "", "", fmt.Errorf("%s requires a two-element array value", op)
		}
		keyword := "BETWEEN"
		if op == "not between" {
			keyword = "NOT BETWEEN"
		}
		return fmt.Sprintf("%s %s %s AND %s", column, keyword, c.Bind(items[0]), c.Bind(items[1])), "", nil
	case "is null":
		return fmt.Sprintf("%s IS NULL", column), "", nil
	case "is not null":
		return fmt.Sprintf("%s IS NOT NULL", column), "", nil
	default:
		return "", "", fmt.Errorf("unsupported operator %q", op)
	}
}

func likePattern(val any) string {
	s := fmt.Sprintf("%v", val)
	if strings.ContainsAny(s, "%_") {
		return s
	}
	return "%" + s + "%"
}

// toSlice coerces an array-shaped param value (as decoded from JSON, a
// []any, or a comma-separated string) into a flat []any for IN/BETWEEN.
func toSlice(val any) []any {
	switch t := val.(type) {
	case []any:
		return t
	case string:
		parts := strings.Split(t, ",")
		out := make([]any, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, coerceNumeric(p))
			}
		}
		return out
	default:
		rv := reflect.ValueOf(val)
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			out := make([]any, rv.Len())
			for i := range out {
				out[i] = rv.Index(i).Interface()
			}
			return out
		}
		return nil
	}
}

// coerceNumeric parses a comma-separated element into int64 or float64 when
// possible, falling back to the trimmed string otherwise.
func coerceNumeric(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
