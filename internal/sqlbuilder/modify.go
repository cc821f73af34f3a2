package sqlbuilder

import (
	"fmt"
	"strings"

	"github.com/user/relaygate/internal/config"
)

// BuildModify compiles an INSERT or an UPDATE, choosing between them by the
// same rule the source applies: with no explicit action, a primary-key
// value present in resolved means UPDATE; an explicit "update" action means
// UPDATE if either a conditionSchema filter or the pk is present and is
// rejected with ErrNoFilter if neither is; everything else is an INSERT.
func BuildModify(d config.Dialect, endpoint *config.EndpointDef, resolved map[string]any) (*Statement, []WhereWarning, error) {
	action := strings.ToLower(strings.TrimSpace(endpoint.Action))
	pk := endpoint.EffectivePk()
	_, hasPk := resolved[pk]
	hasConditionFromSchema := conditionSchemaHasMatch(endpoint.ConditionSchema, resolved)

	if action == "update" && !hasConditionFromSchema && !hasPk {
		return nil, nil, ErrNoFilter
	}
	isUpdate := (action == "" && hasPk) || (action == "update" && (hasConditionFromSchema || hasPk))

	if isUpdate {
		return buildUpdate(d, endpoint, resolved)
	}
	return buildInsert(d, endpoint, resolved)
}

func conditionSchemaHasMatch(schema map[string]config.ConditionEntry, resolved map[string]any) bool {
	for key := range schema {
		if v, ok := resolved[key]; ok && v != nil {
			return true
		}
	}
	return false
}

func mutableColumns(endpoint *config.EndpointDef, resolved map[string]any) []string {
	var cols []string
	candidates := endpoint.MutableFields
	if len(candidates) == 0 {
		// No explicit allow-list: every resolved param, filter keys
		// included, is considered a writable column (buildUpdate drops the
		// pk and conditionSchema keys from its SET list; INSERT keeps them).
		for k := range resolved {
			candidates = append(candidates, k)
		}
	}
	for _, field := range candidates {
		if v, ok := resolved[field]; ok && v != nil {
			cols = append(cols, field)
		}
	}
	return cols
}

func buildInsert(d config.Dialect, endpoint *config.EndpointDef, resolved map[string]any) (*Statement, []WhereWarning, error) {
	c := NewContext(d)
	cols := mutableColumns(endpoint, resolved)
	if len(cols) == 0 {
		return nil, nil, ErrEmptyColumnSet
	}

	quotedCols := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	for i, col := range cols {
		quotedCols[i] = c.quote(col)
		placeholders[i] = c.Bind(resolved[col])
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		c.quote(endpoint.TableName), strings.Join(quotedCols, ", "), strings.Join(placeholders, ", "))

	return &Statement{SQL: sql, Args: c.Args}, nil, nil
}

func buildUpdate(d config.Dialect, endpoint *config.EndpointDef, resolved map[string]any) (*Statement, []WhereWarning, error) {
	c := NewContext(d)
	pk := endpoint.EffectivePk()

	cols := mutableColumns(endpoint, resolved)
	// The primary key and any column also used as a WHERE filter never
	// appear on the SET side.
	filterCols := map[string]bool{pk: true}
	for key := range endpoint.ConditionSchema {
		filterCols[key] = true
	}
	var setCols []string
	for _, col := range cols {
		if !filterCols[col] {
			setCols = append(setCols, col)
		}
	}
	if len(setCols) == 0 {
		return nil, nil, ErrEmptyColumnSet
	}

	assignments := make([]string, len(setCols))
	for i, col := range setCols {
		assignments[i] = fmt.Sprintf("%s = %s", c.quote(col), c.Bind(resolved[col]))
	}

	where, warnings, err := c.BuildWhere(endpoint.ConditionSchema, resolved)
	if err != nil {
		return nil, nil, err
	}
	if pkVal, ok := resolved[pk]; ok && pkVal != nil {
		pkFrag := fmt.Sprintf("%s = %s", c.quote(pk), c.Bind(pkVal))
		if where == "" {
			where = pkFrag
		} else {
			where = "(" + where + ") AND " + pkFrag
		}
	}
	if where == "" {
		return nil, nil, ErrNoFilter
	}

	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s", c.quote(endpoint.TableName), strings.Join(assignments, ", "), where)
	return &Statement{SQL: sql, Args: c.Args}, warnings, nil
}
