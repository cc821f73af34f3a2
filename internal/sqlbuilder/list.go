package sqlbuilder

import (
	"fmt"
	"strings"

	"github.com/user/relaygate/internal/config"
)

func (c *Context) selectColumns(endpoint *config.EndpointDef) string {
	fields := endpoint.EffectiveFields()
	if len(fields) == 1 && fields[0] == "*" {
		return "*"
	}
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = c.quote(f)
	}
	return strings.Join(quoted, ", ")
}

// BuildList compiles an unpaginated SELECT: every matching row, in the
// endpoint's declared sort order, with no row cap.
func BuildList(d config.Dialect, endpoint *config.EndpointDef, resolved map[string]any) (*Statement, []WhereWarning, error) {
	c := NewContext(d)
	where, warnings, err := c.BuildWhere(endpoint.ConditionSchema, resolved)
	if err != nil {
		return nil, nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", c.selectColumns(endpoint), c.quote(endpoint.TableName))
	if where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}
	if orderBy := c.BuildOrderBy(endpoint.Sort); orderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(orderBy)
	}

	return &Statement{SQL: b.String(), Args: c.Args}, warnings, nil
}

// BuildPage compiles a shallow page: a CTE that computes COUNT(*) OVER() so
// total row count is available from the same scan that fetches the page,
// rather than a second round-trip. When maxTotal is > 0 the reported total
// is capped via a CASE WHEN expression (maxTotal bound twice) rather than
// the row set itself being truncated — the page still returns real rows,
// only the TotalCount figure is clamped.
func BuildPage(d config.Dialect, endpoint *config.EndpointDef, resolved map[string]any, page, pageSize, maxTotal int) (*Statement, []WhereWarning, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	c := NewContext(d)
	// The TotalCount cap precedes the WHERE clause in the SQL text, so it is
	// bound first to keep Args in placeholder order.
	totalExpr := "COUNT(*) OVER () AS TotalCount"
	if maxTotal > 0 {
		cap1, cap2 := c.Bind(maxTotal), c.Bind(maxTotal)
		totalExpr = fmt.Sprintf("CASE WHEN COUNT(*) OVER () > %s THEN %s ELSE COUNT(*) OVER () END AS TotalCount", cap1, cap2)
	}

	where, warnings, err := c.BuildWhere(endpoint.ConditionSchema, resolved)
	if err != nil {
		return nil, nil, err
	}

	var inner strings.Builder
	fmt.Fprintf(&inner, "SELECT %s, %s FROM %s", c.selectColumns(endpoint), totalExpr, c.quote(endpoint.TableName))
	if where != "" {
		inner.WriteString(" WHERE ")
		inner.WriteString(where)
	}
	orderBy := c.BuildOrderBy(endpoint.Sort)
	if orderBy != "" {
		inner.WriteString(" ORDER BY ")
		inner.WriteString(orderBy)
	} else if d == config.MSSQL {
		// MSSQL's OFFSET/FETCH requires an ORDER BY; a stable no-op order
		// keeps an unsorted endpoint pageable without inventing a real sort.
		inner.WriteString(" ORDER BY (SELECT NULL)")
	}

	sql := fmt.Sprintf("WITH all_rows AS (%s) SELECT * FROM all_rows %s",
		inner.String(), dialectPageClause(c, pageSize, offset))

	return &Statement{SQL: sql, Args: c.Args}, warnings, nil
}

// BuildDeepPage compiles a windowed page using ROW_NUMBER() OVER(ORDER BY
// ...), which stays efficient at high offsets where OFFSET/FETCH must still
// count through every skipped row. Requires a non-empty sort: ROW_NUMBER()
// is undefined without one.
func BuildDeepPage(d config.Dialect, endpoint *config.EndpointDef, resolved map[string]any, page, pageSize int) (*Statement, []WhereWarning, error) {
	if len(endpoint.Sort) == 0 {
		return nil, nil, ErrSortRequired
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	lowerBound := (page - 1) * pageSize
	upperBound := lowerBound + pageSize

	c := NewContext(d)
	where, warnings, err := c.BuildWhere(endpoint.ConditionSchema, resolved)
	if err != nil {
		return nil, nil, err
	}
	orderBy := c.BuildOrderBy(endpoint.Sort)

	var inner strings.Builder
	fmt.Fprintf(&inner, "SELECT %s, ROW_NUMBER() OVER (ORDER BY %s) AS rn, COUNT(*) OVER () AS TotalCount FROM %s",
		c.selectColumns(endpoint), orderBy, c.quote(endpoint.TableName))
	if where != "" {
		inner.WriteString(" WHERE ")
		inner.WriteString(where)
	}

	// Bounds are emitted as literal integers, never as bound parameters —
	// the windowed form carries no placeholders beyond the WHERE's own.
	sql := fmt.Sprintf(
		"SELECT * FROM (%s) AS numbered_rows WHERE rn BETWEEN %d AND %d",
		inner.String(), lowerBound+1, upperBound,
	)

	return &Statement{SQL: sql, Args: c.Args}, warnings, nil
}

func dialectPageClause(c *Context, limit, offset int) string {
	limitPh := c.Bind(limit)
	offsetPh := c.Bind(offset)
	if c.Dialect == config.MSSQL {
		return fmt.Sprintf("OFFSET %s ROWS FETCH NEXT %s ROWS ONLY", offsetPh, limitPh)
	}
	return fmt.Sprintf("LIMIT %s OFFSET %s", limitPh, offsetPh)
}
