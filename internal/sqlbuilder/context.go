// Package sqlbuilder compiles an EndpointDef plus a resolved parameter map
// into dialect-correct parameterized SQL: LIST, PAGE (shallow), DEEP_PAGE
// (windowed), and MODIFY (insert-or-update) (spec.md §4.4, the largest
// single component in the system).
package sqlbuilder

import (
	"fmt"

	"github.com/user/relaygate/internal/config"
	"github.com/user/relaygate/internal/dialect"
)

// Context is the mutable per-compilation state threaded through one
// statement's construction: every placeholder consumed advances paramIndex
// so WHERE, pagination, and the column list never collide on the same
// bound position.
type Context struct {
	Dialect    config.Dialect
	paramIndex int
	Args       []any
}

func NewContext(d config.Dialect) *Context {
	return &Context{Dialect: d}
}

// Bind appends value as the next bound parameter and returns its placeholder.
func (c *Context) Bind(value any) string {
	c.paramIndex++
	c.Args = append(c.Args, value)
	return dialect.Placeholder(c.Dialect, c.paramIndex)
}

func (c *Context) quote(name string) string {
	return dialect.QuoteIdent(c.Dialect, name)
}

// Statement is a compiled query ready to hand to a Connection.
type Statement struct {
	SQL  string
	Args []any
}

// ErrNoFilter is returned when an UPDATE/DELETE-shaped MODIFY has no WHERE
// clause at all — refusing to build an unconditional bulk mutation.
var ErrNoFilter = fmt.Errorf("sqlbuilder: modify requires a filter condition")

// ErrSortRequired is returned by DEEP_PAGE when the endpoint declares no
// sort fields — ROW_NUMBER() OVER() is undefined without one.
var ErrSortRequired = fmt.Errorf("sqlbuilder: deep pagination requires at least one sort field")

// ErrEmptyColumnSet is returned by MODIFY when no mutable field has a bound value.
var ErrEmptyColumnSet = fmt.Errorf("sqlbuilder: modify has no columns to write")
