package sqlbuilder

import (
	"strings"

	"github.com/user/relaygate/internal/config"
)

// BuildOrderBy emits ORDER BY fragments verbatim from the endpoint's
// declared sort — no implicit default order is invented, matching the
// source's "ORDER BY is whatever the config says, nothing more" behavior.
func (c *Context) BuildOrderBy(sort []config.SortField) string {
	if len(sort) == 0 {
		return ""
	}
	parts := make([]string, 0, len(sort))
	for _, s := range sort {
		dir := strings.ToUpper(string(s.Order))
		if dir != "ASC" && dir != "DESC" {
			dir = "ASC"
		}
		parts = append(parts, c.quote(s.Field)+" "+dir)
	}
	return strings.Join(parts, ", ")
}
