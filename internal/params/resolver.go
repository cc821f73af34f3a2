// Package params implements the Parameter Resolver & Validator (spec.md
// §4.3): merging the incoming path/query/body payload per each endpoint's
// declared paramsMapping, coercing to the declared dataType, and running the
// declarative validator chain.
package params

import (
	"fmt"

	"github.com/user/relaygate/internal/config"
)

// Resolved is the output of resolving one EndpointDef's paramsMapping
// against one request: the typed, validated parameter map plus whichever
// value was bound to the primary key (nil if none was supplied).
type Resolved struct {
	Values  map[string]any
	PkValue any
}

// Resolve merges sp per each mapping's declared source, coerces to the
// mapping's dataType, and runs its validator chain in declaration order.
// The first validator failure anywhere aborts resolution.
func Resolve(mappings []config.ParamMapping, pk string, sp config.StandardParams) (*Resolved, error) {
	out := make(map[string]any, len(mappings))

	for _, m := range mappings {
		source := m.Source
		if source == "" {
			source = config.SourceAll
		}
		raw, present := sp.FromSource(source, m.Field)

		if !present {
			if hasRequired(m.Validators) {
				return nil, &ValidationError{Field: m.Key(), Rule: "required", Msg: "is required"}
			}
			continue
		}

		coerced, err := coerce(raw, m.DataType)
		if err != nil {
			return nil, fmt.Errorf("param %s: %w", m.Key(), err)
		}

		coerced, err = runValidators(m.Key(), coerced, m.Validators)
		if err != nil {
			return nil, err
		}

		out[m.Key()] = coerced
	}

	res := &Resolved{Values: out}
	if pk != "" {
		if v, ok := out[pk]; ok {
			res.PkValue = v
		} else if v, ok := sp.Param(pk); ok {
			res.PkValue = v
		}
	}
	return res, nil
}

func hasRequired(vs []config.Validator) bool {
	for _, v := range vs {
		if v.Type == "required" {
			return true
		}
	}
	return false
}
