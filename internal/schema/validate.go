// Package schema coerces caller-supplied parameter values toward their declared kinds and
// validates them against a definition's parameter schema.
package schema

import (
	"fmt"
	"maps"
	"math"
	"slices"

	"flowrun/internal"
)

// Outcome is the result of checking a parameter map. Resolved holds only parameters that
// validated, including those filled from a default.
type Outcome struct {
	Valid    bool             `yaml:"valid"`
	Errors   []internal.Issue `yaml:"errors,omitempty"`
	Resolved map[string]any   `yaml:"resolved"`
}

// Check coerces raw against the definition's parameters and validates the result.
func Check(def *internal.TaskDefinition, raw map[string]any) Outcome {
	return Validate(def, Coerce(def.Params, raw))
}

// Validate checks already coerced values. Declared parameters are reported in declaration
// order, unknown keys after them in lexical order. Every issue is collected. A nil value
// counts as missing for a required parameter and as a type mismatch otherwise.
func Validate(def *internal.TaskDefinition, values map[string]any) Outcome {
	out := Outcome{Resolved: map[string]any{}}
	for _, name := range def.ParamNames() {
		spec := def.Params[name]
		v, present := values[name]
		if !present || (v == nil && spec.Required) {
			if spec.Required {
				out.Errors = append(out.Errors, internal.Issue{
					Param:   name,
					Kind:    internal.IssueMissingRequired,
					Message: "required parameter is missing",
				})
			}
			continue
		}
		if !matches(spec.Kind, v) {
			out.Errors = append(out.Errors, internal.Issue{
				Param:   name,
				Kind:    internal.IssueTypeMismatch,
				Message: fmt.Sprintf("expected %s, got %s", spec.Kind, describe(v)),
			})
			continue
		}
		out.Resolved[name] = v
	}

	var unknown []string
	for k := range maps.Keys(values) {
		if _, ok := def.Params[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	slices.Sort(unknown)
	for _, k := range unknown {
		out.Errors = append(out.Errors, internal.Issue{
			Param:   k,
			Kind:    internal.IssueUnknownParameter,
			Message: "unknown parameter",
		})
	}
	out.Valid = len(out.Errors) == 0
	return out
}

func matches(kind internal.ParamKind, v any) bool {
	switch kind {
	case internal.KindString:
		_, ok := v.(string)
		return ok
	case internal.KindNumber:
		f, ok := v.(float64)
		return ok && !math.IsNaN(f) && !math.IsInf(f, 0)
	case internal.KindBoolean:
		_, ok := v.(bool)
		return ok
	case internal.KindArray:
		_, ok := v.([]any)
		return ok
	case internal.KindObject:
		_, ok := v.(map[string]any)
		return ok
	}
	return false
}

func describe(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("string %q", t)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return "non-finite number"
		}
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}
