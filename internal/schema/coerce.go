package schema

import (
	"math"
	"reflect"
	"strconv"
	"strings"

	"flowrun/internal"

	"github.com/tidwall/gjson"
)

// Coerce fills defaults and converts raw values toward their declared kinds. It never fails:
// values that cannot be converted are passed through unchanged for Validate to reject.
// An explicit nil takes the default when there is one and is kept otherwise. Keys absent
// from the schema are copied as-is.
func Coerce(params map[string]internal.ParameterSpec, raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw)+len(params))
	for k, v := range raw {
		out[k] = v
	}
	for name, spec := range params {
		v, present := raw[name]
		if !present || v == nil {
			if spec.HasDefault {
				out[name] = coerceValue(spec.Kind, spec.Default)
			}
			continue
		}
		out[name] = coerceValue(spec.Kind, v)
	}
	return out
}

func coerceValue(kind internal.ParamKind, v any) any {
	v = nativeShape(v)
	s, isString := v.(string)
	if !isString {
		return v
	}
	switch kind {
	case internal.KindNumber:
		if f, ok := parseNumber(s); ok {
			return f
		}
	case internal.KindBoolean:
		switch s {
		case "true":
			return true
		case "false":
			return false
		}
	case internal.KindArray:
		return splitList(s)
	case internal.KindObject:
		if r := parseJSON(s); r.IsObject() {
			if m, ok := r.Value().(map[string]any); ok {
				return m
			}
		}
	}
	return v
}

func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseJSON(s string) gjson.Result {
	s = strings.TrimSpace(s)
	if !gjson.Valid(s) {
		return gjson.Result{}
	}
	return gjson.Parse(s)
}

// splitList accepts a JSON array or a comma separated list; empty tokens are dropped.
func splitList(s string) any {
	if r := parseJSON(s); r.IsArray() {
		if items, ok := r.Value().([]any); ok {
			return items
		}
	}
	items := []any{}
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			items = append(items, tok)
		}
	}
	return items
}

// nativeShape maps Go values onto the canonical shapes: float64 for every numeric type,
// []any for slices and map[string]any for string-keyed maps.
func nativeShape(v any) any {
	switch t := v.(type) {
	case string, bool, float64, []any, map[string]any, nil:
		return v
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case int32:
		return float64(t)
	case uint:
		return float64(t)
	case uint64:
		return float64(t)
	case float32:
		return float64(t)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int8, reflect.Int16:
		return float64(rv.Int())
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return float64(rv.Uint())
	case reflect.Slice, reflect.Array:
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = nativeShape(rv.Index(i).Interface())
		}
		return items
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = nativeShape(iter.Value().Interface())
		}
		return m
	}
	return v
}
