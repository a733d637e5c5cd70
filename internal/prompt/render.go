package prompt

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_-]*(?:\.[A-Za-z0-9_-]+)*)\s*\}\}`)

// Render replaces every {{name}} in tmpl with the matching context value. Dotted names walk
// into objects and arrays. Names that resolve to nothing render as empty text.
func Render(tmpl string, ctx map[string]any) string {
	return placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		key := placeholder.FindStringSubmatch(m)[1]
		v, ok := lookup(ctx, key)
		if !ok {
			return ""
		}
		return Format(v)
	})
}

func lookup(ctx map[string]any, key string) (any, bool) {
	if v, ok := ctx[key]; ok {
		return v, v != nil
	}
	var cur any = ctx
	for _, seg := range strings.Split(key, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, cur != nil
}

// Format renders a parameter value as prompt text. Whole numbers print without a fraction,
// arrays as comma separated items and objects as compact JSON.
func Format(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		items := make([]string, len(t))
		for i, item := range t {
			items[i] = Format(item)
		}
		return strings.Join(items, ", ")
	case map[string]any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
	return fmt.Sprint(v)
}
