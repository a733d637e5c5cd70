package cmd

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"flowrun/internal"
	"flowrun/internal/util"
)

// flags shared by every command, recognised even where cobra's flag parsing is disabled
var (
	globalBoolFlags  = []string{"log-json"}
	globalValueFlags = []string{"log-level", "log-file"}
)

// options of the commands that take workflow parameters
var (
	runBoolOptions      = []string{"dry-run", "foreground"}
	runValueOptions     = []string{"work-dir", "output-dir"}
	promptValueOptions  = []string{"output-dir"}
	validateBoolOptions = []string{"yaml"}
)

// invocation is a command line split into positional arguments, known flags and
// workflow parameters.
type invocation struct {
	args   []string
	flags  map[string]string
	params map[string]any
	help   bool
}

// parseInvocation reads raw arguments. Names in bools and values are command options;
// every other --name becomes a workflow parameter in one of the forms --k v, --k=v or a
// bare --k meaning true. A repeated parameter collects its values into a list.
func parseInvocation(raw, bools, values []string) (*invocation, error) {
	bools = append(slices.Clone(bools), globalBoolFlags...)
	values = append(slices.Clone(values), globalValueFlags...)
	inv := &invocation{flags: map[string]string{}, params: map[string]any{}}

	for i := 0; i < len(raw); i++ {
		tok := raw[i]
		switch {
		case tok == "--":
			inv.args = append(inv.args, raw[i+1:]...)
			return inv, nil
		case tok == "-h" || tok == "--help":
			inv.help = true
			continue
		case strings.HasPrefix(tok, "--"):
		case strings.HasPrefix(tok, "-") && len(tok) > 1:
			return nil, fmt.Errorf("unknown shorthand flag %q", tok)
		default:
			inv.args = append(inv.args, tok)
			continue
		}

		name, value, hasValue := strings.Cut(tok[2:], "=")
		if name == "" {
			return nil, fmt.Errorf("invalid flag %q", tok)
		}
		next := func() (string, bool) {
			if i+1 < len(raw) && !strings.HasPrefix(raw[i+1], "--") {
				i++
				return raw[i], true
			}
			return "", false
		}

		switch {
		case slices.Contains(bools, name):
			if !hasValue {
				value = "true"
			}
			b, err := strconv.ParseBool(value)
			if err != nil {
				return nil, fmt.Errorf("flag --%s expects true or false, got %q", name, value)
			}
			inv.flags[name] = strconv.FormatBool(b)
		case slices.Contains(values, name):
			if !hasValue {
				v, ok := next()
				if !ok {
					return nil, fmt.Errorf("flag --%s needs a value", name)
				}
				value = v
			}
			inv.flags[name] = value
		default:
			var param any = true
			if hasValue {
				param = value
			} else if v, ok := next(); ok {
				param = v
			}
			inv.addParam(name, param)
		}
	}
	return inv, nil
}

func (inv *invocation) addParam(name string, v any) {
	prev, seen := inv.params[name]
	if !seen {
		inv.params[name] = v
		return
	}
	if list, ok := prev.([]any); ok {
		inv.params[name] = append(list, v)
		return
	}
	inv.params[name] = []any{prev, v}
}

func (inv *invocation) flag(name string) string {
	return inv.flags[name]
}

func (inv *invocation) enabled(name string) bool {
	return inv.flags[name] == "true"
}

// workflow returns the single positional argument naming the workflow.
func (inv *invocation) workflow() (string, error) {
	switch len(inv.args) {
	case 0:
		return "", errors.New("missing workflow name")
	case 1:
		return inv.args[0], nil
	default:
		return "", fmt.Errorf("expected one workflow name, got %d arguments: %s", len(inv.args), strings.Join(inv.args, " "))
	}
}

// shadowedParams lists the declared parameters of def that the command line reads as one
// of the given options, or as a global flag, and so can never be passed.
func shadowedParams(def *internal.TaskDefinition, options ...[]string) []string {
	var out []string
	for _, name := range def.ParamNames() {
		if slices.Contains(globalBoolFlags, name) || slices.Contains(globalValueFlags, name) {
			out = append(out, name)
			continue
		}
		for _, opts := range options {
			if slices.Contains(opts, name) {
				out = append(out, name)
				break
			}
		}
	}
	return out
}

func warnShadowed(def *internal.TaskDefinition, options ...[]string) {
	for _, name := range shadowedParams(def, options...) {
		util.Logger().Warn("parameter is shadowed by a command option", "workflow", def.Name, "param", name)
	}
}
