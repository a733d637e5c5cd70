// Package prompt turns a definition and its resolved parameters into the single instruction
// handed to the agent: the rendered template, the capture directives and a closing report
// section.
package prompt

import (
	"fmt"
	"maps"
	"strconv"
	"strings"

	"flowrun/internal"
)

// Context keys injected next to the resolved parameters. They shadow parameters of the same
// name.
const (
	KeyWorkflowName = "workflowName"
	KeyOutputDir    = "outputDir"
)

type Options struct {
	// OutputDir overrides the default ./output/<name>.
	OutputDir string
}

// DefaultOutputDir is the relative output directory used when none is given.
func DefaultOutputDir(name string) string {
	return "./output/" + name
}

// Context builds the rendering context for def.
func Context(def *internal.TaskDefinition, resolved map[string]any, opts Options) map[string]any {
	ctx := make(map[string]any, len(resolved)+2)
	maps.Copy(ctx, resolved)
	ctx[KeyWorkflowName] = def.Name
	ctx[KeyOutputDir] = outputDir(def, opts)
	return ctx
}

func outputDir(def *internal.TaskDefinition, opts Options) string {
	if opts.OutputDir != "" {
		return opts.OutputDir
	}
	return DefaultOutputDir(def.Name)
}

// Compose renders the full instruction. It is pure: the same inputs always give the same text.
func Compose(def *internal.TaskDefinition, resolved map[string]any, opts Options) string {
	ctx := Context(def, resolved, opts)
	var b strings.Builder
	b.WriteString(Render(def.Template, ctx))
	if block := captureBlock(def.Capture, ctx); block != "" {
		b.WriteString("\n\n")
		b.WriteString(block)
	}
	b.WriteString("\n\n")
	b.WriteString(closingSection)
	return b.String()
}

// Destinations renders the capture destinations of def, keyed like CapturedFiles.
func Destinations(def *internal.TaskDefinition, resolved map[string]any, opts Options) internal.CapturedFiles {
	ctx := Context(def, resolved, opts)
	var out internal.CapturedFiles
	c := def.Capture
	if c.Network != nil {
		out.Network = Render(c.Network.Output, ctx)
	}
	if c.Screenshots != nil {
		out.Screenshots = Render(c.Screenshots.Destination(), ctx)
	}
	if c.Console != nil {
		out.Console = Render(c.Console.Output, ctx)
	}
	out.Data = Render(c.Data, ctx)
	return out
}

const closingSection = `## When finished

Report back with:
1. What was done
2. Every file saved, with its path
3. Any errors encountered`

func captureBlock(c internal.CaptureSpec, ctx map[string]any) string {
	if c.Empty() {
		return ""
	}
	var sections []string
	if c.Network != nil {
		sections = append(sections, networkSection(c.Network, ctx))
	}
	if c.Screenshots != nil {
		sections = append(sections, screenshotSection(c.Screenshots, ctx))
	}
	if c.Console != nil {
		sections = append(sections, consoleSection(c.Console, ctx))
	}
	if c.Data != "" {
		sections = append(sections, "### Data\n- Save the extracted data to: "+Render(c.Data, ctx))
	}
	return "## Capture\n\n" + strings.Join(sections, "\n\n")
}

func networkSection(n *internal.NetworkCapture, ctx map[string]any) string {
	lines := []string{"### Network"}
	patterns := make([]string, len(n.Patterns))
	for i, p := range n.Patterns {
		patterns[i] = "`" + Render(p, ctx) + "`"
	}
	lines = append(lines, "- Record requests whose URL matches: "+strings.Join(patterns, ", "))
	if len(n.Methods) > 0 {
		lines = append(lines, "- Only methods: "+strings.Join(n.Methods, ", "))
	}
	if len(n.Status) > 0 {
		codes := make([]string, len(n.Status))
		for i, s := range n.Status {
			codes[i] = strconv.Itoa(s)
		}
		lines = append(lines, "- Only status codes: "+strings.Join(codes, ", "))
	}
	if n.ContentType != "" {
		lines = append(lines, "- Only content type: "+Render(n.ContentType, ctx))
	}
	if n.Output != "" {
		lines = append(lines, "- Save captured traffic to: "+Render(n.Output, ctx))
	}
	if n.ExtractJSON {
		lines = append(lines, "- Parse JSON response bodies and save the parsed data")
	}
	if n.IncludeRequestHeaders {
		lines = append(lines, "- Include request headers")
	}
	if n.IncludeResponseHeaders {
		lines = append(lines, "- Include response headers")
	}
	return strings.Join(lines, "\n")
}

var namingHints = map[string]string{
	"sequential": "numbered in capture order",
	"timestamp":  "named by capture time",
	"step":       "named after the step being performed",
}

func screenshotSection(s *internal.ScreenshotCapture, ctx map[string]any) string {
	lines := []string{"### Screenshots"}
	switch s.Mode {
	case internal.ScreenshotConfigured:
		lines = append(lines, "- Save screenshots in: "+Render(s.Dir, ctx))
		if s.Format != "" {
			lines = append(lines, "- Format: "+s.Format)
		}
		if s.Naming != "" {
			lines = append(lines, fmt.Sprintf("- Naming: %s (%s)", s.Naming, namingHints[s.Naming]))
		}
	default:
		lines = append(lines, "- Save screenshots to: "+Render(s.Path, ctx))
	}
	return strings.Join(lines, "\n")
}

func consoleSection(c *internal.ConsoleCapture, ctx map[string]any) string {
	lines := []string{"### Console"}
	if len(c.Levels) > 0 {
		lines = append(lines, "- Record console messages with levels: "+strings.Join(c.Levels, ", "))
	} else {
		lines = append(lines, "- Record console messages of every level")
	}
	if c.Filter != "" {
		lines = append(lines, "- Only messages matching: "+Render(c.Filter, ctx))
	}
	if c.Output != "" {
		lines = append(lines, "- Save console output to: "+Render(c.Output, ctx))
	}
	return strings.Join(lines, "\n")
}
