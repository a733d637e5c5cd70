package prompt

import (
	"strings"
	"testing"

	"flowrun/internal"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	ctx := map[string]any{
		"x":      "v",
		"n":      float64(7),
		"ratio":  0.25,
		"ok":     true,
		"tags":   []any{"a", "b"},
		"filter": map[string]any{"min": float64(2), "nested": map[string]any{"cur": "eur"}},
		"nil":    nil,
	}

	t.Run("Should substitute a present key", func(t *testing.T) {
		assert.Equal(t, "go to v now", Render("go to {{x}} now", ctx))
		assert.Equal(t, "v", Render("{{ x }}", ctx))
	})

	t.Run("Should render a missing key as empty text", func(t *testing.T) {
		assert.Equal(t, "a  b", Render("a {{missing}} b", ctx))
		assert.Equal(t, "[]", Render("[{{nil}}]", ctx))
	})

	t.Run("Should format native values", func(t *testing.T) {
		assert.Equal(t, "7 0.25 true a, b", Render("{{n}} {{ratio}} {{ok}} {{tags}}", ctx))
		assert.Equal(t, `{"min":2,"nested":{"cur":"eur"}}`, Render("{{filter}}", ctx))
	})

	t.Run("Should walk dotted paths", func(t *testing.T) {
		assert.Equal(t, "eur", Render("{{filter.nested.cur}}", ctx))
		assert.Equal(t, "b", Render("{{tags.1}}", ctx))
		assert.Equal(t, "", Render("{{tags.9}}", ctx))
		assert.Equal(t, "", Render("{{x.y}}", ctx))
	})

	t.Run("Should leave other braces alone", func(t *testing.T) {
		assert.Equal(t, "{x} {{ }} {{1a}}", Render("{x} {{ }} {{1a}}", ctx))
	})
}

func fullDefinition() *internal.TaskDefinition {
	return &internal.TaskDefinition{
		Name:     "scrape",
		Template: "Open {{url}} and save into {{outputDir}} for {{workflowName}}.",
		Params:   map[string]internal.ParameterSpec{"url": {Kind: internal.KindString, Required: true}},
		Capture: internal.CaptureSpec{
			Network: &internal.NetworkCapture{
				Patterns:              []string{"**/api/*"},
				Methods:               []string{"GET"},
				Status:                []int{200, 201},
				ContentType:           "application/json",
				Output:                "{{outputDir}}/network",
				ExtractJSON:           true,
				IncludeRequestHeaders: true,
			},
			Screenshots: &internal.ScreenshotCapture{
				Mode:   internal.ScreenshotConfigured,
				Dir:    "{{outputDir}}/shots",
				Format: "png",
				Naming: "step",
			},
			Console: &internal.ConsoleCapture{Levels: []string{"error"}, Output: "{{outputDir}}/console.log"},
			Data:    "{{outputDir}}/data.json",
		},
	}
}

func TestCompose(t *testing.T) {
	t.Run("Should inject the name and default output directory", func(t *testing.T) {
		def := &internal.TaskDefinition{Name: "n", Template: "{{workflowName}} -> {{outputDir}}"}
		out := Compose(def, nil, Options{})
		assert.True(t, strings.HasPrefix(out, "n -> ./output/n\n\n## When finished"))
		assert.NotContains(t, out, "## Capture")
	})

	t.Run("Should order capture sections and render their paths", func(t *testing.T) {
		out := Compose(fullDefinition(), map[string]any{"url": "https://shop"}, Options{OutputDir: "/tmp/o"})
		assert.Contains(t, out, "Open https://shop and save into /tmp/o for scrape.")
		assert.Contains(t, out, "- Save captured traffic to: /tmp/o/network")
		assert.Contains(t, out, "- Only status codes: 200, 201")
		assert.Contains(t, out, "- Include request headers")
		assert.NotContains(t, out, "response headers")
		assert.Contains(t, out, "- Save screenshots in: /tmp/o/shots")
		assert.Contains(t, out, "- Naming: step (named after the step being performed)")
		assert.Contains(t, out, "- Save the extracted data to: /tmp/o/data.json")

		network := strings.Index(out, "### Network")
		shots := strings.Index(out, "### Screenshots")
		console := strings.Index(out, "### Console")
		data := strings.Index(out, "### Data")
		closing := strings.Index(out, "## When finished")
		assert.True(t, network < shots && shots < console && console < data && data < closing)
	})

	t.Run("Should render a simple screenshot destination", func(t *testing.T) {
		def := &internal.TaskDefinition{
			Name:     "n",
			Template: "t",
			Capture: internal.CaptureSpec{
				Screenshots: &internal.ScreenshotCapture{Mode: internal.ScreenshotSimple, Path: "{{outputDir}}/s"},
			},
		}
		out := Compose(def, nil, Options{})
		assert.Contains(t, out, "### Screenshots\n- Save screenshots to: ./output/n/s")
		assert.NotContains(t, out, "### Network")
	})

	t.Run("Should let injected keys shadow parameters", func(t *testing.T) {
		def := &internal.TaskDefinition{Name: "n", Template: "{{workflowName}}"}
		out := Compose(def, map[string]any{"workflowName": "other"}, Options{})
		assert.True(t, strings.HasPrefix(out, "n\n"))
	})

	t.Run("Should be deterministic", func(t *testing.T) {
		def := fullDefinition()
		params := map[string]any{"url": "u"}
		assert.Equal(t, Compose(def, params, Options{}), Compose(def, params, Options{}))
	})
}

func TestDestinations(t *testing.T) {
	got := Destinations(fullDefinition(), nil, Options{OutputDir: "/o"})
	assert.Equal(t, internal.CapturedFiles{
		Network:     "/o/network",
		Screenshots: "/o/shots",
		Console:     "/o/console.log",
		Data:        "/o/data.json",
	}, got)
}
