package loader

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"flowrun/internal"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
)

// RawDefinition is a parsed but unchecked definition document.
type RawDefinition struct {
	Fields map[string]any
	// ParamOrder lists parameter names in document order when the format preserves it.
	ParamOrder []string
	Source     string
}

type rawDefinition struct {
	Name        string               `mapstructure:"name" validate:"required"`
	Description string               `mapstructure:"description"`
	Params      *map[string]rawParam `mapstructure:"params" validate:"required"`
	Capture     *rawCapture          `mapstructure:"capture" validate:"required"`
	Prompt      string               `mapstructure:"prompt" validate:"required"`
}

type rawParam struct {
	Type        string `mapstructure:"type"`
	Required    bool   `mapstructure:"required"`
	Default     any    `mapstructure:"default"`
	Description string `mapstructure:"description"`
}

type rawCapture struct {
	Network     *rawNetwork                 `mapstructure:"network"`
	Screenshots *internal.ScreenshotCapture `mapstructure:"screenshots"`
	Console     *rawConsole                 `mapstructure:"console"`
	Data        string                      `mapstructure:"data"`
}

type rawNetwork struct {
	Patterns               []string `mapstructure:"patterns"`
	Methods                []string `mapstructure:"methods"`
	Status                 []int    `mapstructure:"status"`
	ContentType            string   `mapstructure:"content_type"`
	Output                 string   `mapstructure:"output"`
	ExtractJSON            bool     `mapstructure:"extract_json"`
	IncludeRequestHeaders  bool     `mapstructure:"include_request_headers"`
	IncludeResponseHeaders bool     `mapstructure:"include_response_headers"`
}

type rawConsole struct {
	Levels []string `mapstructure:"levels"`
	Filter string   `mapstructure:"filter"`
	Output string   `mapstructure:"output"`
}

var (
	screenshotType    = reflect.TypeOf(internal.ScreenshotCapture{})
	screenshotFormats = []string{"png", "jpeg", "jpg"}
	screenshotNaming  = []string{"sequential", "timestamp", "step"}
	structValidator   = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("mapstructure")
	})
	return v
}

// Normalize checks the minimum shape of a raw definition and returns the canonical value.
// The prompt template is trimmed; nothing else is defaulted.
func Normalize(raw RawDefinition) (*internal.TaskDefinition, error) {
	if raw.Fields == nil {
		return nil, internal.NewMalformed(raw.Source, "document is empty")
	}
	var rd rawDefinition
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: screenshotHook,
		Result:     &rd,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw.Fields); err != nil {
		return nil, internal.NewMalformed(raw.Source, "%v", err)
	}
	rd.Name = strings.TrimSpace(rd.Name)
	rd.Prompt = strings.TrimSpace(rd.Prompt)
	if err := structValidator.Struct(rd); err != nil {
		return nil, internal.NewMalformed(raw.Source, "%s", describeValidation(err))
	}

	params, err := normalizeParams(*rd.Params, raw.Source)
	if err != nil {
		return nil, err
	}
	capture, err := normalizeCapture(rd.Capture, raw.Source)
	if err != nil {
		return nil, err
	}
	order := make([]string, 0, len(params))
	for _, name := range raw.ParamOrder {
		if _, ok := params[name]; ok && !slices.Contains(order, name) {
			order = append(order, name)
		}
	}
	if len(order) != len(params) {
		order = nil
	}
	return &internal.TaskDefinition{
		Name:        rd.Name,
		Description: strings.TrimSpace(rd.Description),
		Params:      params,
		ParamOrder:  order,
		Capture:     capture,
		Template:    rd.Prompt,
	}, nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return "missing required field(s): " + strings.Join(fields, ", ")
}

func normalizeParams(raw map[string]rawParam, source string) (map[string]internal.ParameterSpec, error) {
	out := make(map[string]internal.ParameterSpec, len(raw))
	for name, p := range raw {
		if strings.TrimSpace(name) == "" {
			return nil, internal.NewMalformed(source, "parameter with empty name")
		}
		kind, ok := internal.ParseParamKind(strings.ToLower(strings.TrimSpace(p.Type)))
		if !ok {
			return nil, internal.NewMalformed(source, "parameter %q has unknown type %q", name, p.Type)
		}
		spec := internal.ParameterSpec{
			Kind:        kind,
			Required:    p.Required,
			Description: strings.TrimSpace(p.Description),
		}
		// required wins over default
		if !p.Required && p.Default != nil {
			spec.Default = p.Default
			spec.HasDefault = true
		}
		out[name] = spec
	}
	return out, nil
}

func normalizeCapture(raw *rawCapture, source string) (internal.CaptureSpec, error) {
	var c internal.CaptureSpec
	if n := raw.Network; n != nil {
		if len(n.Patterns) == 0 {
			return c, internal.NewMalformed(source, "capture.network requires at least one pattern")
		}
		methods := make([]string, 0, len(n.Methods))
		for _, m := range n.Methods {
			methods = append(methods, strings.ToUpper(strings.TrimSpace(m)))
		}
		c.Network = &internal.NetworkCapture{
			Patterns:               slices.Clone(n.Patterns),
			Methods:                methods,
			Status:                 slices.Clone(n.Status),
			ContentType:            strings.TrimSpace(n.ContentType),
			Output:                 strings.TrimSpace(n.Output),
			ExtractJSON:            n.ExtractJSON,
			IncludeRequestHeaders:  n.IncludeRequestHeaders,
			IncludeResponseHeaders: n.IncludeResponseHeaders,
		}
	}
	if s := raw.Screenshots; s != nil {
		if s.Mode == internal.ScreenshotConfigured {
			if s.Dir == "" {
				return c, internal.NewMalformed(source, "capture.screenshots requires dir")
			}
			if s.Format != "" && !slices.Contains(screenshotFormats, s.Format) {
				return c, internal.NewMalformed(source, "capture.screenshots has unsupported format %q", s.Format)
			}
			if s.Naming != "" && !slices.Contains(screenshotNaming, s.Naming) {
				return c, internal.NewMalformed(source, "capture.screenshots has unsupported naming %q", s.Naming)
			}
		} else if s.Path == "" {
			return c, internal.NewMalformed(source, "capture.screenshots path is empty")
		}
		shot := *s
		c.Screenshots = &shot
	}
	if con := raw.Console; con != nil {
		levels := make([]string, 0, len(con.Levels))
		for _, l := range con.Levels {
			levels = append(levels, strings.ToLower(strings.TrimSpace(l)))
		}
		c.Console = &internal.ConsoleCapture{
			Levels: levels,
			Filter: con.Filter,
			Output: strings.TrimSpace(con.Output),
		}
	}
	c.Data = strings.TrimSpace(raw.Data)
	return c, nil
}

// screenshotHook decodes the screenshots field, which is either a bare destination string or a
// mapping with dir, format and naming.
func screenshotHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != screenshotType {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return internal.ScreenshotCapture{Mode: internal.ScreenshotSimple, Path: strings.TrimSpace(v)}, nil
	case map[string]any:
		var cfg struct {
			Dir    string `mapstructure:"dir"`
			Output string `mapstructure:"output"`
			Format string `mapstructure:"format"`
			Naming string `mapstructure:"naming"`
		}
		if err := mapstructure.Decode(v, &cfg); err != nil {
			return nil, fmt.Errorf("screenshots: %w", err)
		}
		dir := cfg.Dir
		if dir == "" {
			dir = cfg.Output
		}
		return internal.ScreenshotCapture{
			Mode:   internal.ScreenshotConfigured,
			Dir:    strings.TrimSpace(dir),
			Format: strings.ToLower(strings.TrimSpace(cfg.Format)),
			Naming: strings.ToLower(strings.TrimSpace(cfg.Naming)),
		}, nil
	default:
		return nil, fmt.Errorf("screenshots must be a path or a mapping, got %T", data)
	}
}
