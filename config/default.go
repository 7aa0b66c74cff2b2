// Package config provides centralized management for application settings, defaults, and the Viper-based configuration engine.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/anisan-cli/reelplay/color"
	"github.com/anisan-cli/reelplay/constant"
	"github.com/anisan-cli/reelplay/key"
	"github.com/anisan-cli/reelplay/style"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// Check rejects values a field cannot hold.
type Check func(v any) error

// Field represents a configuration field definition.
type Field struct {
	Key         string
	Value       any
	Description string
	// Bounds describes the accepted range for display, empty when any value of the type is accepted.
	Bounds string

	check Check
}

// Section returns the group a field belongs to, the part of its key before the first dot.
func (f *Field) Section() string {
	section, _, _ := strings.Cut(f.Key, ".")
	return section
}

// Pretty returns a colored string representation of the field for display.
func (f *Field) Pretty() string {
	var b strings.Builder
	lo.Must0(prettyTemplate.Execute(&b, f))
	return b.String()
}

// Env returns the environment variable name for this field.
func (f *Field) Env() string {
	env := strings.ToUpper(EnvKeyReplacer.Replace(f.Key))
	prefix := strings.ToUpper(constant.Reelplay + "_")
	if strings.HasPrefix(env, prefix) {
		return env
	}
	return prefix + env
}

// Parse converts command line text into a value of the field's type and checks it.
func (f *Field) Parse(raw string) (any, error) {
	var (
		v   any
		err error
	)
	switch f.Value.(type) {
	case string:
		v = raw
	case int:
		v, err = strconv.Atoi(raw)
	case float64:
		v, err = strconv.ParseFloat(raw, 64)
	case bool:
		v, err = strconv.ParseBool(raw)
	default:
		return nil, fmt.Errorf("%s: unsupported type %s", f.Key, f.TypeName())
	}
	if err != nil {
		return nil, fmt.Errorf("%s: invalid %s value %q", f.Key, f.TypeName(), raw)
	}
	if f.check != nil {
		if err := f.check(v); err != nil {
			return nil, fmt.Errorf("%s: %w", f.Key, err)
		}
	}
	return v, nil
}

// MarshalJSON customizes JSON output to include current and default values.
func (f *Field) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Key         string `json:"key"`
		Section     string `json:"section"`
		Value       any    `json:"value"`
		Default     any    `json:"default"`
		Description string `json:"description"`
		Type        string `json:"type"`
		Bounds      string `json:"bounds,omitempty"`
	}{
		Key:         f.Key,
		Section:     f.Section(),
		Value:       viper.Get(f.Key),
		Default:     f.Value,
		Description: f.Description,
		Type:        f.TypeName(),
		Bounds:      f.Bounds,
	})
}

// TypeName names the type of the field's value.
func (f *Field) TypeName() string {
	switch f.Value.(type) {
	case string:
		return "string"
	case int:
		return "int"
	case float64:
		return "float"
	case bool:
		return "bool"
	default:
		return "unknown"
	}
}

// Default holds the map of all configuration fields.
var Default = make(map[string]Field)

// EnvExposed holds keys that are bound to environment variables.
var EnvExposed []string

// bound restricts the values a field accepts.
type bound struct {
	desc  string
	check Check
}

// atLeast accepts numbers not below floor.
func atLeast(floor float64) bound {
	return bound{fmt.Sprintf(">= %v", floor), func(v any) error {
		if number(v) < floor {
			return fmt.Errorf("must be at least %v", floor)
		}
		return nil
	}}
}

// between accepts numbers in [low, high].
func between(low, high float64) bound {
	return bound{fmt.Sprintf("%v..%v", low, high), func(v any) error {
		if n := number(v); n < low || n > high {
			return fmt.Errorf("must be between %v and %v", low, high)
		}
		return nil
	}}
}

// oneOf accepts the listed strings.
func oneOf(options ...string) bound {
	list := strings.Join(options, ", ")
	return bound{list, func(v any) error {
		if !lo.Contains(options, v.(string)) {
			return fmt.Errorf("must be one of %s", list)
		}
		return nil
	}}
}

func number(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case float64:
		return n
	default:
		return 0
	}
}

func init() {
	// register validates and adds a new configuration field to the global registry.
	register := func(k string, v any, desc string, bounds ...bound) {
		if _, exists := Default[k]; exists {
			panic("Duplicate config key: " + k)
		}
		f := Field{Key: k, Value: v, Description: desc}
		for _, b := range bounds {
			f.Bounds, f.check = b.desc, b.check
		}
		Default[k] = f
		EnvExposed = append(EnvExposed, k)
	}
	var (
		nonNegative = atLeast(0)
		positive    = atLeast(1)
		fraction    = between(0, 1)
	)

	register(key.PlaybackMinBufferMs, 2500, "Media buffered before playback starts, in milliseconds", nonNegative)
	register(key.PlaybackMinRebufferMs, 5000, "Media buffered before playback resumes after running dry, in milliseconds", nonNegative)
	register(key.PlaybackJoiningTimeMs, 5000, "How long a newly selected video track may take to show its first frame, in milliseconds", nonNegative)
	register(key.PlaybackPlayWhenReady, true, "Start playing as soon as enough media is buffered")
	register(key.LoadControlLowWatermarkMs, 15000, "Loaders below this much buffered media start filling, in milliseconds", nonNegative)
	register(key.LoadControlHighWatermarkMs, 30000, "Loaders above this much buffered media stop filling, in milliseconds", nonNegative)
	register(key.LoadControlLowBufferLoad, 0.2, "Fraction of the target buffer size below which loading starts", fraction)
	register(key.LoadControlHighBufferLoad, 0.8, "Fraction of the target buffer size above which loading stops", fraction)
	register(key.LoadControlSegmentSize, 65536, "Size of one buffer allocation in bytes", positive)
	register(key.LoadControlBufferSegments, 256, "Number of allocations each loader may hold", positive)
	register(key.VideoVsync, true, "Align frame release to the display refresh")
	register(key.VideoRefreshRate, 60, "Display refresh rate in Hz", positive)
	register(key.VideoVsyncOffsetPercent, 80, "How early before a vsync pulse frames are released, in percent of a refresh period", between(0, 100))
	register(key.VideoMinFramesForAdjustment, 6, "Frames observed before release times are smoothed", positive)
	register(key.VideoMaxDriftMs, 20, "Drift between media and release time that forces a resync, in milliseconds", positive)
	register(key.VideoMaxDroppedFramesToNotify, 50, "Dropped frames reported at once. 0 reports on stop only", nonNegative)
	register(key.HistorySave, true, "Remember where playback stopped")
	register(key.IconsVariant, "plain", "Icons variant, nerd requires a nerd font", oneOf("plain", "emoji", "kaomoji", "squares", "nerd"))
	register(key.TUIEnabled, true, "Show the interactive playback view")
	register(key.LogsWrite, false, "Write logs")
	register(key.LogsLevel, "info", "Log verbosity, from least to most verbose", oneOf("panic", "fatal", "error", "warn", "info", "debug", "trace"))
	register(key.LogsJson, false, "Use json format for logs")
	register(key.CliColored, true, "Enable colored CLI output")
}

// ErrInconsistent is returned by Validate when fields contradict each other.
var ErrInconsistent = errors.New("inconsistent configuration")

// Validate checks the relations between the current values that single fields cannot check alone.
func Validate() error {
	var problems []string
	if viper.GetInt(key.LoadControlLowWatermarkMs) > viper.GetInt(key.LoadControlHighWatermarkMs) {
		problems = append(problems, fmt.Sprintf("%s exceeds %s", key.LoadControlLowWatermarkMs, key.LoadControlHighWatermarkMs))
	}
	if viper.GetFloat64(key.LoadControlLowBufferLoad) > viper.GetFloat64(key.LoadControlHighBufferLoad) {
		problems = append(problems, fmt.Sprintf("%s exceeds %s", key.LoadControlLowBufferLoad, key.LoadControlHighBufferLoad))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInconsistent, strings.Join(problems, "; "))
	}
	return nil
}

var prettyTemplate = lo.Must(template.New("pretty").Funcs(template.FuncMap{
	"faint":  style.Faint,
	"purple": style.Fg(color.Purple),
	"blue":   style.Fg(color.Blue),
	"value":  func(k string) any { return viper.Get(k) },
	"hl": func(v any) string {
		switch value := v.(type) {
		case bool:
			b := strconv.FormatBool(value)
			if value {
				return style.Fg(color.Green)(b)
			}
			return style.Fg(color.Red)(b)
		case string:
			return style.Fg(color.Yellow)(value)
		default:
			return fmt.Sprint(value)
		}
	},
}).Parse(`{{ purple .Key }} {{ faint .Description }}
  {{ blue "env" }}     {{ .Env }}
  {{ blue "value" }}   {{ hl (value .Key) }} {{ faint "default" }} {{ hl .Value }}
  {{ blue "type" }}    {{ .TypeName }}{{ with .Bounds }} {{ faint . }}{{ end }}`))
