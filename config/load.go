package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	validator "github.com/go-playground/validator/v10"
	ms "github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for config files that are neither TOML
// nor YAML.
var ErrUnsupportedFormat = errors.New("config: unsupported file format")

// Default returns the built-in settings. Root is not checked for existence.
func Default() Config {
	var cfg Config
	if err := decode(defaults(), &cfg); err != nil {
		panic(err)
	}
	return cfg
}

// Load builds the settings from the defaults, the file at path (skipped when
// path is empty) and overrides, in that order, and validates the result.
//
// Override keys are dotted paths such as "livereload.enabled". Durations may
// be given as strings ("250ms") and lists as comma-separated strings.
//
// Example:
//
//	cfg, err := config.Load("devserver.toml", map[string]any{"addr": ":8080"})
func Load(path string, overrides map[string]any) (Config, error) {
	m := defaults()
	if path != "" {
		file, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		merge(m, file)
	}
	for key, v := range overrides {
		Set(m, key, v)
	}

	var cfg Config
	if err := decode(m, &cfg); err != nil {
		return Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Set stores v at the dotted key in m, creating nested maps as needed.
// Keys are case-insensitive.
func Set(m map[string]any, key string, v any) {
	parts := strings.Split(strings.ToLower(key), ".")
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[p] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = v
}

func readFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	m := map[string]any{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	return m, nil
}

// merge copies src into dst. Nested maps are merged key by key; every
// other value in src replaces the one in dst.
func merge(dst, src map[string]any) {
	for k, v := range src {
		k = strings.ToLower(k)
		if sm, ok := v.(map[string]any); ok {
			dm, ok := dst[k].(map[string]any)
			if !ok {
				dm = map[string]any{}
				dst[k] = dm
			}
			merge(dm, sm)
			continue
		}
		dst[k] = v
	}
}

func decode(m map[string]any, cfg *Config) error {
	dec, err := ms.NewDecoder(&ms.DecoderConfig{
		TagName:          "mapstructure",
		Result:           cfg,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		DecodeHook: ms.ComposeDecodeHookFunc(
			ms.StringToTimeDurationHookFunc(),
			ms.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(m); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their settings key
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks cfg against its struct tags. Failures are reported as
// FieldErrors.
func Validate(cfg Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return fmt.Errorf("config: %w", err)
	}
	fe := FieldErrors{}
	for _, e := range ve {
		// drop the leading "Config."
		_, key, _ := strings.Cut(e.Namespace(), ".")
		fe[key] = message(e)
	}
	return fe
}

func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required", "required_if":
		return "is required"
	case "hostname_port":
		return "must be host:port"
	case "dir":
		return "must be an existing directory"
	case "oneof":
		return "must be one of " + e.Param()
	case "startswith":
		return "must start with " + e.Param()
	case "gte":
		return "must not be negative"
	}
	return "failed " + e.Tag()
}

// FieldErrors maps settings keys to what is wrong with them.
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString("config: invalid settings:")
	for _, k := range keys {
		fmt.Fprintf(&b, " %s %s;", k, f[k])
	}
	return strings.TrimSuffix(b.String(), ";")
}
