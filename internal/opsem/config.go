package opsem

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// TrackLevel selects which values the semantics follows.
type TrackLevel int

const (
	// TrackReg tracks integer registers only.
	TrackReg TrackLevel = iota
	// TrackPtr also tracks pointers.
	TrackPtr
	// TrackMem also tracks memory contents.
	TrackMem
)

var trackLevelNames = map[TrackLevel]string{
	TrackReg: "reg",
	TrackPtr: "ptr",
	TrackMem: "mem",
}

func (l TrackLevel) String() string {
	if s, ok := trackLevelNames[l]; ok {
		return s
	}
	return fmt.Sprintf("TrackLevel(%d)", int(l))
}

func ParseTrackLevel(s string) (TrackLevel, error) {
	for l, name := range trackLevelNames {
		if name == s {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown track level %q", s)
}

func (l TrackLevel) MarshalYAML() (any, error) { return l.String(), nil }

func (l *TrackLevel) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	v, err := ParseTrackLevel(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*l = v
	return nil
}

// Config holds the options of the semantics.
type Config struct {
	// WordSize is the size in bytes of one memory cell.
	WordSize int `yaml:"word_size"`
	// PtrSize is the size in bytes of a pointer.
	PtrSize int `yaml:"ptr_size"`
	// UseLambdas encodes memory as functions instead of arrays.
	UseLambdas bool `yaml:"use_lambdas"`
	// EnableUniqueScalars keeps singleton memory regions in plain registers.
	EnableUniqueScalars bool `yaml:"unique_scalars"`
	// InferMemSafety assumes loads and stores are valid.
	InferMemSafety bool `yaml:"infer_mem_safety"`
	// IgnoreCalloc treats calloc as malloc.
	IgnoreCalloc bool `yaml:"ignore_calloc"`
	// EnableModelExternalCalls models calls to declared functions as
	// uninterpreted functions.
	EnableModelExternalCalls bool `yaml:"model_external_calls"`
	// IgnoreExternalFunctions is never modeled, even when external calls are.
	IgnoreExternalFunctions []string `yaml:"ignore_external_functions"`
	// SimplifyOnWrite simplifies every value written to a register.
	SimplifyOnWrite bool `yaml:"simplify_on_write"`

	TrackLevel      TrackLevel `yaml:"track"`
	StaticAllocator bool       `yaml:"static_allocator"`
	// LogTags enables debug logging for the named components.
	LogTags []string `yaml:"log"`
}

func DefaultConfig() Config {
	return Config{
		WordSize:            4,
		PtrSize:             4,
		EnableUniqueScalars: true,
		InferMemSafety:      true,
		TrackLevel:          TrackMem,
	}
}

// LoadConfig reads a YAML configuration. Options missing from the file keep
// their default value.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.WordSize {
	case 1, 2, 4, 8:
	default:
		return fmt.Errorf("word_size must be 1, 2, 4 or 8, got %d", c.WordSize)
	}
	switch c.PtrSize {
	case 4, 8:
	default:
		return fmt.Errorf("ptr_size must be 4 or 8, got %d", c.PtrSize)
	}
	return nil
}

func (c Config) logs(tag string) bool { return slices.Contains(c.LogTags, tag) }

func (c Config) ignoresExternal(name string) bool {
	return slices.Contains(c.IgnoreExternalFunctions, name)
}
