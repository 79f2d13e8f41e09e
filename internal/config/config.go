package config

import (
	"fmt"
	"os"

	"github.com/san-kum/isingsim/internal/ising"
	"github.com/san-kum/isingsim/internal/sweep"
	"gopkg.in/yaml.v3"
)

const (
	DefaultSize      = 20
	DefaultJ         = 1.0
	DefaultH         = 0.0
	DefaultStepScale = 1000
	DefaultTMin      = 0.1
	DefaultTMax      = 10.0
	DefaultTCount    = 30
	DefaultStart     = "ordered"
)

type Config struct {
	Name         string            `yaml:"name"`
	Sizes        []int             `yaml:"sizes"`
	Temperatures TemperatureConfig `yaml:"temperatures"`
	J            float64           `yaml:"j"`
	H            float64           `yaml:"h"`
	StepScale    int               `yaml:"step_scale"`
	Steps        int               `yaml:"steps"`
	Seed         int64             `yaml:"seed"`
	Start        string            `yaml:"start"`
	Spin         int8              `yaml:"spin"`
	Workers      int               `yaml:"workers"`
	BySize       bool              `yaml:"by_size"`
	KeepSeries   bool              `yaml:"keep_series"`
}

// TemperatureConfig is either an explicit list or an evenly spaced range.
type TemperatureConfig struct {
	Values []float64 `yaml:"values,omitempty"`
	Min    float64   `yaml:"min,omitempty"`
	Max    float64   `yaml:"max,omitempty"`
	Count  int       `yaml:"count,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Name:  "sweep",
		Sizes: []int{DefaultSize},
		Temperatures: TemperatureConfig{
			Min:   DefaultTMin,
			Max:   DefaultTMax,
			Count: DefaultTCount,
		},
		J:         DefaultJ,
		H:         DefaultH,
		StepScale: DefaultStepScale,
		Start:     DefaultStart,
		Spin:      ising.Up,
	}
}

func Load(path string) (*Config, error) {
	return LoadOver(path, DefaultConfig())
}

// LoadOver reads path on top of base; keys absent from the file keep the
// base values. A temperatures key replaces the base temperatures as a whole,
// and steps without step_scale selects a fixed step count. base is modified
// and returned.
func LoadOver(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var keys map[string]yaml.Node
	if err := yaml.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if _, ok := keys["temperatures"]; ok {
		base.Temperatures = TemperatureConfig{}
	}
	_, hasSteps := keys["steps"]
	_, hasScale := keys["step_scale"]
	if hasSteps && !hasScale {
		base.StepScale = 0
	}

	if err := yaml.Unmarshal(data, base); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return base, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Linspace returns count evenly spaced values from lo to hi inclusive.
func Linspace(lo, hi float64, count int) []float64 {
	switch {
	case count <= 0:
		return nil
	case count == 1:
		return []float64{lo}
	}
	step := (hi - lo) / float64(count-1)
	out := make([]float64, count)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	out[count-1] = hi
	return out
}

func (t TemperatureConfig) List() []float64 {
	if len(t.Values) > 0 {
		out := make([]float64, len(t.Values))
		copy(out, t.Values)
		return out
	}
	return Linspace(t.Min, t.Max, t.Count)
}

// Grid converts the configuration into a sweep grid.
func (c *Config) Grid() (sweep.Grid, error) {
	start, err := sweep.ParseStart(c.Start)
	if err != nil {
		return sweep.Grid{}, err
	}
	temps := c.Temperatures.List()
	if len(temps) == 0 {
		return sweep.Grid{}, fmt.Errorf("config %q has no temperatures: %w", c.Name, ising.ErrConfiguration)
	}
	if len(c.Sizes) == 0 {
		return sweep.Grid{}, fmt.Errorf("config %q has no lattice sizes: %w", c.Name, ising.ErrConfiguration)
	}
	return sweep.Grid{
		Sizes:        append([]int(nil), c.Sizes...),
		Temperatures: temps,
		J:            c.J,
		H:            c.H,
		StepScale:    c.StepScale,
		Steps:        c.Steps,
		Seed:         c.Seed,
		Start:        start,
		Spin:         c.Spin,
	}, nil
}
