package config

import "sort"

var Presets = map[string]*Config{
	"test": {
		Name: "test", Sizes: []int{20}, J: 1, StepScale: 1000, Start: "ordered", Spin: 1, Workers: 1,
		Temperatures: TemperatureConfig{Values: []float64{5.0}},
	},
	"scaling": {
		Name: "scaling", Sizes: []int{20, 40, 60, 80, 100}, J: 1, StepScale: 1000, Start: "ordered", Spin: 1, Workers: 1,
		Temperatures: TemperatureConfig{Values: []float64{5.0}},
	},
	"detailed": {
		Name: "detailed", Sizes: rangeSizes(5, 150, 5), J: 1, StepScale: 1000, Start: "ordered", Spin: 1, Workers: 1,
		Temperatures: TemperatureConfig{Values: []float64{5.0}},
	},
	"observables": {
		Name: "observables", Sizes: []int{20, 40, 60, 80, 100}, J: 1, StepScale: 1000, Start: "ordered", Spin: 1, Workers: 1,
		Temperatures: TemperatureConfig{Min: 0.1, Max: 10, Count: 30},
	},
	"parallel": {
		Name: "parallel", Sizes: []int{20, 40, 60, 80, 100}, J: 1, StepScale: 1000, Start: "ordered", Spin: 1, Workers: 6, BySize: true,
		Temperatures: TemperatureConfig{Min: 0.1, Max: 10, Count: 100},
	},
	"server": {
		Name: "server", Sizes: []int{20, 40, 60, 80, 100, 120, 140, 160, 180, 200}, J: 1, StepScale: 1000, Start: "ordered", Spin: 1, Workers: 12, BySize: true,
		Temperatures: TemperatureConfig{Min: 0.1, Max: 10, Count: 100},
	},
	"critical": {
		Name: "critical", Sizes: []int{16, 32, 64}, J: 1, StepScale: 2000, Start: "random", Spin: 1, Workers: 0,
		Temperatures: TemperatureConfig{Min: 1.8, Max: 2.8, Count: 21},
	},
}

func rangeSizes(from, to, step int) []int {
	sizes := make([]int, 0, (to-from)/step+1)
	for l := from; l <= to; l += step {
		sizes = append(sizes, l)
	}
	return sizes
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := *p
	cfg.Sizes = append([]int(nil), p.Sizes...)
	cfg.Temperatures.Values = append([]float64(nil), p.Temperatures.Values...)
	return &cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
