package observables

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/san-kum/isingsim/internal/ising"
	"golang.org/x/exp/constraints"
)

// KB is Boltzmann's constant in natural units.
const KB = 1.0

var ErrEmptySeries = errors.New("observables: empty series")

type Number interface {
	constraints.Integer | constraints.Float
}

// Mean is the arithmetic mean over the whole series.
func Mean[T Number](xs []T) (float64, error) {
	if len(xs) == 0 {
		return 0, ErrEmptySeries
	}
	sum := 0.0
	for _, x := range xs {
		sum += float64(x)
	}
	return sum / float64(len(xs)), nil
}

// MeanSquare is the arithmetic mean of the squared series.
func MeanSquare[T Number](xs []T) (float64, error) {
	if len(xs) == 0 {
		return 0, ErrEmptySeries
	}
	sum := 0.0
	for _, x := range xs {
		v := float64(x)
		sum += v * v
	}
	return sum / float64(len(xs)), nil
}

// Variance is <x^2> - <x>^2 over the whole series.
func Variance[T Number](xs []T) (float64, error) {
	mean, err := Mean(xs)
	if err != nil {
		return 0, err
	}
	sq, err := MeanSquare(xs)
	if err != nil {
		return 0, err
	}
	return sq - mean*mean, nil
}

// HeatCapacity is (<E^2> - <E>^2) / (kB T^2).
func HeatCapacity(energy []float64, t float64) (float64, error) {
	if err := checkTemperature(t); err != nil {
		return 0, err
	}
	v, err := Variance(energy)
	if err != nil {
		return 0, err
	}
	return v / (KB * t * t), nil
}

// Susceptibility is (<M^2> - <M>^2) / (kB T).
func Susceptibility[T Number](magnetization []T, t float64) (float64, error) {
	if err := checkTemperature(t); err != nil {
		return 0, err
	}
	v, err := Variance(magnetization)
	if err != nil {
		return 0, err
	}
	return v / (KB * t), nil
}

func checkTemperature(t float64) error {
	if math.IsNaN(t) || t <= 0 {
		return fmt.Errorf("observable undefined for T=%v: %w", t, ising.ErrNumerical)
	}
	return nil
}

// Aggregate is the scalar reduction of one (L, T) run.
type Aggregate struct {
	L                 int           `json:"l"`
	T                 float64       `json:"t"`
	MeanEnergy        float64       `json:"mean_energy"`
	MeanMagnetization float64       `json:"mean_magnetization"`
	HeatCapacity      float64       `json:"heat_capacity"`
	Susceptibility    float64       `json:"susceptibility"`
	Acceptance        float64       `json:"acceptance"`
	Duration          time.Duration `json:"duration"`
}

// Reduce derives the aggregate observables of one series without re-simulating.
func Reduce(l int, s ising.Series, d time.Duration) (Aggregate, error) {
	agg := Aggregate{L: l, T: s.Temperature, Acceptance: s.AcceptanceRatio(), Duration: d}

	var err error
	if agg.MeanEnergy, err = Mean(s.Energy); err != nil {
		return Aggregate{}, err
	}
	if agg.MeanMagnetization, err = Mean(s.Magnetization); err != nil {
		return Aggregate{}, err
	}
	if agg.HeatCapacity, err = HeatCapacity(s.Energy, s.Temperature); err != nil {
		return Aggregate{}, err
	}
	if agg.Susceptibility, err = Susceptibility(s.Magnetization, s.Temperature); err != nil {
		return Aggregate{}, err
	}
	return agg, nil
}

// Normalize divides values by |max(values)|. A zero maximum leaves values unchanged.
func Normalize(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	if len(values) == 0 {
		return out
	}

	peak := values[0]
	for _, v := range values[1:] {
		if v > peak {
			peak = v
		}
	}
	scale := math.Abs(peak)
	if scale == 0 {
		return out
	}
	for i := range out {
		out[i] /= scale
	}
	return out
}

// MeanDuration averages a set of run durations.
func MeanDuration(ds []time.Duration) time.Duration {
	if len(ds) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range ds {
		total += d
	}
	return total / time.Duration(len(ds))
}
