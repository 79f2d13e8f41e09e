package ising

import "time"

// Series is the step-by-step record of one temperature's run. Index 0 holds
// the pre-simulation values; index t the values after the t-th proposed flip.
type Series struct {
	Temperature   float64
	Energy        []float64
	Magnetization []int
	Accepted      int
}

// Steps returns the number of proposed flips recorded in the series.
func (s Series) Steps() int {
	if len(s.Energy) == 0 {
		return 0
	}
	return len(s.Energy) - 1
}

// AcceptanceRatio is the fraction of proposed flips that were accepted.
func (s Series) AcceptanceRatio() float64 {
	steps := s.Steps()
	if steps == 0 {
		return 0
	}
	return float64(s.Accepted) / float64(steps)
}

// Result holds one Series per requested temperature, in request order.
// Final is the mutated configuration and is set only when exactly one
// temperature was simulated.
type Result struct {
	Series   []Series
	Final    State
	Duration time.Duration
}
