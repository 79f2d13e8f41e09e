package ising

import "errors"

// Domain errors for simulation setup and numerics.
var (
	// ErrConfiguration indicates an invalid lattice size, temperature,
	// step count or initial configuration.
	ErrConfiguration = errors.New("ising: invalid configuration")

	// ErrNumerical indicates a computation that would divide by a zero or
	// non-positive temperature.
	ErrNumerical = errors.New("ising: numerical error")
)
