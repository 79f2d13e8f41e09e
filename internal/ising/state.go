package ising

import (
	"fmt"
	"math/rand"
)

// Spin values.
const (
	Up   int8 = 1
	Down int8 = -1
)

// State is a spin configuration indexed in the lattice's row-major order.
type State []int8

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

// Validate checks that s has n sites and every site holds +1 or -1.
func (s State) Validate(n int) error {
	if len(s) != n {
		return fmt.Errorf("state has %d sites, lattice has %d: %w", len(s), n, ErrConfiguration)
	}
	for i, v := range s {
		if v != Up && v != Down {
			return fmt.Errorf("site %d holds spin %d: %w", i, v, ErrConfiguration)
		}
	}
	return nil
}

// Ordered returns a configuration with every site set to value.
func (lat *Lattice) Ordered(value int8) (State, error) {
	if value != Up && value != Down {
		return nil, fmt.Errorf("ordered spin must be +1 or -1, got %d: %w", value, ErrConfiguration)
	}
	s := make(State, lat.n)
	for i := range s {
		s[i] = value
	}
	return s, nil
}

// Random draws each site independently as +1 or -1 with equal probability.
func (lat *Lattice) Random(rng *rand.Rand) State {
	s := make(State, lat.n)
	for i := range s {
		if rng.Intn(2) == 0 {
			s[i] = Up
		} else {
			s[i] = Down
		}
	}
	return s
}

// Reshape returns an L×L row view over s. Rows alias s; callers must not write through them.
func (lat *Lattice) Reshape(s State) ([][]int8, error) {
	if len(s) != lat.n {
		return nil, fmt.Errorf("state has %d sites, lattice has %d: %w", len(s), lat.n, ErrConfiguration)
	}
	rows := make([][]int8, lat.l)
	for r := range rows {
		rows[r] = s[r*lat.l : (r+1)*lat.l : (r+1)*lat.l]
	}
	return rows, nil
}
