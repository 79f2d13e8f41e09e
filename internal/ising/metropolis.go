package ising

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Engine evaluates energies and flip costs for coupling J and external field H
// on a fixed lattice. It holds no per-run state and is safe for concurrent use.
type Engine struct {
	lat *Lattice
	J   float64
	H   float64
}

// NewEngine returns an engine for coupling j and field h on lat.
func NewEngine(lat *Lattice, j, h float64) *Engine {
	return &Engine{lat: lat, J: j, H: h}
}

// Lattice returns the topology the engine evaluates on.
func (e *Engine) Lattice() *Lattice { return e.lat }

// Energy is -J/2 * sum_i S_i * sum_{j in nbr(i)} S_j - h * sum_i S_i.
// The 1/2 corrects for every bond being visited from both endpoints.
func (e *Engine) Energy(s State) float64 {
	bonds := 0
	for i, si := range s {
		nb := e.lat.nbr[i]
		bonds += int(si) * int(s[nb[0]]+s[nb[1]]+s[nb[2]]+s[nb[3]])
	}
	return -e.J*0.5*float64(bonds) - e.H*float64(e.Magnetization(s))
}

func (e *Engine) Magnetization(s State) int {
	m := 0
	for _, v := range s {
		m += int(v)
	}
	return m
}

// DeltaE is the energy change of flipping site k in s.
func (e *Engine) DeltaE(s State, k int) float64 {
	nb := e.lat.nbr[k]
	sigma := float64(s[nb[0]] + s[nb[1]] + s[nb[2]] + s[nb[3]])
	sk := float64(s[k])
	return 2*e.J*sk*sigma + 2*e.H*sk
}

// Beta returns 1/T. Non-positive and NaN temperatures are rejected.
func Beta(t float64) (float64, error) {
	if math.IsNaN(t) || t <= 0 {
		return 0, fmt.Errorf("inverse temperature undefined for T=%v: %w", t, ErrNumerical)
	}
	return 1 / t, nil
}

// Chain is a single Metropolis Markov chain at one temperature. It owns its
// spins; the energy and magnetization are maintained incrementally.
type Chain struct {
	eng      *Engine
	spins    State
	energy   float64
	mag      int
	temp     float64
	beta     float64
	rng      *rand.Rand
	steps    int
	accepted int
}

// NewChain copies init and computes its energy once.
func (e *Engine) NewChain(init State, t float64, rng *rand.Rand) (*Chain, error) {
	if err := init.Validate(e.lat.n); err != nil {
		return nil, err
	}
	beta, err := Beta(t)
	if err != nil {
		return nil, err
	}
	spins := init.Clone()
	return &Chain{
		eng:    e,
		spins:  spins,
		energy: e.Energy(spins),
		mag:    e.Magnetization(spins),
		temp:   t,
		beta:   beta,
		rng:    rng,
	}, nil
}

// Step proposes one flip at a uniformly drawn site and applies the
// Metropolis rule. The uniform acceptance draw is only taken when dE > 0.
func (c *Chain) Step() (site int, accepted bool) {
	k := c.rng.Intn(c.eng.lat.n)
	dE := c.eng.DeltaE(c.spins, k)
	c.steps++

	if dE > 0 && c.rng.Float64() >= math.Exp(-dE*c.beta) {
		return k, false
	}

	c.mag -= 2 * int(c.spins[k])
	c.spins[k] = -c.spins[k]
	c.energy += dE
	c.accepted++
	return k, true
}

// Sweep proposes one flip per lattice site.
func (c *Chain) Sweep() {
	for i := 0; i < c.eng.lat.n; i++ {
		c.Step()
	}
}

// SetTemperature changes the temperature of subsequent steps.
func (c *Chain) SetTemperature(t float64) error {
	beta, err := Beta(t)
	if err != nil {
		return err
	}
	c.temp, c.beta = t, beta
	return nil
}

func (c *Chain) Energy() float64      { return c.energy }
func (c *Chain) Magnetization() int   { return c.mag }
func (c *Chain) Temperature() float64 { return c.temp }
func (c *Chain) Steps() int           { return c.steps }
func (c *Chain) Accepted() int        { return c.accepted }

// Spins exposes the chain's live configuration. It must be treated as read-only.
func (c *Chain) Spins() State { return c.spins }

// Simulate runs nsteps proposed flips for each temperature, each starting
// from an independent copy of init. A single source seeded with seed drives
// every draw of the call.
func (e *Engine) Simulate(init State, temps []float64, nsteps int, seed int64) (*Result, error) {
	return e.SimulateWith(init, temps, nsteps, rand.New(rand.NewSource(seed)))
}

// SimulateWith is Simulate with a caller-owned random source.
func (e *Engine) SimulateWith(init State, temps []float64, nsteps int, rng *rand.Rand) (*Result, error) {
	if err := e.validate(init, temps, nsteps); err != nil {
		return nil, err
	}

	result := &Result{Series: make([]Series, 0, len(temps))}
	start := time.Now()

	var last *Chain
	for _, t := range temps {
		c, err := e.NewChain(init, t, rng)
		if err != nil {
			return nil, err
		}

		series := Series{
			Temperature:   t,
			Energy:        make([]float64, 0, nsteps+1),
			Magnetization: make([]int, 0, nsteps+1),
		}
		series.Energy = append(series.Energy, c.energy)
		series.Magnetization = append(series.Magnetization, c.mag)

		for i := 0; i < nsteps; i++ {
			c.Step()
			series.Energy = append(series.Energy, c.energy)
			series.Magnetization = append(series.Magnetization, c.mag)
		}

		series.Accepted = c.accepted
		result.Series = append(result.Series, series)
		last = c
	}

	result.Duration = time.Since(start)
	if len(temps) == 1 {
		result.Final = last.spins
	}

	return result, nil
}

func (e *Engine) validate(init State, temps []float64, nsteps int) error {
	if nsteps < 0 {
		return fmt.Errorf("nsteps must be non-negative, got %d: %w", nsteps, ErrConfiguration)
	}
	if len(temps) == 0 {
		return fmt.Errorf("at least one temperature is required: %w", ErrConfiguration)
	}
	for _, t := range temps {
		if _, err := Beta(t); err != nil {
			return err
		}
	}
	return init.Validate(e.lat.n)
}
