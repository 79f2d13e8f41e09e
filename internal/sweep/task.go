package sweep

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/san-kum/isingsim/internal/ising"
)

// Start selects the initial spin configuration of a task.
type Start string

const (
	StartOrdered Start = "ordered"
	StartRandom  Start = "random"
)

func ParseStart(name string) (Start, error) {
	switch Start(name) {
	case StartOrdered, StartRandom:
		return Start(name), nil
	case "":
		return StartOrdered, nil
	}
	return "", fmt.Errorf("unknown start %q (available: ordered, random): %w", name, ising.ErrConfiguration)
}

// Task fully determines one reproducible single-temperature run. It is a
// value type; workers receive copies.
type Task struct {
	L     int
	J     float64
	H     float64
	T     float64
	Steps int
	Seed  int64
	Start Start
	Spin  int8
}

type TaskOption func(*Task)

// WithOrderedStart starts the run with every spin set to spin.
func WithOrderedStart(spin int8) TaskOption {
	return func(t *Task) {
		t.Start = StartOrdered
		t.Spin = spin
	}
}

// WithRandomStart draws the initial configuration from the task's seed.
func WithRandomStart() TaskOption {
	return func(t *Task) { t.Start = StartRandom }
}

// NewTask validates the parameters eagerly. The default start is all spins up.
func NewTask(l int, j, h, temp float64, steps int, seed int64, opts ...TaskOption) (Task, error) {
	t := Task{L: l, J: j, H: h, T: temp, Steps: steps, Seed: seed, Start: StartOrdered, Spin: ising.Up}
	for _, opt := range opts {
		opt(&t)
	}
	if err := t.Validate(); err != nil {
		return Task{}, err
	}
	return t, nil
}

func (t Task) Validate() error {
	if t.L < ising.MinSize {
		return fmt.Errorf("lattice size must be at least %d, got %d: %w", ising.MinSize, t.L, ising.ErrConfiguration)
	}
	if math.IsNaN(t.T) || t.T <= 0 {
		return fmt.Errorf("temperature must be positive, got %v: %w", t.T, ising.ErrConfiguration)
	}
	if t.Steps < 0 {
		return fmt.Errorf("steps must be non-negative, got %d: %w", t.Steps, ising.ErrConfiguration)
	}
	switch t.Start {
	case StartOrdered:
		if t.Spin != ising.Up && t.Spin != ising.Down {
			return fmt.Errorf("ordered spin must be +1 or -1, got %d: %w", t.Spin, ising.ErrConfiguration)
		}
	case StartRandom:
	default:
		return fmt.Errorf("unknown start %q: %w", t.Start, ising.ErrConfiguration)
	}
	return nil
}

func (t Task) String() string {
	return fmt.Sprintf("L=%d T=%.4f seed=%d", t.L, t.T, t.Seed)
}

// Executor runs one task to completion.
type Executor func(Task) (*ising.Result, error)

// Execute builds the task's own lattice, initial state and random source and
// runs the Metropolis engine at the task temperature.
func Execute(t Task) (*ising.Result, error) {
	eng, init, rng, err := t.setup()
	if err != nil {
		return nil, err
	}
	return eng.SimulateWith(init, []float64{t.T}, t.Steps, rng)
}

// Chain builds the same starting point as Execute and returns a Markov chain
// positioned at step zero, for callers that drive the dynamics themselves.
func (t Task) Chain() (*ising.Chain, error) {
	eng, init, rng, err := t.setup()
	if err != nil {
		return nil, err
	}
	return eng.NewChain(init, t.T, rng)
}

// setup draws the random initial state, if any, from the same source that
// later drives the dynamics.
func (t Task) setup() (*ising.Engine, ising.State, *rand.Rand, error) {
	if err := t.Validate(); err != nil {
		return nil, nil, nil, err
	}

	lat, err := ising.NewLattice(t.L)
	if err != nil {
		return nil, nil, nil, err
	}

	rng := rand.New(rand.NewSource(t.Seed))

	var init ising.State
	if t.Start == StartRandom {
		init = lat.Random(rng)
	} else if init, err = lat.Ordered(t.Spin); err != nil {
		return nil, nil, nil, err
	}

	return ising.NewEngine(lat, t.J, t.H), init, rng, nil
}
