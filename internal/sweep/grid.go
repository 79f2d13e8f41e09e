package sweep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/san-kum/isingsim/internal/ising"
	"github.com/san-kum/isingsim/internal/observables"
)

// Grid describes an L×T sweep. When StepScale is positive a task at size L
// runs StepScale·L steps; otherwise every task runs Steps.
type Grid struct {
	Sizes        []int
	Temperatures []float64
	J            float64
	H            float64
	StepScale    int
	Steps        int
	Seed         int64
	Start        Start
	Spin         int8
}

func (g Grid) StepsFor(l int) int {
	if g.StepScale > 0 {
		return g.StepScale * l
	}
	return g.Steps
}

// Tasks expands the grid in L-major, T-minor order. Task i is seeded with Seed+i.
func (g Grid) Tasks() ([]Task, error) {
	if len(g.Sizes) == 0 || len(g.Temperatures) == 0 {
		return nil, fmt.Errorf("grid needs at least one size and one temperature: %w", ising.ErrConfiguration)
	}

	opt := WithOrderedStart(g.Spin)
	if g.Spin == 0 {
		opt = WithOrderedStart(ising.Up)
	}
	if g.Start == StartRandom {
		opt = WithRandomStart()
	}

	tasks := make([]Task, 0, len(g.Sizes)*len(g.Temperatures))
	for _, l := range g.Sizes {
		for _, temp := range g.Temperatures {
			seed := g.Seed + int64(len(tasks))
			t, err := NewTask(l, g.J, g.H, temp, g.StepsFor(l), seed, opt)
			if err != nil {
				return nil, fmt.Errorf("grid point L=%d T=%v: %w", l, temp, err)
			}
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}

// SizeTiming compares the wall-clock time of the batch that ran all
// temperatures of one lattice size with the mean time of a single task.
type SizeTiming struct {
	L            int
	Tasks        int
	External     time.Duration
	MeanInternal time.Duration
}

// Sweep is the outcome of running a Grid.
type Sweep struct {
	Outcomes []Outcome
	Timings  []SizeTiming
	Elapsed  time.Duration
}

// Table collects the aggregates of every successful outcome.
func (s *Sweep) Table() *observables.Table {
	tbl := observables.NewTable()
	for _, o := range s.Outcomes {
		if !o.Failed() {
			tbl.Add(o.Aggregate)
		}
	}
	return tbl
}

func (s *Sweep) Failures() []*TaskError {
	var failed []*TaskError
	for _, o := range s.Outcomes {
		if o.Failed() {
			failed = append(failed, o.Err)
		}
	}
	return failed
}

// RunGrid runs every grid point on p. With bySize set, each lattice size is
// submitted as its own batch and timed separately; otherwise all tasks share
// one batch and External is the whole sweep's elapsed time. A failed task
// does not stop the sweep; the returned error joins all task failures.
func RunGrid(ctx context.Context, p *Pool, g Grid, bySize bool) (*Sweep, error) {
	tasks, err := g.Tasks()
	if err != nil {
		return nil, err
	}

	for _, l := range g.Sizes {
		if l < 3 {
			p.logger.Warn("lattice size has coinciding periodic neighbors; bonds are counted twice", "l", l)
		}
	}

	sweep := &Sweep{Outcomes: make([]Outcome, 0, len(tasks))}
	start := time.Now()

	var errs []error
	if bySize {
		per := len(g.Temperatures)
		for i, l := range g.Sizes {
			batch := tasks[i*per : (i+1)*per]
			batchStart := time.Now()
			outcomes, err := p.Run(ctx, batch)
			external := time.Since(batchStart)

			for j := range outcomes {
				outcomes[j].Index += i * per
				if outcomes[j].Err != nil {
					outcomes[j].Err.Index += i * per
				}
			}
			if err != nil {
				errs = append(errs, err)
			}

			sweep.Outcomes = append(sweep.Outcomes, outcomes...)
			sweep.Timings = append(sweep.Timings, timing(l, outcomes, external))
			p.logger.Info("size complete", "l", l, "tasks", len(batch), "external", external)
		}
	} else {
		outcomes, err := p.Run(ctx, tasks)
		if err != nil {
			errs = append(errs, err)
		}
		sweep.Outcomes = outcomes
		external := time.Since(start)
		per := len(g.Temperatures)
		for i, l := range g.Sizes {
			sweep.Timings = append(sweep.Timings, timing(l, outcomes[i*per:(i+1)*per], external))
		}
	}

	sweep.Elapsed = time.Since(start)
	return sweep, errors.Join(errs...)
}

func timing(l int, outcomes []Outcome, external time.Duration) SizeTiming {
	ds := make([]time.Duration, 0, len(outcomes))
	for _, o := range outcomes {
		if !o.Failed() {
			ds = append(ds, o.Aggregate.Duration)
		}
	}
	return SizeTiming{L: l, Tasks: len(outcomes), External: external, MeanInternal: observables.MeanDuration(ds)}
}
