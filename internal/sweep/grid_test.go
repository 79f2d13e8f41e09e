package sweep_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/isingsim/internal/ising"
	"github.com/san-kum/isingsim/internal/sweep"
)

var _ = Describe("Task", func() {
	DescribeTable("rejects invalid parameters at construction",
		func(l int, temp float64, steps int) {
			_, err := sweep.NewTask(l, 1, 0, temp, steps, 1)
			Expect(errors.Is(err, ising.ErrConfiguration)).To(BeTrue())
		},
		Entry("L below 2", 1, 2.0, 10),
		Entry("zero temperature", 4, 0.0, 10),
		Entry("negative temperature", 4, -1.0, 10),
		Entry("negative steps", 4, 2.0, -1),
	)

	It("defaults to an all-up ordered start", func() {
		t, err := sweep.NewTask(4, 1, 0, 2, 0, 9)
		Expect(err).NotTo(HaveOccurred())
		Expect(t.Start).To(Equal(sweep.StartOrdered))
		Expect(t.Spin).To(Equal(ising.Up))
		Expect(t.String()).To(Equal("L=4 T=2.0000 seed=9"))
	})

	It("rejects an ordered start with an invalid spin", func() {
		_, err := sweep.NewTask(4, 1, 0, 2, 0, 9, sweep.WithOrderedStart(0))
		Expect(errors.Is(err, ising.ErrConfiguration)).To(BeTrue())
	})

	It("draws a reproducible random start from the seed", func() {
		t, err := sweep.NewTask(6, 1, 0, 2, 0, 5, sweep.WithRandomStart())
		Expect(err).NotTo(HaveOccurred())

		a, err := sweep.Execute(t)
		Expect(err).NotTo(HaveOccurred())
		b, err := sweep.Execute(t)
		Expect(err).NotTo(HaveOccurred())

		Expect(a.Final).To(Equal(b.Final))
		Expect(a.Series[0].Energy).To(HaveLen(1))
	})

	It("builds a chain that reproduces Execute", func() {
		t, err := sweep.NewTask(5, 1, 0, 2.5, 40, 3, sweep.WithRandomStart())
		Expect(err).NotTo(HaveOccurred())

		res, err := sweep.Execute(t)
		Expect(err).NotTo(HaveOccurred())

		c, err := t.Chain()
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Energy()).To(Equal(res.Series[0].Energy[0]))
		for i := 0; i < t.Steps; i++ {
			c.Step()
		}
		Expect(c.Energy()).To(Equal(res.Series[0].Energy[t.Steps]))
		Expect(c.Magnetization()).To(Equal(res.Series[0].Magnetization[t.Steps]))
		Expect(c.Spins()).To(Equal(res.Final))
	})

	It("parses start names", func() {
		s, err := sweep.ParseStart("random")
		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(Equal(sweep.StartRandom))

		s, err = sweep.ParseStart("")
		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(Equal(sweep.StartOrdered))

		_, err = sweep.ParseStart("striped")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Grid", func() {
	grid := sweep.Grid{
		Sizes:        []int{4, 8},
		Temperatures: []float64{1.0, 2.0, 3.0},
		J:            1,
		StepScale:    5,
		Seed:         10,
	}

	It("expands L-major, T-minor with per-task seeds", func() {
		tasks, err := grid.Tasks()
		Expect(err).NotTo(HaveOccurred())
		Expect(tasks).To(HaveLen(6))

		Expect(tasks[0].L).To(Equal(4))
		Expect(tasks[2].T).To(Equal(3.0))
		Expect(tasks[3].L).To(Equal(8))
		Expect(tasks[3].T).To(Equal(1.0))
		for i, t := range tasks {
			Expect(t.Seed).To(Equal(int64(10 + i)))
		}
		Expect(tasks[0].Steps).To(Equal(20))
		Expect(tasks[5].Steps).To(Equal(40))
	})

	It("uses a fixed step count without a scale", func() {
		g := grid
		g.StepScale = 0
		g.Steps = 7
		Expect(g.StepsFor(100)).To(Equal(7))
	})

	It("rejects empty and invalid grids", func() {
		_, err := sweep.Grid{Sizes: []int{4}}.Tasks()
		Expect(errors.Is(err, ising.ErrConfiguration)).To(BeTrue())

		g := grid
		g.Temperatures = []float64{1.0, 0}
		_, err = g.Tasks()
		Expect(err).To(MatchError(ContainSubstring("T=0")))
	})

	DescribeTable("runs the whole grid",
		func(bySize bool) {
			exec := func(t sweep.Task) (*ising.Result, error) {
				if t.L == 8 && t.T == 2.0 {
					return nil, errBoom
				}
				return fakeResult(t), nil
			}
			pool := sweep.NewPool(3, sweep.WithExecutor(exec))

			sw, err := sweep.RunGrid(context.Background(), pool, grid, bySize)
			Expect(errors.Is(err, errBoom)).To(BeTrue())
			Expect(sw.Outcomes).To(HaveLen(6))
			for i, o := range sw.Outcomes {
				Expect(o.Index).To(Equal(i))
			}

			failures := sw.Failures()
			Expect(failures).To(HaveLen(1))
			Expect(failures[0].Index).To(Equal(4))
			Expect(failures[0].L).To(Equal(8))

			tbl := sw.Table()
			Expect(tbl.Len()).To(Equal(5))
			Expect(tbl.Temperatures(8)).To(Equal([]float64{1.0, 3.0}))

			Expect(sw.Timings).To(HaveLen(2))
			Expect(sw.Timings[0].L).To(Equal(4))
			Expect(sw.Timings[0].Tasks).To(Equal(3))
			Expect(sw.Timings[0].MeanInternal).To(Equal(time.Millisecond))
			Expect(sw.Timings[1].External).To(BeNumerically(">", 0))
		},
		Entry("in one batch", false),
		Entry("one batch per size", true),
	)
})
