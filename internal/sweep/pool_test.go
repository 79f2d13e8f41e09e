package sweep_test

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/isingsim/internal/ising"
	"github.com/san-kum/isingsim/internal/sweep"
)

var errBoom = errors.New("boom")

// fakeResult encodes the task identity into the series so slots can be
// matched back to their tasks.
func fakeResult(t sweep.Task) *ising.Result {
	return &ising.Result{
		Series: []ising.Series{{
			Temperature:   t.T,
			Energy:        []float64{float64(t.Seed)},
			Magnetization: []int{t.L},
		}},
		Duration: time.Millisecond,
	}
}

func makeTasks(n int) []sweep.Task {
	tasks := make([]sweep.Task, n)
	for i := range tasks {
		t, err := sweep.NewTask(4+i%3, 1, 0, 0.5+float64(i)*0.1, 10, int64(100+i))
		Expect(err).NotTo(HaveOccurred())
		tasks[i] = t
	}
	return tasks
}

var _ = Describe("Pool", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("defaults to one worker per CPU", func() {
		Expect(sweep.NewPool(0).Workers()).To(Equal(runtime.NumCPU()))
		Expect(sweep.NewPool(3).Workers()).To(Equal(3))
	})

	It("returns an empty result for no tasks", func() {
		out, err := sweep.NewPool(2).Run(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(BeEmpty())
	})

	It("places results by task index regardless of completion order", func() {
		const k = 24
		tasks := makeTasks(k)

		// Earlier tasks sleep longer so they complete last.
		exec := func(t sweep.Task) (*ising.Result, error) {
			time.Sleep(time.Duration(k-(t.Seed-100)) * time.Millisecond)
			return fakeResult(t), nil
		}

		out, err := sweep.NewPool(4, sweep.WithExecutor(exec)).Run(ctx, tasks)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(HaveLen(k))

		for i, o := range out {
			Expect(o.Index).To(Equal(i))
			Expect(o.Failed()).To(BeFalse())
			Expect(o.Task).To(Equal(tasks[i]))
			Expect(o.Aggregate.L).To(Equal(tasks[i].L))
			Expect(o.Aggregate.T).To(Equal(tasks[i].T))
			Expect(o.Aggregate.MeanEnergy).To(Equal(float64(tasks[i].Seed)))
		}
	})

	It("executes every task exactly once within the worker bound", func() {
		const k, p = 40, 3
		tasks := makeTasks(k)

		var mu sync.Mutex
		calls := make(map[int64]int)
		var running, peak int32

		exec := func(t sweep.Task) (*ising.Result, error) {
			n := atomic.AddInt32(&running, 1)
			for {
				old := atomic.LoadInt32(&peak)
				if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&running, -1)

			mu.Lock()
			calls[t.Seed]++
			mu.Unlock()
			return fakeResult(t), nil
		}

		_, err := sweep.NewPool(p, sweep.WithExecutor(exec)).Run(ctx, tasks)
		Expect(err).NotTo(HaveOccurred())

		Expect(calls).To(HaveLen(k))
		for _, t := range tasks {
			Expect(calls[t.Seed]).To(Equal(1))
		}
		Expect(atomic.LoadInt32(&peak)).To(BeNumerically("<=", p))
	})

	It("isolates a failing task in its own slot", func() {
		tasks := makeTasks(6)
		bad := tasks[2]

		exec := func(t sweep.Task) (*ising.Result, error) {
			if t.Seed == bad.Seed {
				return nil, errBoom
			}
			return fakeResult(t), nil
		}

		out, err := sweep.NewPool(3, sweep.WithExecutor(exec)).Run(ctx, tasks)
		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, errBoom)).To(BeTrue())

		var taskErr *sweep.TaskError
		Expect(errors.As(err, &taskErr)).To(BeTrue())
		Expect(taskErr.Index).To(Equal(2))
		Expect(taskErr.L).To(Equal(bad.L))
		Expect(taskErr.T).To(Equal(bad.T))
		Expect(taskErr.Seed).To(Equal(bad.Seed))
		Expect(taskErr.Error()).To(ContainSubstring("boom"))

		Expect(out).To(HaveLen(6))
		for i, o := range out {
			if i == 2 {
				Expect(o.Failed()).To(BeTrue())
				Expect(o.Result).To(BeNil())
				continue
			}
			Expect(o.Failed()).To(BeFalse())
			Expect(o.Aggregate.MeanEnergy).To(Equal(float64(tasks[i].Seed)))
		}
	})

	It("recovers a panicking task", func() {
		tasks := makeTasks(3)
		exec := func(t sweep.Task) (*ising.Result, error) {
			if t.Seed == tasks[1].Seed {
				panic("index out of range")
			}
			return fakeResult(t), nil
		}

		out, err := sweep.NewPool(2, sweep.WithExecutor(exec)).Run(ctx, tasks)
		Expect(err).To(MatchError(ContainSubstring("panic: index out of range")))
		Expect(out[1].Failed()).To(BeTrue())
		Expect(out[0].Failed()).To(BeFalse())
		Expect(out[2].Failed()).To(BeFalse())
	})

	It("reports executors that return no series", func() {
		exec := func(t sweep.Task) (*ising.Result, error) { return &ising.Result{}, nil }
		out, err := sweep.NewPool(1, sweep.WithExecutor(exec)).Run(ctx, makeTasks(1))
		Expect(errors.Is(err, sweep.ErrNoSeries)).To(BeTrue())
		Expect(out[0].Failed()).To(BeTrue())
	})

	It("does not start tasks after the context is canceled", func() {
		canceled, cancel := context.WithCancel(ctx)
		cancel()

		var calls int32
		exec := func(t sweep.Task) (*ising.Result, error) {
			atomic.AddInt32(&calls, 1)
			return fakeResult(t), nil
		}

		out, err := sweep.NewPool(2, sweep.WithExecutor(exec)).Run(canceled, makeTasks(5))
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		Expect(atomic.LoadInt32(&calls)).To(BeZero())
		for i, o := range out {
			Expect(o.Index).To(Equal(i))
			Expect(o.Failed()).To(BeTrue())
		}
	})

	Context("with the Metropolis executor", func() {
		It("is deterministic and matches a direct run", func() {
			tasks := makeTasks(8)

			first, err := sweep.NewPool(4).Run(ctx, tasks)
			Expect(err).NotTo(HaveOccurred())
			second, err := sweep.NewPool(2).Run(ctx, tasks)
			Expect(err).NotTo(HaveOccurred())

			for i := range tasks {
				Expect(first[i].Result.Series[0].Energy).To(Equal(second[i].Result.Series[0].Energy))
				Expect(first[i].Result.Series[0].Magnetization).To(Equal(second[i].Result.Series[0].Magnetization))

				direct, err := sweep.Execute(tasks[i])
				Expect(err).NotTo(HaveOccurred())
				Expect(first[i].Result.Series[0].Energy).To(Equal(direct.Series[0].Energy))
				Expect(first[i].Result.Final).To(Equal(direct.Final))
			}
		})

		It("drops series but keeps aggregates when discarding", func() {
			out, err := sweep.NewPool(2, sweep.DiscardSeries()).Run(ctx, makeTasks(3))
			Expect(err).NotTo(HaveOccurred())
			for _, o := range out {
				Expect(o.Result.Series).To(BeNil())
				Expect(o.Result.Final).NotTo(BeNil())
				Expect(o.Aggregate.MeanEnergy).To(BeNumerically("<", 0))
			}
		})

		It("surfaces task validation failures with the task identity", func() {
			tasks := makeTasks(3)
			tasks[1].T = 0

			out, err := sweep.NewPool(3).Run(ctx, tasks)
			Expect(errors.Is(err, ising.ErrConfiguration)).To(BeTrue())
			Expect(out[1].Err.T).To(Equal(0.0))
			Expect(out[0].Failed()).To(BeFalse())
			Expect(out[2].Failed()).To(BeFalse())
		})
	})
})
