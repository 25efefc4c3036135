package download

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/davidmtr/dropfetch/internal/model"
	"github.com/davidmtr/dropfetch/internal/resolver"
	"pgregory.net/rapid"
)

// Conservation: however the run goes, every manifest row ends up
// counted exactly once across succeeded, skipped and failed — and the
// worker bound is never exceeded.
func TestRunConservation_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		numTasks := rapid.IntRange(1, 25).Draw(rt, "num_tasks")
		workers := rapid.IntRange(1, 6).Draw(rt, "workers")
		retry := rapid.SampledFrom([]int{0, 1, 2, 3}).Draw(rt, "retry")
		dupEvery := rapid.IntRange(0, 5).Draw(rt, "dup_every")

		failRefs := make(map[string]bool)
		var tasks []*model.Task
		for i := 0; i < numTasks; i++ {
			id := fmt.Sprintf("item-%03d", i)
			if dupEvery > 0 && i > 0 && i%dupEvery == 0 {
				// Reuse an earlier identifier to exercise duplicate
				// claiming.
				id = fmt.Sprintf("item-%03d", i-1)
			}
			ref := fmt.Sprintf("ref-%03d", i)
			if rapid.Bool().Draw(rt, fmt.Sprintf("fail_%d", i)) {
				failRefs[ref] = true
			}
			tasks = append(tasks, model.NewTask(i, id, ref, ""))
		}

		res := newStubResolver()
		res.failFor = func(ref string, call int) error {
			if failRefs[ref] {
				return resolver.ErrTimeout
			}
			return nil
		}

		m := newTestManager(t, testSettings(workers, retry), t.TempDir(), res)
		summary, err := m.Run(context.Background(), tasks)
		if err != nil {
			rt.Fatalf("Run: %v", err)
		}

		if got := summary.Succeeded + summary.Skipped + summary.Failed; got != numTasks {
			rt.Fatalf("conservation violated: %d+%d+%d = %d, want %d",
				summary.Succeeded, summary.Skipped, summary.Failed, got, numTasks)
		}
		if summary.Cancelled {
			rt.Fatalf("uncancelled run reported as cancelled")
		}
		if max := atomic.LoadInt64(&res.maxInFlight); max > int64(workers) {
			rt.Fatalf("observed %d concurrent resolutions, bound is %d", max, workers)
		}
	})
}

// Retry ceiling: an always-failing task under Bounded(n) is attempted
// exactly n times and its final outcome carries that attempt number.
func TestRetryCeiling_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ceiling := rapid.IntRange(1, 5).Draw(rt, "ceiling")
		workers := rapid.IntRange(1, 4).Draw(rt, "workers")

		res := newStubResolver()
		res.failFor = func(ref string, call int) error {
			return resolver.ErrNotFound
		}

		m := newTestManager(t, testSettings(workers, ceiling), t.TempDir(), res)
		summary, err := m.Run(context.Background(), []*model.Task{
			model.NewTask(0, "stubborn", "ref-stubborn", ""),
		})
		if err != nil {
			rt.Fatalf("Run: %v", err)
		}

		if got := res.callCount("ref-stubborn"); got != ceiling {
			rt.Fatalf("attempted %d times, want exactly %d", got, ceiling)
		}
		if summary.Failed != 1 {
			rt.Fatalf("summary = %+v, want one exhausted task", summary)
		}
		outcomes := m.Exhausted()
		if len(outcomes) != 1 || outcomes[0].Attempt != ceiling {
			rt.Fatalf("exhausted outcome attempt = %+v, want %d", outcomes, ceiling)
		}
	})
}

// Eventual success under unbounded retry: a task failing k times then
// succeeding is attempted exactly k+1 times and ends done.
func TestUnboundedRetryLiveness_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		k := rapid.IntRange(0, 8).Draw(rt, "failures_before_success")

		res := newStubResolver()
		res.failFor = func(ref string, call int) error {
			if call <= k {
				return fmt.Errorf("transient %d", call)
			}
			return nil
		}

		m := newTestManager(t, testSettings(1, -1), t.TempDir(), res)
		summary, err := m.Run(context.Background(), []*model.Task{
			model.NewTask(0, "flaky", "ref-flaky", ""),
		})
		if err != nil {
			rt.Fatalf("Run: %v", err)
		}

		if got := res.callCount("ref-flaky"); got != k+1 {
			rt.Fatalf("attempted %d times, want %d", got, k+1)
		}
		if summary.Succeeded != 1 || summary.Failed != 0 {
			rt.Fatalf("summary = %+v, want one success", summary)
		}
	})
}
