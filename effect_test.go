package dux

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// Test actions for the effect pipeline
type load struct {
	ID int
}

type loaded struct {
	ID int
}

type loadFailed struct {
	Msg string
}

// resultLog collects follow-up actions through ordinary reducers, so
// assertions observe exactly what the store observed.
type resultLog struct {
	OK     []int
	Failed []string
}

func newResultLog(store *Store) *Slice[resultLog] {
	log := NewSlice(store, "results", resultLog{})
	On(log, func(s resultLog, a loaded) resultLog {
		s.OK = append(s.OK, a.ID)
		return s
	})
	On(log, func(s resultLog, a loadFailed) resultLog {
		s.Failed = append(s.Failed, a.Msg)
		return s
	})
	return log
}

func TestEffectReceivesOnlyMatchingActions(t *testing.T) {
	store := New()

	var calls atomic.Int32
	Effect(store, func(ctx context.Context, a load) error {
		calls.Add(1)
		return nil
	})

	Dispatch(store, load{ID: 1})
	Dispatch(store, unrelated{})
	Dispatch(store, load{ID: 2})
	store.Wait()

	if got := calls.Load(); got != 2 {
		t.Errorf("effect ran %d times, want 2", got)
	}
}

func TestEffectTaskSuccess(t *testing.T) {
	store := New()
	log := newResultLog(store)

	EffectTask(store,
		func(ctx context.Context, a load) (int, error) { return a.ID * 10, nil },
		func(a load, r int) any { return loaded{ID: r} },
		func(a load, err error) any { return loadFailed{Msg: err.Error()} },
	)

	Dispatch(store, load{ID: 1})
	store.Wait()

	got := log.Get()
	if len(got.OK) != 1 || got.OK[0] != 10 {
		t.Errorf("OK = %v, want [10]", got.OK)
	}
	if len(got.Failed) != 0 {
		t.Errorf("Failed = %v, want none (exactly one follow-up per trigger)", got.Failed)
	}
}

func TestEffectTaskFailure(t *testing.T) {
	store := New()
	log := newResultLog(store)

	EffectTask(store,
		func(ctx context.Context, a load) (int, error) { return 0, errors.New("network down") },
		func(a load, r int) any { return loaded{ID: r} },
		func(a load, err error) any { return loadFailed{Msg: err.Error()} },
	)

	Dispatch(store, load{ID: 1})
	store.Wait()

	got := log.Get()
	if len(got.Failed) != 1 || got.Failed[0] != "network down" {
		t.Errorf("Failed = %v, want [network down]", got.Failed)
	}
	if len(got.OK) != 0 {
		t.Errorf("OK = %v, want none", got.OK)
	}
}

func TestEffectTaskPanicBecomesFailure(t *testing.T) {
	store := New()
	log := newResultLog(store)

	EffectTask(store,
		func(ctx context.Context, a load) (int, error) { panic("boom") },
		func(a load, r int) any { return loaded{ID: r} },
		func(a load, err error) any { return loadFailed{Msg: err.Error()} },
	)

	Dispatch(store, load{ID: 1})
	store.Wait()

	got := log.Get()
	if len(got.Failed) != 1 {
		t.Fatalf("Failed = %v, want exactly one entry (panics must not be swallowed)", got.Failed)
	}
}

func TestEffectTaskNilFollowUpSuppressed(t *testing.T) {
	store := New()
	log := newResultLog(store)

	EffectTask(store,
		func(ctx context.Context, a load) (int, error) { return a.ID, nil },
		func(a load, r int) any { return nil },
		func(a load, err error) any { return loadFailed{Msg: err.Error()} },
	)

	Dispatch(store, load{ID: 1})
	store.Wait()

	got := log.Get()
	if len(got.OK) != 0 || len(got.Failed) != 0 {
		t.Errorf("log = %+v, want empty (nil follow-up is suppressed)", got)
	}
}

func TestEffectTaskSameKindFollowUpDropped(t *testing.T) {
	store := New()

	var calls atomic.Int32
	EffectTask(store,
		func(ctx context.Context, a load) (int, error) {
			calls.Add(1)
			return a.ID, nil
		},
		func(a load, r int) any { return load{ID: r + 1} }, // would loop forever
		func(a load, err error) any { return loadFailed{Msg: err.Error()} },
	)

	Dispatch(store, load{ID: 1})
	store.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("effect ran %d times, want 1 (same-kind follow-up must be dropped)", got)
	}
}

func TestEffectMergeSemantics(t *testing.T) {
	store := New()
	log := newResultLog(store)

	applied := make(chan int, 2)
	log.Watch(func(s resultLog) {
		applied <- s.OK[len(s.OK)-1]
	})

	release := map[int]chan struct{}{
		1: make(chan struct{}),
		2: make(chan struct{}),
	}
	EffectTask(store,
		func(ctx context.Context, a load) (int, error) {
			<-release[a.ID]
			return a.ID, nil
		},
		func(a load, r int) any { return loaded{ID: r} },
		func(a load, err error) any { return loadFailed{Msg: err.Error()} },
	)

	// Two overlapping triggers of the same kind: neither cancels the
	// other, and results land in completion order.
	Dispatch(store, load{ID: 1})
	Dispatch(store, load{ID: 2})

	close(release[2])
	waitForApplied(t, applied, 2)
	close(release[1])
	waitForApplied(t, applied, 1)
	store.Wait()

	got := log.Get().OK
	if len(got) != 2 || got[0] != 2 || got[1] != 1 {
		t.Errorf("OK = %v, want [2 1] (completion order, last write wins)", got)
	}
}

func waitForApplied(t *testing.T, applied <-chan int, want int) {
	t.Helper()
	select {
	case got := <-applied:
		if got != want {
			t.Fatalf("applied %d, want %d", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for result %d", want)
	}
}

func TestWithMaxInFlight(t *testing.T) {
	store := New()

	var inFlight, maxSeen atomic.Int32
	Effect(store, func(ctx context.Context, a load) error {
		cur := inFlight.Add(1)
		for {
			seen := maxSeen.Load()
			if cur <= seen || maxSeen.CompareAndSwap(seen, cur) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	}, WithMaxInFlight(1))

	for i := 0; i < 5; i++ {
		Dispatch(store, load{ID: i})
	}
	store.Wait()

	if got := maxSeen.Load(); got != 1 {
		t.Errorf("max concurrent invocations = %d, want 1", got)
	}
}

func TestWithRetry(t *testing.T) {
	store := New()
	log := newResultLog(store)

	var attempts atomic.Int32
	EffectTask(store,
		func(ctx context.Context, a load) (int, error) {
			if attempts.Add(1) < 3 {
				return 0, errors.New("transient")
			}
			return a.ID, nil
		},
		func(a load, r int) any { return loaded{ID: r} },
		func(a load, err error) any { return loadFailed{Msg: err.Error()} },
		WithRetry(3),
		WithRetryInterval(time.Millisecond),
	)

	Dispatch(store, load{ID: 7})
	store.Wait()

	if got := attempts.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
	got := log.Get()
	if len(got.OK) != 1 || got.OK[0] != 7 {
		t.Errorf("OK = %v, want [7]", got.OK)
	}
	if len(got.Failed) != 0 {
		t.Errorf("Failed = %v, want none (failure dispatched only after the final attempt)", got.Failed)
	}
}

func TestWithRetryExhausted(t *testing.T) {
	store := New()
	log := newResultLog(store)

	var attempts atomic.Int32
	EffectTask(store,
		func(ctx context.Context, a load) (int, error) {
			attempts.Add(1)
			return 0, errors.New("permanent")
		},
		func(a load, r int) any { return loaded{ID: r} },
		func(a load, err error) any { return loadFailed{Msg: err.Error()} },
		WithRetry(2),
		WithRetryInterval(time.Millisecond),
	)

	Dispatch(store, load{ID: 1})
	store.Wait()

	if got := attempts.Load(); got != 2 {
		t.Errorf("attempts = %d, want 2", got)
	}
	got := log.Get()
	if len(got.Failed) != 1 || got.Failed[0] != "permanent" {
		t.Errorf("Failed = %v, want [permanent]", got.Failed)
	}
}

func TestWithRateLimit(t *testing.T) {
	store := New()

	var calls atomic.Int32
	Effect(store, func(ctx context.Context, a load) error {
		calls.Add(1)
		return nil
	}, WithRateLimit(1000, 1))

	for i := 0; i < 3; i++ {
		Dispatch(store, load{ID: i})
	}
	store.Wait()

	if got := calls.Load(); got != 3 {
		t.Errorf("effect ran %d times, want 3 (rate-limited triggers wait, they are not dropped)", got)
	}
}
