package dux

import (
	"context"
	"reflect"
	"sync"
	"time"
)

// sliceRef is the store's type-erased view of a registered slice.
type sliceRef interface {
	sliceName() string
	apply(s *Store, ctx context.Context, t reflect.Type, action any) bool
	notify(s *Store, action any)
	snapshot() any
}

// SliceOption configures a Slice at construction.
type SliceOption[S any] func(*Slice[S])

// WithEquals sets the change-detection function for a slice. It is
// used after every reduction to decide whether watchers should be
// notified. The default is reflect.DeepEqual.
func WithEquals[S any](eq func(a, b S) bool) SliceOption[S] {
	return func(sl *Slice[S]) {
		sl.eq = eq
	}
}

// Slice is one named, independently reduced portion of store state.
// Its value is never mutated in place: reducers return a replacement
// value and the previous one is discarded. Reads through Get and
// Watch always observe a fully reduced value, never a partial one.
type Slice[S any] struct {
	store *Store
	name  string

	mu    sync.RWMutex // guards value
	value S

	regMu    sync.RWMutex // guards reducers, watchers
	reducers map[reflect.Type][]func(S, any) S
	watchers []*watcher[S]

	eq func(a, b S) bool
}

type watcher[S any] struct {
	fn func(S)
}

// NewSlice registers a named slice with an initial value.
// Panics if the name is empty or already registered; slice
// registration happens once at wiring time, so this is a programming
// error rather than a runtime condition.
func NewSlice[S any](s *Store, name string, initial S, opts ...SliceOption[S]) *Slice[S] {
	sl := &Slice[S]{
		store:    s,
		name:     name,
		value:    initial,
		reducers: make(map[reflect.Type][]func(S, any) S),
		eq:       func(a, b S) bool { return reflect.DeepEqual(a, b) },
	}
	for _, opt := range opts {
		opt(sl)
	}
	s.registerSlice(sl)
	return sl
}

// On registers a reducer on a slice for actions of type A.
// The reducer must be pure: no I/O, no mutation of its input, a new
// value (or the input unchanged) as its only output. A slice may have
// several reducers for the same action type; they run in registration
// order, each receiving the previous one's output.
func On[S, A any](sl *Slice[S], reduce func(S, A) S) {
	wrapped := func(state S, action any) S {
		return reduce(state, action.(A))
	}
	t := typeOf[A]()

	sl.regMu.Lock()
	defer sl.regMu.Unlock()
	sl.reducers[t] = append(sl.reducers[t], wrapped)
}

// Name returns the slice's registered name.
func (sl *Slice[S]) Name() string {
	return sl.name
}

// Get returns the slice's current value.
func (sl *Slice[S]) Get() S {
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	return sl.value
}

// Watch registers fn to be called with the slice's new value after
// every dispatch that changes it. Watchers run synchronously inside
// Dispatch, so they must not dispatch or block. The returned cancel
// function removes the watcher.
func (sl *Slice[S]) Watch(fn func(S)) (cancel func()) {
	w := &watcher[S]{fn: fn}

	sl.regMu.Lock()
	sl.watchers = append(sl.watchers, w)
	sl.regMu.Unlock()

	return func() {
		sl.regMu.Lock()
		defer sl.regMu.Unlock()
		for i, cur := range sl.watchers {
			if cur == w {
				sl.watchers = append(sl.watchers[:i], sl.watchers[i+1:]...)
				return
			}
		}
	}
}

func (sl *Slice[S]) sliceName() string {
	return sl.name
}

// apply runs the slice's reducers for the action type and installs
// the result. Returns true when the value changed. A panicking
// reducer leaves the slice untouched.
func (sl *Slice[S]) apply(s *Store, ctx context.Context, t reflect.Type, action any) bool {
	sl.regMu.RLock()
	reducers := sl.reducers[t]
	sl.regMu.RUnlock()
	if len(reducers) == 0 {
		return false
	}

	if s.obs != nil {
		ctx = s.obs.OnReducerStart(ctx, sl.name, Kind(action))
	}
	start := time.Now()

	sl.mu.RLock()
	cur := sl.value
	sl.mu.RUnlock()

	next := cur
	ok := func() (ok bool) {
		defer func() {
			if r := recover(); r != nil {
				s.handlePanic(action, sl.name, r)
				ok = false
			}
		}()
		for _, reduce := range reducers {
			next = reduce(next, action)
		}
		return true
	}()

	changed := ok && !sl.eq(cur, next)
	if changed {
		sl.mu.Lock()
		sl.value = next
		sl.mu.Unlock()
	}

	if s.obs != nil {
		s.obs.OnReducerComplete(ctx, time.Since(start), changed)
	}
	return changed
}

// notify delivers the current value to all watchers, recovering
// panics so one misbehaving watcher cannot break the dispatch.
func (sl *Slice[S]) notify(s *Store, action any) {
	sl.mu.RLock()
	v := sl.value
	sl.mu.RUnlock()

	sl.regMu.RLock()
	ws := make([]*watcher[S], len(sl.watchers))
	copy(ws, sl.watchers)
	sl.regMu.RUnlock()

	for _, w := range ws {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.handlePanic(action, "watch:"+sl.name, r)
				}
			}()
			w.fn(v)
		}()
	}
}

func (sl *Slice[S]) snapshot() any {
	return sl.Get()
}
