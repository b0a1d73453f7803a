package dux

import (
	"reflect"
	"sync"
)

// Selector is a pure projection from a state value to a derived
// value. Selectors must be deterministic and side-effect free.
type Selector[S, V any] func(S) V

// Compose chains two selectors: the outer selector runs on the inner
// selector's result. Use it to build field selectors on top of slice
// selectors.
func Compose[S, M, V any](inner Selector[S, M], outer Selector[M, V]) Selector[S, V] {
	return func(state S) V {
		return outer(inner(state))
	}
}

// MemoOption configures Memo.
type MemoOption[S any] func(*memoConfig[S])

type memoConfig[S any] struct {
	eq func(a, b S) bool
}

// WithMemoEquals sets the input-equality function used to decide a
// cache hit. The default is reflect.DeepEqual.
func WithMemoEquals[S any](eq func(a, b S) bool) MemoOption[S] {
	return func(c *memoConfig[S]) {
		c.eq = eq
	}
}

// Memo wraps a selector with a single-entry cache keyed on its last
// input. The projection is skipped when the new input equals the
// cached one (reflect.DeepEqual unless overridden with
// WithMemoEquals), so a memoized selector can never return a value
// computed from a different input than the one passed in.
//
// The returned selector is safe for concurrent use.
func Memo[S, V any](sel Selector[S, V], opts ...MemoOption[S]) Selector[S, V] {
	cfg := &memoConfig[S]{
		eq: func(a, b S) bool { return reflect.DeepEqual(a, b) },
	}
	for _, opt := range opts {
		opt(cfg)
	}

	var (
		mu     sync.Mutex
		primed bool
		lastIn S
		lastV  V
	)
	return func(state S) V {
		mu.Lock()
		defer mu.Unlock()
		if primed && cfg.eq(lastIn, state) {
			return lastV
		}
		lastV = sel(state)
		lastIn = state
		primed = true
		return lastV
	}
}

// ViewOption configures a View.
type ViewOption[V any] func(*View[V])

// WithViewEquals sets the change-detection function for a view's
// projected value. The default is reflect.DeepEqual.
func WithViewEquals[V any](eq func(a, b V) bool) ViewOption[V] {
	return func(v *View[V]) {
		v.eq = eq
	}
}

// View is a live, continuously updated projection over a slice.
// It recomputes when the slice changes and re-emits only when the
// projected value itself changes.
type View[V any] struct {
	mu    sync.RWMutex
	value V
	subs  []*viewSub[V]
	eq    func(a, b V) bool

	stop func()
}

type viewSub[V any] struct {
	fn func(V)
}

// Observe creates a live view of project over the slice's value.
// The view holds the projection of the current value immediately and
// tracks every subsequent change. Equality between successive
// projected values is reflect.DeepEqual unless overridden with
// WithViewEquals; equal values are not re-emitted.
func Observe[S, V any](sl *Slice[S], project Selector[S, V], opts ...ViewOption[V]) *View[V] {
	v := &View[V]{
		eq: func(a, b V) bool { return reflect.DeepEqual(a, b) },
	}
	for _, opt := range opts {
		opt(v)
	}
	v.value = project(sl.Get())
	v.stop = sl.Watch(func(state S) {
		v.update(project(state))
	})
	return v
}

// Get returns the view's current projected value.
func (v *View[V]) Get() V {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.value
}

// Subscribe registers fn to receive the view's value. fn is called
// immediately with the current value, then again after every change.
// The returned cancel function removes the subscription.
func (v *View[V]) Subscribe(fn func(V)) (cancel func()) {
	sub := &viewSub[V]{fn: fn}

	v.mu.Lock()
	v.subs = append(v.subs, sub)
	current := v.value
	v.mu.Unlock()

	fn(current)

	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		for i, cur := range v.subs {
			if cur == sub {
				v.subs = append(v.subs[:i], v.subs[i+1:]...)
				return
			}
		}
	}
}

// Close detaches the view from its slice. Subscribers receive no
// further values.
func (v *View[V]) Close() {
	if v.stop != nil {
		v.stop()
		v.stop = nil
	}
}

func (v *View[V]) update(next V) {
	v.mu.Lock()
	if v.eq(v.value, next) {
		v.mu.Unlock()
		return
	}
	v.value = next
	subs := make([]*viewSub[V], len(v.subs))
	copy(subs, v.subs)
	v.mu.Unlock()

	for _, sub := range subs {
		sub.fn(next)
	}
}
