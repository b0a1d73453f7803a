package dux

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
)

// PanicHandler is called when a reducer, watcher, or effect panics.
// The origin identifies where the panic happened (a slice name,
// "watch:<slice>", or "effect:<kind>").
type PanicHandler func(action any, origin string, panicValue any)

// Option configures a Store.
type Option func(*Store)

// WithObservability attaches observability hooks to the store.
func WithObservability(obs Observability) Option {
	return func(s *Store) {
		s.obs = obs
	}
}

// Store owns all state slices and is their sole mutation gate.
// State changes only through Dispatch: every matching reducer is
// applied under the dispatch lock, so reductions for two actions
// never interleave, then watchers of changed slices are notified
// synchronously, then effect handlers receive the action.
type Store struct {
	mu      sync.RWMutex // guards slices, order, effects
	slices  map[string]sliceRef
	order   []sliceRef
	effects map[reflect.Type][]*effectEntry

	dispatchMu sync.Mutex // serializes dispatches
	version    atomic.Uint64

	obs          Observability
	panicHandler PanicHandler
	wg           conc.WaitGroup
}

// New creates a new Store.
func New(opts ...Option) *Store {
	s := &Store{
		slices:  make(map[string]sliceRef),
		effects: make(map[reflect.Type][]*effectEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetPanicHandler sets a function to be called when a reducer,
// watcher, or effect panics.
func (s *Store) SetPanicHandler(handler PanicHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panicHandler = handler
}

// Version returns the number of dispatches processed so far.
func (s *Store) Version() uint64 {
	return s.version.Load()
}

// Snapshot returns the current value of every slice, keyed by slice
// name. The returned values are copies; treat nested reference types
// (slices, maps) as read-only.
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	refs := make([]sliceRef, len(s.order))
	copy(refs, s.order)
	s.mu.RUnlock()

	snap := make(map[string]any, len(refs))
	for _, ref := range refs {
		snap[ref.sliceName()] = ref.snapshot()
	}
	return snap
}

// Wait blocks until all effect handlers started so far have completed.
func (s *Store) Wait() {
	s.wg.Wait()
}

// Dispatch submits an action to the store.
// All reducers registered for the action's type run sequentially,
// watchers of changed slices are notified, and effect handlers for
// the type are started. Actions with no registered reducer are a
// state no-op but are still delivered to effect handlers.
func Dispatch[A any](s *Store, action A) {
	DispatchContext(s, context.Background(), action)
}

// DispatchContext submits an action with a context. The context is
// passed through to observability hooks and effect handlers; reducers
// never see it (they must not block or perform I/O).
func DispatchContext[A any](s *Store, ctx context.Context, action A) {
	t := reflect.TypeOf(action)
	kind := Kind(action)

	s.mu.RLock()
	refs := make([]sliceRef, len(s.order))
	copy(refs, s.order)
	effects := append([]*effectEntry(nil), s.effects[t]...)
	s.mu.RUnlock()

	s.dispatchMu.Lock()
	if s.obs != nil {
		ctx = s.obs.OnDispatchStart(ctx, kind, uuid.NewString())
	}
	start := time.Now()

	var changed []sliceRef
	for _, ref := range refs {
		if ref.apply(s, ctx, t, action) {
			changed = append(changed, ref)
		}
	}
	s.version.Add(1)

	for _, ref := range changed {
		ref.notify(s, action)
	}

	if s.obs != nil {
		s.obs.OnDispatchComplete(ctx, kind, time.Since(start))
	}
	s.dispatchMu.Unlock()

	for _, e := range effects {
		e.spawn(s, ctx, action)
	}
}

// handlePanic routes a recovered panic to the configured handler.
func (s *Store) handlePanic(action any, origin string, panicValue any) {
	s.mu.RLock()
	handler := s.panicHandler
	s.mu.RUnlock()
	if handler != nil {
		handler(action, origin, panicValue)
	}
}

// registerSlice adds a slice to the store's registry.
// Slice names identify slices in snapshots and observability, so
// registering a duplicate or empty name is a programming error and
// panics.
func (s *Store) registerSlice(ref sliceRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := ref.sliceName()
	if name == "" {
		panic("dux: slice name cannot be empty")
	}
	if _, exists := s.slices[name]; exists {
		panic("dux: duplicate slice name: " + name)
	}
	s.slices[name] = ref
	s.order = append(s.order, ref)
}

// registerEffect adds an effect entry for an action type.
func (s *Store) registerEffect(t reflect.Type, e *effectEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.effects[t] = append(s.effects[t], e)
}
