// Package dux is a small unidirectional state container: a store
// holds named, immutable state slices; typed actions dispatched into
// the store are reduced by pure functions into replacement values;
// watchers and live views observe the results; effect handlers turn
// actions into external operations and feed the outcomes back in as
// new actions.
//
// # Slices and reducers
//
// A slice is one named portion of state with an initial value. Reducers
// are registered per action type:
//
//	store := dux.New()
//	header := dux.NewSlice(store, "header", HeaderState{Title: "Default Title"})
//
//	dux.On(header, func(s HeaderState, a UpdateTitle) HeaderState {
//	    s.Title = a.Title
//	    return s
//	})
//
// Reducers receive the slice value by value and return the next one;
// the store installs the result and notifies watchers only when it
// differs from the previous value.
//
// # Actions
//
// Any Go value can be an action; its type is its kind, so kinds are
// unique by construction and reducers are matched at compile time
// rather than by runtime string lookup:
//
//	dux.Dispatch(store, UpdateTitle{Title: "Products"})
//
// Actions with no registered reducer leave state untouched and never
// fail; effect handlers still see them.
//
// # Selectors and views
//
// Selectors are pure projections, optionally memoized and composable:
//
//	selectTitle := dux.Memo(func(s HeaderState) string { return s.Title })
//
// Observe turns a selector into a live view that re-emits only when
// the projected value changes:
//
//	title := dux.Observe(header, selectTitle)
//	cancel := title.Subscribe(func(t string) { render(t) })
//
// # Effects
//
// Effect handlers subscribe to the action stream and run external
// operations off the dispatch path. EffectTask enforces the
// exactly-one-follow-up contract:
//
//	dux.EffectTask(store,
//	    func(ctx context.Context, _ LoadProducts) ([]Product, error) {
//	        return fetcher.FetchProducts(ctx)
//	    },
//	    func(_ LoadProducts, items []Product) any { return LoadProductsOK{Items: items} },
//	    func(_ LoadProducts, err error) any { return LoadProductsErr{Err: describe(err)} },
//	)
//
// Overlapping triggers run concurrently and complete in any order;
// reducers see each follow-up as an ordinary dispatch, so the last
// completed write wins.
//
// # Concurrency model
//
// Dispatches are processed strictly in call order under a single
// dispatch lock; reducers and watchers run synchronously inside
// Dispatch and must not block, perform I/O, or dispatch. Effect
// handlers are the only suspension point: each invocation runs on its
// own goroutine and dispatches its follow-up through the same gate.
// In-flight effects are never cancelled by later triggers.
//
// The catalog subpackage contains a complete reference wiring, and
// the otel subpackage provides OpenTelemetry instrumentation for the
// store's observability hooks.
package dux
