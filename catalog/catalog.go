// Package catalog is a reference wiring of a dux store: a header
// slice carrying the page title and a products slice tracking a list
// loaded through an asynchronous fetch, with loading and error state.
package catalog

import (
	"context"

	"github.com/jilio/dux"
)

// Slice names used in store snapshots.
const (
	HeaderSlice   = "header"
	ProductsSlice = "products"
)

// DefaultTitle is the header title before any UpdateTitle dispatch.
const DefaultTitle = "Default Title"

// Product is an immutable catalog item with externally assigned identity.
type Product struct {
	ID    int     `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// FetchError describes a failed product fetch. Code carries the HTTP
// status when one applies, zero otherwise.
type FetchError struct {
	Message string `json:"message"`
	Code    int    `json:"code,omitempty"`
}

func (e *FetchError) Error() string {
	return e.Message
}

// Describe converts any error into a *FetchError, passing through
// errors that already are one.
func Describe(err error) *FetchError {
	if err == nil {
		return nil
	}
	if fe, ok := err.(*FetchError); ok {
		return fe
	}
	return &FetchError{Message: err.Error()}
}

// HeaderState is the header slice value.
type HeaderState struct {
	Title string
}

// ProductsState is the products slice value. Items is replaced
// wholesale on every successful load; Err holds the most recent
// failure and is cleared when a new load starts or succeeds.
type ProductsState struct {
	Items   []Product
	Loading bool
	Err     *FetchError
}

// UpdateTitle sets the header title.
type UpdateTitle struct {
	Title string
}

// LoadProducts requests an asynchronous product fetch.
type LoadProducts struct{}

// LoadProductsOK delivers a completed fetch.
type LoadProductsOK struct {
	Items []Product
}

// LoadProductsErr delivers a failed fetch.
type LoadProductsErr struct {
	Err *FetchError
}

func reduceUpdateTitle(s HeaderState, a UpdateTitle) HeaderState {
	s.Title = a.Title
	return s
}

func reduceLoadProducts(s ProductsState, _ LoadProducts) ProductsState {
	s.Loading = true
	s.Err = nil
	return s
}

func reduceLoadProductsOK(s ProductsState, a LoadProductsOK) ProductsState {
	s.Items = a.Items
	s.Loading = false
	s.Err = nil
	return s
}

func reduceLoadProductsErr(s ProductsState, a LoadProductsErr) ProductsState {
	s.Err = a.Err
	s.Loading = false
	return s
}

// SelectTitle projects the header title.
func SelectTitle(s HeaderState) string { return s.Title }

// SelectProducts projects the loaded product list.
func SelectProducts(s ProductsState) []Product { return s.Items }

// SelectLoading reports whether a load is in flight.
func SelectLoading(s ProductsState) bool { return s.Loading }

// SelectErr projects the most recent fetch failure, nil when none.
func SelectErr(s ProductsState) *FetchError { return s.Err }

// SelectItemCount derives the number of loaded products.
var SelectItemCount = dux.Compose(SelectProducts, func(items []Product) int {
	return len(items)
})

// Catalog holds the slice handles produced by Wire.
type Catalog struct {
	Header   *dux.Slice[HeaderState]
	Products *dux.Slice[ProductsState]
}

// Wire registers the header and products slices, their reducers, and
// the load effect on the store. The effect calls the fetcher once per
// LoadProducts dispatch and maps the outcome to exactly one of
// LoadProductsOK or LoadProductsErr. Overlapping loads run
// concurrently and the last completed one wins.
func Wire(store *dux.Store, fetcher Fetcher, opts ...dux.EffectOption) *Catalog {
	header := dux.NewSlice(store, HeaderSlice, HeaderState{Title: DefaultTitle})
	dux.On(header, reduceUpdateTitle)

	products := dux.NewSlice(store, ProductsSlice, ProductsState{})
	dux.On(products, reduceLoadProducts)
	dux.On(products, reduceLoadProductsOK)
	dux.On(products, reduceLoadProductsErr)

	dux.EffectTask(store,
		func(ctx context.Context, _ LoadProducts) ([]Product, error) {
			return fetcher.FetchProducts(ctx)
		},
		func(_ LoadProducts, items []Product) any {
			return LoadProductsOK{Items: items}
		},
		func(_ LoadProducts, err error) any {
			return LoadProductsErr{Err: Describe(err)}
		},
		opts...,
	)

	return &Catalog{Header: header, Products: products}
}
