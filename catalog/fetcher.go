package catalog

import (
	"context"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// Fetcher is the external collaborator the load effect calls.
// Implementations return the full product list or an error; partial
// results are not part of the contract.
type Fetcher interface {
	FetchProducts(ctx context.Context) ([]Product, error)
}

// FetcherFunc adapts a plain function to the Fetcher interface.
type FetcherFunc func(ctx context.Context) ([]Product, error)

// FetchProducts calls f.
func (f FetcherFunc) FetchProducts(ctx context.Context) ([]Product, error) {
	return f(ctx)
}

// HTTPFetcher loads products from a JSON endpoint returning an array
// of Product objects.
type HTTPFetcher struct {
	URL    string
	Client *http.Client // http.DefaultClient when nil
}

// FetchProducts performs the request. All failure modes (transport,
// non-200 status, malformed body) surface as *FetchError.
func (f *HTTPFetcher) FetchProducts(ctx context.Context) ([]Product, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, &FetchError{Message: "build request: " + err.Error()}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, &FetchError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{
			Message: "unexpected status: " + resp.Status,
			Code:    resp.StatusCode,
		}
	}

	var items []Product
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, &FetchError{Message: "decode response: " + err.Error()}
	}
	return items, nil
}

// StaticFetcher serves canned products after an optional delay,
// simulating a network call. When Fail is set every fetch fails with
// it instead. Useful for demos and tests.
type StaticFetcher struct {
	Items   []Product
	Latency time.Duration
	Fail    *FetchError
}

// FetchProducts returns a copy of the configured items.
func (f *StaticFetcher) FetchProducts(ctx context.Context) ([]Product, error) {
	if f.Latency > 0 {
		select {
		case <-time.After(f.Latency):
		case <-ctx.Done():
			return nil, &FetchError{Message: ctx.Err().Error()}
		}
	}
	if f.Fail != nil {
		return nil, f.Fail
	}
	return append([]Product(nil), f.Items...), nil
}
