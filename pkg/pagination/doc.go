// Package pagination fetches complete paginated listings from the
// tracker API in parallel.
//
// The tracker paginates listing endpoints with $skip/$top query
// parameters and signals the final page by returning fewer items than
// requested. The fetcher requests pages in bounded-concurrency waves
// and stops after the first short page, returning items in page order.
//
// Example usage:
//
//	fetcher := pagination.NewFetcher(pageSource, pagination.DefaultConfig())
//	items, err := fetcher.FetchAll(ctx, "/issues")
//
// The page source is anything that can fetch one page; the client's
// Manager is adapted with a small closure:
//
//	pageSource := pagination.PageFunc(func(ctx context.Context, endpoint string, skip, top int) ([]json.RawMessage, error) {
//	    resp, err := mgr.Get(ctx, endpoint, client.WithParams(url.Values{
//	        "$skip": {strconv.Itoa(skip)},
//	        "$top":  {strconv.Itoa(top)},
//	    }))
//	    if err != nil {
//	        return nil, err
//	    }
//	    var items []json.RawMessage
//	    return items, resp.JSON(&items)
//	})
package pagination
