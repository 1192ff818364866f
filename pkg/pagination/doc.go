// Package pagination provides an incremental list controller for
// offset-paginated endpoints.
//
// A List is built from a FetchFunc that knows the endpoint; the list
// only sees Page.Items and Page.Next. The cursor is an offset: the
// first page is fetched at 0 and the server returns the offset of the
// following page. The list has more data while pages are non-empty and
// Next advances past the requested cursor.
//
// Example usage:
//
//	list := pagination.New(svc.HistoryFetcher(kopkar.HistorySavings, 10))
//	list.OnChange(func(s pagination.Snapshot[kopkar.HistoryEntry]) {
//		render(s.Items, s.LoadingMore())
//	})
//	list.Load(ctx)     // initial page
//	list.LoadMore(ctx) // scroll; no-op while a fetch is in flight
//	list.Refresh(ctx)  // pull-to-refresh; resets to offset 0
//
// Collect drives a list to the end for non-interactive callers:
//
//	entries, err := pagination.Collect(ctx, fetch, pagination.DefaultCollectConfig())
package pagination
