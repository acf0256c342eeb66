package bioportal

import (
	"context"
	"encoding/json"
	"log/slog"
)

// WalkResult documents how far a pagination walk got. A shortfall
// (LastPage < PageCount) is reported by the caller, not treated as an error.
type WalkResult struct {
	LastPage  int
	PageCount int
	Records   int
}

// Complete reports whether every declared page was obtained.
func (r WalkResult) Complete() bool {
	return r.PageCount == 0 || r.LastPage >= r.PageCount
}

// WalkPages follows a paginated collection from its first-page URL,
// accumulating all pages' records in page order. The walk continues while
// the response carries a next-page cursor and the current page number has
// not passed the declared page count.
//
// Within one walk pages are strictly sequential: each page's URL comes from
// the previous page's response. An empty page is logged as a warning and the
// walk proceeds. A page that fails to parse terminates the walk with a
// warning, keeping what was accumulated so far. A retrieval error on the
// first page fails the walk; on a later page it also terminates the walk
// early with the accumulated records and the error.
func (c *Client) WalkPages(ctx context.Context, firstURL string) ([]json.RawMessage, WalkResult, error) {
	var result WalkResult

	data, err := c.Get(ctx, firstURL)
	if err != nil {
		return nil, result, err
	}
	page := new(CollectionPage)
	if err := decode(data, page); err != nil {
		return nil, result, err
	}

	records := append([]json.RawMessage(nil), page.Collection...)
	result = WalkResult{LastPage: page.Page, PageCount: page.PageCount, Records: len(records)}
	logPage(page)

	for page.Links.NextPage != "" && page.Page <= page.PageCount {
		data, err = c.Get(ctx, page.Links.NextPage)
		if err != nil {
			return records, result, err
		}

		next := new(CollectionPage)
		if perr := decode(data, next); perr != nil {
			slog.Warn("Page could not be parsed, keeping pages accumulated so far",
				"page", page.Page+1, "page_count", page.PageCount, "error", perr)
			return records, result, nil
		}
		page = next

		records = append(records, page.Collection...)
		result.LastPage = page.Page
		result.Records = len(records)
		if page.PageCount > 0 {
			result.PageCount = page.PageCount
		}

		logPage(page)
	}

	return records, result, nil
}

// logPage warns on empty pages so gaps in a walk are visible.
func logPage(page *CollectionPage) {
	if len(page.Collection) == 0 {
		slog.Warn("Page was downloaded empty", "page", page.Page, "page_count", page.PageCount)
		return
	}
	slog.Debug("Page downloaded", "page", page.Page, "page_count", page.PageCount)
}
