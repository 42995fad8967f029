package github

import (
	"context"
	"fmt"
	"iter"

	gh "github.com/google/go-github/v82/github"
)

// pages lazily walks a paginated REST listing. fetch requests the page held in
// opts.Page; the sequence advances opts.Page from resp.NextPage and ends when
// GitHub reports no next page, on the first error, or when the consumer stops.
func pages[T any](
	ctx context.Context,
	endpoint string,
	opts *gh.ListOptions,
	fetch func(ctx context.Context) ([]T, *gh.Response, error),
) iter.Seq2[[]T, error] {
	return func(yield func([]T, error) bool) {
		for {
			items, resp, err := fetch(ctx)
			if err != nil {
				yield(nil, fmt.Errorf("%s (page %d): %w", endpoint, opts.Page, err))
				return
			}

			logRateLimit(resp, endpoint, opts.Page, len(items))

			if !yield(items, nil) {
				return
			}

			if resp.NextPage == 0 {
				return
			}
			opts.Page = resp.NextPage
		}
	}
}
