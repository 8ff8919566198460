/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package connector

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Page is one response of a token-chained remote listing.
// An empty NextToken marks the last page.
type Page[T any] struct {
	Items     []T
	NextToken string
}

// PageLister issues a single page request. Calls must be idempotent per token.
type PageLister[T any] interface {
	ListPage(ctx context.Context, token string) (Page[T], error)
}

type PageListerFunc[T any] func(ctx context.Context, token string) (Page[T], error)

func (f PageListerFunc[T]) ListPage(ctx context.Context, token string) (Page[T], error) {
	return f(ctx, token)
}

// FetchStats summarizes one FetchAll run.
type FetchStats struct {
	Pages     int
	Records   int
	Cancelled bool
}

// FetchAll walks a paginated listing starting from an empty token and hands
// every record to mapRow in page order.
//
// The loop stops when the remote side returns no continuation token or when
// checker reports the query inactive. The checker is polled once per page,
// after the page has been mapped, so no request is issued once cancellation
// has been observed. A failed page request is returned as *ErrRemoteFetch
// without retrying; rows mapped from earlier pages stay written. An error
// from mapRow is a sink failure and aborts the loop.
func FetchAll[T any](
	ctx context.Context,
	logger *zap.Logger,
	lister PageLister[T],
	checker StatusChecker,
	mapRow func(T) error,
) (FetchStats, error) {
	var (
		stats FetchStats
		token string
	)

	for {
		page, err := lister.ListPage(ctx, token)
		stats.Pages++
		if err != nil {
			return stats, &ErrRemoteFetch{Msg: "list page", Page: stats.Pages, Err: err}
		}

		for _, item := range page.Items {
			if err := mapRow(item); err != nil {
				return stats, fmt.Errorf("map record on page %d: %w", stats.Pages, err)
			}
			stats.Records++
		}

		logger.Debug("page consumed",
			zap.Int("page", stats.Pages),
			zap.Int("records", len(page.Items)),
			zap.Bool("has_next", page.NextToken != ""),
		)

		if page.NextToken == "" {
			return stats, nil
		}

		if !checker.IsActive() {
			stats.Cancelled = true
			logger.Info("query is no longer active, stop paging", zap.Int("pages", stats.Pages))
			return stats, nil
		}

		token = page.NextToken
	}
}
