package commerce

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-commerce/core"
)

type Pagination struct {
	EndingBefore  string `json:"ending_before,omitempty"`
	StartingAfter string `json:"starting_after,omitempty"`
	Limit         int    `json:"limit,omitempty"`
	Order         string `json:"order,omitempty"`
	PreviousURI   string `json:"previous_uri,omitempty"`
	NextURI       string `json:"next_uri,omitempty"`
}

// ListOptions narrows a list call. Zero values are omitted from the query.
type ListOptions struct {
	Limit         int
	Order         string
	StartingAfter string
	EndingBefore  string
}

func (o ListOptions) query() map[string]string {
	query := map[string]string{}
	if o.Limit > 0 {
		query["limit"] = strconv.Itoa(o.Limit)
	}
	if order := strings.TrimSpace(o.Order); order != "" {
		query["order"] = order
	}
	if value := strings.TrimSpace(o.StartingAfter); value != "" {
		query["starting_after"] = value
	}
	if value := strings.TrimSpace(o.EndingBefore); value != "" {
		query["ending_before"] = value
	}
	return query
}

// Page is one page of a list call.
type Page[T any] struct {
	Data       []T
	Pagination Pagination

	next func(ctx context.Context, nextURI string) (Page[T], error)
}

func (p Page[T]) HasNext() bool {
	return strings.TrimSpace(p.Pagination.NextURI) != "" && p.next != nil
}

// Next fetches the page named by pagination.next_uri.
func (p Page[T]) Next(ctx context.Context) (Page[T], error) {
	if !p.HasNext() {
		return Page[T]{}, core.MapError(fmt.Errorf("commerce: next_uri is required to fetch the next page"))
	}
	return p.next(ctx, p.Pagination.NextURI)
}

// CollectAll walks every page starting at first and returns the
// concatenated data. maxPages bounds the walk when positive.
func CollectAll[T any](ctx context.Context, first Page[T], maxPages int) ([]T, error) {
	items := append([]T(nil), first.Data...)
	page := first
	for fetched := 1; page.HasNext(); fetched++ {
		if maxPages > 0 && fetched >= maxPages {
			break
		}
		next, err := page.Next(ctx)
		if err != nil {
			return items, err
		}
		items = append(items, next.Data...)
		page = next
	}
	return items, nil
}
