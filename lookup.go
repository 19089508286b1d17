// Package fuzzygo provides an embedded fuzzy key-value store.
//
// This file implements a fluent lookup API for querying store instances.
package fuzzygo

import (
	"context"
	"sort"

	"github.com/hupe1980/fuzzygo/distance"
)

// Lookup creates a new fluent lookup builder for the given query key.
//
// Example:
//
//	matches, err := db.Lookup("alfred penyworth").
//	    Within(1).
//	    Metric(distance.Levenshtein).
//	    SortByDistance().
//	    Execute(ctx)
func (fg *Fuzzygo[T]) Lookup(query string) *LookupBuilder[T] {
	return &LookupBuilder[T]{
		fg:        fg,
		query:     query,
		threshold: fg.MaxDeletes(), // Full indexed radius by default
		fn:        distance.Levenshtein,
	}
}

// LookupBuilder is a fluent builder for constructing lookup queries.
type LookupBuilder[T any] struct {
	fg        *Fuzzygo[T]
	query     string
	threshold int
	fn        distance.Func

	// Options
	exact  bool
	sorted bool
	limit  int
}

// Within sets the maximum allowed distance. Must not exceed the store's
// MaxDeletes.
func (lb *LookupBuilder[T]) Within(threshold int) *LookupBuilder[T] {
	lb.threshold = threshold
	return lb
}

// Metric sets the distance function used to verify candidates.
// Default: distance.Levenshtein.
func (lb *LookupBuilder[T]) Metric(fn distance.Func) *LookupBuilder[T] {
	lb.fn = fn
	return lb
}

// Exact restricts the lookup to records stored under exactly the query key.
// This skips distance computation entirely; Within and Metric are ignored.
func (lb *LookupBuilder[T]) Exact() *LookupBuilder[T] {
	lb.exact = true
	return lb
}

// SortByDistance orders results by ascending distance, ties broken by id.
// Without it, result order is unspecified.
func (lb *LookupBuilder[T]) SortByDistance() *LookupBuilder[T] {
	lb.sorted = true
	return lb
}

// Limit caps the number of returned results. Applied after sorting, so
// combined with SortByDistance it yields the n closest matches.
func (lb *LookupBuilder[T]) Limit(n int) *LookupBuilder[T] {
	lb.limit = n
	return lb
}

// Execute runs the lookup and returns the results.
func (lb *LookupBuilder[T]) Execute(ctx context.Context) ([]Match[T], error) {
	var (
		matches []Match[T]
		err     error
	)
	if lb.exact {
		matches, err = lb.fg.ExactLookup(ctx, lb.query)
	} else {
		matches, err = lb.fg.FuzzyLookup(ctx, lb.query, lb.threshold, lb.fn)
	}
	if err != nil {
		return nil, err
	}

	if lb.sorted {
		sort.Slice(matches, func(i, j int) bool {
			if matches[i].Distance != matches[j].Distance {
				return matches[i].Distance < matches[j].Distance
			}
			return matches[i].ID < matches[j].ID
		})
	}
	if lb.limit > 0 && len(matches) > lb.limit {
		matches = matches[:lb.limit]
	}
	return matches, nil
}

// MustExecute runs the lookup, panicking on error.
// Use this only in tests or when you're certain the query is valid.
func (lb *LookupBuilder[T]) MustExecute(ctx context.Context) []Match[T] {
	matches, err := lb.Execute(ctx)
	if err != nil {
		panic(err)
	}
	return matches
}

// First returns only the closest match, or ErrNotFound if none matched.
func (lb *LookupBuilder[T]) First(ctx context.Context) (Match[T], error) {
	lb.sorted = true
	matches, err := lb.Execute(ctx)
	if err != nil {
		return Match[T]{}, err
	}
	if len(matches) == 0 {
		return Match[T]{}, ErrNotFound
	}
	return matches[0], nil
}

// Count executes the lookup and returns the number of results.
func (lb *LookupBuilder[T]) Count(ctx context.Context) (int, error) {
	matches, err := lb.Execute(ctx)
	if err != nil {
		return 0, err
	}
	return len(matches), nil
}

// Exists checks if at least one record matches the lookup.
func (lb *LookupBuilder[T]) Exists(ctx context.Context) (bool, error) {
	matches, err := lb.Execute(ctx)
	if err != nil {
		return false, err
	}
	return len(matches) > 0, nil
}
