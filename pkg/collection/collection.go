// Package collection holds the generic slice helpers behind the in-memory
// repositories.
//
//	live := collection.Filter(products, func(p models.Product) bool { return !p.IsDeleted })
//	page := collection.Paginate(live, 2, 12)
package collection

import (
	"slices"

	"github.com/shopspring/decimal"
)

func Map[T, R any](s []T, fn func(T) R) []R {
	out := make([]R, len(s))
	for i, v := range s {
		out[i] = fn(v)
	}
	return out
}

// Filter keeps the elements fn accepts. The result is never nil, so an
// empty match encodes as [] rather than null.
func Filter[T any](s []T, fn func(T) bool) []T {
	out := make([]T, 0, len(s))
	for _, v := range s {
		if fn(v) {
			out = append(out, v)
		}
	}
	return out
}

func First[T any](s []T, fn func(T) bool) (T, bool) {
	if i := slices.IndexFunc(s, fn); i >= 0 {
		return s[i], true
	}
	var zero T
	return zero, false
}

// SortBy stable-sorts s in place and returns it.
func SortBy[T any](s []T, less func(a, b T) bool) []T {
	slices.SortStableFunc(s, func(a, b T) int {
		switch {
		case less(a, b):
			return -1
		case less(b, a):
			return 1
		}
		return 0
	})
	return s
}

func CountBy[T any, K comparable](s []T, key func(T) K) map[K]int64 {
	out := make(map[K]int64)
	for _, v := range s {
		out[key(v)]++
	}
	return out
}

// KeyBy indexes s by key; on collisions the later element wins.
func KeyBy[T any, K comparable](s []T, key func(T) K) map[K]T {
	out := make(map[K]T, len(s))
	for _, v := range s {
		out[key(v)] = v
	}
	return out
}

// Sum adds money amounts in decimal and rounds the total to cents, so
// 0.1 + 0.2 comes out as 0.3.
func Sum[T any](s []T, amount func(T) float64) float64 {
	total := decimal.Zero
	for _, v := range s {
		total = total.Add(decimal.NewFromFloat(amount(v)))
	}
	f, _ := total.Round(2).Float64()
	return f
}

// Take returns at most the first n elements.
func Take[T any](s []T, n int) []T {
	return s[:max(0, min(n, len(s)))]
}

// Paginate returns page (1-based) of size items. size <= 0 returns all.
func Paginate[T any](s []T, page, size int) []T {
	if size <= 0 {
		return s
	}
	start := (max(page, 1) - 1) * size
	if start >= len(s) {
		return []T{}
	}
	return s[start:min(start+size, len(s))]
}
