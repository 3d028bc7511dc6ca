// Package util holds small generic helpers shared across packages.
package util

import (
	"cmp"
	"maps"
	"slices"
)

// SortedKeys returns the keys of m in ascending order.
func SortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	return slices.Sorted(maps.Keys(m))
}

// Set is an unordered collection of distinct values. The zero value is
// ready to use. It is not safe for concurrent use.
type Set[T cmp.Ordered] struct {
	m map[T]struct{}
}

// NewSet creates a set holding values.
func NewSet[T cmp.Ordered](values ...T) *Set[T] {
	s := &Set[T]{}
	s.AddAll(values)
	return s
}

// Add inserts v and reports whether it was new.
func (s *Set[T]) Add(v T) bool {
	if s.m == nil {
		s.m = make(map[T]struct{})
	}
	if _, ok := s.m[v]; ok {
		return false
	}
	s.m[v] = struct{}{}
	return true
}

// AddAll inserts every value, skipping duplicates.
func (s *Set[T]) AddAll(values []T) {
	for _, v := range values {
		s.Add(v)
	}
}

// Contains reports whether v is in the set.
func (s *Set[T]) Contains(v T) bool {
	_, ok := s.m[v]
	return ok
}

// Remove deletes v from the set.
func (s *Set[T]) Remove(v T) {
	delete(s.m, v)
}

// Len returns the number of values.
func (s *Set[T]) Len() int {
	if s == nil {
		return 0
	}
	return len(s.m)
}

// Sorted returns the values in ascending order.
func (s *Set[T]) Sorted() []T {
	if s == nil || len(s.m) == 0 {
		return nil
	}
	return SortedKeys(s.m)
}
