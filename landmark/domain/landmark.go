package domain

import (
	"sort"
	"strings"
)

// Landmark is a fact or action that every valid plan for a task must satisfy.
// The solver decides its textual form, e.g. "(on a b)".
type Landmark string

// LandmarkSet is an immutable set of landmarks.
// The zero value is an empty set.
type LandmarkSet struct {
	items map[Landmark]struct{}
}

// NewLandmarkSet creates a set from the given landmarks. Duplicates are collapsed.
func NewLandmarkSet(items ...Landmark) LandmarkSet {
	m := make(map[Landmark]struct{}, len(items))
	for _, l := range items {
		m[l] = struct{}{}
	}
	return LandmarkSet{items: m}
}

// ParseLandmarks builds a set from strings, skipping blank entries.
func ParseLandmarks(items []string) LandmarkSet {
	m := make(map[Landmark]struct{}, len(items))
	for _, s := range items {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		m[Landmark(s)] = struct{}{}
	}
	return LandmarkSet{items: m}
}

// Len returns the number of landmarks in the set.
func (s LandmarkSet) Len() int {
	return len(s.items)
}

// Contains reports whether l is in the set.
func (s LandmarkSet) Contains(l Landmark) bool {
	_, ok := s.items[l]
	return ok
}

// Items returns the landmarks in sorted order.
func (s LandmarkSet) Items() []Landmark {
	out := make([]Landmark, 0, len(s.items))
	for l := range s.items {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Strings returns the landmarks as sorted strings.
func (s LandmarkSet) Strings() []string {
	items := s.Items()
	out := make([]string, len(items))
	for i, l := range items {
		out[i] = string(l)
	}
	return out
}

// Intersect returns the landmarks present in both sets.
func (s LandmarkSet) Intersect(other LandmarkSet) LandmarkSet {
	small, large := s.items, other.items
	if len(large) < len(small) {
		small, large = large, small
	}
	m := make(map[Landmark]struct{}, len(small))
	for l := range small {
		if _, ok := large[l]; ok {
			m[l] = struct{}{}
		}
	}
	return LandmarkSet{items: m}
}

// SubsetOf reports whether every landmark in s is also in other.
func (s LandmarkSet) SubsetOf(other LandmarkSet) bool {
	if len(s.items) > len(other.items) {
		return false
	}
	for l := range s.items {
		if _, ok := other.items[l]; !ok {
			return false
		}
	}
	return true
}

// Equal reports whether both sets contain the same landmarks.
func (s LandmarkSet) Equal(other LandmarkSet) bool {
	return len(s.items) == len(other.items) && s.SubsetOf(other)
}

func (s LandmarkSet) String() string {
	return "{" + strings.Join(s.Strings(), ", ") + "}"
}

// IntersectSets returns the landmarks common to every set.
// Intersecting zero sets is undefined and returns ErrEmptyStore.
func IntersectSets(sets ...LandmarkSet) (LandmarkSet, error) {
	if len(sets) == 0 {
		return LandmarkSet{}, ErrEmptyStore
	}
	result := sets[0]
	for _, s := range sets[1:] {
		result = result.Intersect(s)
	}
	return result, nil
}
