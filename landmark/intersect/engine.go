// Package intersect compares landmark sets across the tasks of a store.
package intersect

import (
	"context"
	"fmt"

	"github.com/example/landmark-lite/landmark/domain"
	"github.com/example/landmark-lite/landmark/store"
)

// Matrix is the pairwise intersection table of a store.
// Row and column k correspond to IDs[k], which follows store order.
type Matrix struct {
	IDs   []domain.TaskID
	Cells [][]domain.LandmarkSet
}

// Size returns the number of rows (and columns).
func (m *Matrix) Size() int {
	return len(m.IDs)
}

// Cell returns the intersection of the landmark sets of tasks i and j.
func (m *Matrix) Cell(i, j int) (domain.LandmarkSet, error) {
	if i < 0 || i >= len(m.IDs) || j < 0 || j >= len(m.IDs) {
		return domain.LandmarkSet{}, fmt.Errorf("%w: cell (%d, %d) of %dx%d matrix",
			domain.ErrInvalidArgument, i, j, len(m.IDs), len(m.IDs))
	}
	return m.Cells[i][j], nil
}

// Index returns the row index of a task, or -1.
func (m *Matrix) Index(id domain.TaskID) int {
	for i, x := range m.IDs {
		if x == id {
			return i
		}
	}
	return -1
}

// Row returns the intersections of a task with every task in order.
func (m *Matrix) Row(id domain.TaskID) ([]domain.LandmarkSet, error) {
	i := m.Index(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return m.Cells[i], nil
}

// Sizes returns the cardinality of every cell.
func (m *Matrix) Sizes() [][]int {
	out := make([][]int, len(m.Cells))
	for i, row := range m.Cells {
		out[i] = make([]int, len(row))
		for j, cell := range row {
			out[i][j] = cell.Len()
		}
	}
	return out
}

// PairwiseTable intersects every pair of landmark sets in the store.
// Only the upper triangle is computed; the lower one is mirrored since
// intersection is symmetric. The diagonal holds each set itself.
func PairwiseTable(ctx context.Context, s store.Store) (*Matrix, error) {
	entries, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return Build(entries), nil
}

// Build computes the pairwise table for the given entries.
func Build(entries []store.Entry) *Matrix {
	n := len(entries)
	m := &Matrix{
		IDs:   store.IDs(entries),
		Cells: make([][]domain.LandmarkSet, n),
	}
	for i := range m.Cells {
		m.Cells[i] = make([]domain.LandmarkSet, n)
	}
	for i := 0; i < n; i++ {
		m.Cells[i][i] = entries[i].Landmarks
		for j := i + 1; j < n; j++ {
			cell := entries[i].Landmarks.Intersect(entries[j].Landmarks)
			m.Cells[i][j] = cell
			m.Cells[j][i] = cell
		}
	}
	return m
}

// GlobalIntersection returns the landmarks shared by every task in the
// store, or domain.ErrEmptyStore when the store is empty.
func GlobalIntersection(ctx context.Context, s store.Store) (domain.LandmarkSet, error) {
	return s.IntersectAll(ctx)
}

// Intersection returns the landmarks shared by the named tasks. With no
// ids it is the global intersection.
func Intersection(ctx context.Context, s store.Store, ids ...domain.TaskID) (domain.LandmarkSet, error) {
	if len(ids) == 0 {
		return GlobalIntersection(ctx, s)
	}
	sets := make([]domain.LandmarkSet, len(ids))
	for i, id := range ids {
		set, err := s.Get(ctx, id)
		if err != nil {
			return domain.LandmarkSet{}, err
		}
		sets[i] = set
	}
	return domain.IntersectSets(sets...)
}
