package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/landmark-lite/landmark/domain"
	"github.com/example/landmark-lite/landmark/store"
)

// Put implements store.Store. Replacing a task's landmarks happens in one
// transaction, so readers see either the old set or the new one.
func (s *LandmarkStore) Put(ctx context.Context, id domain.TaskID, set domain.LandmarkSet) error {
	if id == "" {
		return fmt.Errorf("%w: empty task id", domain.ErrInvalidArgument)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO tasks (id, seq)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM tasks))
		ON CONFLICT(id) DO NOTHING
	`, string(id)); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM landmarks WHERE task_id = ?`, string(id)); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO landmarks (task_id, landmark) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, l := range set.Items() {
		if _, err := stmt.ExecContext(ctx, string(id), string(l)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Get implements store.Store.
func (s *LandmarkStore) Get(ctx context.Context, id domain.TaskID) (domain.LandmarkSet, error) {
	var seq int
	err := s.db.QueryRowContext(ctx, `SELECT seq FROM tasks WHERE id = ?`, string(id)).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.LandmarkSet{}, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return domain.LandmarkSet{}, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT landmark FROM landmarks WHERE task_id = ?`, string(id))
	if err != nil {
		return domain.LandmarkSet{}, err
	}
	return scanSet(rows)
}

// All implements store.Store.
func (s *LandmarkStore) All(ctx context.Context) ([]store.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, l.landmark
		FROM tasks t
		LEFT JOIN landmarks l ON l.task_id = t.id
		ORDER BY t.seq, l.landmark
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		entries []store.Entry
		current domain.TaskID
		items   []domain.Landmark
	)
	flush := func() {
		if current != "" {
			entries = append(entries, store.Entry{ID: current, Landmarks: domain.NewLandmarkSet(items...)})
		}
	}
	for rows.Next() {
		var id string
		var landmark sql.NullString
		if err := rows.Scan(&id, &landmark); err != nil {
			return nil, err
		}
		if domain.TaskID(id) != current {
			flush()
			current = domain.TaskID(id)
			items = nil
		}
		if landmark.Valid {
			items = append(items, domain.Landmark(landmark.String))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	flush()
	return entries, nil
}

// Len implements store.Store.
func (s *LandmarkStore) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// IntersectAll implements store.Store. A landmark belongs to the global
// intersection when every task lists it.
func (s *LandmarkStore) IntersectAll(ctx context.Context) (domain.LandmarkSet, error) {
	n, err := s.Len(ctx)
	if err != nil {
		return domain.LandmarkSet{}, err
	}
	if n == 0 {
		return domain.LandmarkSet{}, domain.ErrEmptyStore
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT landmark
		FROM landmarks
		GROUP BY landmark
		HAVING COUNT(DISTINCT task_id) = ?
	`, n)
	if err != nil {
		return domain.LandmarkSet{}, err
	}
	return scanSet(rows)
}

func scanSet(rows *sql.Rows) (domain.LandmarkSet, error) {
	defer rows.Close()
	var items []domain.Landmark
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return domain.LandmarkSet{}, err
		}
		items = append(items, domain.Landmark(l))
	}
	if err := rows.Err(); err != nil {
		return domain.LandmarkSet{}, err
	}
	return domain.NewLandmarkSet(items...), nil
}

var _ store.Store = (*LandmarkStore)(nil)
