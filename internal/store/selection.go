// ABOUTME: Per-user selection persistence: current project, pinned and recent projects.
// ABOUTME: Recent projects are capped at RecentLimit, most recent first.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// RecentLimit caps the recent projects list of each user.
const RecentLimit = 10

// CurrentProject returns the user's current project id, or 0 when none is set.
func (s *Store) CurrentProject(ctx context.Context, userID string) (int64, error) {
	var id sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT current_project_id FROM user_preferences WHERE user_id = ?", userID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return id.Int64, nil
}

// SetCurrentProject selects a project for the user and moves it to the front
// of the recent list. projectID 0 clears the selection.
func (s *Store) SetCurrentProject(ctx context.Context, userID string, projectID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var current any
	if projectID != 0 {
		var exists int
		err := tx.QueryRowContext(ctx, "SELECT 1 FROM projects WHERE id = ?", projectID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("project %d: %w", projectID, ErrNotFound)
		}
		if err != nil {
			return err
		}
		current = projectID
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_preferences (user_id, current_project_id, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET
			current_project_id = excluded.current_project_id,
			updated_at = CURRENT_TIMESTAMP
	`, userID, current)
	if err != nil {
		return err
	}

	if projectID != 0 {
		if err := touchRecent(ctx, tx, userID, projectID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func touchRecent(ctx context.Context, tx *sql.Tx, userID string, projectID int64) error {
	var next int64
	err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) + 1 FROM recent_projects WHERE user_id = ?", userID).Scan(&next)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO recent_projects (user_id, project_id, seq) VALUES (?, ?, ?)
		ON CONFLICT(user_id, project_id) DO UPDATE SET seq = excluded.seq
	`, userID, projectID, next)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM recent_projects
		WHERE user_id = ? AND project_id NOT IN (
			SELECT project_id FROM recent_projects WHERE user_id = ? ORDER BY seq DESC LIMIT ?
		)
	`, userID, userID, RecentLimit)
	return err
}

// RecentProjects returns the user's recently selected project ids, most recent first.
func (s *Store) RecentProjects(ctx context.Context, userID string) ([]int64, error) {
	return s.projectIDs(ctx,
		"SELECT project_id FROM recent_projects WHERE user_id = ? ORDER BY seq DESC", userID)
}

// PinnedProjects returns the user's pinned project ids in pin order.
func (s *Store) PinnedProjects(ctx context.Context, userID string) ([]int64, error) {
	return s.projectIDs(ctx,
		"SELECT project_id FROM pinned_projects WHERE user_id = ? ORDER BY pinned_at ASC, rowid ASC", userID)
}

// PinProject pins a project for the user. Pinning twice is a no-op.
func (s *Store) PinProject(ctx context.Context, userID string, projectID int64) error {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO pinned_projects (user_id, project_id) VALUES (?, ?)", userID, projectID)
	return err
}

// UnpinProject removes a pin. Removing a missing pin is a no-op.
func (s *Store) UnpinProject(ctx context.Context, userID string, projectID int64) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM pinned_projects WHERE user_id = ? AND project_id = ?", userID, projectID)
	return err
}

func (s *Store) projectIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
