package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

func scanProject(row interface{ Scan(...any) error }) (Project, error) {
	var p Project
	var createdAt, updatedAt int64
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.Color, &createdAt, &updatedAt)
	if err != nil {
		return Project{}, err
	}
	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	p.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return p, nil
}

// CreateProject inserts a project. ID is filled in when empty.
func (s *Store) CreateProject(ctx context.Context, p *Project) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, user_id, name, description, color)
		VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.Name, p.Description, p.Color)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

// GetProject returns a project owned by the given user
func (s *Store) GetProject(ctx context.Context, userID, id string) (Project, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, description, color, created_at, updated_at
		FROM projects WHERE id = ? AND user_id = ?`, id, userID)
	return scanProject(row)
}

// GetProjects returns all projects for the user with aggregate task stats
func (s *Store) GetProjects(ctx context.Context, userID string) ([]ProjectStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.user_id, p.name, p.description, p.color, p.created_at, p.updated_at,
			COUNT(t.id),
			COALESCE(SUM(CASE WHEN t.status = 'done' THEN 1 ELSE 0 END), 0)
		FROM projects p
		LEFT JOIN tasks t ON t.project_id = p.id
		WHERE p.user_id = ?
		GROUP BY p.id
		ORDER BY p.created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []ProjectStats
	for rows.Next() {
		var ps ProjectStats
		var createdAt, updatedAt int64
		if err := rows.Scan(&ps.ID, &ps.UserID, &ps.Name, &ps.Description, &ps.Color,
			&createdAt, &updatedAt, &ps.TaskCount, &ps.DoneCount); err != nil {
			return nil, err
		}
		ps.CreatedAt = time.Unix(createdAt, 0).UTC()
		ps.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		projects = append(projects, ps)
	}
	return projects, rows.Err()
}

// ProjectUpdate is a partial update; nil fields are left untouched.
type ProjectUpdate struct {
	Name        *string
	Description *string
	Color       *string
}

// UpdateProject applies a partial update to a project owned by the given user.
// Returns sql.ErrNoRows when the id does not resolve to a project of that user.
func (s *Store) UpdateProject(ctx context.Context, userID, id string, u ProjectUpdate) (Project, error) {
	sets := []string{"updated_at = unixepoch()"}
	var args []any
	if u.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *u.Name)
	}
	if u.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *u.Description)
	}
	if u.Color != nil {
		sets = append(sets, "color = ?")
		args = append(args, *u.Color)
	}

	args = append(args, id, userID)
	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET `+strings.Join(sets, ", ")+` WHERE id = ? AND user_id = ?`, args...)
	if err != nil {
		return Project{}, fmt.Errorf("failed to update project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Project{}, sql.ErrNoRows
	}
	return s.GetProject(ctx, userID, id)
}

// DeleteProject removes a project owned by the given user.
// Tasks and notes that referenced it keep existing with project_id cleared.
func (s *Store) DeleteProject(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM projects WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
