package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const noteColumns = `id, user_id, project_id, title, content, created_at, updated_at`

func scanNote(row interface{ Scan(...any) error }) (Note, error) {
	var n Note
	var projectID sql.NullString
	var createdAt, updatedAt int64
	err := row.Scan(&n.ID, &n.UserID, &projectID, &n.Title, &n.Content, &createdAt, &updatedAt)
	if err != nil {
		return Note{}, err
	}
	n.ProjectID = projectID.String
	n.CreatedAt = time.Unix(createdAt, 0).UTC()
	n.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return n, nil
}

// CreateNote inserts a note. ID is filled in when empty.
func (s *Store) CreateNote(ctx context.Context, n *Note) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notes (id, user_id, project_id, title, content)
		VALUES (?, ?, ?, ?, ?)`,
		n.ID, n.UserID, nullString(n.ProjectID), n.Title, n.Content)
	if err != nil {
		return fmt.Errorf("failed to create note: %w", err)
	}
	return nil
}

// GetNote returns a note owned by the given user
func (s *Store) GetNote(ctx context.Context, userID, id string) (Note, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE id = ? AND user_id = ?`, id, userID)
	return scanNote(row)
}

// ListNotes returns the user's notes, newest first
func (s *Store) ListNotes(ctx context.Context, userID, projectID string, limit, offset int) ([]Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE user_id = ?`
	args := []any{userID}
	if projectID != "" {
		query += ` AND project_id = ?`
		args = append(args, projectID)
	}
	query += ` ORDER BY updated_at DESC, id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
		if offset > 0 {
			query += ` OFFSET ?`
			args = append(args, offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// NoteUpdate is a partial update; nil fields are left untouched.
type NoteUpdate struct {
	Title     *string
	Content   *string
	ProjectID *string
}

// UpdateNote applies a partial update to a note owned by the given user.
// Returns sql.ErrNoRows when the id does not resolve to a note of that user.
func (s *Store) UpdateNote(ctx context.Context, userID, id string, u NoteUpdate) (Note, error) {
	sets := []string{"updated_at = unixepoch()"}
	var args []any
	if u.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *u.Title)
	}
	if u.Content != nil {
		sets = append(sets, "content = ?")
		args = append(args, *u.Content)
	}
	if u.ProjectID != nil {
		sets = append(sets, "project_id = ?")
		args = append(args, nullString(*u.ProjectID))
	}

	args = append(args, id, userID)
	res, err := s.db.ExecContext(ctx,
		`UPDATE notes SET `+strings.Join(sets, ", ")+` WHERE id = ? AND user_id = ?`, args...)
	if err != nil {
		return Note{}, fmt.Errorf("failed to update note: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Note{}, sql.ErrNoRows
	}
	return s.GetNote(ctx, userID, id)
}

// DeleteNote removes a note owned by the given user.
// Returns sql.ErrNoRows when nothing was deleted.
func (s *Store) DeleteNote(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM notes WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
