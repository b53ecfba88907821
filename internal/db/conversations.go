package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const conversationColumns = `id, user_id, scope, project_id, mode, message_count,
	conversation_summary, summarized_count, last_summarized_at, created_at, updated_at`

func scanConversation(row interface{ Scan(...any) error }) (Conversation, error) {
	var c Conversation
	var lastSummarized sql.NullInt64
	var createdAt, updatedAt int64
	err := row.Scan(&c.ID, &c.UserID, &c.Scope, &c.ProjectID, &c.Mode, &c.MessageCount,
		&c.Summary, &c.SummarizedCount, &lastSummarized, &createdAt, &updatedAt)
	if err != nil {
		return Conversation{}, err
	}
	c.LastSummarizedAt = unixPtr(lastSummarized)
	c.CreatedAt = time.Unix(createdAt, 0).UTC()
	c.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return c, nil
}

// GetOrCreateConversation returns the single conversation for a
// (user, scope, project) tuple, creating it lazily on first use.
func (s *Store) GetOrCreateConversation(ctx context.Context, userID, scope, projectID string) (Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations
		 WHERE user_id = ? AND scope = ? AND project_id = ?`,
		userID, scope, projectID)
	c, err := scanConversation(row)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Conversation{}, err
	}

	id := uuid.New().String()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, user_id, scope, project_id)
		VALUES (?, ?, ?, ?)`,
		id, userID, scope, projectID)
	if err != nil {
		return Conversation{}, fmt.Errorf("failed to create conversation: %w", err)
	}
	return s.GetConversationByID(ctx, id)
}

// GetConversation returns a conversation owned by the given user
func (s *Store) GetConversation(ctx context.Context, userID, id string) (Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = ? AND user_id = ?`,
		id, userID)
	return scanConversation(row)
}

// GetConversationByID returns a conversation without a user predicate.
// Only for internal callers that already hold an authorized id.
func (s *Store) GetConversationByID(ctx context.Context, id string) (Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, id)
	return scanConversation(row)
}

// AppendConversationMessage writes a message and increments the parent
// conversation's message_count in the same transaction. The counter is the
// source of truth for the summarization boundary, so it must never drift from
// the live row count.
func (s *Store) AppendConversationMessage(ctx context.Context, conversationID, role, content, metadata string) (ConversationMessage, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ConversationMessage{}, err
	}
	defer tx.Rollback()

	id := uuid.New().String()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO conversation_messages (id, conversation_id, role, content, metadata)
		VALUES (?, ?, ?, ?, ?)`,
		id, conversationID, role, content, metadata)
	if err != nil {
		return ConversationMessage{}, fmt.Errorf("failed to append message: %w", err)
	}
	seq, _ := res.LastInsertId()

	_, err = tx.ExecContext(ctx, `
		UPDATE conversations
		SET message_count = message_count + 1, updated_at = unixepoch()
		WHERE id = ?`, conversationID)
	if err != nil {
		return ConversationMessage{}, fmt.Errorf("failed to bump message count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return ConversationMessage{}, err
	}

	return ConversationMessage{
		Seq:            seq,
		ID:             id,
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Metadata:       metadata,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

func scanMessages(rows *sql.Rows) ([]ConversationMessage, error) {
	var msgs []ConversationMessage
	for rows.Next() {
		var m ConversationMessage
		var createdAt int64
		if err := rows.Scan(&m.Seq, &m.ID, &m.ConversationID, &m.Role, &m.Content,
			&m.Metadata, &createdAt); err != nil {
			return nil, err
		}
		m.CreatedAt = time.Unix(createdAt, 0).UTC()
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// RecentMessages returns the last n messages of a conversation in
// chronological order.
func (s *Store) RecentMessages(ctx context.Context, conversationID string, n int) ([]ConversationMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, conversation_id, role, content, metadata, created_at
		FROM (
			SELECT seq, id, conversation_id, role, content, metadata, created_at
			FROM conversation_messages
			WHERE conversation_id = ?
			ORDER BY seq DESC LIMIT ?
		) ORDER BY seq ASC`, conversationID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// MessagesAfter returns up to limit messages starting at the given
// zero-based position in the conversation's total order. Used by the
// summarizer to read exactly the span between the old boundary and the new.
func (s *Store) MessagesAfter(ctx context.Context, conversationID string, position, limit int64) ([]ConversationMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, conversation_id, role, content, metadata, created_at
		FROM conversation_messages
		WHERE conversation_id = ?
		ORDER BY seq ASC LIMIT ? OFFSET ?`, conversationID, limit, position)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// CountConversationMessages counts the live message rows. Only used by tests
// to verify the counter invariant; production code reads message_count.
func (s *Store) CountConversationMessages(ctx context.Context, conversationID string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conversation_messages WHERE conversation_id = ?`,
		conversationID).Scan(&n)
	return n, err
}

// UpdateConversationSummary replaces the rolling summary and records the new
// summarization boundary.
func (s *Store) UpdateConversationSummary(ctx context.Context, conversationID, summary string, summarizedCount int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE conversations
		SET conversation_summary = ?, summarized_count = ?, last_summarized_at = unixepoch()
		WHERE id = ?`, summary, summarizedCount, conversationID)
	return err
}

// ConversationsNeedingSummary returns conversations whose unsummarized backlog
// has outgrown the recent window.
func (s *Store) ConversationsNeedingSummary(ctx context.Context, window int64) ([]Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations
		 WHERE message_count - summarized_count > ?`, window)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// ListConversations returns all conversations for the user
func (s *Store) ListConversations(ctx context.Context, userID string) ([]Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations
		 WHERE user_id = ? ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// DeleteConversation removes a conversation and, via the foreign key cascade,
// all of its messages. This is the explicit user-initiated wipe; nothing else
// hard-deletes conversations.
func (s *Store) DeleteConversation(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM conversations WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
