package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrBatchExecuted is returned when a batch id has already been claimed.
// A proposed batch is executed at most once; a double submit from the UI
// lands here instead of mutating data twice.
var ErrBatchExecuted = errors.New("batch already executed")

// ClaimBatch inserts the idempotence ledger row for a batch before any of its
// operations run. A second claim on the same id fails with ErrBatchExecuted.
func (s *Store) ClaimBatch(ctx context.Context, id, conversationID, userID, summary string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO executed_batches (id, conversation_id, user_id, summary)
		VALUES (?, ?, ?, ?)`,
		id, conversationID, userID, summary)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrBatchExecuted
		}
		return fmt.Errorf("failed to claim batch: %w", err)
	}
	return nil
}

// SetBatchReport stores the serialized execution report on a claimed batch
func (s *Store) SetBatchReport(ctx context.Context, id, report string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE executed_batches SET report = ? WHERE id = ?`, report, id)
	return err
}

// GetExecutedBatch returns the ledger row for a batch id
func (s *Store) GetExecutedBatch(ctx context.Context, id string) (ExecutedBatch, error) {
	var b ExecutedBatch
	var executedAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, conversation_id, user_id, summary, report, executed_at
		FROM executed_batches WHERE id = ?`, id).
		Scan(&b.ID, &b.ConversationID, &b.UserID, &b.Summary, &b.Report, &executedAt)
	if err != nil {
		return ExecutedBatch{}, err
	}
	b.ExecutedAt = time.Unix(executedAt, 0).UTC()
	return b, nil
}
