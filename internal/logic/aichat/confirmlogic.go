package aichat

import (
	"context"
	"errors"
	"fmt"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/andrewkylim/chatkin-chat-sub002/internal/chat"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/db"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/svc"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/types"
)

// ErrAlreadyExecuted is surfaced when a batch id is confirmed twice
var ErrAlreadyExecuted = errors.New("this action batch was already executed")

type ConfirmLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewConfirmLogic(ctx context.Context, svcCtx *svc.ServiceContext) *ConfirmLogic {
	return &ConfirmLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// Confirm executes a user-approved operation batch. The batch content comes
// back from the client exactly as proposed; the tool_use_id makes replays a
// no-op rather than a double mutation.
func (l *ConfirmLogic) Confirm(userID string, req *types.ConfirmRequest) (*types.ConfirmResponse, error) {
	if req.ToolUseId == "" {
		return nil, fmt.Errorf("tool_use_id is required")
	}
	if len(req.Operations) == 0 {
		return nil, fmt.Errorf("operations are required")
	}

	scope := req.Scope
	if scope == "" {
		scope = "global"
	}
	conv, err := l.svcCtx.History.GetOrCreate(l.ctx, userID, scope, req.ProjectId)
	if err != nil {
		return nil, err
	}

	batch := &chat.ProposedBatch{
		ToolUseID: req.ToolUseId,
		Summary:   req.Summary,
	}
	for _, op := range req.Operations {
		batch.Operations = append(batch.Operations, chat.ProposedOperation{
			Operation: op.Operation,
			Entity:    op.Entity,
			ID:        op.Id,
			Data:      op.Data,
			Changes:   op.Changes,
			Reason:    op.Reason,
		})
	}

	report, err := l.svcCtx.Executor.Execute(l.ctx, userID, conv.ID, batch)
	if err != nil {
		if errors.Is(err, db.ErrBatchExecuted) {
			l.Infof("batch %s replayed (user %s)", req.ToolUseId, userID)
			if report != nil {
				resp := toConfirmResponse(batch, report)
				return resp, ErrAlreadyExecuted
			}
			return nil, ErrAlreadyExecuted
		}
		l.Errorf("batch %s failed (user %s): %v", req.ToolUseId, userID, err)
		return nil, err
	}

	return toConfirmResponse(batch, report), nil
}

func toConfirmResponse(batch *chat.ProposedBatch, report *chat.ExecutionReport) *types.ConfirmResponse {
	resp := &types.ConfirmResponse{
		Message:      chat.ConfirmationText(batch, report),
		CreatedCount: report.CreatedCount,
		UpdatedCount: report.UpdatedCount,
		DeletedCount: report.DeletedCount,
	}
	for _, f := range report.Failures {
		resp.Failures = append(resp.Failures, types.OperationFailureItem{
			Index:     f.Index,
			Operation: f.Operation,
			Entity:    f.Entity,
			Id:        f.ID,
			Error:     f.Error,
		})
	}
	return resp
}
