package aichat

import (
	"context"
	"fmt"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/andrewkylim/chatkin-chat-sub002/internal/chat"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/svc"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/types"
)

type ChatLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewChatLogic(ctx context.Context, svcCtx *svc.ServiceContext) *ChatLogic {
	return &ChatLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// Chat runs one dialogue turn and maps the outcome onto the wire
func (l *ChatLogic) Chat(userID string, req *types.ChatRequest) (*types.ChatResponse, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, fmt.Errorf("%w: message is required", chat.ErrInvalidRequest)
	}
	scope, projectID := req.Scope, req.ProjectId
	if req.Context != nil {
		scope, projectID = req.Context.Scope, req.Context.ProjectId
	}
	if scope == "" {
		scope = "global"
	}

	outcome, conv, err := l.svcCtx.Engine.Converse(l.ctx, chat.ConverseRequest{
		UserID:    userID,
		Scope:     scope,
		ProjectID: projectID,
		Message:   message,
	})
	if err != nil {
		l.Errorf("chat turn failed (user %s scope %s): %v", userID, scope, err)
		return nil, err
	}

	resp := &types.ChatResponse{
		Type:           string(outcome.Type),
		ConversationId: conv.ID,
	}
	switch outcome.Type {
	case chat.OutcomeMessage:
		resp.Message = outcome.Message
	case chat.OutcomeQuestions:
		for _, q := range outcome.Questions {
			resp.Questions = append(resp.Questions, types.QuestionItem{
				Question: q.Question,
				Options:  q.Options,
			})
		}
	case chat.OutcomeBatch:
		resp.ToolUseId = outcome.Batch.ToolUseID
		resp.Summary = outcome.Batch.Summary
		for _, op := range outcome.Batch.Operations {
			resp.Actions = append(resp.Actions, types.OperationItem{
				Operation: op.Operation,
				Entity:    op.Entity,
				Id:        op.ID,
				Data:      op.Data,
				Changes:   op.Changes,
				Reason:    op.Reason,
			})
		}
	}
	return resp, nil
}
