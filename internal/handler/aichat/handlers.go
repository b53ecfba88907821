package aichat

import (
	"errors"
	"net/http"
	"strings"

	"github.com/andrewkylim/chatkin-chat-sub002/internal/ai"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/chat"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/httputil"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/logic/aichat"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/middleware"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/svc"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/types"
)

// ChatHandler runs one dialogue turn
func ChatHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserID(r.Context())
		if !ok {
			httputil.Unauthorized(w, "")
			return
		}

		var req types.ChatRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			httputil.BadRequest(w, "message is required")
			return
		}

		resp, err := aichat.NewChatLogic(r.Context(), svcCtx).Chat(userID, &req)
		if err != nil {
			switch {
			case errors.Is(err, chat.ErrInvalidRequest):
				httputil.BadRequest(w, err.Error())
			case ai.IsRateLimitOrAuth(err):
				httputil.ErrorWithCode(w, http.StatusServiceUnavailable, "assistant is unavailable, try again shortly")
			default:
				httputil.InternalError(w, "chat turn failed")
			}
			return
		}
		httputil.OkJSON(w, resp)
	}
}

// ConfirmHandler executes a user-approved action batch
func ConfirmHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserID(r.Context())
		if !ok {
			httputil.Unauthorized(w, "")
			return
		}

		var req types.ConfirmRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		resp, err := aichat.NewConfirmLogic(r.Context(), svcCtx).Confirm(userID, &req)
		if err != nil {
			if errors.Is(err, aichat.ErrAlreadyExecuted) {
				httputil.Conflict(w, err.Error())
				return
			}
			httputil.Error(w, err)
			return
		}
		httputil.OkJSON(w, resp)
	}
}
