package conversations

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/andrewkylim/chatkin-chat-sub002/internal/db"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/httputil"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/middleware"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/svc"
)

// ListConversationsHandler returns the user's conversations
func ListConversationsHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserID(r.Context())
		if !ok {
			httputil.Unauthorized(w, "")
			return
		}

		convs, err := svcCtx.Store.ListConversations(r.Context(), userID)
		if err != nil {
			logx.Errorf("list conversations: %v", err)
			httputil.InternalError(w, "failed to list conversations")
			return
		}
		if convs == nil {
			convs = []db.Conversation{}
		}
		httputil.OkJSON(w, convs)
	}
}

// GetConversationHandler returns one conversation by id
func GetConversationHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserID(r.Context())
		if !ok {
			httputil.Unauthorized(w, "")
			return
		}

		conv, err := svcCtx.Store.GetConversation(r.Context(), userID, httputil.PathVar(r, "id"))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				httputil.NotFound(w, "conversation not found")
				return
			}
			logx.Errorf("get conversation: %v", err)
			httputil.InternalError(w, "failed to get conversation")
			return
		}
		httputil.OkJSON(w, conv)
	}
}

// ListMessagesHandler returns the trailing messages of a conversation
func ListMessagesHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserID(r.Context())
		if !ok {
			httputil.Unauthorized(w, "")
			return
		}

		id := httputil.PathVar(r, "id")
		// Ownership check before reading messages
		if _, err := svcCtx.Store.GetConversation(r.Context(), userID, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				httputil.NotFound(w, "conversation not found")
				return
			}
			logx.Errorf("get conversation: %v", err)
			httputil.InternalError(w, "failed to get conversation")
			return
		}

		limit := httputil.QueryInt(r, "limit", 100)
		if limit <= 0 || limit > 500 {
			limit = 100
		}
		msgs, err := svcCtx.Store.RecentMessages(r.Context(), id, limit)
		if err != nil {
			logx.Errorf("list messages: %v", err)
			httputil.InternalError(w, "failed to list messages")
			return
		}
		if msgs == nil {
			msgs = []db.ConversationMessage{}
		}
		httputil.OkJSON(w, msgs)
	}
}

// DeleteConversationHandler wipes a conversation and its messages
func DeleteConversationHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserID(r.Context())
		if !ok {
			httputil.Unauthorized(w, "")
			return
		}

		if err := svcCtx.Store.DeleteConversation(r.Context(), userID, httputil.PathVar(r, "id")); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				httputil.NotFound(w, "conversation not found")
				return
			}
			logx.Errorf("delete conversation: %v", err)
			httputil.InternalError(w, "failed to delete conversation")
			return
		}
		httputil.OkJSON(w, map[string]bool{"deleted": true})
	}
}
