package notes

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/andrewkylim/chatkin-chat-sub002/internal/db"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/httputil"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/middleware"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/svc"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/types"
)

// ListNotesHandler returns the user's notes
func ListNotesHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserID(r.Context())
		if !ok {
			httputil.Unauthorized(w, "")
			return
		}

		var req types.ListNotesRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}
		if req.Limit <= 0 || req.Limit > 200 {
			req.Limit = 100
		}

		notes, err := svcCtx.Store.ListNotes(r.Context(), userID, req.ProjectId, req.Limit, req.Offset)
		if err != nil {
			logx.Errorf("list notes: %v", err)
			httputil.InternalError(w, "failed to list notes")
			return
		}
		if notes == nil {
			notes = []db.Note{}
		}
		httputil.OkJSON(w, notes)
	}
}

// GetNoteHandler returns one note by id
func GetNoteHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserID(r.Context())
		if !ok {
			httputil.Unauthorized(w, "")
			return
		}

		note, err := svcCtx.Store.GetNote(r.Context(), userID, httputil.PathVar(r, "id"))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				httputil.NotFound(w, "note not found")
				return
			}
			logx.Errorf("get note: %v", err)
			httputil.InternalError(w, "failed to get note")
			return
		}
		httputil.OkJSON(w, note)
	}
}

// CreateNoteHandler creates a note
func CreateNoteHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserID(r.Context())
		if !ok {
			httputil.Unauthorized(w, "")
			return
		}

		var req types.CreateNoteRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}
		if strings.TrimSpace(req.Title) == "" {
			httputil.BadRequest(w, "title is required")
			return
		}

		note := db.Note{
			UserID:    userID,
			Title:     req.Title,
			Content:   req.Content,
			ProjectID: req.ProjectId,
		}
		if err := svcCtx.Store.CreateNote(r.Context(), &note); err != nil {
			logx.Errorf("create note: %v", err)
			httputil.InternalError(w, "failed to create note")
			return
		}
		httputil.WriteJSON(w, http.StatusCreated, note)
	}
}

// UpdateNoteHandler applies a partial update to a note
func UpdateNoteHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserID(r.Context())
		if !ok {
			httputil.Unauthorized(w, "")
			return
		}

		var req types.UpdateNoteRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		note, err := svcCtx.Store.UpdateNote(r.Context(), userID, req.Id, db.NoteUpdate{
			Title:     req.Title,
			Content:   req.Content,
			ProjectID: req.ProjectId,
		})
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				httputil.NotFound(w, "note not found")
				return
			}
			logx.Errorf("update note: %v", err)
			httputil.InternalError(w, "failed to update note")
			return
		}
		httputil.OkJSON(w, note)
	}
}

// DeleteNoteHandler removes a note
func DeleteNoteHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserID(r.Context())
		if !ok {
			httputil.Unauthorized(w, "")
			return
		}

		if err := svcCtx.Store.DeleteNote(r.Context(), userID, httputil.PathVar(r, "id")); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				httputil.NotFound(w, "note not found")
				return
			}
			logx.Errorf("delete note: %v", err)
			httputil.InternalError(w, "failed to delete note")
			return
		}
		httputil.OkJSON(w, map[string]bool{"deleted": true})
	}
}
