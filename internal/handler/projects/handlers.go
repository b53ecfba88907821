package projects

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

// ListProjectsHandler returns the user's projects with task counts
func ListProjectsHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserID(r.Context())
		if !ok {
			httputil.Unauthorized(w, "")
			return
		}

		projects, err := svcCtx.Store.GetProjects(r.Context(), userID)
		if err != nil {
			logx.Errorf("list projects: %v", err)
			httputil.InternalError(w, "failed to list projects")
			return
		}
		if projects == nil {
			projects = []db.ProjectStats{}
		}
		httputil.OkJSON(w, projects)
	}
}

// GetProjectHandler returns one project by id
func GetProjectHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserID(r.Context())
		if !ok {
			httputil.Unauthorized(w, "")
			return
		}

		project, err := svcCtx.Store.GetProject(r.Context(), userID, httputil.PathVar(r, "id"))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				httputil.NotFound(w, "project not found")
				return
			}
			logx.Errorf("get project: %v", err)
			httputil.InternalError(w, "failed to get project")
			return
		}
		httputil.OkJSON(w, project)
	}
}

// CreateProjectHandler creates a project
func CreateProjectHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserID(r.Context())
		if !ok {
			httputil.Unauthorized(w, "")
			return
		}

		var req types.CreateProjectRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			httputil.BadRequest(w, "name is required")
			return
		}

		project := db.Project{
			UserID:      userID,
			Name:        req.Name,
			Description: req.Description,
			Color:       req.Color,
		}
		if err := svcCtx.Store.CreateProject(r.Context(), &project); err != nil {
			logx.Errorf("create project: %v", err)
			httputil.InternalError(w, "failed to create project")
			return
		}
		httputil.WriteJSON(w, http.StatusCreated, project)
	}
}

// UpdateProjectHandler applies a partial update to a project
func UpdateProjectHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserID(r.Context())
		if !ok {
			httputil.Unauthorized(w, "")
			return
		}

		var req types.UpdateProjectRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		project, err := svcCtx.Store.UpdateProject(r.Context(), userID, req.Id, db.ProjectUpdate{
			Name:        req.Name,
			Description: req.Description,
			Color:       req.Color,
		})
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				httputil.NotFound(w, "project not found")
				return
			}
			logx.Errorf("update project: %v", err)
			httputil.InternalError(w, "failed to update project")
			return
		}
		httputil.OkJSON(w, project)
	}
}

// DeleteProjectHandler removes a project. Tasks and notes in the project are
// detached, not deleted.
func DeleteProjectHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserID(r.Context())
		if !ok {
			httputil.Unauthorized(w, "")
			return
		}

		if err := svcCtx.Store.DeleteProject(r.Context(), userID, httputil.PathVar(r, "id")); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				httputil.NotFound(w, "project not found")
				return
			}
			logx.Errorf("delete project: %v", err)
			httputil.InternalError(w, "failed to delete project")
			return
		}
		httputil.OkJSON(w, map[string]bool{"deleted": true})
	}
}
