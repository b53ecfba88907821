package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/andrewkylim/chatkin-chat-sub002/internal/config"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/handler"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/handler/aichat"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/handler/conversations"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/handler/notes"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/handler/projects"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/handler/tasks"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/middleware"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/svc"
)

// ServerOptions holds optional dependencies for the server
type ServerOptions struct {
	SvcCtx *svc.ServiceContext // Pre-initialized service context
	Quiet  bool                // Suppress startup messages
}

// Run starts the server with the given configuration. It blocks until the
// context is cancelled or an error occurs.
func Run(ctx context.Context, c config.Config, opts ...ServerOptions) error {
	var o ServerOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	return run(ctx, c, o)
}

func run(ctx context.Context, c config.Config, opts ServerOptions) error {
	if err := checkPortAvailable(c.Port); err != nil {
		return fmt.Errorf("port %d is already in use", c.Port)
	}

	svcCtx := opts.SvcCtx
	if svcCtx == nil {
		var err error
		svcCtx, err = svc.NewServiceContext(c)
		if err != nil {
			return err
		}
		defer svcCtx.Close()
	}

	r := Router(svcCtx, opts.Quiet)

	addr := fmt.Sprintf("%s:%d", c.Host, c.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if !opts.Quiet {
		fmt.Printf("Starting server on http://%s\n", addr)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logx.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Router assembles the full route tree. Split out of run so tests can mount
// it on an httptest server.
func Router(svcCtx *svc.ServiceContext, quiet bool) chi.Router {
	r := chi.NewRouter()

	if !quiet {
		r.Use(chimw.Logger)
	}
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.Get("/health", handler.HealthCheckHandler(svcCtx))

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.JWT(svcCtx.Config.Auth.AccessSecret))

		r.Route("/ai", func(r chi.Router) {
			r.Post("/chat", aichat.ChatHandler(svcCtx))
			r.Post("/confirm", aichat.ConfirmHandler(svcCtx))
		})

		r.Route("/v1", func(r chi.Router) {
			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", tasks.ListTasksHandler(svcCtx))
				r.Post("/", tasks.CreateTaskHandler(svcCtx))
				r.Get("/{id}", tasks.GetTaskHandler(svcCtx))
				r.Patch("/{id}", tasks.UpdateTaskHandler(svcCtx))
				r.Delete("/{id}", tasks.DeleteTaskHandler(svcCtx))
			})

			r.Route("/notes", func(r chi.Router) {
				r.Get("/", notes.ListNotesHandler(svcCtx))
				r.Post("/", notes.CreateNoteHandler(svcCtx))
				r.Get("/{id}", notes.GetNoteHandler(svcCtx))
				r.Patch("/{id}", notes.UpdateNoteHandler(svcCtx))
				r.Delete("/{id}", notes.DeleteNoteHandler(svcCtx))
			})

			r.Route("/projects", func(r chi.Router) {
				r.Get("/", projects.ListProjectsHandler(svcCtx))
				r.Post("/", projects.CreateProjectHandler(svcCtx))
				r.Get("/{id}", projects.GetProjectHandler(svcCtx))
				r.Patch("/{id}", projects.UpdateProjectHandler(svcCtx))
				r.Delete("/{id}", projects.DeleteProjectHandler(svcCtx))
			})

			r.Route("/conversations", func(r chi.Router) {
				r.Get("/", conversations.ListConversationsHandler(svcCtx))
				r.Get("/{id}", conversations.GetConversationHandler(svcCtx))
				r.Get("/{id}/messages", conversations.ListMessagesHandler(svcCtx))
				r.Delete("/{id}", conversations.DeleteConversationHandler(svcCtx))
			})
		})
	})

	return r
}

func checkPortAvailable(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}
	return ln.Close()
}
