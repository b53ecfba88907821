package handler

import (
	"net/http"
	"time"

	"github.com/andrewkylim/chatkin-chat-sub002/internal/httputil"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/svc"
)

const version = "1.0.0"

func HealthCheckHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.OkJSON(w, map[string]string{
			"status":    "healthy",
			"version":   version,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}
