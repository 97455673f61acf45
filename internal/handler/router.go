package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/astrochat/relay/internal/handler/chat"
	middlewarePkg "github.com/astrochat/relay/internal/middleware"
	agentService "github.com/astrochat/relay/internal/service/agent"
	"github.com/astrochat/relay/internal/session"
	"github.com/astrochat/relay/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(agentSvc *agentService.Service, sessions *session.Store) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	chatHandler := chat.New(agentSvc, sessions)

	r.Route("/api", func(api chi.Router) {
		api.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		chatHandler.RegisterRoutes(api)
	})

	return r
}
