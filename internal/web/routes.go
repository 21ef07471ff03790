package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-registry/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	identities := handlers.NewIdentitiesHandler(s.coordinator, s.store, s.config.Web.MaxUploadBytes(), s.logger)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/identities", identities.List)
		r.Post("/identities", identities.Enroll)
		r.Post("/identities/image", identities.EnrollImage)
		r.Post("/identities/reload", identities.Reload)

		r.Post("/match", identities.Match)
		r.Post("/match/image", identities.MatchImage)
	})
}
