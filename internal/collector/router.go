package collector

import (
	"github.com/go-chi/chi/v5"
)

// Routes returns the control API routes rooted at /, ready to be mounted
// under a host server's /api.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/status", h.GetStatus)

	r.Route("/runs", func(r chi.Router) {
		r.Post("/", h.StartRun)
		r.Get("/current", h.GetCurrentRun)
		r.Get("/last", h.GetLastRun)
		r.Post("/current/cancel", h.CancelRun)
	})

	r.Route("/channels", func(r chi.Router) {
		r.Get("/", h.ListChannels)
		r.Post("/", h.CreateChannel)
		r.Put("/{name}/active", h.SetChannelActive)
	})

	r.Route("/rules", func(r chi.Router) {
		r.Get("/", h.ListRules)
		r.Post("/", h.CreateRule)
		r.Put("/{id}/active", h.SetRuleActive)
	})

	return r
}
