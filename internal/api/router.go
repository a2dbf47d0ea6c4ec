// Package api exposes the verification service over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter mounts every route on a chi router.
func NewRouter(h *Handler, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)
	if requestTimeout > 0 {
		r.Use(middleware.Timeout(requestTimeout))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/templates", h.listTemplates)
		r.Post("/fields/validate", h.validateField)
		r.Get("/results/{kind}/{field}", h.latestResult)
		r.Post("/connections/test", h.testConnection)
		r.Post("/schema/check", h.checkSchema)
		r.Post("/migrations", h.generateMigration)
		r.Post("/verify", h.runVerify)
		r.Get("/state", h.getState)
		r.Put("/state", h.putState)
		r.Post("/secrets/generate", h.generateSecret)

		r.Get("/records/{collection}", h.listRecords)
		r.Post("/records/{collection}", h.createRecord)
		r.Patch("/records/{collection}/{local_id}", h.updateRecord)
		r.Delete("/records/{collection}/{local_id}", h.discardRecord)

		r.Get("/images/*", h.loadImage)
		r.Put("/images/*", h.saveImage)
		r.Delete("/images/*", h.deleteImage)
	})
	return r
}
