package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bcnelson/hub-acl-manager/internal/api/handler"
	"github.com/bcnelson/hub-acl-manager/internal/api/middleware"
	"github.com/bcnelson/hub-acl-manager/internal/service"
	"github.com/bcnelson/hub-acl-manager/internal/storage"
)

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(store storage.Storage, svc *service.AccessListService) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.ContentType)

		hubHandler := handler.NewHubHandler(store, svc)
		r.Post("/hubs", hubHandler.Create)
		r.Get("/hubs", hubHandler.List)

		r.Route("/hubs/{hub}", func(r chi.Router) {
			r.Get("/", hubHandler.Get)
			r.Put("/", hubHandler.Update)
			r.Delete("/", hubHandler.Delete)

			// Devices
			deviceHandler := handler.NewDeviceHandler(store, svc)
			r.Get("/devices", deviceHandler.List)
			r.Post("/devices", deviceHandler.Create)
			r.Put("/devices", deviceHandler.Replace)
			r.Delete("/devices/{name}", deviceHandler.Delete)

			// Access list
			accessListHandler := handler.NewAccessListHandler(svc)
			r.Get("/access-list", accessListHandler.GetLive)
			r.Get("/access-list/preview", accessListHandler.Preview)
			r.Get("/access-list/devices/live", accessListHandler.LiveDevices)
			r.Post("/access-list/sync", accessListHandler.Sync)
			r.Get("/access-list/versions", accessListHandler.ListVersions)
			r.Post("/access-list/rollback/{id}", accessListHandler.Rollback)
		})
	})

	return r
}
