package api

import (
	"github.com/gorilla/mux"

	"github.com/thepathwise/intake/internal/config"
)

// Handlers groups what SetupRoutes mounts. Admin may be nil to leave the
// admin routes out.
type Handlers struct {
	Forms  *FormsHandler
	Admin  *AdminHandler
	System *SystemHandler
}

func SetupRoutes(cfg *config.Config, version, buildTime string, h Handlers) *mux.Router {
	r := mux.NewRouter()

	// Middleware chain
	r.Use(LoggingMiddleware)
	r.Use(CORSMiddleware(cfg.AllowedOrigins))
	r.Use(RecoveryMiddleware)

	system := h.System
	if system == nil {
		system = &SystemHandler{}
	}

	// Open endpoints
	r.HandleFunc("/version", system.VersionHandler(version, buildTime)).Methods("GET")
	r.HandleFunc("/health", system.HealthHandler).Methods("GET")
	r.HandleFunc("/api/forms/submit", h.Forms.Submit).Methods("POST", "OPTIONS")

	if h.Admin == nil {
		return r
	}

	// Operator routes
	admin := r.PathPrefix("/v1/admin").Subrouter()
	admin.Use(JWTAuthMiddlewareWithSecret(cfg.JWTSecret))
	admin.HandleFunc("/sync", h.Admin.Sync).Methods("POST")
	admin.HandleFunc("/backfill", h.Admin.Backfill).Methods("POST")
	admin.HandleFunc("/runs", h.Admin.Runs).Methods("GET")

	return r
}
