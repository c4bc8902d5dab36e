package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/catalogops/internal/handler"
	"github.com/dukerupert/catalogops/internal/middleware"
)

// Deps are the components the HTTP surface is built from.
type Deps struct {
	Backups    handler.BackupRunner
	Restorer   handler.Restorer
	Migrator   handler.Migrator
	Catalog    handler.CatalogReader
	AdminToken string
	// Tokens verifies admin-claim JWTs. Nil disables the JWT-protected routes
	// by rejecting every request to them.
	Tokens middleware.TokenVerifier
}

type Server struct {
	backupH     *handler.BackupHandler
	migrateH    *handler.MigrateHandler
	catalogH    *handler.CatalogHandler
	adminToken  string
	tokens      middleware.TokenVerifier
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

func New(deps Deps, logger *slog.Logger) *Server {
	return &Server{
		backupH:     handler.NewBackupHandler(deps.Backups, deps.Restorer, logger.With("component", "backup_handler")),
		migrateH:    handler.NewMigrateHandler(deps.Migrator, logger.With("component", "migrate_handler")),
		catalogH:    handler.NewCatalogHandler(deps.Catalog, logger.With("component", "catalog_handler")),
		adminToken:  deps.AdminToken,
		tokens:      deps.Tokens,
		rateLimiter: middleware.NewRateLimiter(),
		logger:      logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.HandleFunc("GET /api/catalog/config", s.catalogH.Config)
	outerMux.HandleFunc("GET /api/catalog/categories", s.catalogH.Categories)
	outerMux.HandleFunc("GET /api/catalog/version", s.catalogH.Version)

	// Restore is guarded by the static operations token
	bearer := middleware.RequireBearer(s.adminToken)
	outerMux.Handle("POST /api/backups/restore", s.rateLimited(bearer(http.HandlerFunc(s.backupH.Restore))))

	// Admin-claim routes
	adminMux := http.NewServeMux()
	adminMux.HandleFunc("POST /api/backups", s.backupH.Run)
	adminMux.HandleFunc("GET /api/backups", s.backupH.List)
	adminMux.HandleFunc("GET /api/migrate", s.migrateH.Migrate)
	adminMux.HandleFunc("POST /api/migrate", s.migrateH.Migrate)

	admin := middleware.RequireAuth(s.tokens)(middleware.RequireAdmin(adminMux))
	outerMux.Handle("/api/backups", admin)
	outerMux.Handle("/api/migrate", admin)

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimited(h http.Handler) http.Handler {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	return middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)(h)
}
