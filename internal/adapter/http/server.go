package adapthttp

import (
	"context"
	"log/slog"
	"net/http"

	"datausage/internal/domain"
)

// RemoteBackend is the store the API serves.
type RemoteBackend interface {
	domain.RemoteStore
	domain.UsagePager
}

// Authenticator validates bearer tokens. *app.AuthService satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.Principal, error)
}

// Server is the driving HTTP adapter exposing the remote store to devices.
type Server struct {
	remote      RemoteBackend
	auth        Authenticator
	logger      *slog.Logger
	disableAuth bool
}

// New creates a Server backed by remote. auth may be nil only if
// WithoutAuth is used.
func New(remote RemoteBackend, auth Authenticator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{remote: remote, auth: auth, logger: logger}
}

// WithoutAuth disables bearer authentication (for tests).
func (s *Server) WithoutAuth() *Server {
	s.disableAuth = true
	return s
}

// Handler returns the root http.Handler for the API.
func (s *Server) Handler() http.Handler {
	protected := http.NewServeMux()
	protected.HandleFunc("/account", s.handleAccount)
	protected.HandleFunc("/usage", s.handleUsage)
	protected.HandleFunc("/usage/all", s.handleUsageAll)
	protected.HandleFunc("/plan", s.handlePlan)
	protected.HandleFunc("/subscriptions", s.handleSubscriptions)

	api := http.NewServeMux()
	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	api.Handle("/", s.authMiddleware(protected))

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", api))

	return s.loggingMiddleware(withNoCache(root))
}
