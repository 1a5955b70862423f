package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/medfix-io/medfix/internal/api/failure"
	"github.com/medfix-io/medfix/internal/api/middleware"
)

const (
	healthCheckTimeout = 2 * time.Second
	serviceName        = "medfix"
	versionHeader      = "X-Medfix-Version"
	catchAllPattern    = "/"
	methodNotAllowed   = "Method not allowed"
)

//nolint: gochecknoglobals // fixed route method set
var routeMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}

// HealthStatus represents the health check response structure.
type HealthStatus struct {
	Status      string `json:"status"`
	ServiceName string `json:"serviceName"`
	Version     string `json:"version"`
	Uptime      string `json:"uptime,omitempty"`
}

// handlePing responds to liveness probes.
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	s.writeText(w, r, http.StatusOK, "pong")
}

// handleReady responds to readiness probes with a storage health check.
//
// Response codes:
//   - 200 OK: storage is reachable, or no checker is configured (memory backend)
//   - 503 Service Unavailable: storage is unhealthy or unreachable
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Readiness == nil {
		s.writeText(w, r, http.StatusOK, "ready")

		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if err := s.deps.Readiness.HealthCheck(ctx); err != nil {
		s.logger.Error("Storage health check failed",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("error", err.Error()),
		)

		s.writeText(w, r, http.StatusServiceUnavailable, "storage unavailable")

		return
	}

	s.writeText(w, r, http.StatusOK, "ready")
}

// handleHealth returns service status, version and uptime.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var uptime string
	if !s.startTime.IsZero() {
		uptime = time.Since(s.startTime).Round(time.Second).String()
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(versionHeader, Version)
	w.WriteHeader(http.StatusOK)

	err := json.NewEncoder(w).Encode(HealthStatus{
		Status:      "healthy",
		ServiceName: serviceName,
		Version:     Version,
		Uptime:      uptime,
	})
	if err != nil {
		s.logger.Error("Failed to write health response",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("error", err.Error()),
		)
	}
}

// handleNotFound answers unmatched requests with the normalized error body:
// 405 with an Allow header when the path exists under other methods, else 404.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	if allowed := s.allowedMethods(r); len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
		failure.Write(w, r, s.logger, failure.New(methodNotAllowed,
			failure.WithStatus(http.StatusMethodNotAllowed),
			failure.WithCode(failure.CodeMethodNotAllowed),
		))

		return
	}

	failure.Write(w, r, s.logger, failure.NotFound(notFoundRoute))
}

// allowedMethods lists the methods with a route other than the catch-all for
// the path of r.
func (s *Server) allowedMethods(r *http.Request) []string {
	var allowed []string

	for _, method := range routeMethods {
		if method == r.Method {
			continue
		}

		alt := r.Clone(r.Context())
		alt.Method = method

		if _, pattern := s.mux.Handler(alt); pattern != "" && pattern != catchAllPattern {
			allowed = append(allowed, method)
		}
	}

	return allowed
}

func (s *Server) writeText(w http.ResponseWriter, r *http.Request, status int, body string) {
	w.Header().Set("Content-Type", "text/plain")
	w.Header().Set(versionHeader, Version)
	w.WriteHeader(status)

	if _, err := w.Write([]byte(body)); err != nil {
		s.logger.Error("Failed to write probe response",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("error", err.Error()),
		)
	}
}
