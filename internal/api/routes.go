package api

import (
	"log/slog"
	"net/http"

	"github.com/medfix-io/medfix/internal/api/pipeline"
)

// setupRoutes registers every endpoint. Each API route runs behind a named
// pipeline policy; the probes and the 404 catch-all bypass pipelines.
func (s *Server) setupRoutes(mux *http.ServeMux) {
	limits := s.deps.Limiters
	log := s.logger
	params := pipeline.Validate(idParamsSchema, pipeline.FromParams("id"))

	mux.HandleFunc("GET /ping", s.handlePing)     // liveness probe
	mux.HandleFunc("GET /ready", s.handleReady)   // readiness probe
	mux.HandleFunc("GET /health", s.handleHealth) // status, uptime, version
	mux.HandleFunc(catchAllPattern, s.handleNotFound)

	catalogs := []*catalogHandler{
		newCatalogHandler("/api/devices", "Device", s.deps.Stores.Devices, s.deps.Sessions),
		newCatalogHandler("/api/units", "Unit", s.deps.Stores.Units, s.deps.Sessions),
	}

	for _, c := range catalogs {
		s.route(mux, "GET "+c.path, pipeline.Public(limits.Public, log), c.list)
		s.route(mux, "POST "+c.path,
			pipeline.AdminValidated(limits.AdminWrite, log, pipeline.Validate(catalogSchema)), c.create)
		s.route(mux, "PATCH "+c.path+"/{id}",
			pipeline.AdminValidated(limits.AdminWrite, log, params, pipeline.Validate(catalogSchema)), c.rename)
		s.route(mux, "DELETE "+c.path+"/{id}", append(pipeline.Public(limits.AdminWrite, log), params), c.remove)
	}

	requests := &requestHandler{
		store:    s.deps.Stores.Requests,
		sessions: s.deps.Sessions,
		events:   s.deps.Events,
		logger:   log,
	}

	s.route(mux, "GET /api/maintenance-requests",
		pipeline.Validated(limits.Public, log, pipeline.Validate(listRequestsSchema, pipeline.FromQuery())), requests.list)
	s.route(mux, "POST /api/maintenance-requests",
		pipeline.Validated(limits.UserWrite, log, pipeline.Validate(createRequestSchema)), requests.create)
	s.route(mux, "GET /api/maintenance-requests/stats", pipeline.Public(limits.Public, log), requests.stats)
	s.route(mux, "GET /api/maintenance-requests/{id}", append(pipeline.Public(limits.Public, log), params), requests.get)
	s.route(mux, "PATCH /api/maintenance-requests/{id}",
		pipeline.AdminValidated(limits.AdminWrite, log, params, pipeline.Validate(updateRequestSchema)), requests.update)
	s.route(mux, "DELETE /api/maintenance-requests/{id}",
		append(pipeline.Public(limits.AdminWrite, log), params), requests.remove)

	users := &userHandler{store: s.deps.Stores.Users, sessions: s.deps.Sessions}

	s.route(mux, "GET /api/users", pipeline.Public(limits.Public, log), users.list)
	s.route(mux, "POST /api/users",
		pipeline.AdminValidated(limits.Registration, log, pipeline.Validate(createUserSchema)), users.create)
	s.route(mux, "PATCH /api/users/{id}",
		pipeline.AdminValidated(limits.AdminWrite, log, params, pipeline.Validate(updateUserSchema)), users.update)
	s.route(mux, "DELETE /api/users/{id}", append(pipeline.Public(limits.AdminWrite, log), params), users.remove)

	auth := &authHandler{users: s.deps.Stores.Users, sessions: s.deps.Sessions, logger: log}

	s.route(mux, "POST /api/auth/register",
		pipeline.Validated(limits.Registration, log, pipeline.Validate(registerSchema)), auth.register)
	s.route(mux, "POST /api/auth/login",
		pipeline.Validated(limits.Login, log, pipeline.Validate(loginSchema)), auth.login)
	s.route(mux, "POST /api/auth/logout", pipeline.Public(limits.Public, log), auth.logout)
	s.route(mux, "GET /api/auth/me", nil, auth.me)
}

// route registers h behind a chain of steps.
func (s *Server) route(mux *http.ServeMux, pattern string, steps []pipeline.Step, h pipeline.Handler) {
	chain := pipeline.New(s.logger, steps...)

	mux.Handle(pattern, chain.Handle(h))

	s.logger.Debug("Route registered",
		slog.String("pattern", pattern),
		slog.Any("steps", chain.Names()),
	)
}
