package api

import (
	"log/slog"
	"net/http"

	"github.com/medfix-io/medfix/internal/api/failure"
	"github.com/medfix-io/medfix/internal/api/middleware"
	"github.com/medfix-io/medfix/internal/api/pipeline"
	"github.com/medfix-io/medfix/internal/events"
	"github.com/medfix-io/medfix/internal/session"
	"github.com/medfix-io/medfix/internal/storage"
)

const requestNoun = "Maintenance request"

type (
	// requestHandler serves maintenance requests. Any signed-in user may report
	// damage and read their own requests; admins see and manage all of them.
	requestHandler struct {
		store    storage.RequestStore
		sessions session.Provider
		events   events.Publisher
		logger   *slog.Logger
	}

	// requestStats is the body of GET /api/maintenance-requests/stats.
	requestStats struct {
		Total    int                    `json:"total"`
		ByStatus map[storage.Status]int `json:"byStatus"`
	}
)

func (h *requestHandler) list(env *pipeline.Envelope) (*pipeline.Response, error) {
	s, err := session.RequireUser(h.sessions, env.Request())
	if err != nil {
		return nil, err
	}

	q, _ := pipeline.Query[listRequestsQuery](env)

	filter := storage.RequestFilter{Status: storage.Status(q.Status), Unit: q.Unit}
	if !s.IsAdmin() {
		filter.RequesterID = s.User.ID
	}

	list, err := h.store.List(env.Context(), filter)
	if err != nil {
		return nil, storageFailure(err, requestNoun)
	}

	return pipeline.OK(list), nil
}

func (h *requestHandler) get(env *pipeline.Envelope) (*pipeline.Response, error) {
	s, err := session.RequireUser(h.sessions, env.Request())
	if err != nil {
		return nil, err
	}

	p, _ := pipeline.Params[idParams](env)

	req, err := h.store.Get(env.Context(), p.ID)
	if err != nil {
		return nil, storageFailure(err, requestNoun)
	}

	// Another user's request is reported as missing rather than forbidden.
	if !s.IsAdmin() && req.RequesterID != s.User.ID {
		return nil, failure.NotFound(requestNoun + " not found")
	}

	return pipeline.OK(req), nil
}

func (h *requestHandler) create(env *pipeline.Envelope) (*pipeline.Response, error) {
	s, err := session.RequireUser(h.sessions, env.Request())
	if err != nil {
		return nil, err
	}

	in, _ := pipeline.Body[createRequestInput](env)

	req, err := h.store.Create(env.Context(), &storage.Request{
		RequesterID:       s.User.ID,
		ApplicantName:     in.Name,
		Unit:              in.Unit,
		DeviceName:        in.DeviceName,
		DamageDescription: in.DamageDescription,
		PhotoURL:          in.ImageURL,
		Status:            storage.StatusPending,
	})
	if err != nil {
		return nil, storageFailure(err, requestNoun)
	}

	return pipeline.Created(req), nil
}

func (h *requestHandler) update(env *pipeline.Envelope) (*pipeline.Response, error) {
	s, err := session.RequireAdmin(h.sessions, env.Request())
	if err != nil {
		return nil, err
	}

	p, _ := pipeline.Params[idParams](env)
	in, _ := pipeline.Body[updateRequestInput](env)

	previous, err := h.store.Get(env.Context(), p.ID)
	if err != nil {
		return nil, storageFailure(err, requestNoun)
	}

	patch := storage.RequestPatch{
		ApplicantName:     in.ApplicantName,
		Unit:              in.Unit,
		DeviceName:        in.DeviceName,
		DamageDescription: in.DamageDescription,
		PhotoURL:          in.ImageURL,
	}

	if in.Status != nil {
		status := storage.Status(*in.Status)
		patch.Status = &status
	}

	updated, err := h.store.Update(env.Context(), p.ID, patch)
	if err != nil {
		return nil, storageFailure(err, requestNoun)
	}

	if updated.Status != previous.Status && h.events != nil {
		evt := events.NewStatusChanged(updated, previous.Status, s.User.ID, middleware.GetCorrelationID(env.Context()))
		events.Notify(env.Context(), h.events, h.logger, evt)
	}

	return pipeline.OK(updated), nil
}

func (h *requestHandler) remove(env *pipeline.Envelope) (*pipeline.Response, error) {
	if _, err := session.RequireAdmin(h.sessions, env.Request()); err != nil {
		return nil, err
	}

	p, _ := pipeline.Params[idParams](env)

	if err := h.store.Delete(env.Context(), p.ID); err != nil {
		return nil, storageFailure(err, requestNoun)
	}

	return pipeline.OK(successBody{Success: true}), nil
}

func (h *requestHandler) stats(env *pipeline.Envelope) (*pipeline.Response, error) {
	if _, err := session.RequireAdmin(h.sessions, env.Request()); err != nil {
		return nil, err
	}

	counts, err := h.store.CountByStatus(env.Context())
	if err != nil {
		return nil, storageFailure(err, requestNoun)
	}

	total := 0
	for _, n := range counts {
		total += n
	}

	return pipeline.JSON(http.StatusOK, requestStats{Total: total, ByStatus: counts}), nil
}
