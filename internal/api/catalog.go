package api

import (
	"github.com/medfix-io/medfix/internal/api/pipeline"
	"github.com/medfix-io/medfix/internal/session"
	"github.com/medfix-io/medfix/internal/storage"
)

// catalogHandler serves one name catalog (devices or units). Reads are open;
// writes require an admin session.
type catalogHandler struct {
	path     string
	noun     string
	store    storage.CatalogStore
	sessions session.Provider
}

func newCatalogHandler(path, noun string, store storage.CatalogStore, sessions session.Provider) *catalogHandler {
	return &catalogHandler{path: path, noun: noun, store: store, sessions: sessions}
}

func (h *catalogHandler) list(env *pipeline.Envelope) (*pipeline.Response, error) {
	items, err := h.store.List(env.Context())
	if err != nil {
		return nil, storageFailure(err, h.noun)
	}

	return pipeline.OK(items), nil
}

func (h *catalogHandler) create(env *pipeline.Envelope) (*pipeline.Response, error) {
	if _, err := session.RequireAdmin(h.sessions, env.Request()); err != nil {
		return nil, err
	}

	in, _ := pipeline.Body[catalogInput](env)

	item, err := h.store.Create(env.Context(), in.Name)
	if err != nil {
		return nil, storageFailure(err, h.noun)
	}

	return pipeline.Created(item), nil
}

func (h *catalogHandler) rename(env *pipeline.Envelope) (*pipeline.Response, error) {
	if _, err := session.RequireAdmin(h.sessions, env.Request()); err != nil {
		return nil, err
	}

	p, _ := pipeline.Params[idParams](env)
	in, _ := pipeline.Body[catalogInput](env)

	item, err := h.store.Rename(env.Context(), p.ID, in.Name)
	if err != nil {
		return nil, storageFailure(err, h.noun)
	}

	return pipeline.OK(item), nil
}

func (h *catalogHandler) remove(env *pipeline.Envelope) (*pipeline.Response, error) {
	if _, err := session.RequireAdmin(h.sessions, env.Request()); err != nil {
		return nil, err
	}

	p, _ := pipeline.Params[idParams](env)

	if err := h.store.Delete(env.Context(), p.ID); err != nil {
		return nil, storageFailure(err, h.noun)
	}

	return pipeline.OK(successBody{Success: true}), nil
}
