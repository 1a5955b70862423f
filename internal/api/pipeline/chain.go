package pipeline

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/medfix-io/medfix/internal/api/failure"
	"github.com/medfix-io/medfix/internal/api/middleware"
)

type (
	// Step is one named unit of a pipeline.
	//
	// Apply either returns the envelope for the next step or fails. A nil
	// envelope with a nil error keeps the current envelope. Steps never write
	// responses themselves.
	Step interface {
		Name() string
		Apply(env *Envelope) (*Envelope, error)
	}

	// Handler is the terminal handler of a pipeline. It runs only when every
	// step succeeded. A nil response with a nil error is written as 204.
	Handler func(env *Envelope) (*Response, error)

	// Chain is an ordered list of steps.
	Chain struct {
		steps  []Step
		logger *slog.Logger
	}

	stepFunc struct {
		name string
		fn   func(*Envelope) (*Envelope, error)
	}
)

// NewStep creates a Step from a function.
func NewStep(name string, fn func(*Envelope) (*Envelope, error)) Step {
	return &stepFunc{name: name, fn: fn}
}

func (s *stepFunc) Name() string { return s.name }

func (s *stepFunc) Apply(env *Envelope) (*Envelope, error) { return s.fn(env) }

// New creates a chain running steps in the given order.
//
// Example:
//
//	chain := pipeline.New(logger, pipeline.Validated(limiter, logger, pipeline.Validate(schema))...)
//	mux.Handle("POST /api/devices", chain.Handle(h.createDevice))
func New(logger *slog.Logger, steps ...Step) *Chain {
	return &Chain{
		steps:  append([]Step(nil), steps...),
		logger: logger,
	}
}

// Names returns the step names in execution order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.steps))
	for i, s := range c.steps {
		names[i] = s.Name()
	}

	return names
}

// Run applies every step to env in order and stops at the first failure.
func (c *Chain) Run(env *Envelope) (*Envelope, error) {
	for _, step := range c.steps {
		next, err := step.Apply(env)
		if err != nil {
			return env, fmt.Errorf("step %s: %w", step.Name(), err)
		}

		if next != nil {
			env = next
		}
	}

	return env, nil
}

// Handle returns an http.Handler that runs the chain and then h.
//
// This is the only place where failures become responses: errors and panics
// from any step or from h are normalized exactly once via failure.Write.
func (c *Chain) Handle(h Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := c.logger.With(slog.String("correlation_id", middleware.GetCorrelationID(r.Context())))

		resp, err := c.serve(r, h, logger)
		if err != nil {
			failure.Write(w, r, logger, err)

			return
		}

		writeResponse(w, resp, logger)
	})
}

func (c *Chain) serve(r *http.Request, h Handler, logger *slog.Logger) (resp *Response, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("Pipeline panic recovered",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Any("panic", rec),
				slog.String("stack_trace", string(debug.Stack())),
			)

			resp, err = nil, fmt.Errorf("panic: %v", rec)
		}
	}()

	env, err := c.Run(NewEnvelope(r))
	if err != nil {
		return nil, err
	}

	resp, err = h(env)
	if err != nil {
		return nil, err
	}

	if resp == nil {
		resp = NoContent()
	}

	return resp, nil
}

func writeResponse(w http.ResponseWriter, resp *Response, logger *slog.Logger) {
	for key, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}

	if resp.Body == nil {
		w.WriteHeader(resp.Status)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)

	if err := json.NewEncoder(w).Encode(resp.Body); err != nil {
		logger.Error("Failed to encode response", slog.String("error", err.Error()))
	}
}
