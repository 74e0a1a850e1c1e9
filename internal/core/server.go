// Package core provides the operational HTTP surface of the message worker:
// health probes, enqueueing, on-demand processing and failure inspection.
// It is mounted on a chi router and shares the worker's process.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"benefitclaims/internal/config"
	"benefitclaims/internal/messaging"
	"benefitclaims/internal/types"
)

// Processor drains queued messages on demand. scheduler.MessageScheduler
// satisfies it.
type Processor interface {
	ProcessNow(ctx context.Context, t types.MessageType) (messaging.DrainResult, error)
	ProcessAll(ctx context.Context) (map[types.MessageType]messaging.DrainResult, error)
}

// Enqueuer adds messages. messaging.MessageQueue satisfies it.
type Enqueuer interface {
	EnqueueAfter(ctx context.Context, payload any, t types.MessageType, processAfter time.Time) (*types.Message, error)
}

// MessageAdmin is the operational subset of db.MessageRepository.
type MessageAdmin interface {
	MarkProcessable(ctx context.Context, ids []string, now time.Time) (int64, error)
	MarkTypeProcessable(ctx context.Context, t types.MessageType, now time.Time) (int64, error)
	CountPending(ctx context.Context) (map[types.MessageType]int, error)
	ListDeadLetters(ctx context.Context, t types.MessageType, limit int) ([]*types.DeadLetter, error)
}

// FailureLister reads the failure audit trail.
type FailureLister interface {
	ListByType(ctx context.Context, t types.MessageType, limit int) ([]*types.FailureRecord, error)
	ListByMessage(ctx context.Context, messageID string) ([]*types.FailureRecord, error)
}

// Deps are the services the ops routes call into.
type Deps struct {
	Processor Processor
	Queue     Enqueuer
	Messages  MessageAdmin
	Failures  FailureLister
	Clock     types.Clock
}

// Server holds the ops router and its dependencies.
type Server struct {
	Config       config.ServerConfig
	Logger       *slog.Logger
	HealthProbes []HealthProbe
	// Version is reported by /health.
	Version string

	processor Processor
	queue     Enqueuer
	messages  MessageAdmin
	failures  FailureLister
	clock     types.Clock

	router *chi.Mux
}

// NewServer validates dependencies and prepares the router. Call
// MountRoutes before serving.
func NewServer(cfg config.ServerConfig, deps Deps, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	if deps.Processor == nil || deps.Queue == nil || deps.Messages == nil || deps.Failures == nil {
		return nil, fmt.Errorf("ops dependencies must not be nil")
	}
	if deps.Clock == nil {
		deps.Clock = types.RealClock{}
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		processor: deps.Processor,
		queue:     deps.Queue,
		messages:  deps.Messages,
		failures:  deps.Failures,
		clock:     deps.Clock,
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// HTTPServer builds the http.Server that serves the router on the
// configured port.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              ":" + s.Config.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
