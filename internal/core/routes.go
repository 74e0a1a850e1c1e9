package core

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"benefitclaims/internal/types"
)

// defaultRequestTimeout bounds ops requests when none is configured. Draining
// a large backlog can take minutes.
const defaultRequestTimeout = 5 * time.Minute

var defaultRedactedHeaders = []string{
	"Authorization",
	"X-Api-Key",
}

// MountRoutes registers the middleware chain and every route.
//
// Middleware order:
//  1. Recoverer      - outermost so every panic is caught.
//  2. ContextTimeout - soft deadline for long drains.
//  3. RequestID      - correlation id for logs.
//  4. RequestLogger  - structured access log with redacted headers.
//  5. APIKey         - ops routes only.
func (s *Server) MountRoutes() {
	s.router.Use(s.Recoverer)
	s.router.Use(ContextTimeoutMiddleware(s.requestTimeout()))
	s.router.Use(RequestIDMiddleware)
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))

	s.router.Get("/health", s.HandleHealth)

	s.router.Route("/ops", func(r chi.Router) {
		r.Use(s.APIKeyMiddleware)

		r.Get("/messages", s.handlePending)
		r.Post("/messages", s.handleEnqueue)
		r.Post("/messages/process", s.handleProcessAll)
		r.Post("/messages/{type}/process", s.handleProcessType)
		r.Post("/messages/{type}/processable", s.handleMarkProcessable)
		r.Get("/messages/{type}/failures", s.handleFailuresByType)
		r.Get("/messages/{type}/dead-letters", s.handleDeadLetters)
		r.Get("/failures/{messageID}", s.handleFailuresByMessage)
	})
}

func (s *Server) requestTimeout() time.Duration {
	if s.Config.RequestTimeout > 0 {
		return s.Config.RequestTimeout
	}
	return defaultRequestTimeout
}

// ContextTimeoutMiddleware sets a deadline on the request context.
func ContextTimeoutMiddleware(duration time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), duration)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDMiddleware reuses the caller's X-Request-Id or generates one,
// stores it in the context and echoes it in the response.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := types.WithRequestID(r.Context(), requestID)
		w.Header().Set("X-Request-Id", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
