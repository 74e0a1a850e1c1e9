package core

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"benefitclaims/internal/messaging"
	"benefitclaims/internal/types"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// enqueueRequest is the body of POST /ops/messages.
type enqueueRequest struct {
	Type         types.MessageType `json:"type"`
	Payload      json.RawMessage   `json:"payload"`
	ProcessAfter *time.Time        `json:"process_after,omitempty"`
}

// processableRequest is the optional body of
// POST /ops/messages/{type}/processable. Without ids every message of the
// type is made processable.
type processableRequest struct {
	IDs []string `json:"ids"`
}

type processableResponse struct {
	MessageType types.MessageType `json:"message_type"`
	Updated     int64             `json:"updated"`
}

type processAllResponse struct {
	Results map[types.MessageType]messaging.DrainResult `json:"results"`
	Error   string                                      `json:"error,omitempty"`
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		Error(w, r, err)
		return
	}
	if len(req.Payload) == 0 {
		Error(w, r, types.NewAppError(types.ErrCodeValidationPayload, "payload is required", nil))
		return
	}

	var after time.Time
	if req.ProcessAfter != nil {
		after = *req.ProcessAfter
	}
	msg, err := s.queue.EnqueueAfter(r.Context(), req.Payload, req.Type, after)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusCreated, APIResponse{Data: msg})
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	counts, err := s.messages.CountPending(r.Context())
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: counts})
}

func (s *Server) handleProcessType(w http.ResponseWriter, r *http.Request) {
	t, err := messageTypeParam(r)
	if err != nil {
		Error(w, r, err)
		return
	}
	result, err := s.processor.ProcessNow(r.Context(), t)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: result})
}

// handleProcessAll drains every type. Errors for one type do not stop the
// others, so partial results are returned alongside the first error.
func (s *Server) handleProcessAll(w http.ResponseWriter, r *http.Request) {
	results, err := s.processor.ProcessAll(r.Context())
	resp := processAllResponse{Results: results}
	status := http.StatusOK
	if err != nil {
		s.Logger.ErrorContext(r.Context(), "process all finished with errors", "error", err)
		resp.Error = err.Error()
		status = http.StatusMultiStatus
	}
	JSON(w, r, status, APIResponse{Data: resp})
}

func (s *Server) handleMarkProcessable(w http.ResponseWriter, r *http.Request) {
	t, err := messageTypeParam(r)
	if err != nil {
		Error(w, r, err)
		return
	}

	var req processableRequest
	if r.ContentLength != 0 {
		if err := DecodeJSON(w, r, &req); err != nil {
			Error(w, r, err)
			return
		}
	}

	now := s.clock.Now()
	var n int64
	if len(req.IDs) > 0 {
		n, err = s.messages.MarkProcessable(r.Context(), req.IDs, now)
	} else {
		n, err = s.messages.MarkTypeProcessable(r.Context(), t, now)
	}
	if err != nil {
		Error(w, r, err)
		return
	}

	s.Logger.InfoContext(r.Context(), "messages marked processable",
		"message_type", string(t),
		"updated", n,
	)
	JSON(w, r, http.StatusOK, APIResponse{Data: processableResponse{MessageType: t, Updated: n}})
}

func (s *Server) handleFailuresByType(w http.ResponseWriter, r *http.Request) {
	t, err := messageTypeParam(r)
	if err != nil {
		Error(w, r, err)
		return
	}
	limit, err := limitParam(r)
	if err != nil {
		Error(w, r, err)
		return
	}
	records, err := s.failures.ListByType(r.Context(), t, limit)
	if err != nil {
		Error(w, r, err)
		return
	}
	List(w, r, records, limit)
}

func (s *Server) handleFailuresByMessage(w http.ResponseWriter, r *http.Request) {
	records, err := s.failures.ListByMessage(r.Context(), chi.URLParam(r, "messageID"))
	if err != nil {
		Error(w, r, err)
		return
	}
	List(w, r, records, 0)
}

func (s *Server) handleDeadLetters(w http.ResponseWriter, r *http.Request) {
	t, err := messageTypeParam(r)
	if err != nil {
		Error(w, r, err)
		return
	}
	limit, err := limitParam(r)
	if err != nil {
		Error(w, r, err)
		return
	}
	letters, err := s.messages.ListDeadLetters(r.Context(), t, limit)
	if err != nil {
		Error(w, r, err)
		return
	}
	List(w, r, letters, limit)
}

func messageTypeParam(r *http.Request) (types.MessageType, error) {
	return types.ParseMessageType(chi.URLParam(r, "type"))
}

func limitParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxListLimit {
		return 0, types.NewAppErrorWithDetails(types.ErrCodeValidationBatchSize,
			"limit must be between 1 and 500", err, map[string]any{"limit": raw})
	}
	return n, nil
}
