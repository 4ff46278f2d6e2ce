package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"github.com/xeipuuv/gojsonschema"

	"github.com/the-onelazyDev/Ai-Chat-Bot/internal/apperr"
)

const (
	maxBodyBytes = 1 << 20
	probeTimeout = 5 * time.Second

	msgTurnFailed    = "An error occurred processing your message"
	msgHistoryFailed = "An error occurred fetching conversation history"
	msgRateLimited   = "Too many requests. Please slow down."
)

type errorResponse struct {
	Error     string       `json:"error"`
	Details   []FieldError `json:"details,omitempty"`
	SessionID *string      `json:"sessionId,omitempty"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	LLM       string    `json:"llm"`
	Database  string    `json:"database"`
}

// postMessage handles POST /api/chat/message.
func (s *Server) postMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgInvalidBody})
		return
	}

	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgInvalidBody})
		return
	}
	if !result.Valid() {
		details := schemaErrors(result)
		msg := msgInvalidBody
		if len(details) > 0 {
			msg = details[0].Message
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg, Details: details})
		return
	}

	var req messageRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgInvalidBody})
		return
	}

	text, fieldErr := checkMessage(req.Message, s.maxLen)
	if fieldErr == nil {
		fieldErr = checkSession(req.SessionID)
	}
	if fieldErr != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fieldErr.Message, Details: []FieldError{*fieldErr}})
		return
	}

	res, err := s.chat.ProcessMessage(r.Context(), text, req.sessionID())
	if err != nil {
		status, msg := classify(err, msgTurnFailed)
		s.logger.Error("chat message failed", "status", status, "kind", apperr.KindOf(err).String(), "error", err)
		writeJSON(w, status, errorResponse{Error: msg, SessionID: req.SessionID})
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// getHistory handles GET /api/chat/history/{sessionId}.
func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	if !validSessionID(sessionID) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgInvalidSession})
		return
	}

	hist, err := s.chat.GetConversationHistory(r.Context(), sessionID)
	if err != nil {
		status, msg := classify(err, msgHistoryFailed)
		if status >= http.StatusInternalServerError {
			s.logger.Error("history lookup failed", "session_id", sessionID, "error", err)
		}
		writeJSON(w, status, errorResponse{Error: msg})
		return
	}

	writeJSON(w, http.StatusOK, hist)
}

// chatHealth probes the database and the completion backend in parallel.
// It always answers 200; a failed probe only degrades the status.
func (s *Server) chatHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	var dbOK, llmOK bool
	var wg conc.WaitGroup
	wg.Go(func() {
		if s.db == nil {
			return
		}
		if err := s.db.Ping(ctx); err != nil {
			s.logger.Warn("database health check failed", "error", err)
			return
		}
		dbOK = true
	})
	wg.Go(func() {
		llmOK = s.llm != nil && s.llm.CheckHealth(ctx)
	})
	wg.Wait()

	resp := healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		LLM:       probeStatus(llmOK),
		Database:  probeStatus(dbOK),
	}
	if !dbOK || !llmOK {
		resp.Status = "degraded"
	}
	writeJSON(w, http.StatusOK, resp)
}

// validSessionID accepts only the canonical dashed form.
func validSessionID(id string) bool {
	return len(id) == 36 && uuid.Validate(id) == nil
}

func probeStatus(ok bool) string {
	if ok {
		return "ok"
	}
	return "unavailable"
}

// classify picks the HTTP status and client message for err. storageMsg is
// used for storage and unclassified failures.
func classify(err error, storageMsg string) (int, string) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		return http.StatusInternalServerError, storageMsg
	}
	switch ae.Kind {
	case apperr.KindValidation:
		return http.StatusBadRequest, ae.Message
	case apperr.KindNotFound:
		return http.StatusNotFound, ae.Message
	case apperr.KindServiceUnavailable:
		return http.StatusServiceUnavailable, ae.Message
	case apperr.KindTimeout:
		return http.StatusGatewayTimeout, ae.Message
	case apperr.KindGeneration:
		return http.StatusBadGateway, ae.Message
	default:
		return http.StatusInternalServerError, storageMsg
	}
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: msgRateLimited})
			return
		}
		next.ServeHTTP(w, r)
	})
}
