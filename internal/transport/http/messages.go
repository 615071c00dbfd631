package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/templeobijnr/easy-islanders/internal/app"
	"github.com/templeobijnr/easy-islanders/internal/domain"
)

// MessageDispatcher is the minimal interface for the outbound message
// endpoint.
type MessageDispatcher interface {
	Send(ctx context.Context, in app.SendInput) (domain.DispatchMessage, error)
}

// HandleSendMessage returns an HTTP handler for dispatching one outbound
// message. Retried requests must carry the same Idempotency-Key.
func HandleSendMessage(svc MessageDispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		key := r.Header.Get(idempotencyHeader)
		if key == "" {
			writeError(w, http.StatusBadRequest, codeIdempotencyRequired, domain.ErrIdempotencyKeyRequired.Error())
			return
		}

		var req sendMessageRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
			return
		}

		msg, err := svc.Send(r.Context(), app.SendInput{
			To:             req.To,
			Body:           req.Body,
			CorrelationID:  req.CorrelationID,
			IdempotencyKey: key,
			TraceID:        req.TraceID,
		})
		if err != nil {
			if errors.Is(err, domain.ErrMaxAttemptsExceeded) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusConflict)
				_ = json.NewEncoder(w).Encode(messageResponse{
					ID:        msg.ID,
					Status:    string(msg.Status),
					Attempts:  msg.Attempts,
					LastError: msg.LastError,
					UpdatedAt: msg.UpdatedAt,
				})
				return
			}
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(messageResponse{
			ID:                msg.ID,
			Status:            string(msg.Status),
			Attempts:          msg.Attempts,
			ProviderMessageID: msg.ProviderMessageID,
			UpdatedAt:         msg.UpdatedAt,
		})
	}
}

type sendMessageRequest struct {
	To            string `json:"to" validate:"required"`
	Body          string `json:"body" validate:"required"`
	CorrelationID string `json:"correlation_id"`
	TraceID       string `json:"trace_id"`
}

type messageResponse struct {
	ID                string    `json:"id"`
	Status            string    `json:"status"`
	Attempts          int       `json:"attempts"`
	ProviderMessageID string    `json:"provider_message_id,omitempty"`
	LastError         string    `json:"last_error,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
}
