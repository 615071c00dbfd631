package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/templeobijnr/easy-islanders/internal/app"
	"github.com/templeobijnr/easy-islanders/internal/domain"
)

const userIDHeader = "X-User-ID"

// ConfirmationGate is the slice of the gate the session endpoints need.
type ConfirmationGate interface {
	SetPendingAction(ctx context.Context, action domain.PendingAction) error
	GetPendingAction(ctx context.Context, sessionID, requestingUserID string) (*domain.PendingAction, error)
	ClearPendingAction(ctx context.Context, sessionID string) error
	Resolve(ctx context.Context, sessionID, userID, text string) (app.Resolution, error)
}

// HandleSessionPending routes PUT, GET and DELETE on
// /sessions/{id}/pending: the one confirmation slot of a session.
func HandleSessionPending(gate ConfirmationGate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := parseSessionPath(r.URL.Path, "pending")
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		switch r.Method {
		case http.MethodPut:
			var req setPendingRequest
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
			kind := req.Kind
			if kind == "" {
				kind = string(domain.KindConfirmTransaction)
			}
			err := gate.SetPendingAction(r.Context(), domain.PendingAction{
				SessionID:       sessionID,
				Kind:            domain.ActionKind(kind),
				TxID:            req.TxID,
				ResourceOwnerID: req.ResourceOwnerID,
				Summary:         req.Summary,
				HoldExpiresAt:   req.HoldExpiresAt,
				ExpectedUserID:  req.ExpectedUserID,
			})
			if err != nil {
				writeDomainError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)

		case http.MethodGet:
			userID := r.Header.Get(userIDHeader)
			if userID == "" {
				writeError(w, http.StatusBadRequest, codeValidationFailed, "X-User-ID header is required")
				return
			}
			action, err := gate.GetPendingAction(r.Context(), sessionID, userID)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			if action == nil {
				writeError(w, http.StatusNotFound, codeNotFound, "no pending action")
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(pendingActionResponse{
				SessionID:     action.SessionID,
				Kind:          string(action.Kind),
				TxID:          action.TxID,
				Summary:       action.Summary,
				HoldExpiresAt: action.HoldExpiresAt,
				CreatedAt:     action.CreatedAt,
			})

		case http.MethodDelete:
			if err := gate.ClearPendingAction(r.Context(), sessionID); err != nil {
				writeDomainError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)

		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

// HandleSessionReply routes POST /sessions/{id}/reply: a raw user message to
// classify against the pending action.
func HandleSessionReply(gate ConfirmationGate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		sessionID, ok := parseSessionPath(r.URL.Path, "reply")
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		var req sessionReplyRequest
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

		res, err := gate.Resolve(r.Context(), sessionID, req.UserID, req.Text)
		if err != nil && res.Outcome != app.OutcomeFailed {
			writeDomainError(w, err)
			return
		}

		resp := resolutionResponse{
			Outcome:          string(res.Outcome),
			Intent:           string(res.Intent),
			ConfirmationCode: res.ConfirmationCode,
			RetrySuggested:   res.RetrySuggested,
		}
		if res.Action != nil {
			resp.Summary = res.Action.Summary
			resp.TxID = res.Action.TxID
		}
		if err != nil {
			resp.Error = err.Error()
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func parseSessionPath(path, leaf string) (string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 || parts[0] != "sessions" || parts[1] == "" || parts[2] != leaf {
		return "", false
	}
	return parts[1], true
}

type setPendingRequest struct {
	Kind            string    `json:"kind"`
	TxID            string    `json:"tx_id" validate:"required"`
	ResourceOwnerID string    `json:"resource_owner_id" validate:"required"`
	Summary         string    `json:"summary"`
	HoldExpiresAt   time.Time `json:"hold_expires_at" validate:"required"`
	ExpectedUserID  string    `json:"expected_user_id" validate:"required"`
}

type pendingActionResponse struct {
	SessionID     string    `json:"session_id"`
	Kind          string    `json:"kind"`
	TxID          string    `json:"tx_id"`
	Summary       string    `json:"summary"`
	HoldExpiresAt time.Time `json:"hold_expires_at"`
	CreatedAt     time.Time `json:"created_at"`
}

type sessionReplyRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Text   string `json:"text" validate:"required"`
}

type resolutionResponse struct {
	Outcome          string `json:"outcome"`
	Intent           string `json:"intent"`
	TxID             string `json:"tx_id,omitempty"`
	Summary          string `json:"summary,omitempty"`
	ConfirmationCode string `json:"confirmation_code,omitempty"`
	RetrySuggested   bool   `json:"retry_suggested,omitempty"`
	Error            string `json:"error,omitempty"`
}
