package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/templeobijnr/easy-islanders/internal/app"
	"github.com/templeobijnr/easy-islanders/internal/domain"
)

const idempotencyHeader = "Idempotency-Key"

var validate = validator.New()

// HoldLedger is the slice of the ledger the hold endpoints need.
type HoldLedger interface {
	CreateHold(ctx context.Context, in app.CreateHoldInput) (app.HoldResult, error)
	Confirm(ctx context.Context, in app.ConfirmInput) (app.ConfirmResult, error)
	Release(ctx context.Context, in app.ReleaseInput) (app.ReleaseResult, error)
}

// HandleCreateHold returns an HTTP handler for creating holds.
func HandleCreateHold(svc HoldLedger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req createHoldRequest
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

		key := r.Header.Get(idempotencyHeader)
		if key == "" {
			key = req.IdempotencyKey
		}

		res, err := svc.CreateHold(r.Context(), app.CreateHoldInput{
			ResourceOwnerID: req.ResourceOwnerID,
			OfferingID:      req.OfferingID,
			Date:            req.Date,
			Time:            req.Time,
			PartySize:       req.PartySize,
			UserID:          req.UserID,
			UserName:        req.UserName,
			UserPhone:       req.UserPhone,
			Notes:           req.Notes,
			IdempotencyKey:  key,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(createHoldResponse{
			TxID:          res.TxID,
			Status:        string(domain.TxStatusHeld),
			HoldExpiresAt: res.HoldExpiresAt,
			Summary:       res.Summary,
		})
	}
}

type createHoldRequest struct {
	ResourceOwnerID string `json:"resource_owner_id" validate:"required"`
	OfferingID      string `json:"offering_id" validate:"required"`
	Date            string `json:"date" validate:"required"`
	Time            string `json:"time" validate:"required"`
	PartySize       int    `json:"party_size" validate:"required,gt=0"`
	UserID          string `json:"user_id" validate:"required"`
	UserName        string `json:"user_name"`
	UserPhone       string `json:"user_phone"`
	Notes           string `json:"notes"`
	IdempotencyKey  string `json:"idempotency_key"`
}

type createHoldResponse struct {
	TxID          string    `json:"tx_id"`
	Status        string    `json:"status"`
	HoldExpiresAt time.Time `json:"hold_expires_at"`
	Summary       string    `json:"summary"`
}

// HandleHoldAction routes POST /holds/{id}/confirm and /holds/{id}/release.
func HandleHoldAction(svc HoldLedger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		txID, action, ok := parseHoldActionPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		key := r.Header.Get(idempotencyHeader)
		if key == "" {
			writeError(w, http.StatusBadRequest, codeIdempotencyRequired, domain.ErrIdempotencyKeyRequired.Error())
			return
		}

		var req holdActionRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.ResourceOwnerID == "" {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "resource_owner_id is required")
			return
		}

		switch action {
		case "confirm":
			actorType := req.ActorType
			if actorType == "" {
				actorType = "user"
			}
			res, err := svc.Confirm(r.Context(), app.ConfirmInput{
				TxID:            txID,
				ResourceOwnerID: req.ResourceOwnerID,
				ActorType:       actorType,
				ActorID:         req.ActorID,
				IdempotencyKey:  key,
			})
			if err != nil {
				writeDomainError(w, err)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(confirmHoldResponse{
				TxID:             res.TxID,
				Status:           string(domain.TxStatusConfirmed),
				ConfirmationCode: res.ConfirmationCode,
				ConfirmedAt:      res.ConfirmedAt,
			})

		case "release":
			res, err := svc.Release(r.Context(), app.ReleaseInput{
				ResourceOwnerID: req.ResourceOwnerID,
				TxID:            txID,
				Reason:          req.Reason,
				IdempotencyKey:  key,
			})
			if err != nil {
				writeDomainError(w, err)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(releaseHoldResponse{
				TxID:   res.TxID,
				Status: string(res.Status),
			})

		default:
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
		}
	}
}

func parseHoldActionPath(path string) (txID, action string, ok bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 || parts[0] != "holds" || parts[1] == "" {
		return "", "", false
	}
	if parts[2] != "confirm" && parts[2] != "release" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

type holdActionRequest struct {
	ResourceOwnerID string `json:"resource_owner_id"`
	ActorType       string `json:"actor_type"`
	ActorID         string `json:"actor_id"`
	Reason          string `json:"reason"`
}

type confirmHoldResponse struct {
	TxID             string    `json:"tx_id"`
	Status           string    `json:"status"`
	ConfirmationCode string    `json:"confirmation_code"`
	ConfirmedAt      time.Time `json:"confirmed_at"`
}

type releaseHoldResponse struct {
	TxID   string `json:"tx_id"`
	Status string `json:"status"`
}
