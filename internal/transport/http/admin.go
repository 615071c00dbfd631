package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/templeobijnr/easy-islanders/internal/domain"
)

// AdminService is the minimal interface the operator endpoints need.
type AdminService interface {
	ListTransactions(ctx context.Context, resourceOwnerID string, limit int) ([]domain.Transaction, error)
	ListDispatchMessages(ctx context.Context, limit int) ([]domain.DispatchMessage, error)
	PurgeIdempotencyRecords(ctx context.Context) (int64, error)
}

// HandleAdminTransactions returns GET /admin/transactions?owner_id=&limit=.
func HandleAdminTransactions(svc AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		ownerID := r.URL.Query().Get("owner_id")
		if ownerID == "" {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "owner_id is required")
			return
		}

		txns, err := svc.ListTransactions(r.Context(), ownerID, parseLimit(r))
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := make([]transactionResponse, 0, len(txns))
		for _, txn := range txns {
			resp = append(resp, transactionResponse{
				TxID:             txn.ID,
				OfferingID:       txn.OfferingID,
				Status:           string(txn.Status),
				HoldExpiresAt:    txn.HoldExpiresAt,
				UserID:           txn.UserID,
				UserName:         txn.UserName,
				Date:             txn.Date,
				Time:             txn.Time,
				PartySize:        txn.PartySize,
				ConfirmationCode: txn.ConfirmationCode,
				ReleaseReason:    txn.ReleaseReason,
				CreatedAt:        txn.CreatedAt,
				UpdatedAt:        txn.UpdatedAt,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// HandleAdminMessages returns GET /admin/messages?limit=.
func HandleAdminMessages(svc AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		msgs, err := svc.ListDispatchMessages(r.Context(), parseLimit(r))
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := make([]messageResponse, 0, len(msgs))
		for _, msg := range msgs {
			resp = append(resp, messageResponse{
				ID:                msg.ID,
				Status:            string(msg.Status),
				Attempts:          msg.Attempts,
				ProviderMessageID: msg.ProviderMessageID,
				LastError:         msg.LastError,
				UpdatedAt:         msg.UpdatedAt,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// HandleAdminPurge returns POST /admin/idempotency/purge.
func HandleAdminPurge(svc AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		n, err := svc.PurgeIdempotencyRecords(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(purgeResponse{Purged: n})
	}
}

func parseLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}

type transactionResponse struct {
	TxID             string    `json:"tx_id"`
	OfferingID       string    `json:"offering_id"`
	Status           string    `json:"status"`
	HoldExpiresAt    time.Time `json:"hold_expires_at"`
	UserID           string    `json:"user_id"`
	UserName         string    `json:"user_name"`
	Date             string    `json:"date"`
	Time             string    `json:"time"`
	PartySize        int       `json:"party_size"`
	ConfirmationCode string    `json:"confirmation_code,omitempty"`
	ReleaseReason    string    `json:"release_reason,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type purgeResponse struct {
	Purged int64 `json:"purged"`
}
