package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/templeobijnr/easy-islanders/internal/app"
	"github.com/templeobijnr/easy-islanders/internal/domain"
)

type stubLedger struct {
	holdResult    app.HoldResult
	confirmResult app.ConfirmResult
	releaseResult app.ReleaseResult
	err           error

	lastConfirm app.ConfirmInput
	lastRelease app.ReleaseInput
}

func (s *stubLedger) CreateHold(_ context.Context, _ app.CreateHoldInput) (app.HoldResult, error) {
	return s.holdResult, s.err
}

func (s *stubLedger) Confirm(_ context.Context, in app.ConfirmInput) (app.ConfirmResult, error) {
	s.lastConfirm = in
	return s.confirmResult, s.err
}

func (s *stubLedger) Release(_ context.Context, in app.ReleaseInput) (app.ReleaseResult, error) {
	s.lastRelease = in
	return s.releaseResult, s.err
}

const validHoldBody = `{
	"resource_owner_id": "owner-1",
	"offering_id": "villa-42",
	"date": "2025-06-01",
	"time": "14:00",
	"party_size": 2,
	"user_id": "u1",
	"idempotency_key": "hold-key-1"
}`

func TestHandleCreateHold(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		method         string
		body           string
		result         app.HoldResult
		serviceErr     error
		expectedStatus int
		expectedSubstr string
	}{
		{
			name:   "created",
			method: http.MethodPost,
			body:   validHoldBody,
			result: app.HoldResult{
				TxID:          "tx-1",
				HoldExpiresAt: now.Add(15 * time.Minute),
				Summary:       "villa-42 on 2025-06-01 at 14:00, party of 2",
			},
			expectedStatus: http.StatusCreated,
			expectedSubstr: `"tx_id":"tx-1"`,
		},
		{
			name:           "slot taken",
			method:         http.MethodPost,
			body:           validHoldBody,
			serviceErr:     domain.ErrResourceUnavailable,
			expectedStatus: http.StatusConflict,
			expectedSubstr: `"code":"resource_unavailable"`,
		},
		{
			name:           "missing fields",
			method:         http.MethodPost,
			body:           `{"resource_owner_id": "owner-1"}`,
			expectedStatus: http.StatusBadRequest,
			expectedSubstr: `"code":"validation_failed"`,
		},
		{
			name:           "malformed body",
			method:         http.MethodPost,
			body:           `{"resource_owner_id": `,
			expectedStatus: http.StatusBadRequest,
			expectedSubstr: `"code":"invalid_request_body"`,
		},
		{
			name:           "retryable failure",
			method:         http.MethodPost,
			body:           validHoldBody,
			serviceErr:     domain.Retryable("reserve hold", context.DeadlineExceeded),
			expectedStatus: http.StatusServiceUnavailable,
			expectedSubstr: `"code":"retryable_side_effect_failure"`,
		},
		{
			name:           "method not allowed",
			method:         http.MethodGet,
			expectedStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &stubLedger{holdResult: tt.result, err: tt.serviceErr}

			req := httptest.NewRequest(tt.method, "/holds", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			HandleCreateHold(svc).ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.expectedStatus, rec.Code, rec.Body.String())
			}
			if tt.expectedSubstr != "" && !strings.Contains(rec.Body.String(), tt.expectedSubstr) {
				t.Fatalf("expected response to contain %q, got %q", tt.expectedSubstr, rec.Body.String())
			}
		})
	}
}

func TestHandleHoldAction(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	actionBody := `{"resource_owner_id": "owner-1", "actor_id": "u1"}`

	tests := []struct {
		name           string
		path           string
		body           string
		idempotencyKey string
		serviceErr     error
		expectedStatus int
		expectedSubstr string
	}{
		{
			name:           "confirm ok",
			path:           "/holds/tx-1/confirm",
			body:           actionBody,
			idempotencyKey: "k1",
			expectedStatus: http.StatusOK,
			expectedSubstr: `"confirmation_code":"K7MQ2X"`,
		},
		{
			name:           "release ok",
			path:           "/holds/tx-1/release",
			body:           `{"resource_owner_id": "owner-1", "reason": "user cancelled"}`,
			idempotencyKey: "k1",
			expectedStatus: http.StatusOK,
			expectedSubstr: `"status":"released"`,
		},
		{
			name:           "missing idempotency header",
			path:           "/holds/tx-1/confirm",
			body:           actionBody,
			expectedStatus: http.StatusBadRequest,
			expectedSubstr: `"code":"idempotency_key_required"`,
		},
		{
			name:           "missing owner",
			path:           "/holds/tx-1/confirm",
			body:           `{}`,
			idempotencyKey: "k1",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "expired",
			path:           "/holds/tx-1/confirm",
			body:           actionBody,
			idempotencyKey: "k1",
			serviceErr:     domain.ErrHoldExpired,
			expectedStatus: http.StatusConflict,
			expectedSubstr: `"code":"hold_expired"`,
		},
		{
			name:           "already confirmed",
			path:           "/holds/tx-1/confirm",
			body:           actionBody,
			idempotencyKey: "k1",
			serviceErr:     domain.ErrAlreadyConfirmed,
			expectedStatus: http.StatusConflict,
			expectedSubstr: `"code":"already_confirmed"`,
		},
		{
			name:           "not found",
			path:           "/holds/tx-1/confirm",
			body:           actionBody,
			idempotencyKey: "k1",
			serviceErr:     domain.ErrHoldNotFound,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "attempts exhausted",
			path:           "/holds/tx-1/confirm",
			body:           actionBody,
			idempotencyKey: "k1",
			serviceErr:     domain.ErrMaxAttemptsExceeded,
			expectedStatus: http.StatusConflict,
			expectedSubstr: `"code":"max_attempts_exceeded"`,
		},
		{
			name:           "unknown action",
			path:           "/holds/tx-1/extend",
			body:           actionBody,
			idempotencyKey: "k1",
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &stubLedger{
				confirmResult: app.ConfirmResult{TxID: "tx-1", ConfirmationCode: "K7MQ2X", ConfirmedAt: now},
				releaseResult: app.ReleaseResult{TxID: "tx-1", Status: domain.TxStatusReleased},
				err:           tt.serviceErr,
			}

			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			if tt.idempotencyKey != "" {
				req.Header.Set(idempotencyHeader, tt.idempotencyKey)
			}
			rec := httptest.NewRecorder()

			HandleHoldAction(svc).ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.expectedStatus, rec.Code, rec.Body.String())
			}
			if tt.expectedSubstr != "" && !strings.Contains(rec.Body.String(), tt.expectedSubstr) {
				t.Fatalf("expected response to contain %q, got %q", tt.expectedSubstr, rec.Body.String())
			}
		})
	}
}

func TestHandleHoldAction_PassesHeaderKey(t *testing.T) {
	t.Parallel()

	svc := &stubLedger{confirmResult: app.ConfirmResult{TxID: "tx-1"}}
	req := httptest.NewRequest(http.MethodPost, "/holds/tx-1/confirm",
		strings.NewReader(`{"resource_owner_id": "owner-1", "actor_id": "u1"}`))
	req.Header.Set(idempotencyHeader, "turn-9")
	rec := httptest.NewRecorder()

	HandleHoldAction(svc).ServeHTTP(rec, req)

	if svc.lastConfirm.IdempotencyKey != "turn-9" {
		t.Fatalf("expected header key to reach the service, got %q", svc.lastConfirm.IdempotencyKey)
	}
	if svc.lastConfirm.TxID != "tx-1" || svc.lastConfirm.ActorType != "user" {
		t.Fatalf("unexpected confirm input: %+v", svc.lastConfirm)
	}
}
