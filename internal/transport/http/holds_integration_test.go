package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/templeobijnr/easy-islanders/internal/app"
	"github.com/templeobijnr/easy-islanders/internal/clock"
	"github.com/templeobijnr/easy-islanders/internal/storage/postgres"
	"github.com/templeobijnr/easy-islanders/internal/testutil"
)

func TestHoldLifecycle_HTTPIntegration(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFixed(now)
	idem := app.NewIdempotencyLedger(postgres.NewIdempotencyRepository(pool), clk)
	ledger := app.NewLedgerService(postgres.NewLedgerRepository(pool), idem, clk)

	createBody := `{
		"resource_owner_id": "owner-1",
		"offering_id": "villa-42",
		"date": "2025-06-01",
		"time": "14:00",
		"party_size": 2,
		"user_id": "u1",
		"idempotency_key": "hold-turn-1"
	}`

	req := httptest.NewRequest(http.MethodPost, "/holds", strings.NewReader(createBody))
	rec := httptest.NewRecorder()
	HandleCreateHold(ledger).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created createHoldResponse
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !created.HoldExpiresAt.Equal(now.Add(15 * time.Minute)) {
		t.Fatalf("unexpected expiry: %v", created.HoldExpiresAt)
	}

	// Same idempotency key replays the same transaction.
	req = httptest.NewRequest(http.MethodPost, "/holds", strings.NewReader(createBody))
	rec = httptest.NewRecorder()
	HandleCreateHold(ledger).ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 on replay, got %d", rec.Code)
	}
	var replayed createHoldResponse
	if err := json.NewDecoder(rec.Body).Decode(&replayed); err != nil {
		t.Fatalf("decode replay: %v", err)
	}
	if replayed.TxID != created.TxID {
		t.Fatalf("expected same tx on replay, got %s and %s", created.TxID, replayed.TxID)
	}

	// A competing hold on the same slot is refused.
	competing := strings.Replace(createBody, "hold-turn-1", "hold-turn-2", 1)
	req = httptest.NewRequest(http.MethodPost, "/holds", strings.NewReader(competing))
	rec = httptest.NewRecorder()
	HandleCreateHold(ledger).ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for taken slot, got %d: %s", rec.Code, rec.Body.String())
	}

	// Confirm the hold.
	req = httptest.NewRequest(http.MethodPost, "/holds/"+created.TxID+"/confirm",
		strings.NewReader(`{"resource_owner_id": "owner-1", "actor_id": "u1"}`))
	req.Header.Set(idempotencyHeader, "confirm-turn-1")
	rec = httptest.NewRecorder()
	HandleHoldAction(ledger).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var confirmed confirmHoldResponse
	if err := json.NewDecoder(rec.Body).Decode(&confirmed); err != nil {
		t.Fatalf("decode confirm: %v", err)
	}
	if len(confirmed.ConfirmationCode) != 6 {
		t.Fatalf("expected 6-char confirmation code, got %q", confirmed.ConfirmationCode)
	}

	// The slot is free again after confirmation.
	var locks int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM resource_locks`).Scan(&locks); err != nil {
		t.Fatalf("count locks: %v", err)
	}
	if locks != 0 {
		t.Fatalf("expected lock freed, got %d", locks)
	}

	// A second confirm under a new key reports the terminal state.
	req = httptest.NewRequest(http.MethodPost, "/holds/"+created.TxID+"/confirm",
		strings.NewReader(`{"resource_owner_id": "owner-1", "actor_id": "u1"}`))
	req.Header.Set(idempotencyHeader, "confirm-turn-2")
	rec = httptest.NewRecorder()
	HandleHoldAction(ledger).ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for double confirm, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"code":"already_confirmed"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}
