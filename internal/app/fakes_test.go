package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/templeobijnr/easy-islanders/internal/domain"
)

// In-memory repositories for service tests. They run WithTx callbacks
// directly (no rollback), which is enough for the single-threaded paths the
// unit tests exercise; transactional behavior is covered by the postgres
// integration tests.

type memIdemRepo struct {
	mu      sync.Mutex
	records map[string]domain.IdempotencyRecord

	failGet    error
	failInsert error
	failUpdate error
}

func newMemIdemRepo() *memIdemRepo {
	return &memIdemRepo{records: make(map[string]domain.IdempotencyRecord)}
}

func idemKey(operation, key string) string {
	return operation + "|" + key
}

func (r *memIdemRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (r *memIdemRepo) GetRecordForUpdate(_ context.Context, operation, key string) (*domain.IdempotencyRecord, error) {
	if r.failGet != nil {
		return nil, r.failGet
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[idemKey(operation, key)]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (r *memIdemRepo) InsertRecord(_ context.Context, rec domain.IdempotencyRecord) error {
	if r.failInsert != nil {
		return r.failInsert
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	k := idemKey(rec.Operation, rec.Key)
	if _, ok := r.records[k]; ok {
		return domain.ErrIdempotencyConflict
	}
	r.records[k] = rec
	return nil
}

func (r *memIdemRepo) UpdateRecord(_ context.Context, rec domain.IdempotencyRecord) error {
	if r.failUpdate != nil {
		return r.failUpdate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	k := idemKey(rec.Operation, rec.Key)
	if _, ok := r.records[k]; !ok {
		return fmt.Errorf("update of missing record %s", k)
	}
	r.records[k] = rec
	return nil
}

func (r *memIdemRepo) DeleteExpiredRecords(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, rec := range r.records {
		if rec.ExpiresAt != nil && now.After(*rec.ExpiresAt) {
			delete(r.records, k)
			n++
		}
	}
	return n, nil
}

func (r *memIdemRepo) ListRecords(_ context.Context, operation string, limit int) ([]domain.IdempotencyRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.IdempotencyRecord, 0)
	for _, rec := range r.records {
		if rec.Operation == operation {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memIdemRepo) record(operation, key string) (domain.IdempotencyRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[idemKey(operation, key)]
	return rec, ok
}

type memLedgerRepo struct {
	mu    sync.Mutex
	txns  map[string]domain.Transaction
	locks map[string]domain.ResourceLock
}

func newMemLedgerRepo() *memLedgerRepo {
	return &memLedgerRepo{
		txns:  make(map[string]domain.Transaction),
		locks: make(map[string]domain.ResourceLock),
	}
}

func (r *memLedgerRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (r *memLedgerRepo) GetTransactionForUpdate(_ context.Context, txID string) (domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	txn, ok := r.txns[txID]
	if !ok {
		return domain.Transaction{}, domain.ErrHoldNotFound
	}
	return txn, nil
}

func (r *memLedgerRepo) CreateTransaction(_ context.Context, txn domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txns[txn.ID] = txn
	return nil
}

func (r *memLedgerRepo) UpdateTransaction(_ context.Context, txn domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.txns[txn.ID]; !ok {
		return domain.ErrHoldNotFound
	}
	r.txns[txn.ID] = txn
	return nil
}

func (r *memLedgerRepo) AcquireLock(_ context.Context, lock domain.ResourceLock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.locks[lock.Key]; ok {
		return domain.ErrResourceUnavailable
	}
	r.locks[lock.Key] = lock
	return nil
}

func (r *memLedgerRepo) ReleaseLock(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.locks, key)
	return nil
}

func (r *memLedgerRepo) ListTransactionsByOwner(_ context.Context, resourceOwnerID string, limit int) ([]domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Transaction, 0)
	for _, txn := range r.txns {
		if txn.ResourceOwnerID == resourceOwnerID {
			out = append(out, txn)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memLedgerRepo) transaction(txID string) (domain.Transaction, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	txn, ok := r.txns[txID]
	return txn, ok
}

func (r *memLedgerRepo) lockCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}

type memGateRepo struct {
	mu      sync.Mutex
	actions map[string]domain.PendingAction
}

func newMemGateRepo() *memGateRepo {
	return &memGateRepo{actions: make(map[string]domain.PendingAction)}
}

func (r *memGateRepo) UpsertPendingAction(_ context.Context, action domain.PendingAction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[action.SessionID] = action
	return nil
}

func (r *memGateRepo) GetPendingAction(_ context.Context, sessionID string) (*domain.PendingAction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	action, ok := r.actions[sessionID]
	if !ok {
		return nil, nil
	}
	return &action, nil
}

func (r *memGateRepo) DeletePendingAction(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.actions, sessionID)
	return nil
}

func (r *memGateRepo) has(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.actions[sessionID]
	return ok
}

type fakeProvider struct {
	mu     sync.Mutex
	calls  int
	lastTo string
	err    error
	nextID string
}

func (p *fakeProvider) Send(_ context.Context, to, body string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.lastTo = to
	if p.err != nil {
		return "", p.err
	}
	if p.nextID != "" {
		return p.nextID, nil
	}
	return fmt.Sprintf("prov-%d", p.calls), nil
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fakeLedger struct {
	confirmCalls  int
	releaseCalls  int
	lastConfirm   ConfirmInput
	lastRelease   ReleaseInput
	confirmErr    error
	releaseErr    error
	confirmResult ConfirmResult
}

func (f *fakeLedger) Confirm(_ context.Context, in ConfirmInput) (ConfirmResult, error) {
	f.confirmCalls++
	f.lastConfirm = in
	if f.confirmErr != nil {
		return ConfirmResult{}, f.confirmErr
	}
	return f.confirmResult, nil
}

func (f *fakeLedger) Release(_ context.Context, in ReleaseInput) (ReleaseResult, error) {
	f.releaseCalls++
	f.lastRelease = in
	if f.releaseErr != nil {
		return ReleaseResult{}, f.releaseErr
	}
	return ReleaseResult{TxID: in.TxID, Status: domain.TxStatusReleased}, nil
}
