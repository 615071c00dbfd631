package app

import (
	"context"

	"github.com/templeobijnr/easy-islanders/internal/domain"
)

// AdminService exposes the read-side views an operator dashboard consumes:
// a resource owner's ledger entries, recent dispatch records, and a manual
// trigger for idempotency-record cleanup.
type AdminService struct {
	ledgerRepo LedgerRepository
	idem       *IdempotencyLedger
}

func NewAdminService(ledgerRepo LedgerRepository, idem *IdempotencyLedger) *AdminService {
	return &AdminService{
		ledgerRepo: ledgerRepo,
		idem:       idem,
	}
}

const defaultListLimit = 50

func (s *AdminService) ListTransactions(ctx context.Context, resourceOwnerID string, limit int) ([]domain.Transaction, error) {
	if resourceOwnerID == "" {
		return nil, domain.ErrHoldNotFound
	}
	if limit <= 0 || limit > 500 {
		limit = defaultListLimit
	}
	return s.ledgerRepo.ListTransactionsByOwner(ctx, resourceOwnerID, limit)
}

func (s *AdminService) ListDispatchMessages(ctx context.Context, limit int) ([]domain.DispatchMessage, error) {
	if limit <= 0 || limit > 500 {
		limit = defaultListLimit
	}
	records, err := s.idem.repo.ListRecords(ctx, opDispatch, limit)
	if err != nil {
		return nil, err
	}
	messages := make([]domain.DispatchMessage, 0, len(records))
	for _, rec := range records {
		msg, err := messageFromRecord(rec)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (s *AdminService) PurgeIdempotencyRecords(ctx context.Context) (int64, error) {
	return s.idem.PurgeExpired(ctx)
}
