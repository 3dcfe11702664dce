package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/metrics"
)

// NewTransaction is the input for TransactionService.Create. A zero Date
// means now.
type NewTransaction struct {
	Amount      core.Money
	Description string
	Type        core.TransactionType
	CategoryID  string
	AccountID   string
	UserID      string
	Date        time.Time
}

type TransactionService struct {
	store       TransactionStore
	publisher   EventPublisher
	invalidator Invalidator
	now         func() time.Time
}

type TransactionOption func(*TransactionService)

// WithPublisher announces each committed transaction on p.
func WithPublisher(p EventPublisher) TransactionOption {
	return func(s *TransactionService) { s.publisher = p }
}

func WithInvalidator(inv Invalidator) TransactionOption {
	return func(s *TransactionService) { s.invalidator = inv }
}

func WithTransactionClock(now func() time.Time) TransactionOption {
	return func(s *TransactionService) { s.now = now }
}

func NewTransactionService(store TransactionStore, opts ...TransactionOption) *TransactionService {
	s := &TransactionService{
		store:       store,
		invalidator: noopInvalidator{},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns the user's transactions joined with category and account,
// most recent first.
func (s *TransactionService) List(ctx context.Context, userID string) ReadResult[[]core.Transaction] {
	return softRead(ctx, log.ComponentLedger, log.OpList, []core.Transaction{}, func() ([]core.Transaction, error) {
		return s.store.ListTransactions(ctx, userID)
	})
}

// ListByDateRange filters on start <= date <= end.
func (s *TransactionService) ListByDateRange(ctx context.Context, userID string, start, end time.Time) ReadResult[[]core.Transaction] {
	return softRead(ctx, log.ComponentLedger, "list_range", []core.Transaction{}, func() ([]core.Transaction, error) {
		return s.store.ListTransactionsBetween(ctx, userID, start, end)
	})
}

// Recent returns at most limit transactions, most recent first.
func (s *TransactionService) Recent(ctx context.Context, userID string, limit int) ReadResult[[]core.Transaction] {
	return softRead(ctx, log.ComponentLedger, "recent", []core.Transaction{}, func() ([]core.Transaction, error) {
		return s.store.RecentTransactions(ctx, userID, limit)
	})
}

// Create records the transaction and moves the account balance by its signed
// amount in one store transaction. Either both happen or neither does.
func (s *TransactionService) Create(ctx context.Context, in NewTransaction) (core.Transaction, error) {
	t := core.Transaction{
		Amount:      in.Amount,
		Description: strings.TrimSpace(in.Description),
		Type:        in.Type,
		CategoryID:  strings.TrimSpace(in.CategoryID),
		AccountID:   strings.TrimSpace(in.AccountID),
		UserID:      strings.TrimSpace(in.UserID),
		Date:        in.Date,
	}
	if t.Date.IsZero() {
		t.Date = s.now()
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	created, err := s.store.CreateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("record transaction: %w", err)
	}
	metrics.TransactionsCreated.WithLabelValues(string(created.Type)).Inc()
	s.invalidator.InvalidateUser(created.UserID)

	log.FromContext(ctx).InfoContext(ctx, "Transaction recorded", log.NewFields().
		WithComponent(log.ComponentLedger).
		WithUser(created.UserID).
		WithTransaction(created.ID, created.AccountID, string(created.Type), created.Amount.Cents).
		ToSlice()...)

	s.publish(ctx, created)
	return created, nil
}

// publish never fails the request: the transaction is already committed.
func (s *TransactionService) publish(ctx context.Context, t core.Transaction) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTransactionCreated(ctx, t.ID, t.UserID); err != nil {
		metrics.EventsPublished.WithLabelValues("error").Inc()
		log.LogError(ctx, "Failed to publish transaction event", err, log.ComponentAMQP, log.OpPublish,
			log.NewFields().WithUser(t.UserID))
		return
	}
	metrics.EventsPublished.WithLabelValues("ok").Inc()
}
