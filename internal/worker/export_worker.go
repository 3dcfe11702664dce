// Package worker exports committed transactions to the external ledger.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finboard/internal/amqp"
	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/metrics"
	"finboard/internal/sheets"
	"finboard/internal/storage"
)

// TransactionReader loads stored transactions joined with their category
// and account.
type TransactionReader interface {
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	ListTransactionsBetween(ctx context.Context, userID string, start, end time.Time) ([]core.Transaction, error)
}

// ExportWorker turns TransactionCreated events into ledger rows.
type ExportWorker struct {
	store  TransactionReader
	ledger sheets.LedgerWriter
}

func NewExportWorker(store TransactionReader, ledger sheets.LedgerWriter) *ExportWorker {
	return &ExportWorker{store: store, ledger: ledger}
}

// HandleTransactionCreated appends the announced transaction. Events for
// rows that do not exist, or that belong to another user, are permanent
// failures; everything else is retried by the broker.
func (w *ExportWorker) HandleTransactionCreated(ctx context.Context, msg *amqp.TransactionCreatedMessage) error {
	t, err := w.store.GetTransaction(ctx, msg.TransactionID)
	if errors.Is(err, storage.ErrNotFound) {
		metrics.LedgerRowsExported.WithLabelValues("skipped").Inc()
		return fmt.Errorf("transaction %s: %w", msg.TransactionID, errors.Join(err, amqp.ErrPermanent))
	}
	if err != nil {
		return fmt.Errorf("load transaction: %w", err)
	}
	if msg.UserID != "" && msg.UserID != t.UserID {
		metrics.LedgerRowsExported.WithLabelValues("skipped").Inc()
		return fmt.Errorf("transaction %s belongs to another user: %w", t.ID, amqp.ErrPermanent)
	}
	return w.export(ctx, t)
}

// Backfill appends every transaction of userID dated within [from, to], in
// store order. It stops at the first failure.
func (w *ExportWorker) Backfill(ctx context.Context, userID string, from, to time.Time) (int, error) {
	txs, err := w.store.ListTransactionsBetween(ctx, userID, from, to)
	if err != nil {
		return 0, fmt.Errorf("list transactions: %w", err)
	}
	for i := len(txs) - 1; i >= 0; i-- {
		if err := w.export(ctx, txs[i]); err != nil {
			return len(txs) - 1 - i, err
		}
	}

	log.FromContext(ctx).InfoContext(ctx, "Backfill completed",
		log.FieldComponent, log.ComponentWorker,
		log.FieldUserID, userID,
		"rows", len(txs))
	return len(txs), nil
}

func (w *ExportWorker) export(ctx context.Context, t core.Transaction) error {
	ref, err := w.ledger.AppendTransaction(ctx, t)
	if err != nil {
		metrics.LedgerRowsExported.WithLabelValues("error").Inc()
		return fmt.Errorf("append to ledger: %w", err)
	}
	metrics.LedgerRowsExported.WithLabelValues("ok").Inc()

	fields := log.NewFields().
		WithComponent(log.ComponentWorker).
		WithUser(t.UserID).
		WithTransaction(t.ID, t.AccountID, string(t.Type), t.Amount.Cents)
	log.FromContext(ctx).InfoContext(ctx, "Transaction exported", append(fields.ToSlice(), "ledger_ref", ref)...)
	return nil
}
