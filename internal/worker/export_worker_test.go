package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"finboard/internal/amqp"
	"finboard/internal/core"
	"finboard/internal/metrics"
	"finboard/internal/sheets"
	"finboard/internal/sheets/memory"
	"finboard/internal/storage"
)

type failingLedger struct{}

func (failingLedger) AppendTransaction(context.Context, core.Transaction) (string, error) {
	return "", errors.New("quota exceeded")
}

func newStore(t *testing.T) (*storage.Repository, core.Transaction) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "finboard.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	ctx := context.Background()
	userID := core.DemoUser.ID
	acct, err := repo.CreateAccount(ctx, core.Account{Name: "Checking", Balance: core.Cents(100000), UserID: userID})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	cat, err := repo.CreateCategory(ctx, core.Category{Name: "Food", Icon: "🍔", Color: "#FF6B6B", UserID: userID})
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	tx, err := repo.CreateTransaction(ctx, core.Transaction{
		Amount:      core.Cents(7000),
		Description: "Groceries",
		Type:        core.TransactionExpense,
		CategoryID:  cat.ID,
		AccountID:   acct.ID,
		UserID:      userID,
		Date:        time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	return repo, tx
}

func TestHandleTransactionCreated(t *testing.T) {
	repo, tx := newStore(t)
	ledger := memory.New(time.UTC)
	w := NewExportWorker(repo, ledger)
	before := testutil.ToFloat64(metrics.LedgerRowsExported.WithLabelValues("ok"))

	err := w.HandleTransactionCreated(context.Background(), amqp.NewTransactionCreatedMessage(tx.ID, tx.UserID))
	if err != nil {
		t.Fatalf("HandleTransactionCreated: %v", err)
	}

	rows := ledger.Rows()
	if len(rows) != 1 {
		t.Fatalf("got %d rows", len(rows))
	}
	if rows[0][3] != "Food" || rows[0][4] != "Checking" || rows[0][2] != "-70.00" {
		t.Fatalf("unexpected row %v", rows[0])
	}
	if got := testutil.ToFloat64(metrics.LedgerRowsExported.WithLabelValues("ok")) - before; got != 1 {
		t.Fatalf("ok counter moved by %v", got)
	}
}

func TestHandleTransactionCreated_Failures(t *testing.T) {
	repo, tx := newStore(t)

	tests := []struct {
		name      string
		ledger    sheets.LedgerWriter
		msg       *amqp.TransactionCreatedMessage
		permanent bool
	}{
		{"unknown transaction", memory.New(time.UTC), amqp.NewTransactionCreatedMessage("missing", tx.UserID), true},
		{"foreign user", memory.New(time.UTC), amqp.NewTransactionCreatedMessage(tx.ID, "someone-else"), true},
		{"ledger down", failingLedger{}, amqp.NewTransactionCreatedMessage(tx.ID, tx.UserID), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewExportWorker(repo, tt.ledger).HandleTransactionCreated(context.Background(), tt.msg)
			if err == nil {
				t.Fatal("expected an error")
			}
			if got := errors.Is(err, amqp.ErrPermanent); got != tt.permanent {
				t.Fatalf("permanent = %v, want %v (err %v)", got, tt.permanent, err)
			}
		})
	}
}

func TestBackfill(t *testing.T) {
	repo, tx := newStore(t)
	ledger := memory.New(time.UTC)
	w := NewExportWorker(repo, ledger)
	ctx := context.Background()

	n, err := w.Backfill(ctx, tx.UserID, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC))
	if err != nil || n != 1 {
		t.Fatalf("Backfill() = %d, %v", n, err)
	}
	n, err = w.Backfill(ctx, tx.UserID, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC))
	if err != nil || n != 0 {
		t.Fatalf("empty Backfill() = %d, %v", n, err)
	}
	if len(ledger.Rows()) != 1 {
		t.Fatalf("got %d rows", len(ledger.Rows()))
	}

	if _, err := NewExportWorker(repo, failingLedger{}).Backfill(ctx, tx.UserID, time.Time{}, time.Now()); err == nil {
		t.Fatal("expected ledger error")
	}
}
