package services

import (
	"context"
	"time"

	"finboard/internal/core"
)

type (
	AccountStore interface {
		CreateAccount(ctx context.Context, a core.Account) (core.Account, error)
		ListAccounts(ctx context.Context, userID string) ([]core.Account, error)
		AdjustBalance(ctx context.Context, accountID string, delta core.Money) (core.Account, error)
		SumBalances(ctx context.Context, userID string) (core.Money, error)
	}

	CategoryStore interface {
		CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
		ListCategories(ctx context.Context, userID string) ([]core.Category, error)
		// SeedCategories inserts defaults once per user and reports whether
		// this call did the insert.
		SeedCategories(ctx context.Context, userID string, defaults []core.Category) (bool, error)
	}

	TransactionStore interface {
		// CreateTransaction stores t and applies its signed amount to the
		// account balance atomically.
		CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
		ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error)
		ListTransactionsBetween(ctx context.Context, userID string, start, end time.Time) ([]core.Transaction, error)
		RecentTransactions(ctx context.Context, userID string, limit int) ([]core.Transaction, error)
	}

	// EventPublisher announces committed transactions to downstream consumers.
	EventPublisher interface {
		PublishTransactionCreated(ctx context.Context, transactionID, userID string) error
	}

	// Invalidator drops cached reads for a user after a write.
	Invalidator interface {
		InvalidateUser(userID string)
	}
)

type noopInvalidator struct{}

func (noopInvalidator) InvalidateUser(string) {}
