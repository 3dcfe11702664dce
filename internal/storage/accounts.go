package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"finboard/internal/core"
	"finboard/internal/log"
)

const accountColumns = `id, user_id, name, balance_cents, created_at, updated_at`

func (r *Repository) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	now := fromMillis(toMillis(r.now()))
	a.ID = r.newID()
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, r.rebind(`
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)`),
		a.ID, a.UserID, a.Name, a.Balance.Cents, toMillis(a.CreatedAt), toMillis(a.UpdatedAt))
	if err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}

	slog.InfoContext(ctx, "Account saved",
		log.FieldComponent, log.ComponentStorage,
		"id", a.ID,
		"user_id", a.UserID,
		"balance_cents", a.Balance.Cents)
	return a, nil
}

func (r *Repository) GetAccount(ctx context.Context, id string) (core.Account, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(`SELECT `+accountColumns+` FROM accounts WHERE id = ?`), id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, ErrNotFound
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("get account %s: %w", id, err)
	}
	return a, nil
}

// ListAccounts returns the user's accounts, newest first.
func (r *Repository) ListAccounts(ctx context.Context, userID string) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(`
		SELECT `+accountColumns+` FROM accounts
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC`), userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	accounts := []core.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}

// AdjustBalance adds delta to the stored balance in a single UPDATE so
// concurrent adjustments never lose increments.
func (r *Repository) AdjustBalance(ctx context.Context, accountID string, delta core.Money) (core.Account, error) {
	var out core.Account
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if err := r.incrementBalance(ctx, tx, accountID, delta); err != nil {
			return err
		}
		a, err := scanAccount(tx.QueryRowContext(ctx, r.rebind(`SELECT `+accountColumns+` FROM accounts WHERE id = ?`), accountID))
		if err != nil {
			return fmt.Errorf("reload account: %w", err)
		}
		out = a
		return nil
	})
	if err != nil {
		return core.Account{}, err
	}
	return out, nil
}

func (r *Repository) incrementBalance(ctx context.Context, q querier, accountID string, delta core.Money) error {
	res, err := q.ExecContext(ctx, r.rebind(`
		UPDATE accounts
		SET balance_cents = balance_cents + ?, updated_at = ?
		WHERE id = ?`), delta.Cents, toMillis(r.now()), accountID)
	if err != nil {
		return fmt.Errorf("adjust balance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("adjust balance rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SumBalances totals every account balance owned by userID.
func (r *Repository) SumBalances(ctx context.Context, userID string) (core.Money, error) {
	var cents int64
	err := r.db.QueryRowContext(ctx, r.rebind(`
		SELECT COALESCE(SUM(balance_cents), 0) FROM accounts WHERE user_id = ?`), userID).Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum balances: %w", err)
	}
	return core.Cents(cents), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(s rowScanner) (core.Account, error) {
	var (
		a                core.Account
		created, updated int64
	)
	if err := s.Scan(&a.ID, &a.UserID, &a.Name, &a.Balance.Cents, &created, &updated); err != nil {
		return core.Account{}, err
	}
	a.CreatedAt = fromMillis(created)
	a.UpdatedAt = fromMillis(updated)
	return a, nil
}
