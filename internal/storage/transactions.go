package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"finboard/internal/core"
	"finboard/internal/log"
)

const joinedTransactionSelect = `
	SELECT t.id, t.user_id, t.account_id, t.category_id, t.amount_cents, t.description, t.type, t.date, t.created_at,
	       c.id, c.user_id, c.name, c.icon, c.color, c.created_at,
	       a.id, a.user_id, a.name, a.balance_cents, a.created_at, a.updated_at
	FROM transactions t
	LEFT JOIN categories c ON c.id = t.category_id
	LEFT JOIN accounts a ON a.id = t.account_id`

// CreateTransaction records t and applies its signed amount to the account
// balance as one unit. The account and category must belong to t.UserID,
// otherwise core.ErrAccountNotOwned or core.ErrCategoryNotOwned is returned
// and nothing is written. The stored transaction is returned joined.
func (r *Repository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t.ID = r.newID()
	t.CreatedAt = fromMillis(toMillis(r.now()))

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if err := r.checkOwner(ctx, tx, "accounts", t.AccountID, t.UserID, core.ErrAccountNotOwned); err != nil {
			return err
		}
		if err := r.checkOwner(ctx, tx, "categories", t.CategoryID, t.UserID, core.ErrCategoryNotOwned); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, r.rebind(`
			INSERT INTO transactions (id, user_id, account_id, category_id, amount_cents, description, type, date, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			t.ID, t.UserID, t.AccountID, t.CategoryID, t.Amount.Cents, t.Description, string(t.Type), toMillis(t.Date), toMillis(t.CreatedAt))
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}

		return r.incrementBalance(ctx, tx, t.AccountID, t.SignedAmount())
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		log.FieldComponent, log.ComponentStorage,
		"id", t.ID,
		"user_id", t.UserID,
		"account_id", t.AccountID,
		"type", t.Type,
		"amount_cents", t.Amount.Cents)

	return r.GetTransaction(ctx, t.ID)
}

func (r *Repository) checkOwner(ctx context.Context, tx *sql.Tx, table, id, userID string, notOwned error) error {
	var owner string
	err := tx.QueryRowContext(ctx, r.rebind(`SELECT user_id FROM `+table+` WHERE id = ?`), id).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && owner != userID) {
		return notOwned
	}
	if err != nil {
		return fmt.Errorf("check %s owner: %w", table, err)
	}
	return nil
}

func (r *Repository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(joinedTransactionSelect+` WHERE t.id = ?`), id)
	t, err := scanJoinedTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return t, nil
}

// ListTransactions returns every transaction of the user, most recent first.
func (r *Repository) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	return r.queryTransactions(ctx, joinedTransactionSelect+`
		WHERE t.user_id = ?
		ORDER BY t.date DESC, t.created_at DESC`, userID)
}

// ListTransactionsBetween filters on start <= date <= end.
func (r *Repository) ListTransactionsBetween(ctx context.Context, userID string, start, end time.Time) ([]core.Transaction, error) {
	return r.queryTransactions(ctx, joinedTransactionSelect+`
		WHERE t.user_id = ? AND t.date >= ? AND t.date <= ?
		ORDER BY t.date DESC, t.created_at DESC`, userID, toMillis(start), toMillis(end))
}

func (r *Repository) RecentTransactions(ctx context.Context, userID string, limit int) ([]core.Transaction, error) {
	return r.queryTransactions(ctx, joinedTransactionSelect+`
		WHERE t.user_id = ?
		ORDER BY t.date DESC, t.created_at DESC
		LIMIT ?`, userID, limit)
}

func (r *Repository) queryTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txs := []core.Transaction{}
	for rows.Next() {
		t, err := scanJoinedTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txs, nil
}

func scanJoinedTransaction(s rowScanner) (core.Transaction, error) {
	var (
		t             core.Transaction
		txType        string
		date, created int64
		cID, cUser    sql.NullString
		cName, cIcon  sql.NullString
		cColor        sql.NullString
		cCreated      sql.NullInt64
		aID, aUser    sql.NullString
		aName         sql.NullString
		aBalance      sql.NullInt64
		aCreated      sql.NullInt64
		aUpdated      sql.NullInt64
	)
	err := s.Scan(
		&t.ID, &t.UserID, &t.AccountID, &t.CategoryID, &t.Amount.Cents, &t.Description, &txType, &date, &created,
		&cID, &cUser, &cName, &cIcon, &cColor, &cCreated,
		&aID, &aUser, &aName, &aBalance, &aCreated, &aUpdated,
	)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Type = core.TransactionType(txType)
	t.Date = fromMillis(date)
	t.CreatedAt = fromMillis(created)

	if cID.Valid {
		t.Category = &core.Category{
			ID:        cID.String,
			UserID:    cUser.String,
			Name:      cName.String,
			Icon:      cIcon.String,
			Color:     cColor.String,
			CreatedAt: fromMillis(cCreated.Int64),
		}
	}
	if aID.Valid {
		t.Account = &core.Account{
			ID:        aID.String,
			UserID:    aUser.String,
			Name:      aName.String,
			Balance:   core.Cents(aBalance.Int64),
			CreatedAt: fromMillis(aCreated.Int64),
			UpdatedAt: fromMillis(aUpdated.Int64),
		}
	}
	return t, nil
}
