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

const categoryColumns = `id, user_id, name, icon, color, created_at`

func (r *Repository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	c.ID = r.newID()
	c.CreatedAt = fromMillis(toMillis(r.now()))
	if err := r.insertCategory(ctx, r.db, c); err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

func (r *Repository) insertCategory(ctx context.Context, q querier, c core.Category) error {
	_, err := q.ExecContext(ctx, r.rebind(`
		INSERT INTO categories (`+categoryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)`),
		c.ID, c.UserID, c.Name, c.Icon, c.Color, toMillis(c.CreatedAt))
	return err
}

func (r *Repository) GetCategory(ctx context.Context, id string) (core.Category, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(`SELECT `+categoryColumns+` FROM categories WHERE id = ?`), id)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, ErrNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category %s: %w", id, err)
	}
	return c, nil
}

// ListCategories returns the user's categories ordered by name.
func (r *Repository) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(`
		SELECT `+categoryColumns+` FROM categories
		WHERE user_id = ?
		ORDER BY name ASC, created_at ASC`), userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []core.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return categories, nil
}

// SeedCategories inserts defaults for a user who has no categories yet.
//
// The seed is claimed through the category_seeds primary key in the same
// transaction as the inserts, so of several concurrent callers exactly one
// inserts and the others see the claim and do nothing. It reports whether
// this call inserted the defaults.
func (r *Repository) SeedCategories(ctx context.Context, userID string, defaults []core.Category) (bool, error) {
	seeded := false
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		now := r.now()
		res, err := tx.ExecContext(ctx, r.rebind(`
			INSERT INTO category_seeds (user_id, seeded_at) VALUES (?, ?)
			ON CONFLICT (user_id) DO NOTHING`), userID, toMillis(now))
		if err != nil {
			return fmt.Errorf("claim category seed: %w", err)
		}
		claimed, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("claim category seed rows: %w", err)
		}
		if claimed == 0 {
			return nil
		}

		var existing int64
		if err := tx.QueryRowContext(ctx, r.rebind(`SELECT COUNT(*) FROM categories WHERE user_id = ?`), userID).Scan(&existing); err != nil {
			return fmt.Errorf("count categories: %w", err)
		}
		if existing > 0 {
			return nil
		}

		createdAt := fromMillis(toMillis(now))
		for _, c := range defaults {
			c.ID = r.newID()
			c.UserID = userID
			c.CreatedAt = createdAt
			if err := r.insertCategory(ctx, tx, c); err != nil {
				return fmt.Errorf("insert default category %q: %w", c.Name, err)
			}
		}
		seeded = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if seeded {
		slog.InfoContext(ctx, "Default categories seeded",
			log.FieldComponent, log.ComponentStorage,
			log.FieldOperation, log.OpSeed,
			log.FieldUserID, userID,
			"count", len(defaults))
	}
	return seeded, nil
}

func scanCategory(s rowScanner) (core.Category, error) {
	var (
		c       core.Category
		created int64
	)
	if err := s.Scan(&c.ID, &c.UserID, &c.Name, &c.Icon, &c.Color, &created); err != nil {
		return core.Category{}, err
	}
	c.CreatedAt = fromMillis(created)
	return c, nil
}
