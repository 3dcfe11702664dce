package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"finboard/internal/core"
)

// GetUser loads a user profile. Users are provisioned outside this service.
func (r *Repository) GetUser(ctx context.Context, id string) (core.User, error) {
	var u core.User
	err := r.db.QueryRowContext(ctx, r.rebind(`SELECT id, name, email, image FROM users WHERE id = ?`), id).
		Scan(&u.ID, &u.Name, &u.Email, &u.Image)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user %s: %w", id, err)
	}
	return u, nil
}
