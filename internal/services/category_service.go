package services

import (
	"context"
	"fmt"
	"strings"

	"finboard/internal/core"
	"finboard/internal/log"
)

type CategoryService struct {
	store CategoryStore
}

func NewCategoryService(store CategoryStore) *CategoryService {
	return &CategoryService{store: store}
}

// List returns the user's categories alphabetically.
func (s *CategoryService) List(ctx context.Context, userID string) ReadResult[[]core.Category] {
	return softRead(ctx, log.ComponentCategory, log.OpList, []core.Category{}, func() ([]core.Category, error) {
		return s.store.ListCategories(ctx, userID)
	})
}

// Create adds a category. Names are not required to be unique.
func (s *CategoryService) Create(ctx context.Context, name, icon, color, userID string) (core.Category, error) {
	c := core.Category{
		Name:   strings.TrimSpace(name),
		Icon:   strings.TrimSpace(icon),
		Color:  strings.TrimSpace(color),
		UserID: strings.TrimSpace(userID),
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	created, err := s.store.CreateCategory(ctx, c)
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return created, nil
}

// EnsureDefaults seeds the default set for a user with no categories and
// returns the full list. Repeated and concurrent calls seed at most once.
func (s *CategoryService) EnsureDefaults(ctx context.Context, userID string) ReadResult[[]core.Category] {
	return softRead(ctx, log.ComponentCategory, log.OpSeed, []core.Category{}, func() ([]core.Category, error) {
		if _, err := s.store.SeedCategories(ctx, userID, core.DefaultCategories(userID)); err != nil {
			return nil, fmt.Errorf("seed default categories: %w", err)
		}
		return s.store.ListCategories(ctx, userID)
	})
}
