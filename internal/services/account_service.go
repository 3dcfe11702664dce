package services

import (
	"context"
	"fmt"
	"strings"

	"finboard/internal/core"
	"finboard/internal/log"
)

type AccountService struct {
	store       AccountStore
	invalidator Invalidator
}

func NewAccountService(store AccountStore, inv Invalidator) *AccountService {
	if inv == nil {
		inv = noopInvalidator{}
	}
	return &AccountService{store: store, invalidator: inv}
}

// List returns the user's accounts, newest first.
func (s *AccountService) List(ctx context.Context, userID string) ReadResult[[]core.Account] {
	return softRead(ctx, log.ComponentAccounts, log.OpList, []core.Account{}, func() ([]core.Account, error) {
		return s.store.ListAccounts(ctx, userID)
	})
}

func (s *AccountService) Create(ctx context.Context, name string, balance core.Money, userID string) (core.Account, error) {
	a := core.Account{Name: strings.TrimSpace(name), Balance: balance, UserID: strings.TrimSpace(userID)}
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}
	created, err := s.store.CreateAccount(ctx, a)
	if err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}
	s.invalidator.InvalidateUser(created.UserID)
	return created, nil
}

// AdjustBalance adds delta to the account balance. Negative results are
// allowed.
func (s *AccountService) AdjustBalance(ctx context.Context, accountID string, delta core.Money) (core.Account, error) {
	if strings.TrimSpace(accountID) == "" {
		return core.Account{}, core.ErrMissingFields
	}
	a, err := s.store.AdjustBalance(ctx, accountID, delta)
	if err != nil {
		return core.Account{}, fmt.Errorf("adjust balance of %s: %w", accountID, err)
	}
	s.invalidator.InvalidateUser(a.UserID)
	return a, nil
}

// TotalBalance sums every balance the user owns; zero without accounts.
func (s *AccountService) TotalBalance(ctx context.Context, userID string) ReadResult[core.Money] {
	return softRead(ctx, log.ComponentAccounts, "total_balance", core.Money{}, func() (core.Money, error) {
		return s.store.SumBalances(ctx, userID)
	})
}
