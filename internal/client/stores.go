package client

import (
	"context"
	"slices"
	"strings"
	"sync"

	"finboard/internal/core"
)

// state is the loaded copy shared by the resource stores. Loading starts
// true and becomes false after the first Refetch completes.
type state[T any] struct {
	mu      sync.RWMutex
	items   []T
	loading bool
	err     error
}

func (s *state[T]) init() {
	s.items = []T{}
	s.loading = true
}

func (s *state[T]) refetch(ctx context.Context, fetch func(context.Context) ([]T, error)) error {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	items, err := fetch(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.err = err
	if err == nil {
		if items == nil {
			items = []T{}
		}
		s.items = items
	}
	return err
}

func (s *state[T]) insert(item T, front bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if front {
		s.items = append([]T{item}, s.items...)
		return
	}
	s.items = append(s.items, item)
}

// Items returns a copy of the cached items.
func (s *state[T]) Items() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items)
}

func (s *state[T]) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Err is the error of the last Refetch, nil after a successful one.
func (s *state[T]) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Accounts caches the user's accounts. A failed Refetch keeps the previous
// items.
type Accounts struct {
	state[core.Account]
	c *Client
}

func NewAccounts(c *Client) *Accounts {
	a := &Accounts{c: c}
	a.init()
	return a
}

func (a *Accounts) Refetch(ctx context.Context) error {
	return a.refetch(ctx, a.c.Accounts)
}

// Add creates the account and appends it once the server accepts it.
func (a *Accounts) Add(ctx context.Context, name string, balance core.Money) (core.Account, error) {
	created, err := a.c.CreateAccount(ctx, name, balance)
	if err != nil {
		return core.Account{}, err
	}
	a.insert(created, false)
	return created, nil
}

// TotalBalance sums the cached balances.
func (a *Accounts) TotalBalance() core.Money {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var total core.Money
	for _, acct := range a.items {
		total = total.Add(acct.Balance)
	}
	return total
}

// Transactions caches the user's transactions, most recent first.
type Transactions struct {
	state[core.Transaction]
	c *Client
}

func NewTransactions(c *Client) *Transactions {
	t := &Transactions{c: c}
	t.init()
	return t
}

func (t *Transactions) Refetch(ctx context.Context) error {
	return t.refetch(ctx, t.c.Transactions)
}

// Add records the transaction and prepends it once the server accepts it.
// Account balances cached elsewhere are stale afterwards.
func (t *Transactions) Add(ctx context.Context, in NewTransaction) (core.Transaction, error) {
	created, err := t.c.CreateTransaction(ctx, in)
	if err != nil {
		return core.Transaction{}, err
	}
	t.insert(created, true)
	return created, nil
}

// Categories caches the user's categories. Add refetches instead of
// inserting so the cache keeps the server's name order; if that refetch
// fails the new category is appended and Err stays nil, since the create
// itself succeeded.
type Categories struct {
	state[core.Category]
	c *Client
}

func NewCategories(c *Client) *Categories {
	cs := &Categories{c: c}
	cs.init()
	return cs
}

func (cs *Categories) Refetch(ctx context.Context) error {
	return cs.refetch(ctx, cs.c.Categories)
}

func (cs *Categories) Add(ctx context.Context, name, icon, color string) (core.Category, error) {
	created, err := cs.c.CreateCategory(ctx, name, icon, color)
	if err != nil {
		return core.Category{}, err
	}
	if err := cs.Refetch(ctx); err != nil {
		cs.mu.Lock()
		cs.items = append(cs.items, created)
		cs.err = nil
		cs.mu.Unlock()
	}
	return created, nil
}

// ByName returns the first cached category with the given name,
// case-insensitively.
func (cs *Categories) ByName(name string) (core.Category, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	for _, c := range cs.items {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return core.Category{}, false
}
