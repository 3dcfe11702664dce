package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"finboard/internal/core"
	apphttp "finboard/internal/http"
	"finboard/internal/services"
	"finboard/internal/storage"
)

// newAPI serves the real handlers over a temporary SQLite database.
func newAPI(t *testing.T) *httptest.Server {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "finboard.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	analyticsSvc := services.NewAnalyticsService(repo, services.WithLocation(time.UTC))
	accounts := services.NewAccountService(repo, nil)
	transactions := services.NewTransactionService(repo)
	srv := apphttp.NewServer(":0", apphttp.Deps{
		Accounts:     accounts,
		Categories:   services.NewCategoryService(repo),
		Transactions: transactions,
		Analytics:    analyticsSvc,
		Dashboard:    services.NewDashboardService(accounts, transactions, analyticsSvc),
		Users:        repo,
		Store:        repo,
	}, apphttp.Options{RateLimitPerMinute: 1000})
	t.Cleanup(func() { srv.Shutdown(context.Background()) })

	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func TestClientEndToEnd(t *testing.T) {
	ts := newAPI(t)
	c := New(ts.URL, core.DemoUser.ID, WithHTTPClient(ts.Client()))
	ctx := context.Background()

	user, err := c.User(ctx, core.DemoUser.ID)
	if err != nil || user.Name != core.DemoUser.Name {
		t.Fatalf("User() = %+v, %v", user, err)
	}

	acct, err := c.CreateAccount(ctx, "Checking", core.Cents(100000))
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	cats, err := c.Categories(ctx)
	if err != nil || len(cats) != 7 {
		t.Fatalf("Categories() = %d, %v", len(cats), err)
	}

	date := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	tx, err := c.CreateTransaction(ctx, NewTransaction{
		Amount:      core.Cents(7000),
		Description: "Groceries",
		Type:        core.TransactionExpense,
		CategoryID:  cats[0].ID,
		AccountID:   acct.ID,
		Date:        date,
	})
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if !tx.Date.Equal(date) || tx.Amount.Cents != 7000 {
		t.Fatalf("unexpected transaction %+v", tx)
	}

	summary, err := c.Monthly(ctx, date)
	if err != nil || summary.TotalExpenses.Cents != 7000 || summary.TransactionCount != 1 {
		t.Fatalf("Monthly() = %+v, %v", summary, err)
	}
	week, err := c.Weekly(ctx, date)
	if err != nil || len(week) != 7 {
		t.Fatalf("Weekly() = %d days, %v", len(week), err)
	}
	trend, err := c.Trends(ctx, date, 3)
	if err != nil || len(trend) != 3 || trend[2].Expense.Cents != 7000 {
		t.Fatalf("Trends() = %+v, %v", trend, err)
	}
	between, err := c.TransactionsBetween(ctx, date.AddDate(0, 0, -1), date.AddDate(0, 0, 1))
	if err != nil || len(between) != 1 {
		t.Fatalf("TransactionsBetween() = %d, %v", len(between), err)
	}

	dash, err := c.Dashboard(ctx, date)
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if dash.TotalBalance.Cents != 93000 || len(dash.RecentTransactions) != 1 {
		t.Fatalf("unexpected dashboard %+v", dash)
	}
}

func TestClientSurfacesErrorEnvelope(t *testing.T) {
	ts := newAPI(t)
	c := New(ts.URL, core.DemoUser.ID, WithHTTPClient(ts.Client()))

	_, err := c.CreateTransaction(context.Background(), NewTransaction{Description: "x", Type: core.TransactionIncome, CategoryID: "c", AccountID: "a"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error %v is not an APIError", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Message != "Amount must be a positive number" {
		t.Fatalf("unexpected APIError %+v", apiErr)
	}

	if _, err := c.User(context.Background(), "ghost"); !IsStatus(err, http.StatusNotFound) {
		t.Fatalf("User(ghost) error = %v", err)
	}
}

func TestClientUndecodableBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>"))
	}))
	defer ts.Close()

	_, err := New(ts.URL, "u").Accounts(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusOK {
		t.Fatalf("error = %v", err)
	}
}

func TestAccountsStore(t *testing.T) {
	ts := newAPI(t)
	store := NewAccounts(New(ts.URL, core.DemoUser.ID, WithHTTPClient(ts.Client())))
	ctx := context.Background()

	if !store.Loading() || len(store.Items()) != 0 {
		t.Fatal("new store should be loading and empty")
	}
	if err := store.Refetch(ctx); err != nil {
		t.Fatalf("Refetch: %v", err)
	}
	if store.Loading() || store.Err() != nil {
		t.Fatalf("after Refetch loading=%v err=%v", store.Loading(), store.Err())
	}

	for _, cents := range []int64{100000, 2550} {
		if _, err := store.Add(ctx, "Account", core.Cents(cents)); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if got := store.TotalBalance(); got.Cents != 102550 {
		t.Fatalf("TotalBalance() = %s", got)
	}

	if _, err := store.Add(ctx, "", core.Cents(1)); err == nil {
		t.Fatal("expected validation error")
	}
	if n := len(store.Items()); n != 2 {
		t.Fatalf("failed Add changed the cache to %d items", n)
	}
}

func TestTransactionsStorePrepends(t *testing.T) {
	ts := newAPI(t)
	c := New(ts.URL, core.DemoUser.ID, WithHTTPClient(ts.Client()))
	ctx := context.Background()

	acct, err := c.CreateAccount(ctx, "Checking", core.Cents(0))
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	cats := NewCategories(c)
	if err := cats.Refetch(ctx); err != nil {
		t.Fatalf("Refetch categories: %v", err)
	}
	food, ok := cats.ByName("food")
	if !ok {
		t.Fatal("Food category missing")
	}

	store := NewTransactions(c)
	if err := store.Refetch(ctx); err != nil {
		t.Fatalf("Refetch: %v", err)
	}
	for _, desc := range []string{"first", "second"} {
		_, err := store.Add(ctx, NewTransaction{
			Amount: core.Cents(100), Description: desc, Type: core.TransactionIncome,
			CategoryID: food.ID, AccountID: acct.ID,
		})
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	items := store.Items()
	if len(items) != 2 || items[0].Description != "second" {
		t.Fatalf("unexpected order %+v", items)
	}
}

func TestCategoriesStoreAddKeepsServerOrder(t *testing.T) {
	ts := newAPI(t)
	store := NewCategories(New(ts.URL, core.DemoUser.ID, WithHTTPClient(ts.Client())))
	ctx := context.Background()

	if _, err := store.Add(ctx, "Books", "📚", "#000000"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	items := store.Items()
	if len(items) != 8 {
		t.Fatalf("got %d categories, want 8", len(items))
	}
	if items[0].Name != "Books" {
		t.Fatalf("first category %q, want Books in name order", items[0].Name)
	}
}

func TestCategoriesAddSucceedsWhenRefetchFails(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":"c1","name":"Books","icon":"📚","color":"#000000","userId":"u"}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Internal server error"}`))
	}))
	defer ts.Close()

	store := NewCategories(New(ts.URL, "u"))
	created, err := store.Add(context.Background(), "Books", "📚", "#000000")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if store.Err() != nil {
		t.Fatalf("Err() = %v after a successful Add", store.Err())
	}
	if items := store.Items(); len(items) != 1 || items[0].ID != created.ID {
		t.Fatalf("created category not appended: %+v", items)
	}
	if store.Loading() {
		t.Fatal("store still loading")
	}
}

func TestRefetchFailureKeepsItems(t *testing.T) {
	var mu sync.Mutex
	fail := false
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":"Internal server error"}`))
			return
		}
		w.Write([]byte(`[{"id":"a1","name":"Cash","balance":12.5,"userId":"u"}]`))
	}))
	defer ts.Close()

	store := NewAccounts(New(ts.URL, "u"))
	if err := store.Refetch(context.Background()); err != nil {
		t.Fatalf("Refetch: %v", err)
	}
	mu.Lock()
	fail = true
	mu.Unlock()

	if err := store.Refetch(context.Background()); !IsStatus(err, http.StatusInternalServerError) {
		t.Fatalf("Refetch error = %v", err)
	}
	if store.Err() == nil || len(store.Items()) != 1 || store.TotalBalance().Cents != 1250 {
		t.Fatalf("failed refetch lost state: err=%v items=%v", store.Err(), store.Items())
	}
}

func TestStoresConcurrentUse(t *testing.T) {
	ts := newAPI(t)
	store := NewAccounts(New(ts.URL, core.DemoUser.ID, WithHTTPClient(ts.Client())))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			store.Add(ctx, "Acct", core.Cents(100))
		}()
		go func() {
			defer wg.Done()
			store.TotalBalance()
			store.Items()
		}()
	}
	wg.Wait()
	if err := store.Refetch(ctx); err != nil {
		t.Fatalf("Refetch: %v", err)
	}
	if got := store.TotalBalance().Cents; got != 800 {
		t.Fatalf("TotalBalance() = %d cents, want 800", got)
	}
}
