package services

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"finboard/internal/analytics"
	"finboard/internal/core"
	"finboard/internal/storage"
)

var errStoreDown = errors.New("store unavailable")

// failingStore implements every store port and fails every call.
type failingStore struct{}

func (failingStore) CreateAccount(context.Context, core.Account) (core.Account, error) {
	return core.Account{}, errStoreDown
}
func (failingStore) ListAccounts(context.Context, string) ([]core.Account, error) {
	return nil, errStoreDown
}
func (failingStore) AdjustBalance(context.Context, string, core.Money) (core.Account, error) {
	return core.Account{}, errStoreDown
}
func (failingStore) SumBalances(context.Context, string) (core.Money, error) {
	return core.Money{}, errStoreDown
}
func (failingStore) CreateCategory(context.Context, core.Category) (core.Category, error) {
	return core.Category{}, errStoreDown
}
func (failingStore) ListCategories(context.Context, string) ([]core.Category, error) {
	return nil, errStoreDown
}
func (failingStore) SeedCategories(context.Context, string, []core.Category) (bool, error) {
	return false, errStoreDown
}
func (failingStore) CreateTransaction(context.Context, core.Transaction) (core.Transaction, error) {
	return core.Transaction{}, errStoreDown
}
func (failingStore) ListTransactions(context.Context, string) ([]core.Transaction, error) {
	return nil, errStoreDown
}
func (failingStore) ListTransactionsBetween(context.Context, string, time.Time, time.Time) ([]core.Transaction, error) {
	return nil, errStoreDown
}
func (failingStore) RecentTransactions(context.Context, string, int) ([]core.Transaction, error) {
	return nil, errStoreDown
}

type recordingPublisher struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (p *recordingPublisher) PublishTransactionCreated(_ context.Context, transactionID, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = append(p.ids, transactionID)
	return p.err
}

type fixture struct {
	repo         *storage.Repository
	accounts     *AccountService
	categories   *CategoryService
	transactions *TransactionService
	analytics    *AnalyticsService
	dashboard    *DashboardService
	publisher    *recordingPublisher
	cache        *ReadCache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	var tick atomic.Int64
	start := time.Now().Add(-time.Hour)
	clock := func() time.Time { return start.Add(time.Duration(tick.Add(1)) * time.Second) }
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "finboard.db"), storage.WithClock(clock))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	f := &fixture{repo: repo, publisher: &recordingPublisher{}, cache: NewReadCache(64, time.Minute)}
	f.accounts = NewAccountService(repo, f.cache)
	f.categories = NewCategoryService(repo)
	f.transactions = NewTransactionService(repo, WithPublisher(f.publisher), WithInvalidator(f.cache))
	f.analytics = NewAnalyticsService(repo, WithReadCache(f.cache))
	f.dashboard = NewDashboardService(f.accounts, f.transactions, f.analytics)
	return f
}

func (f *fixture) category(t *testing.T, userID, name string) core.Category {
	t.Helper()
	for _, c := range f.categories.EnsureDefaults(context.Background(), userID).Value {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("category %q not found", name)
	return core.Category{}
}

func TestAccountService(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if got := f.accounts.TotalBalance(ctx, "u1"); got.Degraded() || !got.Value.IsZero() {
		t.Fatalf("empty total = %+v", got)
	}

	if _, err := f.accounts.Create(ctx, "  ", core.Cents(100), "u1"); !errors.Is(err, core.ErrMissingFields) {
		t.Fatalf("expected ErrMissingFields, got %v", err)
	}
	if _, err := f.accounts.Create(ctx, "Checking", core.Cents(100), ""); !errors.Is(err, core.ErrUserIDRequired) {
		t.Fatalf("expected ErrUserIDRequired, got %v", err)
	}

	checking, err := f.accounts.Create(ctx, "Checking", core.Cents(10050), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.accounts.Create(ctx, "Savings", core.Cents(-2025), "u1"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.accounts.Create(ctx, "Other user", core.Cents(99999), "u2"); err != nil {
		t.Fatal(err)
	}

	list := f.accounts.List(ctx, "u1")
	if list.Degraded() || len(list.Value) != 2 || list.Value[0].Name != "Savings" {
		t.Fatalf("expected newest first, got %+v", list)
	}
	if got := f.accounts.TotalBalance(ctx, "u1").Value; got.Cents != 8025 {
		t.Fatalf("total = %d, want 8025", got.Cents)
	}

	adjusted, err := f.accounts.AdjustBalance(ctx, checking.ID, core.Cents(-20000))
	if err != nil {
		t.Fatal(err)
	}
	if adjusted.Balance.Cents != -9950 {
		t.Fatalf("overdraft should be allowed, got %d", adjusted.Balance.Cents)
	}
	if _, err := f.accounts.AdjustBalance(ctx, "missing", core.Cents(1)); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCategoryServiceEnsureDefaults(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first := f.categories.EnsureDefaults(ctx, "u1")
	if first.Degraded() || len(first.Value) != 7 {
		t.Fatalf("first call: %+v", first)
	}
	second := f.categories.EnsureDefaults(ctx, "u1")
	if len(second.Value) != 7 {
		t.Fatalf("second call changed count: %d", len(second.Value))
	}
	for i := 1; i < len(second.Value); i++ {
		if second.Value[i-1].Name > second.Value[i].Name {
			t.Fatalf("not alphabetical: %q before %q", second.Value[i-1].Name, second.Value[i].Name)
		}
	}

	if _, err := f.categories.Create(ctx, "Pets", "🐶", "#000000", "u1"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.categories.Create(ctx, "Pets", "", "#000000", "u1"); !errors.Is(err, core.ErrMissingFields) {
		t.Fatalf("expected ErrMissingFields, got %v", err)
	}
	if got := f.categories.EnsureDefaults(ctx, "u1").Value; len(got) != 8 {
		t.Fatalf("user category should be appended, got %d", len(got))
	}
}

func TestCategoryServiceConcurrentSeed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.categories.EnsureDefaults(ctx, "u1")
		}()
	}
	wg.Wait()

	if got := f.categories.List(ctx, "u1").Value; len(got) != 7 {
		t.Fatalf("expected 7 categories after concurrent seeding, got %d", len(got))
	}
}

func TestTransactionServiceCreate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	account, err := f.accounts.Create(ctx, "Checking", core.Cents(10000), "u1")
	if err != nil {
		t.Fatal(err)
	}
	food := f.category(t, "u1", "Food")

	created, err := f.transactions.Create(ctx, NewTransaction{
		Amount: core.Cents(3000), Description: "Groceries", Type: core.TransactionExpense,
		CategoryID: food.ID, AccountID: account.ID, UserID: "u1",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Date.IsZero() || time.Since(created.Date) > time.Minute {
		t.Fatalf("date should default to now, got %v", created.Date)
	}
	if created.Account == nil || created.Account.Balance.Cents != 7000 {
		t.Fatalf("balance not applied: %+v", created.Account)
	}
	if len(f.publisher.ids) != 1 || f.publisher.ids[0] != created.ID {
		t.Fatalf("event not published: %v", f.publisher.ids)
	}

	t.Run("validation happens before persistence", func(t *testing.T) {
		cases := []struct {
			name string
			in   NewTransaction
			want error
		}{
			{"zero amount", NewTransaction{Description: "x", Type: core.TransactionIncome, CategoryID: food.ID, AccountID: account.ID, UserID: "u1"}, core.ErrInvalidAmount},
			{"missing description", NewTransaction{Amount: core.Cents(1), Type: core.TransactionIncome, CategoryID: food.ID, AccountID: account.ID, UserID: "u1"}, core.ErrMissingFields},
			{"missing user", NewTransaction{Amount: core.Cents(1), Description: "x", Type: core.TransactionIncome, CategoryID: food.ID, AccountID: account.ID}, core.ErrUserIDRequired},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				if _, err := f.transactions.Create(ctx, tc.in); !errors.Is(err, tc.want) {
					t.Fatalf("expected %v, got %v", tc.want, err)
				}
			})
		}
	})

	t.Run("foreign account is a validation error", func(t *testing.T) {
		other, err := f.accounts.Create(ctx, "Theirs", core.Cents(500), "u2")
		if err != nil {
			t.Fatal(err)
		}
		_, err = f.transactions.Create(ctx, NewTransaction{
			Amount: core.Cents(100), Description: "x", Type: core.TransactionExpense,
			CategoryID: food.ID, AccountID: other.ID, UserID: "u1",
		})
		if !core.IsValidation(err) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	if got := f.accounts.TotalBalance(ctx, "u1").Value; got.Cents != 7000 {
		t.Fatalf("rejected writes changed balance: %d", got.Cents)
	}

	t.Run("publish failure does not fail the write", func(t *testing.T) {
		f.publisher.err = errors.New("broker down")
		if _, err := f.transactions.Create(ctx, NewTransaction{
			Amount: core.Cents(1000), Description: "Salary", Type: core.TransactionIncome,
			CategoryID: food.ID, AccountID: account.ID, UserID: "u1",
		}); err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if got := f.accounts.TotalBalance(ctx, "u1").Value; got.Cents != 8000 {
			t.Fatalf("balance = %d, want 8000", got.Cents)
		}
	})
}

func TestMonthlyScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	today := time.Now()

	empty := f.analytics.Monthly(ctx, "u1", today)
	if empty.Degraded() || !empty.Value.TotalIncome.IsZero() || empty.Value.TransactionCount != 0 || len(empty.Value.CategoryBreakdown) != 0 {
		t.Fatalf("expected zero summary, got %+v", empty)
	}

	account, _ := f.accounts.Create(ctx, "Checking", core.Cents(10000), "u1")
	food := f.category(t, "u1", "Food")
	if _, err := f.transactions.Create(ctx, NewTransaction{
		Amount: core.Cents(3000), Description: "Lunch", Type: core.TransactionExpense,
		CategoryID: food.ID, AccountID: account.ID, UserID: "u1", Date: today,
	}); err != nil {
		t.Fatal(err)
	}

	// The write must invalidate the cached empty summary.
	got := f.analytics.Monthly(ctx, "u1", today).Value
	if got.TotalExpenses.Cents != 3000 || got.NetIncome.Cents != -3000 || got.TransactionCount != 1 {
		t.Fatalf("unexpected summary %+v", got)
	}
	if len(got.CategoryBreakdown) != 1 || got.CategoryBreakdown["Food"].Cents != 3000 {
		t.Fatalf("unexpected breakdown %+v", got.CategoryBreakdown)
	}
	if bal := f.accounts.List(ctx, "u1").Value[0].Balance.Cents; bal != 7000 {
		t.Fatalf("balance = %d, want 7000", bal)
	}
}

func TestWeeklyAlwaysSevenDays(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ref := time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC) // Wednesday

	week := f.analytics.Weekly(ctx, "u1", ref).Value
	if len(week) != 7 || week[0].Name != "Sun" || week[6].Name != "Sat" {
		t.Fatalf("unexpected empty week %+v", week)
	}

	account, _ := f.accounts.Create(ctx, "Checking", core.Cents(0), "u2")
	food := f.category(t, "u2", "Food")
	for _, d := range []time.Time{ref, ref.AddDate(0, 0, -3), ref.AddDate(0, 0, 7)} {
		if _, err := f.transactions.Create(ctx, NewTransaction{
			Amount: core.Cents(250), Description: "Coffee", Type: core.TransactionExpense,
			CategoryID: food.ID, AccountID: account.ID, UserID: "u2", Date: d,
		}); err != nil {
			t.Fatal(err)
		}
	}
	week = f.analytics.Weekly(ctx, "u2", ref).Value
	if len(week) != 7 {
		t.Fatalf("expected 7 days, got %d", len(week))
	}
	if week[3].Expense.Cents != 250 || week[0].Expense.Cents != 250 {
		t.Fatalf("unexpected buckets %+v", week)
	}
	var total int64
	for _, d := range week {
		total += d.Expense.Cents
	}
	if total != 500 {
		t.Fatalf("out-of-week transaction counted: %d", total)
	}
}

func TestTrends(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	now := time.Now()

	account, _ := f.accounts.Create(ctx, "Checking", core.Cents(0), "u1")
	salary := f.category(t, "u1", "Income")
	if _, err := f.transactions.Create(ctx, NewTransaction{
		Amount: core.Cents(500000), Description: "Salary", Type: core.TransactionIncome,
		CategoryID: salary.ID, AccountID: account.ID, UserID: "u1", Date: now,
	}); err != nil {
		t.Fatal(err)
	}

	trend := f.analytics.Trends(ctx, "u1", now, 6)
	if trend.Degraded() || len(trend.Value) != 6 {
		t.Fatalf("unexpected trend %+v", trend)
	}
	last := trend.Value[5]
	current := f.analytics.Monthly(ctx, "u1", now).Value
	if last.Name != now.UTC().Format("Jan") || last.Income != current.TotalIncome || last.Expense != current.TotalExpenses {
		t.Fatalf("last month %+v does not match current month %+v", last, current)
	}
	for i := 1; i < len(trend.Value); i++ {
		if trend.Value[i-1].Month >= trend.Value[i].Month {
			t.Fatalf("not oldest first: %v", trend.Value)
		}
	}
	if got := f.analytics.Trends(ctx, "u1", now, 0); len(got.Value) != DefaultTrendMonths {
		t.Fatalf("default months = %d", len(got.Value))
	}
}

func TestReadsFailSoft(t *testing.T) {
	ctx := context.Background()
	store := failingStore{}
	accounts := NewAccountService(store, nil)
	categories := NewCategoryService(store)
	transactions := NewTransactionService(store)
	an := NewAnalyticsService(store)
	ref := time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC)

	if r := accounts.List(ctx, "u1"); !r.Degraded() || r.Value == nil || len(r.Value) != 0 {
		t.Fatalf("accounts list: %+v", r)
	}
	if r := accounts.TotalBalance(ctx, "u1"); !r.Degraded() || !r.Value.IsZero() {
		t.Fatalf("total balance: %+v", r)
	}
	if r := categories.EnsureDefaults(ctx, "u1"); !r.Degraded() || len(r.Value) != 0 {
		t.Fatalf("categories: %+v", r)
	}
	if r := transactions.List(ctx, "u1"); !r.Degraded() || r.Value == nil {
		t.Fatalf("transactions: %+v", r)
	}
	if r := an.Monthly(ctx, "u1", ref); !r.Degraded() || r.Value.CategoryBreakdown == nil {
		t.Fatalf("monthly: %+v", r)
	}
	if r := an.Weekly(ctx, "u1", ref); !r.Degraded() || len(r.Value) != analytics.DaysInWeek {
		t.Fatalf("weekly: %+v", r)
	}
	if r := an.Trends(ctx, "u1", ref, 3); !r.Degraded() || len(r.Value) != 3 {
		t.Fatalf("trends: %+v", r)
	}

	// Writes fail hard.
	if _, err := accounts.Create(ctx, "Checking", core.Cents(1), "u1"); !errors.Is(err, errStoreDown) {
		t.Fatalf("expected store error, got %v", err)
	}
	if _, err := categories.Create(ctx, "Pets", "🐶", "#000", "u1"); !errors.Is(err, errStoreDown) {
		t.Fatalf("expected store error, got %v", err)
	}
	if _, err := transactions.Create(ctx, NewTransaction{
		Amount: core.Cents(1), Description: "x", Type: core.TransactionIncome, CategoryID: "c", AccountID: "a", UserID: "u1",
	}); !errors.Is(err, errStoreDown) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestDegradedReadsAreNotCached(t *testing.T) {
	c := NewReadCache(8, time.Minute)
	calls := 0
	fail := func() ReadResult[int] {
		calls++
		return ReadResult[int]{Value: 0, Err: errStoreDown}
	}
	cachedRead(c, "u1", "k", fail)
	cachedRead(c, "u1", "k", fail)
	if calls != 2 {
		t.Fatalf("degraded result was cached, calls=%d", calls)
	}

	ok := func() ReadResult[int] {
		calls++
		return ReadResult[int]{Value: 42}
	}
	cachedRead(c, "u1", "ok", ok)
	if r := cachedRead(c, "u1", "ok", ok); r.Value != 42 || calls != 3 {
		t.Fatalf("expected cache hit, calls=%d value=%d", calls, r.Value)
	}
	c.InvalidateUser("u1")
	cachedRead(c, "u1", "ok", ok)
	if calls != 4 {
		t.Fatalf("invalidation did not drop entry, calls=%d", calls)
	}
}

// gatedStore holds the first ListTransactionsBetween call after it has read
// from the store until release is closed.
type gatedStore struct {
	*storage.Repository
	armed   atomic.Bool
	reached chan struct{}
	release chan struct{}
}

func (g *gatedStore) ListTransactionsBetween(ctx context.Context, userID string, start, end time.Time) ([]core.Transaction, error) {
	txs, err := g.Repository.ListTransactionsBetween(ctx, userID, start, end)
	if g.armed.CompareAndSwap(true, false) {
		close(g.reached)
		<-g.release
	}
	return txs, err
}

func TestWriteDuringReadIsNotCachedStale(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	today := time.Now()

	account, _ := f.accounts.Create(ctx, "Checking", core.Cents(10000), "u1")
	food := f.category(t, "u1", "Food")

	gated := &gatedStore{Repository: f.repo, reached: make(chan struct{}), release: make(chan struct{})}
	gated.armed.Store(true)
	an := NewAnalyticsService(gated, WithReadCache(f.cache))

	done := make(chan ReadResult[analytics.MonthlySummary], 1)
	go func() { done <- an.Monthly(ctx, "u1", today) }()
	<-gated.reached

	if _, err := f.transactions.Create(ctx, NewTransaction{
		Amount: core.Cents(3000), Description: "Lunch", Type: core.TransactionExpense,
		CategoryID: food.ID, AccountID: account.ID, UserID: "u1", Date: today,
	}); err != nil {
		t.Fatal(err)
	}
	close(gated.release)
	<-done

	got := an.Monthly(ctx, "u1", today).Value
	if got.TotalExpenses.Cents != 3000 || got.TransactionCount != 1 {
		t.Fatalf("stale summary after committed expense: %+v", got)
	}
}

func TestReadCacheSkipsStoreAfterInvalidation(t *testing.T) {
	c := NewReadCache(8, time.Minute)
	calls := 0
	racing := func() ReadResult[int] {
		calls++
		c.InvalidateUser("u1")
		return ReadResult[int]{Value: 1}
	}
	cachedRead(c, "u1", "k", racing)
	cachedRead(c, "u1", "k", func() ReadResult[int] {
		calls++
		return ReadResult[int]{Value: 2}
	})
	if calls != 2 {
		t.Fatalf("value read before invalidation was cached, calls=%d", calls)
	}
	if r := cachedRead(c, "u2", "k", func() ReadResult[int] { return ReadResult[int]{Value: 3} }); r.Value != 3 {
		t.Fatalf("other user value = %d", r.Value)
	}
}

func TestDashboard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	now := time.Now()

	empty := f.dashboard.Build(ctx, "u1", now).Value
	if len(empty.Insights) != 3 || len(empty.Weekly) != 7 {
		t.Fatalf("unexpected empty dashboard %+v", empty)
	}
	if !strings.HasPrefix(empty.Insights[0].Text, "Start tracking") {
		t.Fatalf("spending insight = %q", empty.Insights[0].Text)
	}
	if want := "You have 0 accounts with a total balance of $0.00. Add your first account to start tracking your finances."; empty.Insights[2].Text != want {
		t.Fatalf("accounts insight = %q", empty.Insights[2].Text)
	}

	account, _ := f.accounts.Create(ctx, "Checking", core.Cents(10000), "u1")
	food := f.category(t, "u1", "Food")
	income := f.category(t, "u1", "Income")
	for _, in := range []NewTransaction{
		{Amount: core.Cents(200000), Description: "Salary", Type: core.TransactionIncome, CategoryID: income.ID},
		{Amount: core.Cents(50000), Description: "Groceries", Type: core.TransactionExpense, CategoryID: food.ID},
	} {
		in.AccountID, in.UserID, in.Date = account.ID, "u1", now
		if _, err := f.transactions.Create(ctx, in); err != nil {
			t.Fatal(err)
		}
	}

	d := f.dashboard.Build(ctx, "u1", now)
	if d.Degraded() {
		t.Fatalf("unexpected degraded dashboard: %v", d.Err)
	}
	if d.Value.SavingsRate != 75 || d.Value.AccountCount != 1 || len(d.Value.RecentTransactions) != 2 {
		t.Fatalf("unexpected dashboard %+v", d.Value)
	}
	wantTexts := []string{
		"You've spent $500.00 this month across 1 categories.",
		"Great job! You're saving 75.0% of your income this month.",
		"You have 1 account with a total balance of $1600.00.",
	}
	for i, want := range wantTexts {
		if d.Value.Insights[i].Text != want {
			t.Errorf("insight %d = %q, want %q", i, d.Value.Insights[i].Text, want)
		}
	}
}
