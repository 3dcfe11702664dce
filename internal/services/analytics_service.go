package services

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"finboard/internal/analytics"
	"finboard/internal/log"
)

const (
	// DefaultTrendMonths is used when a caller asks for a non-positive count.
	DefaultTrendMonths = 6

	// trendConcurrency bounds in-flight monthly queries for one trend call.
	trendConcurrency = 3
)

type AnalyticsService struct {
	store       TransactionStore
	cache       *ReadCache
	loc         *time.Location
	trendMonths int
}

type AnalyticsOption func(*AnalyticsService)

func WithReadCache(c *ReadCache) AnalyticsOption {
	return func(s *AnalyticsService) { s.cache = c }
}

// WithLocation sets the time zone that month and week boundaries follow.
func WithLocation(loc *time.Location) AnalyticsOption {
	return func(s *AnalyticsService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithTrendMonths(n int) AnalyticsOption {
	return func(s *AnalyticsService) {
		if n > 0 {
			s.trendMonths = n
		}
	}
}

func NewAnalyticsService(store TransactionStore, opts ...AnalyticsOption) *AnalyticsService {
	s := &AnalyticsService{
		store:       store,
		loc:         time.UTC,
		trendMonths: DefaultTrendMonths,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AnalyticsService) Location() *time.Location { return s.loc }

// Monthly summarizes the calendar month containing ref. On failure the value
// is the all-zero summary.
func (s *AnalyticsService) Monthly(ctx context.Context, userID string, ref time.Time) ReadResult[analytics.MonthlySummary] {
	start, end := analytics.MonthRange(ref, s.loc)
	return cachedRead(s.cache, userID, "monthly|"+start.Format("2006-01"), func() ReadResult[analytics.MonthlySummary] {
		return softRead(ctx, log.ComponentAnalytics, "monthly", analytics.EmptyMonthly(), func() (analytics.MonthlySummary, error) {
			txs, err := s.store.ListTransactionsBetween(ctx, userID, start, end)
			if err != nil {
				return analytics.MonthlySummary{}, err
			}
			return analytics.Summarize(txs), nil
		})
	})
}

// Weekly returns seven days, Sunday first, for the week containing ref.
func (s *AnalyticsService) Weekly(ctx context.Context, userID string, ref time.Time) ReadResult[[]analytics.DayTotal] {
	start, end := analytics.WeekRange(ref, s.loc)
	return cachedRead(s.cache, userID, "weekly|"+start.Format("2006-01-02"), func() ReadResult[[]analytics.DayTotal] {
		return softRead(ctx, log.ComponentAnalytics, "weekly", analytics.EmptyWeek(start, s.loc), func() ([]analytics.DayTotal, error) {
			txs, err := s.store.ListTransactionsBetween(ctx, userID, start, end)
			if err != nil {
				return nil, err
			}
			return analytics.BucketWeek(txs, start, s.loc), nil
		})
	})
}

// Trends returns income and expense for the months calendar months ending
// with ref's month, oldest first. Each month fails soft on its own; Err joins
// the failures.
func (s *AnalyticsService) Trends(ctx context.Context, userID string, ref time.Time, months int) ReadResult[[]analytics.MonthTotal] {
	if months <= 0 {
		months = s.trendMonths
	}
	starts := analytics.TrendMonths(ref, months, s.loc)
	out := make([]analytics.MonthTotal, len(starts))
	errs := make([]error, len(starts))

	var g errgroup.Group
	g.SetLimit(trendConcurrency)
	for i, month := range starts {
		g.Go(func() error {
			r := s.Monthly(ctx, userID, month)
			out[i] = analytics.MonthTotalFor(month, r.Value)
			errs[i] = r.Err
			return nil
		})
	}
	_ = g.Wait()

	return ReadResult[[]analytics.MonthTotal]{Value: out, Err: errors.Join(errs...)}
}
