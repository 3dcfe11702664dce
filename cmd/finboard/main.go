package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"finboard/internal/amqp"
	"finboard/internal/cache"
	"finboard/internal/cli"
	apphttp "finboard/internal/http"
	"finboard/internal/log"
	"finboard/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := cli.GracefulShutdown(logger)
	defer stop()
	ctx = log.NewContext(ctx, logger)

	repo := cli.MustOpenStore(ctx, logger, cfg)
	defer repo.Close()

	readCache := services.NewReadCache(cfg.CacheSize, cfg.CacheTTL)
	cacheManager := cache.NewManager()
	cacheManager.Register(readCache.Cleaner())
	cacheManager.StartCleanup(time.Minute)
	defer cacheManager.Stop()

	txOpts := []services.TransactionOption{services.WithInvalidator(readCache)}
	if cfg.AMQPURL != "" {
		publisher := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		defer publisher.Close()
		txOpts = append(txOpts, services.WithPublisher(publisher))
		logger.Info("Transaction events enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("Transaction events disabled - no AMQP_URL provided")
	}

	analyticsSvc := services.NewAnalyticsService(repo,
		services.WithReadCache(readCache),
		services.WithLocation(cfg.Location()),
		services.WithTrendMonths(cfg.TrendMonths))
	accounts := services.NewAccountService(repo, readCache)
	transactions := services.NewTransactionService(repo, txOpts...)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Accounts:     accounts,
		Categories:   services.NewCategoryService(repo),
		Transactions: transactions,
		Analytics:    analyticsSvc,
		Dashboard:    services.NewDashboardService(accounts, transactions, analyticsSvc),
		Users:        repo,
		Store:        repo,
		Logger:       logger,
	}, apphttp.Options{RateLimitPerMinute: cfg.RateLimitPerMinute})
	srv.BaseContext = func(net.Listener) context.Context { return context.WithoutCancel(ctx) }

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting finboard server", "port", cfg.Port, "driver", repo.Driver())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
