package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"finboard/internal/amqp"
	"finboard/internal/backend"
	"finboard/internal/cli"
	"finboard/internal/config"
	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/metrics"
	"finboard/internal/worker"
)

func main() {
	metricsAddr := flag.String("metrics-addr", "", "serve /metrics on this address, e.g. :9091")
	backfillUser := flag.String("backfill-user", "", "export this user's transactions between -from and -to, then exit")
	from := flag.String("from", "", "backfill start date (YYYY-MM-DD)")
	to := flag.String("to", "", "backfill end date (YYYY-MM-DD), defaults to today")
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := cli.GracefulShutdown(logger)
	defer stop()
	ctx = log.NewContext(ctx, logger)

	repo := cli.MustOpenStore(ctx, logger, cfg)
	defer repo.Close()

	ledgerCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Failed to configure ledger", log.FieldError, err)
		os.Exit(1)
	}
	ledger, err := backend.NewFactory().CreateLedger(ctx, ledgerCfg)
	if err != nil {
		logger.Error("Failed to initialize ledger", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Ledger ready", "type", ledger.Type)
	exporter := worker.NewExportWorker(repo, ledger.Ledger)

	if *backfillUser != "" {
		if err := backfill(ctx, exporter, cfg, *backfillUser, *from, *to); err != nil {
			logger.Error("Backfill failed", log.FieldError, err)
			os.Exit(1)
		}
		return
	}

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required to consume transaction events")
		os.Exit(1)
	}
	consumer := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	defer consumer.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting finboard-worker", "queue", cfg.AMQPQueue)
		err := consumer.ConsumeTransactionCreated(gctx, exporter.HandleTransactionCreated)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", metrics.Handler())
		srv := &http.Server{
			Addr:              *metricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(gctx) },
		}
		g.Go(func() error {
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
	}

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

func backfill(ctx context.Context, exporter *worker.ExportWorker, cfg *config.Config, userID, fromArg, toArg string) error {
	loc := cfg.Location()
	start, err := core.ParseDate(fromArg, loc)
	if err != nil {
		return fmt.Errorf("parse -from: %w", err)
	}
	end := time.Now().In(loc)
	if toArg != "" {
		if end, err = core.ParseDateEnd(toArg, loc); err != nil {
			return fmt.Errorf("parse -to: %w", err)
		}
	}
	n, err := exporter.Backfill(ctx, userID, start, end)
	if err != nil {
		return fmt.Errorf("after %d rows: %w", n, err)
	}
	return nil
}
