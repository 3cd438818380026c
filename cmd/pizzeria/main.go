// Package main запускает HTTP-сервер и обработчик оплаты сервиса пиццерии.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/pizzeria-system/internal/config"
	"github.com/mmeshcher/pizzeria-system/internal/docstore"
	"github.com/mmeshcher/pizzeria-system/internal/handler"
	"github.com/mmeshcher/pizzeria-system/internal/metrics"
	"github.com/mmeshcher/pizzeria-system/internal/middleware"
	"github.com/mmeshcher/pizzeria-system/internal/notify"
	"github.com/mmeshcher/pizzeria-system/internal/payment"
	"github.com/mmeshcher/pizzeria-system/internal/repository"
	"github.com/mmeshcher/pizzeria-system/internal/service"
	"github.com/mmeshcher/pizzeria-system/internal/settlement"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	if cfg.StoreAddress == "" {
		sugar.Fatalw("document store address is required")
	}

	store := docstore.NewClient(cfg.StoreAddress, cfg.StoreAPIKey)
	repo := repository.New(store)

	var gateway *payment.Client
	if cfg.PaymentAddress != "" {
		gateway = payment.NewClient(cfg.PaymentAddress, cfg.PaymentAPIKey)
	}

	var notifier *notify.Client
	if cfg.NotifyAddress != "" {
		notifier = notify.NewClient(cfg.NotifyAddress, cfg.NotifyAPIKey, cfg.NotifyFrom)
	}

	svc := service.NewService(repo, cfg.MaxItems, cfg.HashSecret)

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	authMiddleware := middleware.NewAuthMiddleware(repo)
	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	h := handler.NewHandler(svc, logger, authMiddleware, metricsHandler)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск фонового обработчика оплаты заказов
	if gateway != nil {
		var workerNotifier settlement.Notifier
		if notifier != nil {
			workerNotifier = notifier
		}

		worker := settlement.NewWorker(repo, gateway, workerNotifier, logger, m, settlement.Config{
			Interval:    cfg.SettleInterval,
			Concurrency: cfg.SettleConcurrency,
			Source:      cfg.PaymentSource,
		})

		g.Go(func() error {
			worker.Run(ctx)
			return nil
		})
	} else {
		sugar.Info("payment gateway not configured, settlement worker disabled")
	}

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting pizzeria server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
