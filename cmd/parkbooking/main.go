// Package main запускает клиентский движок бронирования парковки:
// периодическую синхронизацию состояния с сервером и журнал изменений снимка.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/parkbooking-client/internal/api"
	"github.com/mmeshcher/parkbooking-client/internal/config"
	"github.com/mmeshcher/parkbooking-client/internal/pricing"
	"github.com/mmeshcher/parkbooking-client/internal/service"
	"github.com/mmeshcher/parkbooking-client/internal/state"
	"github.com/mmeshcher/parkbooking-client/internal/vehicle"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}
	if cfg.UserID == "" {
		sugar.Fatalw("user id is required, pass -u or USER_ID")
	}

	client := api.NewClient(cfg.APIAddress, cfg.AuthToken, cfg.RequestTimeout, logger)
	registry := vehicle.NewRegistry(client, logger)
	rates := pricing.NewRateProvider(client, cfg.HourlyRate, logger)
	store := state.NewStore()

	svc := service.NewService(client, registry, rates, store, cfg.UserID, cfg.RefreshInterval, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lots, err := client.FetchLots(ctx)
	if err != nil {
		sugar.Warnw("lot list unavailable", "error", err.Error())
	} else {
		for _, lot := range lots {
			sugar.Infow("parking lot", "id", lot.ID, "name", lot.Name)
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	// Запуск фоновой синхронизации состояния
	g.Go(func() error {
		svc.StartAutoRefresh(ctx)
		return nil
	})

	// Журналирование каждого нового снимка состояния
	g.Go(func() error {
		updates := store.Subscribe()
		for {
			select {
			case <-ctx.Done():
				return nil
			case snap := <-updates:
				sugar.Infow("state updated",
					"generation", snap.Generation,
					"spots", len(snap.Spots),
					"spotsDegraded", snap.SpotsDegraded,
					"bookings", len(snap.Bookings),
					"active", len(snap.ActiveBookings()),
					"vehicles", len(snap.Vehicles),
					"balance", snap.Wallet.Balance,
					"hourlyRate", snap.HourlyRate)
			}
		}
	})

	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down...")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
	sugar.Info("stopped gracefully")
}
