package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/parkbooking-client/internal/api"
)

// StartAutoRefresh запускает горутину периодической синхронизации состояния
// с сервером. Горутина завершается при отмене контекста.
func (s *Service) StartAutoRefresh(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.refresh(ctx)

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("auto refresh stopped")
				return
			case <-ticker.C:
				s.refresh(ctx)
			}
		}
	}()
}

// RefreshNow выполняет внеочередное полное обновление состояния.
func (s *Service) RefreshNow(ctx context.Context) {
	s.refresh(ctx)
}

// refresh выполняет один цикл синхронизации. Каждая категория данных
// запрашивается независимо: отказ одной не мешает применению остальных,
// при отказе локально сохраняется последний удачный снимок.
func (s *Service) refresh(ctx context.Context) {
	s.clearPending()

	gen := s.store.BeginRefresh()

	spots, err := s.api.FetchSpots(ctx)
	if err != nil {
		s.logRefreshError("spots", err)
	} else {
		s.store.ApplySpots(gen, spots, false)
	}

	bookings, err := s.api.FetchUserBookings(ctx, s.userID)
	if err != nil {
		s.logRefreshError("bookings", err)
	} else {
		s.store.ApplyBookings(gen, bookings)
	}

	if err := s.registry.SyncFromBackend(ctx, s.userID); err != nil {
		s.logRefreshError("vehicles", err)
	} else {
		s.store.ApplyVehicles(gen, s.registry.List())
	}

	wallet, err := s.api.FetchWallet(ctx, s.userID)
	if err != nil {
		s.logRefreshError("wallet", err)
	} else {
		s.store.ApplyWallet(gen, *wallet)
	}

	s.rates.Refresh(ctx)
	s.store.ApplyRate(gen, s.rates.Rate())
}

func (s *Service) logRefreshError(category string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	if errors.Is(err, api.ErrAuthenticationRequired) {
		s.logger.Warn("refresh requires re-authentication", zap.String("category", category))
		return
	}
	s.logger.Warn("refresh failed", zap.String("category", category), zap.Error(err))
}
