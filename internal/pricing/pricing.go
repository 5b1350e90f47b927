// Package pricing вычисляет стоимость бронирования и кэширует тариф.
package pricing

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/mmeshcher/parkbooking-client/internal/model"
)

// Price возвращает число оплачиваемых часов и сумму для указанного окна.
// Часы округляются вверх, минимум один час. Порядок start/end проверяет
// вызывающий код до обращения сюда.
func Price(start, end time.Time, hourlyRate float64) (billedHours int, amount float64) {
	billedHours = int(math.Ceil(end.Sub(start).Hours()))
	if billedHours < 1 {
		billedHours = 1
	}
	return billedHours, float64(billedHours) * hourlyRate
}

// ConfigAPI описывает контракт получения тарифа с сервера.
type ConfigAPI interface {
	FetchParkingConfig(ctx context.Context) (*model.ParkingConfig, error)
}

// RateProvider выдаёт актуальный часовой тариф.
// Недоступность удалённой конфигурации никогда не блокирует создание
// бронирования: провайдер отдаёт последний полученный тариф, а если его
// не было — фиксированный тариф по умолчанию.
type RateProvider struct {
	api      ConfigAPI
	fallback float64
	logger   *zap.Logger

	mu     sync.Mutex
	cached float64
}

// NewRateProvider создаёт провайдер тарифов с указанным тарифом по умолчанию.
func NewRateProvider(api ConfigAPI, fallback float64, logger *zap.Logger) *RateProvider {
	return &RateProvider{
		api:      api,
		fallback: fallback,
		logger:   logger,
	}
}

// Refresh запрашивает тариф с сервера с ограниченным числом повторов.
// Ошибка не возвращается: при неудаче остаётся прежнее значение.
func (p *RateProvider) Refresh(ctx context.Context) {
	backoff := retry.WithMaxRetries(2, retry.NewExponential(200*time.Millisecond))

	var cfg *model.ParkingConfig
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		fetched, err := p.api.FetchParkingConfig(ctx)
		if err != nil {
			return retry.RetryableError(err)
		}
		cfg = fetched
		return nil
	})
	if err != nil {
		p.logger.Warn("parking config unavailable, keeping previous rate", zap.Error(err))
		return
	}

	p.mu.Lock()
	p.cached = cfg.HourlyRate
	p.mu.Unlock()
}

// Rate возвращает последний известный тариф либо тариф по умолчанию.
func (p *RateProvider) Rate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cached > 0 {
		return p.cached
	}
	return p.fallback
}
