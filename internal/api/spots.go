package api

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/parkbooking-client/internal/model"
)

// FetchLots возвращает список парковочных комплексов.
func (c *Client) FetchLots(ctx context.Context) ([]model.ParkingLot, error) {
	var lots []model.ParkingLot
	if err := c.get(ctx, "/lots", nil, &lots); err != nil {
		if errors.Is(err, ErrNoData) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch lots: %w", err)
	}
	return lots, nil
}

// FetchSpots возвращает полный список парковочных мест.
func (c *Client) FetchSpots(ctx context.Context) ([]model.ParkingSpot, error) {
	var spots []model.ParkingSpot
	if err := c.get(ctx, "/spots", nil, &spots); err != nil {
		if errors.Is(err, ErrNoData) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch spots: %w", err)
	}
	return spots, nil
}

// FetchSpotsByLot возвращает места указанного комплекса.
// Бэкенд непоследователен в ключе лота: часть записей ищется по имени,
// часть по идентификатору. Сначала пробуем имя, затем id; цепочка
// подстановок явная и логируется, а не спрятана в повтор запроса.
func (c *Client) FetchSpotsByLot(ctx context.Context, lotName, lotID string) ([]model.ParkingSpot, error) {
	keys := make([]string, 0, 2)
	if lotName != "" {
		keys = append(keys, lotName)
	}
	if lotID != "" && lotID != lotName {
		keys = append(keys, lotID)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("fetch spots by lot: empty lot key")
	}

	var lastErr error
	for i, key := range keys {
		q := url.Values{"lotId": {key}}
		var spots []model.ParkingSpot
		err := c.get(ctx, "/spots", q, &spots)
		if err == nil && len(spots) > 0 {
			return spots, nil
		}
		if err != nil && !errors.Is(err, ErrNoData) {
			var srvErr *ServerError
			if !errors.As(err, &srvErr) {
				return nil, fmt.Errorf("fetch spots by lot: %w", err)
			}
		}
		lastErr = err
		if i+1 < len(keys) {
			c.logger.Warn("lot key lookup failed, falling back to next key",
				zap.String("lotKey", key),
				zap.String("nextKey", keys[i+1]),
				zap.Error(err))
		}
	}

	if lastErr != nil && !errors.Is(lastErr, ErrNoData) {
		return nil, fmt.Errorf("fetch spots by lot: %w", lastErr)
	}
	return nil, nil
}

// FetchAvailableSpots возвращает места, свободные в указанном окне времени.
func (c *Client) FetchAvailableSpots(ctx context.Context, lotID string, start, end time.Time) ([]model.ParkingSpot, error) {
	q := url.Values{
		"lotId": {lotID},
		"start": {start.Format(time.RFC3339)},
		"end":   {end.Format(time.RFC3339)},
	}

	var spots []model.ParkingSpot
	if err := c.get(ctx, "/spots", q, &spots); err != nil {
		if errors.Is(err, ErrNoData) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch available spots: %w", err)
	}
	return spots, nil
}
