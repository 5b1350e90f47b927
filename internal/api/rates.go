package api

import (
	"context"
	"fmt"

	"github.com/mmeshcher/parkbooking-client/internal/model"
)

// FetchParkingConfig возвращает тарифные параметры парковки.
func (c *Client) FetchParkingConfig(ctx context.Context) (*model.ParkingConfig, error) {
	var cfg model.ParkingConfig
	if err := c.get(ctx, "/config/parking", nil, &cfg); err != nil {
		return nil, fmt.Errorf("fetch parking config: %w", err)
	}
	if cfg.HourlyRate <= 0 {
		return nil, &DecodeError{Err: fmt.Errorf("non-positive hourly rate %v", cfg.HourlyRate)}
	}
	return &cfg, nil
}
