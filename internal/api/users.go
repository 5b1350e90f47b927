package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmeshcher/parkbooking-client/internal/model"
)

// FetchUser возвращает пользователя вместе со списком его транспортных средств.
func (c *Client) FetchUser(ctx context.Context, userID string) (*model.User, error) {
	var user model.User
	if err := c.get(ctx, "/users/"+userID, nil, &user); err != nil {
		return nil, fmt.Errorf("fetch user: %w", err)
	}
	return &user, nil
}

// UpdateUserVehicles сохраняет полный список транспортных средств пользователя.
func (c *Client) UpdateUserVehicles(ctx context.Context, userID string, vehicles []model.Vehicle) error {
	body := map[string]any{"vehicles": vehicles}
	err := c.put(ctx, "/users/"+userID, body, nil)
	if err != nil && !errors.Is(err, ErrNoData) {
		return fmt.Errorf("update user vehicles: %w", err)
	}
	return nil
}
