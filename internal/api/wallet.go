package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmeshcher/parkbooking-client/internal/model"
)

// FetchWallet возвращает баланс и историю операций кошелька пользователя.
func (c *Client) FetchWallet(ctx context.Context, userID string) (*model.WalletState, error) {
	var wallet model.WalletState
	if err := c.get(ctx, "/wallet/"+userID, nil, &wallet); err != nil {
		if errors.Is(err, ErrNoData) {
			return &model.WalletState{}, nil
		}
		return nil, fmt.Errorf("fetch wallet: %w", err)
	}
	return &wallet, nil
}

// InitiateTopUp создаёт платёжный ордер пополнения кошелька.
func (c *Client) InitiateTopUp(ctx context.Context, userID string, amount float64) (*model.TopUpOrder, error) {
	body := map[string]float64{"amount": amount}
	var order model.TopUpOrder
	if err := c.post(ctx, "/wallet/"+userID+"/topup", nil, body, &order); err != nil {
		return nil, fmt.Errorf("initiate top-up: %w", err)
	}
	return &order, nil
}

// PaymentCallback передаёт бэкенду результат оплаты от платёжного шлюза.
// Вызывается ровно один раз на попытку, при любом исходе оплаты.
func (c *Client) PaymentCallback(ctx context.Context, req model.PaymentCallbackRequest) error {
	err := c.post(ctx, "/payments/callback", nil, req, nil)
	if err != nil && !errors.Is(err, ErrNoData) {
		return fmt.Errorf("payment callback: %w", err)
	}
	return nil
}
