package api

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/mmeshcher/parkbooking-client/internal/model"
)

type qrCodeRequest struct {
	UserID string `json:"userId"`
	QRCode string `json:"qrCode"`
}

// FetchUserBookings возвращает все бронирования пользователя.
func (c *Client) FetchUserBookings(ctx context.Context, userID string) ([]model.Booking, error) {
	q := url.Values{"userId": {userID}}
	var bookings []model.Booking
	if err := c.get(ctx, "/bookings", q, &bookings); err != nil {
		if errors.Is(err, ErrNoData) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch bookings: %w", err)
	}
	for i := range bookings {
		bookings[i].Status = model.NormalizeStatus(string(bookings[i].Status))
	}
	return bookings, nil
}

// CreateBooking создаёт новое бронирование и возвращает его серверное состояние.
func (c *Client) CreateBooking(ctx context.Context, req model.CreateBookingRequest) (*model.Booking, error) {
	var booking model.Booking
	if err := c.post(ctx, "/bookings", nil, req, &booking); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}
	booking.Status = model.NormalizeStatus(string(booking.Status))
	return &booking, nil
}

// CancelBooking отменяет бронирование в статусе PENDING.
func (c *Client) CancelBooking(ctx context.Context, userID, bookingID string) error {
	body := map[string]string{"userId": userID}
	err := c.post(ctx, "/bookings/"+bookingID+"/cancel", nil, body, nil)
	if err != nil && !errors.Is(err, ErrNoData) {
		return fmt.Errorf("cancel booking: %w", err)
	}
	return nil
}

// ExtendBooking продлевает бронирование до указанного времени выезда.
// Клиент отправляет готовую метку времени, а не дельту.
func (c *Client) ExtendBooking(ctx context.Context, userID, bookingID string, newCheckOut time.Time) (*model.Booking, error) {
	body := map[string]string{
		"userId":          userID,
		"newCheckOutTime": newCheckOut.Format(time.RFC3339),
	}
	var booking model.Booking
	if err := c.post(ctx, "/bookings/"+bookingID+"/extend", nil, body, &booking); err != nil {
		return nil, fmt.Errorf("extend booking: %w", err)
	}
	booking.Status = model.NormalizeStatus(string(booking.Status))
	return &booking, nil
}

// ValidateCheckInQR проверяет QR-код перед заездом.
// Ответ valid=false не является транспортной ошибкой: сервер отказал по существу.
func (c *Client) ValidateCheckInQR(ctx context.Context, userID, bookingID, qrCode string) (*model.QRValidationResult, error) {
	var result model.QRValidationResult
	req := qrCodeRequest{UserID: userID, QRCode: qrCode}
	if err := c.post(ctx, "/bookings/"+bookingID+"/qr/checkin", nil, req, &result); err != nil {
		return nil, fmt.Errorf("validate check-in qr: %w", err)
	}
	return &result, nil
}

// ConfirmCheckIn подтверждает заезд после успешной проверки QR-кода.
// Время заезда проставляет сервер.
func (c *Client) ConfirmCheckIn(ctx context.Context, userID, bookingID, qrCode string) (*model.Booking, error) {
	var booking model.Booking
	req := qrCodeRequest{UserID: userID, QRCode: qrCode}
	if err := c.post(ctx, "/bookings/"+bookingID+"/checkin", nil, req, &booking); err != nil {
		return nil, fmt.Errorf("confirm check-in: %w", err)
	}
	booking.Status = model.NormalizeStatus(string(booking.Status))
	return &booking, nil
}

// ValidateCheckOutQR проверяет QR-код перед выездом и возвращает штраф, если есть.
func (c *Client) ValidateCheckOutQR(ctx context.Context, userID, bookingID, qrCode string) (*model.QRValidationResult, error) {
	var result model.QRValidationResult
	req := qrCodeRequest{UserID: userID, QRCode: qrCode}
	if err := c.post(ctx, "/bookings/"+bookingID+"/qr/checkout", nil, req, &result); err != nil {
		return nil, fmt.Errorf("validate check-out qr: %w", err)
	}
	return &result, nil
}

// ConfirmCheckOut подтверждает выезд. Итоговые часы и сумма, включая
// возможный штраф за поздний выезд, вычисляются сервером.
func (c *Client) ConfirmCheckOut(ctx context.Context, userID, bookingID, qrCode string) (*model.Booking, error) {
	var booking model.Booking
	req := qrCodeRequest{UserID: userID, QRCode: qrCode}
	if err := c.post(ctx, "/bookings/"+bookingID+"/checkout", nil, req, &booking); err != nil {
		return nil, fmt.Errorf("confirm check-out: %w", err)
	}
	booking.Status = model.NormalizeStatus(string(booking.Status))
	return &booking, nil
}

// FetchBooking возвращает актуальное состояние одного бронирования.
func (c *Client) FetchBooking(ctx context.Context, userID, bookingID string) (*model.Booking, error) {
	q := url.Values{"userId": {userID}}
	var booking model.Booking
	if err := c.get(ctx, "/bookings/"+bookingID, q, &booking); err != nil {
		return nil, fmt.Errorf("fetch booking: %w", err)
	}
	booking.Status = model.NormalizeStatus(string(booking.Status))
	return &booking, nil
}

// FetchPenalty возвращает текущий штраф активного бронирования.
func (c *Client) FetchPenalty(ctx context.Context, userID, bookingID string) (float64, error) {
	q := url.Values{"userId": {userID}}
	var penalty float64
	if err := c.get(ctx, "/bookings/"+bookingID+"/penalty", q, &penalty); err != nil {
		if errors.Is(err, ErrNoData) {
			return 0, nil
		}
		return 0, fmt.Errorf("fetch penalty: %w", err)
	}
	return penalty, nil
}
