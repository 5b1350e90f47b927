// Package model содержит доменные сущности клиента бронирования парковки.
package model

import (
	"strings"
	"time"
)

// ParkingLot описывает парковочный комплекс.
type ParkingLot struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ParkingSpot описывает одно бронируемое парковочное место.
// Это снимок состояния на момент последнего обновления, частично не патчится.
type ParkingSpot struct {
	ID        string `json:"id"`
	LotID     string `json:"lotId"`
	Name      string `json:"name,omitempty"`
	ZoneName  string `json:"zoneName,omitempty"`
	SpotCode  string `json:"spotCode,omitempty"`
	Capacity  int    `json:"capacity"`
	Available int    `json:"available"`
	Status    string `json:"status"`
}

// BookingStatus описывает статус жизненного цикла бронирования.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusActive    BookingStatus = "ACTIVE"
	BookingStatusCompleted BookingStatus = "COMPLETED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
	BookingStatusExpired   BookingStatus = "EXPIRED"
)

// NormalizeStatus приводит статус из ответа сервера к каноническому виду.
// Бэкенд исторически отдаёт синонимы CONFIRMED и FINISHED.
func NormalizeStatus(raw string) BookingStatus {
	s := strings.ToUpper(strings.TrimSpace(raw))
	switch s {
	case "CONFIRMED":
		return BookingStatusPending
	case "FINISHED":
		return BookingStatusCompleted
	case string(BookingStatusPending), string(BookingStatusActive),
		string(BookingStatusCompleted), string(BookingStatusCancelled),
		string(BookingStatusExpired):
		return BookingStatus(s)
	default:
		return BookingStatusPending
	}
}

// IsTerminal сообщает, является ли статус конечным.
func (s BookingStatus) IsTerminal() bool {
	switch s {
	case BookingStatusCompleted, BookingStatusCancelled, BookingStatusExpired:
		return true
	}
	return false
}

// Booking описывает бронирование парковочного места.
// TotalHours и TotalAmount вычисляются сервером, клиент их не пересчитывает.
type Booking struct {
	ID            string        `json:"id"`
	SpotID        string        `json:"spotId"`
	LotID         string        `json:"lotId"`
	UserID        string        `json:"userId"`
	VehicleNumber string        `json:"vehicleNumber,omitempty"`
	CheckInTime   *time.Time    `json:"checkInTime,omitempty"`
	CheckOutTime  *time.Time    `json:"checkOutTime,omitempty"`
	Status        BookingStatus `json:"status"`
	TotalHours    float64       `json:"totalHours"`
	TotalAmount   float64       `json:"totalAmount"`
	QRCode        string        `json:"qrCode,omitempty"`
	CreatedAt     *time.Time    `json:"createdAt,omitempty"`
}

// CreateBookingRequest описывает тело запроса создания бронирования.
type CreateBookingRequest struct {
	SpotID        string    `json:"spotId"`
	UserID        string    `json:"userId"`
	LotID         string    `json:"lotId"`
	VehicleNumber string    `json:"vehicleNumber"`
	CheckInTime   time.Time `json:"checkInTime"`
	CheckOutTime  time.Time `json:"checkOutTime"`
}

// QRValidationResult описывает ответ сервера на проверку QR-кода.
type QRValidationResult struct {
	Valid   bool     `json:"valid"`
	Penalty *float64 `json:"penalty,omitempty"`
	Message string   `json:"message,omitempty"`
}

// Vehicle описывает транспортное средство пользователя.
type Vehicle struct {
	ID        string `json:"id"`
	Number    string `json:"number"`
	Type      string `json:"type,omitempty"`
	Brand     string `json:"brand,omitempty"`
	Model     string `json:"model,omitempty"`
	IsDefault bool   `json:"isDefault"`
}

// User описывает пользователя вместе со списком его транспортных средств.
type User struct {
	ID       string    `json:"id"`
	Name     string    `json:"name,omitempty"`
	Email    string    `json:"email,omitempty"`
	Vehicles []Vehicle `json:"vehicles"`
}

// TransactionType описывает направление операции по кошельку.
type TransactionType string

const (
	TransactionCredit TransactionType = "CREDIT"
	TransactionDebit  TransactionType = "DEBIT"
)

// WalletTransaction описывает одну операцию по кошельку.
type WalletTransaction struct {
	ID           string          `json:"id"`
	Type         TransactionType `json:"type"`
	Amount       float64         `json:"amount"`
	BalanceAfter float64         `json:"balanceAfter"`
	Timestamp    time.Time       `json:"timestamp"`
	Description  string          `json:"description,omitempty"`
}

// WalletState содержит баланс и историю операций по кошельку.
// Баланс всегда равен последнему значению, полученному с сервера.
type WalletState struct {
	Balance      float64             `json:"balance"`
	Transactions []WalletTransaction `json:"transactions"`
}

// TopUpOrder описывает созданный платёжный ордер пополнения кошелька.
type TopUpOrder struct {
	OrderID string `json:"orderId"`
	KeyID   string `json:"keyId,omitempty"`
}

// PaymentCallbackRequest описывает отчёт клиента о результате оплаты.
// Отправляется и при успехе, и при неудаче, чтобы сервер всегда знал исход.
type PaymentCallbackRequest struct {
	OrderID   string  `json:"orderId"`
	PaymentID string  `json:"paymentId"`
	Success   bool    `json:"success"`
	UserID    string  `json:"userId"`
	Amount    float64 `json:"amount"`
}

// ParkingConfig содержит тарифные параметры, получаемые с сервера.
type ParkingConfig struct {
	HourlyRate float64 `json:"hourlyRate"`
}
