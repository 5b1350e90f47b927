// Package service реализует бизнес-логику клиента бронирования парковки:
// оркестрацию жизненного цикла бронирований и периодическую синхронизацию
// локального состояния с сервером.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/parkbooking-client/internal/api"
	"github.com/mmeshcher/parkbooking-client/internal/model"
	"github.com/mmeshcher/parkbooking-client/internal/pricing"
	"github.com/mmeshcher/parkbooking-client/internal/state"
	"github.com/mmeshcher/parkbooking-client/internal/timeslot"
	"github.com/mmeshcher/parkbooking-client/internal/validation"
	"github.com/mmeshcher/parkbooking-client/internal/vehicle"
)

// API описывает контракт удалённого сервиса, используемый оркестратором.
type API interface {
	FetchSpots(ctx context.Context) ([]model.ParkingSpot, error)
	FetchSpotsByLot(ctx context.Context, lotName, lotID string) ([]model.ParkingSpot, error)
	FetchAvailableSpots(ctx context.Context, lotID string, start, end time.Time) ([]model.ParkingSpot, error)
	FetchUserBookings(ctx context.Context, userID string) ([]model.Booking, error)
	CreateBooking(ctx context.Context, req model.CreateBookingRequest) (*model.Booking, error)
	CancelBooking(ctx context.Context, userID, bookingID string) error
	ExtendBooking(ctx context.Context, userID, bookingID string, newCheckOut time.Time) (*model.Booking, error)
	FetchBooking(ctx context.Context, userID, bookingID string) (*model.Booking, error)
	FetchPenalty(ctx context.Context, userID, bookingID string) (float64, error)
	ValidateCheckInQR(ctx context.Context, userID, bookingID, qrCode string) (*model.QRValidationResult, error)
	ConfirmCheckIn(ctx context.Context, userID, bookingID, qrCode string) (*model.Booking, error)
	ValidateCheckOutQR(ctx context.Context, userID, bookingID, qrCode string) (*model.QRValidationResult, error)
	ConfirmCheckOut(ctx context.Context, userID, bookingID, qrCode string) (*model.Booking, error)
	FetchWallet(ctx context.Context, userID string) (*model.WalletState, error)
	InitiateTopUp(ctx context.Context, userID string, amount float64) (*model.TopUpOrder, error)
	PaymentCallback(ctx context.Context, req model.PaymentCallbackRequest) error
	UpdateUserVehicles(ctx context.Context, userID string, vehicles []model.Vehicle) error
}

// Service содержит бизнес-логику клиента бронирования.
// Все операции записи сериализуются по сущности: на одно место или
// бронирование допускается не более одного запроса в полёте.
type Service struct {
	api      API
	registry *vehicle.Registry
	rates    *pricing.RateProvider
	store    *state.Store
	userID   string
	interval time.Duration
	logger   *zap.Logger

	now func() time.Time

	mu              sync.Mutex
	pendingSpots    map[string]struct{}
	pendingBookings map[string]struct{}
}

// NewService создаёт сервис с указанными зависимостями.
func NewService(api API, registry *vehicle.Registry, rates *pricing.RateProvider, store *state.Store, userID string, interval time.Duration, logger *zap.Logger) *Service {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Service{
		api:             api,
		registry:        registry,
		rates:           rates,
		store:           store,
		userID:          userID,
		interval:        interval,
		logger:          logger,
		now:             time.Now,
		pendingSpots:    make(map[string]struct{}),
		pendingBookings: make(map[string]struct{}),
	}
}

// Store возвращает наблюдаемое хранилище состояния.
func (s *Service) Store() *state.Store {
	return s.store
}

// Quote возвращает число оплачиваемых часов и предварительную стоимость
// окна по последнему известному тарифу.
func (s *Service) Quote(start, end time.Time) (int, float64) {
	return pricing.Price(start, end, s.rates.Rate())
}

// DefaultWindow возвращает окно бронирования по умолчанию для текущего момента.
func (s *Service) DefaultWindow() (start, end time.Time) {
	return timeslot.DefaultWindow(s.now())
}

// CreateBooking создаёт бронирование места на указанное окно.
// Все предусловия проверяются локально до обращения к серверу; при
// дублирующей отправке по тому же месту запрос отклоняется сразу.
func (s *Service) CreateBooking(ctx context.Context, spotID, lotID, vehicleNumber string, start, end time.Time) (*model.Booking, error) {
	if s.userID == "" {
		return nil, fmt.Errorf("%w: user is not set", ErrValidation)
	}
	if spotID == "" || lotID == "" {
		return nil, fmt.Errorf("%w: spot and lot are required", ErrValidation)
	}

	number := validation.NormalizeVehicleNumber(vehicleNumber)
	if number == "" {
		return nil, fmt.Errorf("%w: vehicle is not selected", ErrValidation)
	}
	if len(s.registry.List()) > 0 && !s.registry.Contains(number) {
		return nil, fmt.Errorf("%w: vehicle %s is not registered", ErrValidation, number)
	}

	if err := timeslot.Validate(start, end, s.now()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if !s.acquireSpot(spotID) {
		return nil, fmt.Errorf("%w: spot %s", ErrDuplicateSubmission, spotID)
	}
	defer s.releaseSpot(spotID)

	booking, err := s.api.CreateBooking(ctx, model.CreateBookingRequest{
		SpotID:        spotID,
		UserID:        s.userID,
		LotID:         lotID,
		VehicleNumber: number,
		CheckInTime:   start,
		CheckOutTime:  end,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking created",
		zap.String("bookingID", booking.ID),
		zap.String("spotID", spotID),
		zap.String("status", string(booking.Status)))

	s.store.UpsertBooking(*booking)
	s.refresh(ctx)
	return booking, nil
}

// CancelBooking отменяет бронирование. Допустимо только из статуса PENDING.
// Отменённое бронирование удаляется из локального состояния целиком.
func (s *Service) CancelBooking(ctx context.Context, bookingID string) error {
	booking, err := s.lookupBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	if booking.Status != model.BookingStatusPending {
		return fmt.Errorf("%w: cancel is allowed only for pending bookings, got %s", ErrInvalidState, booking.Status)
	}

	if !s.acquireBooking(bookingID) {
		return fmt.Errorf("%w: booking %s", ErrDuplicateSubmission, bookingID)
	}
	defer s.releaseBooking(bookingID)

	if err := s.api.CancelBooking(ctx, s.userID, bookingID); err != nil {
		return err
	}

	s.logger.Info("booking cancelled", zap.String("bookingID", bookingID))
	s.store.RemoveBooking(bookingID)
	s.refresh(ctx)
	return nil
}

// ExtendBooking продлевает активное бронирование на указанное число минут.
// Серверу отправляется вычисленная метка нового времени выезда, не дельта.
func (s *Service) ExtendBooking(ctx context.Context, bookingID string, additionalMinutes int) (*model.Booking, error) {
	if additionalMinutes <= 0 {
		return nil, fmt.Errorf("%w: extension must be positive", ErrValidation)
	}

	booking, err := s.lookupBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != model.BookingStatusActive {
		return nil, fmt.Errorf("%w: extend is allowed only for active bookings, got %s", ErrInvalidState, booking.Status)
	}
	if booking.CheckOutTime == nil {
		return nil, fmt.Errorf("%w: booking has no check-out time", ErrInvalidState)
	}

	if !s.acquireBooking(bookingID) {
		return nil, fmt.Errorf("%w: booking %s", ErrDuplicateSubmission, bookingID)
	}
	defer s.releaseBooking(bookingID)

	newCheckOut := booking.CheckOutTime.Add(time.Duration(additionalMinutes) * time.Minute)
	updated, err := s.api.ExtendBooking(ctx, s.userID, bookingID, newCheckOut)
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking extended",
		zap.String("bookingID", bookingID),
		zap.Time("newCheckOut", newCheckOut))

	s.store.UpsertBooking(*updated)
	s.refresh(ctx)
	return updated, nil
}

// CheckIn выполняет заезд по QR-коду. Допустимо только из статуса PENDING.
// Сервер сначала проверяет код, затем подтверждает переход; время заезда
// клиент не вычисляет.
func (s *Service) CheckIn(ctx context.Context, bookingID, qrCode string) (*model.Booking, error) {
	booking, err := s.lookupBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != model.BookingStatusPending {
		return nil, fmt.Errorf("%w: check-in is allowed only for pending bookings, got %s", ErrInvalidState, booking.Status)
	}

	if !s.acquireBooking(bookingID) {
		return nil, fmt.Errorf("%w: booking %s", ErrDuplicateSubmission, bookingID)
	}
	defer s.releaseBooking(bookingID)

	result, err := s.api.ValidateCheckInQR(ctx, s.userID, bookingID, qrCode)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return nil, fmt.Errorf("%w: %s", ErrQRRejected, result.Message)
	}

	updated, err := s.api.ConfirmCheckIn(ctx, s.userID, bookingID, qrCode)
	if err != nil {
		return nil, err
	}

	s.logger.Info("checked in", zap.String("bookingID", bookingID))
	s.store.UpsertBooking(*updated)
	s.refresh(ctx)
	return updated, nil
}

// CheckOut выполняет выезд по QR-коду. Допустимо только из статуса ACTIVE.
// Итоговые часы и сумма, включая возможный штраф, приходят от сервера,
// клиент их не пересчитывает.
func (s *Service) CheckOut(ctx context.Context, bookingID, qrCode string) (*model.Booking, error) {
	booking, err := s.lookupBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != model.BookingStatusActive {
		return nil, fmt.Errorf("%w: check-out is allowed only for active bookings, got %s", ErrInvalidState, booking.Status)
	}

	if !s.acquireBooking(bookingID) {
		return nil, fmt.Errorf("%w: booking %s", ErrDuplicateSubmission, bookingID)
	}
	defer s.releaseBooking(bookingID)

	result, err := s.api.ValidateCheckOutQR(ctx, s.userID, bookingID, qrCode)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return nil, fmt.Errorf("%w: %s", ErrQRRejected, result.Message)
	}
	if result.Penalty != nil && *result.Penalty > 0 {
		s.logger.Warn("late check-out penalty",
			zap.String("bookingID", bookingID),
			zap.Float64("penalty", *result.Penalty))
	}

	updated, err := s.api.ConfirmCheckOut(ctx, s.userID, bookingID, qrCode)
	if err != nil {
		return nil, err
	}

	s.logger.Info("checked out",
		zap.String("bookingID", bookingID),
		zap.Float64("totalAmount", updated.TotalAmount))

	s.store.UpsertBooking(*updated)
	s.refresh(ctx)
	return updated, nil
}

// AddVehicle добавляет номер в реестр и сохраняет список на сервере.
// Повторное добавление того же номера — успешная no-op операция.
func (s *Service) AddVehicle(ctx context.Context, number string) (model.Vehicle, error) {
	n := validation.NormalizeVehicleNumber(number)
	if !validation.IsValidVehicleNumber(n) {
		return model.Vehicle{}, fmt.Errorf("%w: invalid vehicle number", ErrValidation)
	}

	existed := s.registry.Contains(n)
	v, err := s.registry.Add(n)
	if err != nil {
		return model.Vehicle{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if existed {
		return v, nil
	}

	if err := s.api.UpdateUserVehicles(ctx, s.userID, s.registry.List()); err != nil {
		s.registry.Remove(v.ID)
		return model.Vehicle{}, err
	}
	return v, nil
}

// SetPrimaryVehicle делает транспортное средство основным.
func (s *Service) SetPrimaryVehicle(id string) error {
	if err := s.registry.SetPrimary(id); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// PrimaryVehicle возвращает основное транспортное средство либо nil.
func (s *Service) PrimaryVehicle() *model.Vehicle {
	return s.registry.Primary()
}

// TopUpWallet создаёт ордер пополнения кошелька на указанную сумму.
func (s *Service) TopUpWallet(ctx context.Context, amount float64) (*model.TopUpOrder, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: top-up amount must be positive", ErrValidation)
	}
	return s.api.InitiateTopUp(ctx, s.userID, amount)
}

// ConfirmTopUp передаёт серверу результат оплаты от платёжного шлюза.
// Вызывается ровно один раз на попытку и при успехе, и при неудаче:
// сервер должен знать исход каждой попытки. Баланс не инкрементируется
// локально, он придёт со следующей выборкой кошелька.
func (s *Service) ConfirmTopUp(ctx context.Context, orderID, paymentID string, success bool, amount float64) error {
	err := s.api.PaymentCallback(ctx, model.PaymentCallbackRequest{
		OrderID:   orderID,
		PaymentID: paymentID,
		Success:   success,
		UserID:    s.userID,
		Amount:    amount,
	})
	if err != nil {
		return err
	}

	s.refresh(ctx)
	return nil
}

// LoadAvailableSpots обновляет список мест по окну времени.
// При недоступности фильтрованной выборки выполняется широкий запрос
// по комплексу, и снимок помечается как деградированный.
func (s *Service) LoadAvailableSpots(ctx context.Context, lotName, lotID string, start, end time.Time) error {
	gen := s.store.BeginRefresh()

	spots, err := s.api.FetchAvailableSpots(ctx, lotID, start, end)
	if err == nil {
		s.store.ApplySpots(gen, spots, false)
		return nil
	}

	s.logger.Warn("time-filtered spot fetch failed, falling back to unfiltered", zap.Error(err))

	spots, fallbackErr := s.api.FetchSpotsByLot(ctx, lotName, lotID)
	if fallbackErr != nil {
		return fmt.Errorf("load available spots: %w", err)
	}
	s.store.ApplySpots(gen, spots, true)
	return nil
}

// Penalty возвращает начисленный на данный момент штраф по бронированию.
func (s *Service) Penalty(ctx context.Context, bookingID string) (float64, error) {
	return s.api.FetchPenalty(ctx, s.userID, bookingID)
}

// lookupBooking ищет бронирование в локальном снимке, а при промахе
// запрашивает его с сервера. Промах возможен, если бронирование создано
// с другого устройства между циклами синхронизации.
func (s *Service) lookupBooking(ctx context.Context, bookingID string) (model.Booking, error) {
	if booking, ok := s.store.Booking(bookingID); ok {
		return booking, nil
	}

	fetched, err := s.api.FetchBooking(ctx, s.userID, bookingID)
	if err != nil {
		// Бронирования не существует — это ошибка предусловия; сетевые
		// и серверные сбои отдаются вызывающему как есть.
		var srvErr *api.ServerError
		if errors.Is(err, api.ErrNoData) || (errors.As(err, &srvErr) && srvErr.Code == http.StatusNotFound) {
			return model.Booking{}, fmt.Errorf("%w: booking %s not found", ErrValidation, bookingID)
		}
		return model.Booking{}, err
	}
	s.store.UpsertBooking(*fetched)
	return *fetched, nil
}

func (s *Service) acquireSpot(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.pendingSpots[id]; busy {
		return false
	}
	s.pendingSpots[id] = struct{}{}
	return true
}

func (s *Service) releaseSpot(id string) {
	s.mu.Lock()
	delete(s.pendingSpots, id)
	s.mu.Unlock()
}

func (s *Service) acquireBooking(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.pendingBookings[id]; busy {
		return false
	}
	s.pendingBookings[id] = struct{}{}
	return true
}

func (s *Service) releaseBooking(id string) {
	s.mu.Lock()
	delete(s.pendingBookings, id)
	s.mu.Unlock()
}

// clearPending сбрасывает все флаги незавершённых записей.
// Вызывается в начале каждого полного обновления, чтобы потерянный ответ
// не оставил место или бронирование занятым навсегда.
func (s *Service) clearPending() {
	s.mu.Lock()
	s.pendingSpots = make(map[string]struct{})
	s.pendingBookings = make(map[string]struct{})
	s.mu.Unlock()
}
