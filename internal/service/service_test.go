package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/parkbooking-client/internal/api"
	"github.com/mmeshcher/parkbooking-client/internal/model"
	"github.com/mmeshcher/parkbooking-client/internal/pricing"
	"github.com/mmeshcher/parkbooking-client/internal/state"
	"github.com/mmeshcher/parkbooking-client/internal/vehicle"
)

type stubAPI struct {
	spots    []model.ParkingSpot
	spotsErr error

	availableSpots []model.ParkingSpot
	availableErr   error

	byLotSpots []model.ParkingSpot
	byLotErr   error

	bookings    []model.Booking
	bookingsErr error

	created        *model.Booking
	createErr      error
	createCalls    int
	cancelErr      error
	extended       *model.Booking
	extendErr      error
	gotNewCheckOut time.Time

	checkInResult  *model.QRValidationResult
	checkInErr     error
	confirmedIn    *model.Booking
	confirmInErr   error
	confirmInCalls int

	checkOutResult *model.QRValidationResult
	checkOutErr    error
	confirmedOut   *model.Booking
	confirmOutErr  error

	fetched    *model.Booking
	fetchedErr error

	penalty float64

	wallet      *model.WalletState
	walletErr   error
	order       *model.TopUpOrder
	topUpErr    error
	callbacks   []model.PaymentCallbackRequest
	callbackErr error

	user         *model.User
	userErr      error
	updateErr    error
	updatedLists [][]model.Vehicle

	cfg    *model.ParkingConfig
	cfgErr error
}

func (s *stubAPI) FetchSpots(ctx context.Context) ([]model.ParkingSpot, error) {
	return s.spots, s.spotsErr
}

func (s *stubAPI) FetchSpotsByLot(ctx context.Context, lotName, lotID string) ([]model.ParkingSpot, error) {
	return s.byLotSpots, s.byLotErr
}

func (s *stubAPI) FetchAvailableSpots(ctx context.Context, lotID string, start, end time.Time) ([]model.ParkingSpot, error) {
	return s.availableSpots, s.availableErr
}

func (s *stubAPI) FetchUserBookings(ctx context.Context, userID string) ([]model.Booking, error) {
	return s.bookings, s.bookingsErr
}

func (s *stubAPI) CreateBooking(ctx context.Context, req model.CreateBookingRequest) (*model.Booking, error) {
	s.createCalls++
	return s.created, s.createErr
}

func (s *stubAPI) CancelBooking(ctx context.Context, userID, bookingID string) error {
	return s.cancelErr
}

func (s *stubAPI) ExtendBooking(ctx context.Context, userID, bookingID string, newCheckOut time.Time) (*model.Booking, error) {
	s.gotNewCheckOut = newCheckOut
	return s.extended, s.extendErr
}

func (s *stubAPI) FetchBooking(ctx context.Context, userID, bookingID string) (*model.Booking, error) {
	return s.fetched, s.fetchedErr
}

func (s *stubAPI) FetchPenalty(ctx context.Context, userID, bookingID string) (float64, error) {
	return s.penalty, nil
}

func (s *stubAPI) ValidateCheckInQR(ctx context.Context, userID, bookingID, qrCode string) (*model.QRValidationResult, error) {
	return s.checkInResult, s.checkInErr
}

func (s *stubAPI) ConfirmCheckIn(ctx context.Context, userID, bookingID, qrCode string) (*model.Booking, error) {
	s.confirmInCalls++
	return s.confirmedIn, s.confirmInErr
}

func (s *stubAPI) ValidateCheckOutQR(ctx context.Context, userID, bookingID, qrCode string) (*model.QRValidationResult, error) {
	return s.checkOutResult, s.checkOutErr
}

func (s *stubAPI) ConfirmCheckOut(ctx context.Context, userID, bookingID, qrCode string) (*model.Booking, error) {
	return s.confirmedOut, s.confirmOutErr
}

func (s *stubAPI) FetchWallet(ctx context.Context, userID string) (*model.WalletState, error) {
	if s.wallet == nil {
		return &model.WalletState{}, s.walletErr
	}
	return s.wallet, s.walletErr
}

func (s *stubAPI) InitiateTopUp(ctx context.Context, userID string, amount float64) (*model.TopUpOrder, error) {
	return s.order, s.topUpErr
}

func (s *stubAPI) PaymentCallback(ctx context.Context, req model.PaymentCallbackRequest) error {
	s.callbacks = append(s.callbacks, req)
	return s.callbackErr
}

func (s *stubAPI) FetchUser(ctx context.Context, userID string) (*model.User, error) {
	if s.user == nil {
		return &model.User{ID: userID}, s.userErr
	}
	return s.user, s.userErr
}

func (s *stubAPI) UpdateUserVehicles(ctx context.Context, userID string, vehicles []model.Vehicle) error {
	s.updatedLists = append(s.updatedLists, vehicles)
	return s.updateErr
}

func (s *stubAPI) FetchParkingConfig(ctx context.Context) (*model.ParkingConfig, error) {
	if s.cfg == nil {
		return &model.ParkingConfig{HourlyRate: 2.5}, s.cfgErr
	}
	return s.cfg, s.cfgErr
}

var testNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.Local)

func testWindow() (time.Time, time.Time) {
	start := time.Date(2026, time.March, 10, 14, 0, 0, 0, time.Local)
	return start, start.Add(2 * time.Hour)
}

func newTestService(api *stubAPI) *Service {
	logger := zap.NewNop()
	svc := NewService(
		api,
		vehicle.NewRegistry(api, logger),
		pricing.NewRateProvider(api, 2.5, logger),
		state.NewStore(),
		"user-1",
		time.Second,
		logger,
	)
	svc.now = func() time.Time { return testNow }
	return svc
}

func TestCreateBookingValidation(t *testing.T) {
	api := &stubAPI{created: &model.Booking{ID: "b1", Status: model.BookingStatusPending}}
	svc := newTestService(api)
	start, end := testWindow()

	tests := []struct {
		name    string
		spotID  string
		lotID   string
		vehicle string
		start   time.Time
		end     time.Time
	}{
		{"empty spot", "", "l1", "KA01AB1234", start, end},
		{"empty lot", "s1", "", "KA01AB1234", start, end},
		{"empty vehicle", "s1", "l1", "  ", start, end},
		{"misaligned window", "s1", "l1", "KA01AB1234", start.Add(10 * time.Minute), end},
		{"window in the past", "s1", "l1", "KA01AB1234", start.Add(-4 * time.Hour), end.Add(-4 * time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateBooking(context.Background(), tt.spotID, tt.lotID, tt.vehicle, tt.start, tt.end)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
		})
	}

	if api.createCalls != 0 {
		t.Fatalf("createCalls = %d, validation failures must not reach the network", api.createCalls)
	}
}

func TestCreateBookingRejectsUnknownVehicle(t *testing.T) {
	api := &stubAPI{}
	svc := newTestService(api)
	if _, err := svc.registry.Add("KA01AB1234"); err != nil {
		t.Fatalf("registry.Add: %v", err)
	}

	start, end := testWindow()
	_, err := svc.CreateBooking(context.Background(), "s1", "l1", "MH12DE1433", start, end)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation for unregistered vehicle", err)
	}
}

func TestCreateBookingSuccess(t *testing.T) {
	created := model.Booking{ID: "b1", SpotID: "s1", Status: model.BookingStatusPending}
	api := &stubAPI{
		created: &created,
		// Полная выборка после создания возвращает то же бронирование.
		bookings: []model.Booking{created},
	}
	svc := newTestService(api)

	start, end := testWindow()
	booking, err := svc.CreateBooking(context.Background(), "s1", "l1", "ka 01 ab 1234", start, end)
	if err != nil {
		t.Fatalf("CreateBooking error: %v", err)
	}
	if booking.ID != "b1" {
		t.Fatalf("booking id = %q, want b1", booking.ID)
	}

	if _, ok := svc.store.Booking("b1"); !ok {
		t.Fatalf("created booking must appear in the store immediately")
	}
}

func TestCreateBookingDuplicateSubmission(t *testing.T) {
	api := &stubAPI{created: &model.Booking{ID: "b1", Status: model.BookingStatusPending}}
	svc := newTestService(api)

	// Первый запрос по этому месту ещё в полёте.
	if !svc.acquireSpot("s1") {
		t.Fatalf("acquireSpot failed on a fresh service")
	}

	start, end := testWindow()
	_, err := svc.CreateBooking(context.Background(), "s1", "l1", "KA01AB1234", start, end)
	if !errors.Is(err, ErrDuplicateSubmission) {
		t.Fatalf("err = %v, want ErrDuplicateSubmission", err)
	}
	if api.createCalls != 0 {
		t.Fatalf("duplicate submission must not reach the network")
	}

	// После завершения первого запроса место снова доступно.
	svc.releaseSpot("s1")
	if _, err := svc.CreateBooking(context.Background(), "s1", "l1", "KA01AB1234", start, end); err != nil {
		t.Fatalf("CreateBooking after release: %v", err)
	}
	if api.createCalls != 1 {
		t.Fatalf("createCalls = %d, want exactly 1", api.createCalls)
	}
}

func TestRefreshClearsPendingFlags(t *testing.T) {
	api := &stubAPI{created: &model.Booking{ID: "b1", Status: model.BookingStatusPending}}
	svc := newTestService(api)

	// Флаг завис: ответ на запрос потерян.
	svc.acquireSpot("s1")
	svc.RefreshNow(context.Background())

	start, end := testWindow()
	if _, err := svc.CreateBooking(context.Background(), "s1", "l1", "KA01AB1234", start, end); err != nil {
		t.Fatalf("CreateBooking after refresh: %v", err)
	}
}

func TestCancelBookingOnlyPending(t *testing.T) {
	api := &stubAPI{}
	svc := newTestService(api)
	svc.store.UpsertBooking(model.Booking{ID: "b1", Status: model.BookingStatusActive})

	err := svc.CancelBooking(context.Background(), "b1")
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
}

func TestCancelBookingRemovesFromStore(t *testing.T) {
	api := &stubAPI{}
	svc := newTestService(api)
	svc.store.UpsertBooking(model.Booking{ID: "b1", Status: model.BookingStatusPending})

	if err := svc.CancelBooking(context.Background(), "b1"); err != nil {
		t.Fatalf("CancelBooking error: %v", err)
	}
	if _, ok := svc.store.Booking("b1"); ok {
		t.Fatalf("cancelled booking must be removed from local state")
	}
}

func TestCancelBookingKeptOnServerError(t *testing.T) {
	api := &stubAPI{cancelErr: errors.New("boom")}
	svc := newTestService(api)
	svc.store.UpsertBooking(model.Booking{ID: "b1", Status: model.BookingStatusPending})

	if err := svc.CancelBooking(context.Background(), "b1"); err == nil {
		t.Fatalf("expected error")
	}
	if _, ok := svc.store.Booking("b1"); !ok {
		t.Fatalf("booking must stay in local state when the server refused to cancel")
	}
}

func TestExtendBookingSendsAbsoluteTime(t *testing.T) {
	checkOut := time.Date(2026, time.March, 10, 16, 0, 0, 0, time.Local)
	api := &stubAPI{extended: &model.Booking{ID: "b1", Status: model.BookingStatusActive}}
	svc := newTestService(api)
	svc.store.UpsertBooking(model.Booking{
		ID:           "b1",
		Status:       model.BookingStatusActive,
		CheckOutTime: &checkOut,
	})

	if _, err := svc.ExtendBooking(context.Background(), "b1", 90); err != nil {
		t.Fatalf("ExtendBooking error: %v", err)
	}

	want := checkOut.Add(90 * time.Minute)
	if !api.gotNewCheckOut.Equal(want) {
		t.Fatalf("newCheckOut = %v, want %v", api.gotNewCheckOut, want)
	}
}

func TestExtendBookingRequiresActive(t *testing.T) {
	api := &stubAPI{}
	svc := newTestService(api)
	svc.store.UpsertBooking(model.Booking{ID: "b1", Status: model.BookingStatusPending})

	if _, err := svc.ExtendBooking(context.Background(), "b1", 30); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
	if _, err := svc.ExtendBooking(context.Background(), "b1", 0); !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation for zero minutes", err)
	}
}

func TestCheckInRejectedQR(t *testing.T) {
	api := &stubAPI{
		checkInResult: &model.QRValidationResult{Valid: false, Message: "QR code does not match"},
	}
	svc := newTestService(api)
	svc.store.UpsertBooking(model.Booking{ID: "b1", Status: model.BookingStatusPending})

	_, err := svc.CheckIn(context.Background(), "b1", "bad-qr")
	if !errors.Is(err, ErrQRRejected) {
		t.Fatalf("err = %v, want ErrQRRejected", err)
	}
	if api.confirmInCalls != 0 {
		t.Fatalf("rejected QR must not be confirmed")
	}

	// Бронирование остаётся в прежнем статусе.
	b, _ := svc.store.Booking("b1")
	if b.Status != model.BookingStatusPending {
		t.Fatalf("status = %s, want PENDING after rejected check-in", b.Status)
	}
}

func TestCheckInSuccess(t *testing.T) {
	now := testNow
	api := &stubAPI{
		checkInResult: &model.QRValidationResult{Valid: true},
		confirmedIn:   &model.Booking{ID: "b1", Status: model.BookingStatusActive, CheckInTime: &now},
	}
	svc := newTestService(api)
	svc.store.UpsertBooking(model.Booking{ID: "b1", Status: model.BookingStatusPending})

	booking, err := svc.CheckIn(context.Background(), "b1", "qr")
	if err != nil {
		t.Fatalf("CheckIn error: %v", err)
	}
	if booking.Status != model.BookingStatusActive {
		t.Fatalf("status = %s, want ACTIVE", booking.Status)
	}
}

func TestCheckInRequiresPending(t *testing.T) {
	api := &stubAPI{}
	svc := newTestService(api)
	svc.store.UpsertBooking(model.Booking{ID: "b1", Status: model.BookingStatusCompleted})

	if _, err := svc.CheckIn(context.Background(), "b1", "qr"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
}

func TestCheckOutKeepsServerTotals(t *testing.T) {
	penalty := 2.5
	api := &stubAPI{
		checkOutResult: &model.QRValidationResult{Valid: true, Penalty: &penalty},
		confirmedOut: &model.Booking{
			ID:          "b1",
			Status:      model.BookingStatusCompleted,
			TotalHours:  3,
			TotalAmount: 10.0,
		},
	}
	svc := newTestService(api)
	svc.store.UpsertBooking(model.Booking{ID: "b1", Status: model.BookingStatusActive})

	booking, err := svc.CheckOut(context.Background(), "b1", "qr")
	if err != nil {
		t.Fatalf("CheckOut error: %v", err)
	}
	if booking.TotalAmount != 10.0 || booking.TotalHours != 3 {
		t.Fatalf("totals = %v/%v, server values must be kept as is", booking.TotalHours, booking.TotalAmount)
	}
}

func TestLookupBookingUnknownIDIsValidationError(t *testing.T) {
	api404 := &stubAPI{
		fetchedErr: fmt.Errorf("fetch booking: %w", &api.ServerError{Code: http.StatusNotFound, Message: "booking not found"}),
	}
	svc := newTestService(api404)

	if _, err := svc.CheckIn(context.Background(), "missing", "qr"); !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation for a booking the server does not know", err)
	}
}

func TestLookupBookingPropagatesServerFailures(t *testing.T) {
	// Сбой сети при промахе локального снимка — не ошибка валидации:
	// вызывающий должен увидеть настоящую причину.
	apiDown := &stubAPI{
		fetchedErr: fmt.Errorf("fetch booking: %w", api.ErrNetwork),
	}
	svc := newTestService(apiDown)

	_, err := svc.CheckIn(context.Background(), "b1", "qr")
	if !errors.Is(err, api.ErrNetwork) {
		t.Fatalf("err = %v, want the network error passed through", err)
	}
	if errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, a server failure must not look like a validation error", err)
	}
}

func TestLookupBookingFallsBackToServer(t *testing.T) {
	api := &stubAPI{
		fetched:       &model.Booking{ID: "b1", Status: model.BookingStatusPending},
		checkInResult: &model.QRValidationResult{Valid: true},
		confirmedIn:   &model.Booking{ID: "b1", Status: model.BookingStatusActive},
	}
	svc := newTestService(api)

	// Бронирования нет в локальном снимке: создано с другого устройства.
	if _, err := svc.CheckIn(context.Background(), "b1", "qr"); err != nil {
		t.Fatalf("CheckIn error: %v", err)
	}
}

func TestAddVehicleRollsBackOnPushFailure(t *testing.T) {
	api := &stubAPI{updateErr: errors.New("boom")}
	svc := newTestService(api)

	if _, err := svc.AddVehicle(context.Background(), "KA01AB1234"); err == nil {
		t.Fatalf("expected error when the server rejected the list")
	}
	if got := len(svc.registry.List()); got != 0 {
		t.Fatalf("registry size = %d, want 0 after rollback", got)
	}
}

func TestAddVehicleDuplicateSkipsPush(t *testing.T) {
	api := &stubAPI{}
	svc := newTestService(api)

	if _, err := svc.AddVehicle(context.Background(), "KA01AB1234"); err != nil {
		t.Fatalf("AddVehicle error: %v", err)
	}
	if _, err := svc.AddVehicle(context.Background(), "ka-01-ab-1234"); err != nil {
		t.Fatalf("duplicate AddVehicle error: %v", err)
	}
	if got := len(api.updatedLists); got != 1 {
		t.Fatalf("updates pushed = %d, duplicate add must not push again", got)
	}
}

func TestTopUpValidation(t *testing.T) {
	api := &stubAPI{}
	svc := newTestService(api)

	if _, err := svc.TopUpWallet(context.Background(), 0); !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation for zero amount", err)
	}
	if _, err := svc.TopUpWallet(context.Background(), -5); !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation for negative amount", err)
	}
}

func TestConfirmTopUpReportsFailureToo(t *testing.T) {
	api := &stubAPI{}
	svc := newTestService(api)

	// Платёжный шлюз отказал, но бэкенд всё равно узнаёт об исходе попытки.
	if err := svc.ConfirmTopUp(context.Background(), "o1", "p1", false, 100); err != nil {
		t.Fatalf("ConfirmTopUp error: %v", err)
	}
	if len(api.callbacks) != 1 {
		t.Fatalf("callbacks = %d, want 1", len(api.callbacks))
	}
	cb := api.callbacks[0]
	if cb.Success || cb.OrderID != "o1" || cb.PaymentID != "p1" || cb.Amount != 100 {
		t.Fatalf("unexpected callback payload: %+v", cb)
	}

	if err := svc.ConfirmTopUp(context.Background(), "o2", "p2", true, 50); err != nil {
		t.Fatalf("ConfirmTopUp error: %v", err)
	}
	if len(api.callbacks) != 2 || !api.callbacks[1].Success {
		t.Fatalf("success attempt must also be reported")
	}
}

func TestLoadAvailableSpotsFallsBack(t *testing.T) {
	api := &stubAPI{
		availableErr: errors.New("boom"),
		byLotSpots:   []model.ParkingSpot{{ID: "s1"}, {ID: "s2"}},
	}
	svc := newTestService(api)

	start, end := testWindow()
	if err := svc.LoadAvailableSpots(context.Background(), "Central Plaza", "l1", start, end); err != nil {
		t.Fatalf("LoadAvailableSpots error: %v", err)
	}

	snap := svc.store.Snapshot()
	if len(snap.Spots) != 2 {
		t.Fatalf("spots = %d, want 2 from the fallback fetch", len(snap.Spots))
	}
	if !snap.SpotsDegraded {
		t.Fatalf("snapshot must be marked degraded after the fallback")
	}
}

func TestLoadAvailableSpotsBothPathsFail(t *testing.T) {
	api := &stubAPI{
		availableErr: errors.New("filtered down"),
		byLotErr:     errors.New("broad down"),
	}
	svc := newTestService(api)

	start, end := testWindow()
	if err := svc.LoadAvailableSpots(context.Background(), "Central Plaza", "l1", start, end); err == nil {
		t.Fatalf("expected error when both fetches fail")
	}
}

func TestRefreshIsolatesFailures(t *testing.T) {
	api := &stubAPI{
		spotsErr: errors.New("spots down"),
		bookings: []model.Booking{{ID: "b1", Status: model.BookingStatusActive}},
		wallet:   &model.WalletState{Balance: 42},
	}
	svc := newTestService(api)

	svc.RefreshNow(context.Background())

	snap := svc.store.Snapshot()
	if len(snap.Bookings) != 1 {
		t.Fatalf("bookings must apply even when the spot fetch fails")
	}
	if snap.Wallet.Balance != 42 {
		t.Fatalf("wallet must apply even when the spot fetch fails")
	}
	if snap.HourlyRate != 2.5 {
		t.Fatalf("rate = %v, want 2.5", snap.HourlyRate)
	}
}

func TestQuoteUsesCurrentRate(t *testing.T) {
	api := &stubAPI{cfg: &model.ParkingConfig{HourlyRate: 4.0}}
	svc := newTestService(api)

	start, end := testWindow()

	hours, amount := svc.Quote(start, end)
	if hours != 2 || amount != 5.0 {
		t.Fatalf("quote before refresh = %d/%v, want 2/5.0 from fallback rate", hours, amount)
	}

	svc.RefreshNow(context.Background())

	hours, amount = svc.Quote(start, end)
	if hours != 2 || amount != 8.0 {
		t.Fatalf("quote after refresh = %d/%v, want 2/8.0 from fetched rate", hours, amount)
	}
}
