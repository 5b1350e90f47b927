// Package main запускает учебный бэкенд парковки в памяти.
// Он реализует тот же HTTP-контракт, что и боевой сервер, и нужен
// для ручной проверки клиентского движка без настоящей инфраструктуры.
package main

import (
	"encoding/json"
	"flag"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/mmeshcher/parkbooking-client/internal/model"
)

const hourlyRate = 2.5

type server struct {
	logger *zap.SugaredLogger

	mu       sync.Mutex
	lots     []model.ParkingLot
	spots    []model.ParkingSpot
	bookings map[string]*model.Booking
	users    map[string]*model.User
	wallets  map[string]*model.WalletState
	orders   map[string]model.PaymentCallbackRequest
}

func newServer(logger *zap.SugaredLogger) *server {
	lotID := uuid.NewString()
	s := &server{
		logger: logger,
		lots: []model.ParkingLot{
			{ID: lotID, Name: "Central Plaza"},
		},
		bookings: make(map[string]*model.Booking),
		users:    make(map[string]*model.User),
		wallets:  make(map[string]*model.WalletState),
		orders:   make(map[string]model.PaymentCallbackRequest),
	}
	for i := 0; i < 6; i++ {
		s.spots = append(s.spots, model.ParkingSpot{
			ID:        uuid.NewString(),
			LotID:     lotID,
			Name:      "Central Plaza",
			ZoneName:  "A",
			SpotCode:  "A-" + string(rune('1'+i)),
			Capacity:  1,
			Available: 1,
			Status:    "AVAILABLE",
		})
	}
	return s
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"message": message})
}

func (s *server) handleLots(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.lots)
}

func (s *server) handleSpots(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lotKey := r.URL.Query().Get("lotId")
	out := make([]model.ParkingSpot, 0, len(s.spots))
	for _, spot := range s.spots {
		if lotKey != "" && spot.LotID != lotKey && !s.lotNameMatches(spot.LotID, lotKey) {
			continue
		}
		out = append(out, spot)
	}
	writeJSON(w, http.StatusOK, out)
}

// lotNameMatches воспроизводит причуду боевого бэкенда: параметр lotId
// принимает и идентификатор, и имя комплекса.
func (s *server) lotNameMatches(lotID, key string) bool {
	for _, lot := range s.lots {
		if lot.ID == lotID && strings.EqualFold(lot.Name, key) {
			return true
		}
	}
	return false
}

func (s *server) handleListBookings(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID := r.URL.Query().Get("userId")
	out := make([]model.Booking, 0, len(s.bookings))
	for _, b := range s.bookings {
		if userID == "" || b.UserID == userID {
			out = append(out, *b)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req model.CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range s.bookings {
		if b.SpotID == req.SpotID && !b.Status.IsTerminal() {
			writeError(w, http.StatusConflict, "spot is already booked for this period")
			return
		}
	}

	now := time.Now()
	checkIn := req.CheckInTime
	checkOut := req.CheckOutTime
	booking := &model.Booking{
		ID:            uuid.NewString(),
		SpotID:        req.SpotID,
		LotID:         req.LotID,
		UserID:        req.UserID,
		VehicleNumber: req.VehicleNumber,
		CheckInTime:   &checkIn,
		CheckOutTime:  &checkOut,
		Status:        model.BookingStatusPending,
		QRCode:        uuid.NewString(),
		CreatedAt:     &now,
	}
	s.bookings[booking.ID] = booking
	s.logger.Infow("booking created", "id", booking.ID, "spot", booking.SpotID)
	writeJSON(w, http.StatusCreated, booking)
}

func (s *server) booking(w http.ResponseWriter, r *http.Request) (*model.Booking, bool) {
	id := chi.URLParam(r, "bookingID")
	b, ok := s.bookings[id]
	if !ok {
		writeError(w, http.StatusNotFound, "booking not found")
		return nil, false
	}
	return b, true
}

func (s *server) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.booking(w, r); ok {
		writeJSON(w, http.StatusOK, b)
	}
}

func (s *server) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.booking(w, r)
	if !ok {
		return
	}
	if b.Status != model.BookingStatusPending {
		writeError(w, http.StatusConflict, "only pending bookings can be cancelled")
		return
	}
	b.Status = model.BookingStatusCancelled
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleExtend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NewCheckOutTime string `json:"newCheckOutTime"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request body")
		return
	}
	newCheckOut, err := time.Parse(time.RFC3339, req.NewCheckOutTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad newCheckOutTime")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.booking(w, r)
	if !ok {
		return
	}
	if b.Status != model.BookingStatusActive {
		writeError(w, http.StatusConflict, "only active bookings can be extended")
		return
	}
	b.CheckOutTime = &newCheckOut
	writeJSON(w, http.StatusOK, b)
}

func (s *server) handleValidateQR(expected model.BookingStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			QRCode string `json:"qrCode"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad request body")
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		b, ok := s.booking(w, r)
		if !ok {
			return
		}

		result := model.QRValidationResult{Valid: true}
		switch {
		case b.Status != expected:
			result.Valid = false
			result.Message = "booking is not in a suitable state"
		case req.QRCode != b.QRCode:
			result.Valid = false
			result.Message = "QR code does not match this booking"
		default:
			if p := s.penaltyLocked(b); p > 0 {
				result.Penalty = &p
				result.Message = "late check-out penalty applies"
			}
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func (s *server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.booking(w, r)
	if !ok {
		return
	}
	if b.Status != model.BookingStatusPending {
		writeError(w, http.StatusConflict, "booking is not pending")
		return
	}
	now := time.Now()
	b.Status = model.BookingStatusActive
	b.CheckInTime = &now
	writeJSON(w, http.StatusOK, b)
}

func (s *server) handleCheckOut(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.booking(w, r)
	if !ok {
		return
	}
	if b.Status != model.BookingStatusActive {
		writeError(w, http.StatusConflict, "booking is not active")
		return
	}

	now := time.Now()
	hours := 1.0
	if b.CheckInTime != nil {
		hours = math.Ceil(now.Sub(*b.CheckInTime).Hours())
		if hours < 1 {
			hours = 1
		}
	}
	penalty := s.penaltyLocked(b)

	b.Status = model.BookingStatusCompleted
	b.CheckOutTime = &now
	b.TotalHours = hours
	b.TotalAmount = hours*hourlyRate + penalty

	s.debitLocked(b.UserID, b.TotalAmount, "parking fee")
	writeJSON(w, http.StatusOK, b)
}

func (s *server) handlePenalty(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.booking(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.penaltyLocked(b))
}

// penaltyLocked начисляет по тарифу за каждый начатый час сверх
// оплаченного времени выезда.
func (s *server) penaltyLocked(b *model.Booking) float64 {
	if b.CheckOutTime == nil || b.Status != model.BookingStatusActive {
		return 0
	}
	overdue := time.Since(*b.CheckOutTime)
	if overdue <= 0 {
		return 0
	}
	return math.Ceil(overdue.Hours()) * hourlyRate
}

func (s *server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.userLocked(chi.URLParam(r, "userID")))
}

func (s *server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Vehicles []model.Vehicle `json:"vehicles"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user := s.userLocked(chi.URLParam(r, "userID"))
	for i := range req.Vehicles {
		if req.Vehicles[i].ID == "" || strings.HasPrefix(req.Vehicles[i].ID, "local-") {
			req.Vehicles[i].ID = uuid.NewString()
		}
	}
	user.Vehicles = req.Vehicles
	writeJSON(w, http.StatusOK, user)
}

func (s *server) userLocked(id string) *model.User {
	user, ok := s.users[id]
	if !ok {
		user = &model.User{ID: id}
		s.users[id] = user
	}
	return user
}

func (s *server) handleWallet(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.walletLocked(chi.URLParam(r, "userID")))
}

func (s *server) handleTopUp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount float64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	order := model.TopUpOrder{OrderID: uuid.NewString(), KeyID: "stub_key"}
	s.orders[order.OrderID] = model.PaymentCallbackRequest{
		OrderID: order.OrderID,
		UserID:  chi.URLParam(r, "userID"),
		Amount:  req.Amount,
	}
	writeJSON(w, http.StatusCreated, order)
}

func (s *server) handlePaymentCallback(w http.ResponseWriter, r *http.Request) {
	var req model.PaymentCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[req.OrderID]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown order")
		return
	}
	delete(s.orders, req.OrderID)

	if !req.Success {
		s.logger.Infow("payment attempt failed", "orderId", req.OrderID)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	wallet := s.walletLocked(order.UserID)
	wallet.Balance += order.Amount
	wallet.Transactions = append(wallet.Transactions, model.WalletTransaction{
		ID:           uuid.NewString(),
		Type:         model.TransactionCredit,
		Amount:       order.Amount,
		BalanceAfter: wallet.Balance,
		Timestamp:    time.Now(),
		Description:  "wallet top-up",
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) debitLocked(userID string, amount float64, description string) {
	wallet := s.walletLocked(userID)
	wallet.Balance -= amount
	wallet.Transactions = append(wallet.Transactions, model.WalletTransaction{
		ID:           uuid.NewString(),
		Type:         model.TransactionDebit,
		Amount:       amount,
		BalanceAfter: wallet.Balance,
		Timestamp:    time.Now(),
		Description:  description,
	})
}

func (s *server) walletLocked(userID string) *model.WalletState {
	wallet, ok := s.wallets[userID]
	if !ok {
		wallet = &model.WalletState{}
		s.wallets[userID] = wallet
	}
	return wallet
}

func (s *server) handleParkingConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, model.ParkingConfig{HourlyRate: hourlyRate})
}

func (s *server) router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/lots", s.handleLots)
	r.Get("/spots", s.handleSpots)
	r.Get("/config/parking", s.handleParkingConfig)

	r.Route("/bookings", func(r chi.Router) {
		r.Get("/", s.handleListBookings)
		r.Post("/", s.handleCreateBooking)
		r.Route("/{bookingID}", func(r chi.Router) {
			r.Get("/", s.handleGetBooking)
			r.Post("/cancel", s.handleCancel)
			r.Post("/extend", s.handleExtend)
			r.Post("/qr/checkin", s.handleValidateQR(model.BookingStatusPending))
			r.Post("/checkin", s.handleCheckIn)
			r.Post("/qr/checkout", s.handleValidateQR(model.BookingStatusActive))
			r.Post("/checkout", s.handleCheckOut)
			r.Get("/penalty", s.handlePenalty)
		})
	})

	r.Route("/users/{userID}", func(r chi.Router) {
		r.Get("/", s.handleGetUser)
		r.Put("/", s.handleUpdateUser)
	})

	r.Route("/wallet/{userID}", func(r chi.Router) {
		r.Get("/", s.handleWallet)
		r.Post("/topup", s.handleTopUp)
	})

	r.Post("/payments/callback", s.handlePaymentCallback)

	return r
}

func main() {
	_ = godotenv.Load()

	addr := flag.String("a", ":8080", "listen address")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()
	sugar := logger.Sugar()

	srv := newServer(sugar)
	sugar.Infow("stub parking backend listening", "addr", *addr)
	if err := http.ListenAndServe(*addr, srv.router()); err != nil {
		sugar.Fatalw("server error", "error", err.Error())
	}
}
