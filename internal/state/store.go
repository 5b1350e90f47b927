// Package state содержит наблюдаемое хранилище состояния клиента.
// Хранилище — единственный владелец публикуемых данных; интерфейс
// пользователя только подписывается на снимки и никогда не мутирует их.
package state

import (
	"sync"
	"time"

	"github.com/mmeshcher/parkbooking-client/internal/model"
)

// Snapshot — неизменяемый снимок состояния для подписчиков.
type Snapshot struct {
	Spots         []model.ParkingSpot
	SpotsDegraded bool
	Bookings      []model.Booking
	Vehicles      []model.Vehicle
	Wallet        model.WalletState
	HourlyRate    float64
	LastUpdated   time.Time
	Generation    uint64
}

// ActiveBookings возвращает бронирования в статусе ACTIVE.
func (s Snapshot) ActiveBookings() []model.Booking {
	return s.byStatus(model.BookingStatusActive)
}

// PendingBookings возвращает бронирования в статусе PENDING.
func (s Snapshot) PendingBookings() []model.Booking {
	return s.byStatus(model.BookingStatusPending)
}

// CompletedBookings возвращает бронирования в конечных статусах.
func (s Snapshot) CompletedBookings() []model.Booking {
	var out []model.Booking
	for _, b := range s.Bookings {
		if b.Status.IsTerminal() {
			out = append(out, b)
		}
	}
	return out
}

func (s Snapshot) byStatus(status model.BookingStatus) []model.Booking {
	var out []model.Booking
	for _, b := range s.Bookings {
		if b.Status == status {
			out = append(out, b)
		}
	}
	return out
}

// Store — потокобезопасное хранилище с подпиской на изменения.
// Результаты обновлений применяются по номеру поколения: ответ устаревшего
// цикла обновления не затирает данные более нового.
type Store struct {
	mu sync.Mutex

	spots         []model.ParkingSpot
	spotsDegraded bool
	bookings      []model.Booking
	vehicles      []model.Vehicle
	wallet        model.WalletState
	hourlyRate    float64
	lastUpdated   time.Time

	issuedGen   uint64
	spotsGen    uint64
	bookingsGen uint64
	vehiclesGen uint64
	walletGen   uint64
	rateGen     uint64

	subscribers []chan Snapshot
}

// NewStore создаёт пустое хранилище.
func NewStore() *Store {
	return &Store{}
}

// BeginRefresh регистрирует новый цикл обновления и возвращает его поколение.
func (s *Store) BeginRefresh() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issuedGen++
	return s.issuedGen
}

// ApplySpots применяет результат выборки мест, если он не устарел.
func (s *Store) ApplySpots(gen uint64, spots []model.ParkingSpot, degraded bool) {
	s.mu.Lock()
	if gen < s.spotsGen {
		s.mu.Unlock()
		return
	}
	s.spotsGen = gen
	s.spots = spots
	s.spotsDegraded = degraded
	s.lastUpdated = time.Now()
	s.mu.Unlock()
	s.publish()
}

// ApplyBookings применяет результат выборки бронирований, если он не устарел.
func (s *Store) ApplyBookings(gen uint64, bookings []model.Booking) {
	s.mu.Lock()
	if gen < s.bookingsGen {
		s.mu.Unlock()
		return
	}
	s.bookingsGen = gen
	s.bookings = bookings
	s.lastUpdated = time.Now()
	s.mu.Unlock()
	s.publish()
}

// ApplyVehicles применяет результат синхронизации транспортных средств.
func (s *Store) ApplyVehicles(gen uint64, vehicles []model.Vehicle) {
	s.mu.Lock()
	if gen < s.vehiclesGen {
		s.mu.Unlock()
		return
	}
	s.vehiclesGen = gen
	s.vehicles = vehicles
	s.lastUpdated = time.Now()
	s.mu.Unlock()
	s.publish()
}

// ApplyWallet применяет состояние кошелька, если оно не устарело.
func (s *Store) ApplyWallet(gen uint64, wallet model.WalletState) {
	s.mu.Lock()
	if gen < s.walletGen {
		s.mu.Unlock()
		return
	}
	s.walletGen = gen
	s.wallet = wallet
	s.lastUpdated = time.Now()
	s.mu.Unlock()
	s.publish()
}

// ApplyRate применяет часовой тариф, если он не устарел.
func (s *Store) ApplyRate(gen uint64, rate float64) {
	s.mu.Lock()
	if gen < s.rateGen {
		s.mu.Unlock()
		return
	}
	s.rateGen = gen
	s.hourlyRate = rate
	s.mu.Unlock()
	s.publish()
}

// UpsertBooking добавляет или заменяет бронирование по идентификатору.
// Используется для оптимистичного отображения результата записи; полная
// выборка на следующем цикле обновления приводит данные к серверным.
func (s *Store) UpsertBooking(b model.Booking) {
	s.mu.Lock()
	replaced := false
	for i := range s.bookings {
		if s.bookings[i].ID == b.ID {
			s.bookings[i] = b
			replaced = true
			break
		}
	}
	if !replaced {
		s.bookings = append(s.bookings, b)
	}
	s.lastUpdated = time.Now()
	s.mu.Unlock()
	s.publish()
}

// RemoveBooking удаляет бронирование из локального состояния.
func (s *Store) RemoveBooking(id string) {
	s.mu.Lock()
	out := s.bookings[:0]
	for _, b := range s.bookings {
		if b.ID != id {
			out = append(out, b)
		}
	}
	s.bookings = out
	s.lastUpdated = time.Now()
	s.mu.Unlock()
	s.publish()
}

// Booking возвращает бронирование по идентификатору.
func (s *Store) Booking(id string) (model.Booking, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.ID == id {
			return b, true
		}
	}
	return model.Booking{}, false
}

// Snapshot возвращает текущий снимок состояния.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Spots:         make([]model.ParkingSpot, len(s.spots)),
		SpotsDegraded: s.spotsDegraded,
		Bookings:      make([]model.Booking, len(s.bookings)),
		Vehicles:      make([]model.Vehicle, len(s.vehicles)),
		Wallet:        s.wallet,
		HourlyRate:    s.hourlyRate,
		LastUpdated:   s.lastUpdated,
		Generation:    s.issuedGen,
	}
	copy(snap.Spots, s.spots)
	copy(snap.Bookings, s.bookings)
	copy(snap.Vehicles, s.vehicles)
	return snap
}

// Subscribe возвращает канал снимков состояния. Канал буферизован на один
// элемент: медленный подписчик получает последний снимок, промежуточные
// пропускаются.
func (s *Store) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, ch)
	ch <- s.snapshotLocked()
	return ch
}

// publish доставляет снимок под блокировкой: конкурирующие публикации
// сериализуются, и состязание, при котором более старый снимок вытесняет
// более новый из буфера подписчика, невозможно. Отправки неблокирующие,
// поэтому блокировка не удерживается в ожидании подписчика.
func (s *Store) publish() {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshotLocked()
	for _, ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// Подписчик не прочитал прошлый снимок: заменяем его новым.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
