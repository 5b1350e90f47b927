package state

import (
	"fmt"
	"sync"
	"testing"

	"github.com/mmeshcher/parkbooking-client/internal/model"
)

func TestStaleRefreshDoesNotOverwrite(t *testing.T) {
	s := NewStore()

	oldGen := s.BeginRefresh()
	newGen := s.BeginRefresh()

	s.ApplySpots(newGen, []model.ParkingSpot{{ID: "new"}}, false)
	// Ответ более раннего цикла пришёл позже.
	s.ApplySpots(oldGen, []model.ParkingSpot{{ID: "old"}}, false)

	snap := s.Snapshot()
	if len(snap.Spots) != 1 || snap.Spots[0].ID != "new" {
		t.Fatalf("stale refresh overwrote newer data: %+v", snap.Spots)
	}
}

func TestPerCategoryGenerations(t *testing.T) {
	s := NewStore()

	oldGen := s.BeginRefresh()
	newGen := s.BeginRefresh()

	// Бронирования пришли только из старого цикла: они должны примениться,
	// поскольку более нового ответа по этой категории не было.
	s.ApplySpots(newGen, []model.ParkingSpot{{ID: "s1"}}, false)
	s.ApplyBookings(oldGen, []model.Booking{{ID: "b1"}})

	snap := s.Snapshot()
	if len(snap.Bookings) != 1 {
		t.Fatalf("bookings from the only responding cycle must apply")
	}
	if len(snap.Spots) != 1 {
		t.Fatalf("spots from the newer cycle must apply")
	}
}

func TestEqualGenerationApplies(t *testing.T) {
	s := NewStore()
	gen := s.BeginRefresh()

	s.ApplySpots(gen, []model.ParkingSpot{{ID: "a"}}, false)
	s.ApplySpots(gen, []model.ParkingSpot{{ID: "a"}, {ID: "b"}}, true)

	snap := s.Snapshot()
	if len(snap.Spots) != 2 {
		t.Fatalf("same-generation reapply must win, got %d spots", len(snap.Spots))
	}
	if !snap.SpotsDegraded {
		t.Fatalf("degraded flag must follow the last applied fetch")
	}
}

func TestUpsertAndRemoveBooking(t *testing.T) {
	s := NewStore()

	s.UpsertBooking(model.Booking{ID: "b1", Status: model.BookingStatusPending})
	s.UpsertBooking(model.Booking{ID: "b2", Status: model.BookingStatusActive})
	s.UpsertBooking(model.Booking{ID: "b1", Status: model.BookingStatusActive})

	snap := s.Snapshot()
	if len(snap.Bookings) != 2 {
		t.Fatalf("bookings = %d, want 2 after upsert of existing id", len(snap.Bookings))
	}

	b, ok := s.Booking("b1")
	if !ok || b.Status != model.BookingStatusActive {
		t.Fatalf("upsert must replace booking in place: %+v", b)
	}

	s.RemoveBooking("b1")
	if _, ok := s.Booking("b1"); ok {
		t.Fatalf("booking b1 must be removed")
	}
	if got := len(s.Snapshot().Bookings); got != 1 {
		t.Fatalf("bookings = %d, want 1 after remove", got)
	}
}

func TestSnapshotHelpers(t *testing.T) {
	s := NewStore()
	s.UpsertBooking(model.Booking{ID: "p", Status: model.BookingStatusPending})
	s.UpsertBooking(model.Booking{ID: "a", Status: model.BookingStatusActive})
	s.UpsertBooking(model.Booking{ID: "c", Status: model.BookingStatusCompleted})
	s.UpsertBooking(model.Booking{ID: "x", Status: model.BookingStatusCancelled})

	snap := s.Snapshot()
	if got := len(snap.PendingBookings()); got != 1 {
		t.Fatalf("pending = %d, want 1", got)
	}
	if got := len(snap.ActiveBookings()); got != 1 {
		t.Fatalf("active = %d, want 1", got)
	}
	if got := len(snap.CompletedBookings()); got != 2 {
		t.Fatalf("terminal = %d, want 2", got)
	}
}

func TestSubscribeDeliversCurrentAndLatest(t *testing.T) {
	s := NewStore()
	s.UpsertBooking(model.Booking{ID: "b1"})

	ch := s.Subscribe()

	first := <-ch
	if len(first.Bookings) != 1 {
		t.Fatalf("subscriber must receive the current snapshot on subscribe")
	}

	// Подписчик не читает; несколько публикаций подряд не блокируют
	// хранилище, а канал в итоге содержит последний снимок.
	s.UpsertBooking(model.Booking{ID: "b2"})
	s.UpsertBooking(model.Booking{ID: "b3"})
	s.UpsertBooking(model.Booking{ID: "b4"})

	latest := <-ch
	if len(latest.Bookings) != 4 {
		t.Fatalf("slow subscriber must get the latest snapshot, got %d bookings", len(latest.Bookings))
	}
}

func TestConcurrentPublishersDeliverLatest(t *testing.T) {
	s := NewStore()
	ch := s.Subscribe()
	<-ch // начальный снимок

	// Конкурирующие публикации не должны оставить в буфере подписчика
	// устаревший снимок: последним доставляется самый новый.
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.UpsertBooking(model.Booking{ID: fmt.Sprintf("b%02d", i)})
		}(i)
	}
	wg.Wait()

	latest := <-ch
	if len(latest.Bookings) != 50 {
		t.Fatalf("subscriber holds a snapshot with %d bookings, want the final 50", len(latest.Bookings))
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := NewStore()
	gen := s.BeginRefresh()
	s.ApplySpots(gen, []model.ParkingSpot{{ID: "a", Available: 1}}, false)

	snap := s.Snapshot()
	snap.Spots[0].Available = 99

	if got := s.Snapshot().Spots[0].Available; got != 1 {
		t.Fatalf("mutating a snapshot must not affect the store, got %d", got)
	}
}
