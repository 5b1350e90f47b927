// Package timeslot вычисляет и проверяет допустимые окна бронирования.
package timeslot

import (
	"errors"
	"time"
)

// Правила бэкенда: бронирование возможно с 08:00 до 20:00 того же дня,
// после 20:00 день бронирования переносится на завтра.
const (
	OpenHour  = 8
	CloseHour = 20

	// SlotMinutes задаёт шаг сетки времени.
	SlotMinutes = 30

	// MinDuration — минимальная длительность бронирования.
	MinDuration = time.Hour

	// DefaultDuration — длительность окна по умолчанию.
	DefaultDuration = 2 * time.Hour

	// startGrace допускает небольшое отставание начала от текущего момента.
	startGrace = 5 * time.Minute

	// slotHeadroom — запас на оформление до ближайшего слота.
	slotHeadroom = 5 * time.Minute
)

var (
	ErrMisaligned   = errors.New("time is not aligned to the 30-minute grid")
	ErrWrongDay     = errors.New("window is outside the allowed booking day")
	ErrOutsideHours = errors.New("window is outside booking hours")
	ErrTooShort     = errors.New("window is shorter than the minimum duration")
	ErrStartInPast  = errors.New("start time is in the past")
)

// BookingDay возвращает начало дня, на который сейчас разрешено бронирование:
// сегодня, либо завтра, если текущий час не раньше 20:00.
func BookingDay(now time.Time) time.Time {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if now.Hour() >= CloseHour {
		day = day.AddDate(0, 0, 1)
	}
	return day
}

// NextSlot округляет момент времени вверх до ближайшей границы сетки,
// добавляя небольшой запас на оформление.
func NextSlot(t time.Time) time.Time {
	t = t.Add(slotHeadroom)
	aligned := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
	for aligned.Before(t) {
		aligned = aligned.Add(SlotMinutes * time.Minute)
	}
	return aligned
}

// DefaultWindow вычисляет окно бронирования по умолчанию для текущего момента.
// После 20:00 окно переносится на завтра с началом в 09:00; до 06:00 начало
// сдвигается на 09:00 сегодня. Конец окна обрезается по 20:00; окно короче
// минимальной длительности остаётся как есть и отбраковывается в Validate,
// а не подгоняется молча.
func DefaultWindow(now time.Time) (start, end time.Time) {
	day := BookingDay(now)

	switch {
	case now.Hour() >= CloseHour:
		start = day.Add(9 * time.Hour)
	case now.Hour() < 6:
		start = day.Add(9 * time.Hour)
	default:
		start = NextSlot(now)
		if start.Hour() < OpenHour {
			// До открытия: начало сдвигается на 09:00 того же дня.
			start = day.Add(9 * time.Hour)
		}
		if start.Hour() >= CloseHour {
			// Сегодня слотов не осталось.
			start = day.AddDate(0, 0, 1).Add(9 * time.Hour)
		}
	}

	end = start.Add(DefaultDuration)
	close := time.Date(start.Year(), start.Month(), start.Day(), CloseHour, 0, 0, 0, start.Location())
	if end.After(close) {
		end = close
	}
	return start, end
}

// Validate проверяет окно бронирования на соответствие всем правилам.
// Возвращает nil для допустимого окна.
func Validate(start, end, now time.Time) error {
	if !aligned(start) || !aligned(end) {
		return ErrMisaligned
	}

	day := BookingDay(now)
	if !sameDay(start, day) {
		// В конце дня слот минимальной длительности уже не помещается
		// до закрытия; в этом случае допускается окно на завтра.
		closeToday := day.Add(CloseHour * time.Hour)
		noSlotsLeft := NextSlot(now).Add(MinDuration).After(closeToday)
		next := day.AddDate(0, 0, 1)
		if !sameDay(start, next) || !noSlotsLeft {
			return ErrWrongDay
		}
		day = next
	}
	if !sameDay(end, day) {
		return ErrWrongDay
	}

	open := day.Add(OpenHour * time.Hour)
	close := day.Add(CloseHour * time.Hour)

	if start.Before(open) || !start.Before(close) {
		return ErrOutsideHours
	}
	if !end.After(open) || end.After(close) {
		return ErrOutsideHours
	}
	if end.Sub(start) < MinDuration {
		return ErrTooShort
	}
	if start.Before(now.Add(-startGrace)) {
		return ErrStartInPast
	}
	return nil
}

func aligned(t time.Time) bool {
	if t.Second() != 0 || t.Nanosecond() != 0 {
		return false
	}
	return t.Minute() == 0 || t.Minute() == 30
}

func sameDay(t, day time.Time) bool {
	return t.Year() == day.Year() && t.Month() == day.Month() && t.Day() == day.Day()
}
