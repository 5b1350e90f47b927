package service

import "errors"

// Локальные ошибки оркестратора. Они разрешаются до обращения к серверу
// и никогда не уходят в сеть.
var (
	// ErrValidation означает нарушение локального предусловия операции.
	ErrValidation = errors.New("validation error")

	// ErrDuplicateSubmission означает, что по этому месту или бронированию
	// уже выполняется запись.
	ErrDuplicateSubmission = errors.New("duplicate submission")

	// ErrInvalidState означает попытку перехода из состояния, в котором
	// операция запрещена.
	ErrInvalidState = errors.New("invalid state")

	// ErrQRRejected означает содержательный отказ сервера в проверке QR-кода.
	// Это не транспортная ошибка: бронирование остаётся в прежнем статусе.
	ErrQRRejected = errors.New("qr validation rejected")
)
