package api

import (
	"errors"
	"fmt"
)

// Типизированные ошибки клиента удалённого сервиса. Вызывающий код различает
// их через errors.Is и errors.As и не подменяет просроченные данные молча.
var (
	// ErrAuthenticationRequired означает отсутствующий или просроченный токен.
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrNoData означает успешный ответ без содержимого (204 или пустое тело).
	ErrNoData = errors.New("no data")
	// ErrNetwork означает транспортную ошибку или таймаут.
	ErrNetwork = errors.New("network error")
)

// ServerError описывает ответ сервера с кодом вне диапазона 2xx.
// Message содержит текст сервера дословно, если он был в ответе.
type ServerError struct {
	Code    int
	Message string
}

func (e *ServerError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("server error %d", e.Code)
}

// DecodeError означает несовпадение формы ответа с ожидаемой.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
