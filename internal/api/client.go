// Package api предоставляет клиент удалённого сервиса бронирования парковки.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// Client инкапсулирует HTTP-взаимодействие с бэкендом парковки.
// Чтения идут через retryablehttp; записи выполняются без повторов,
// чтобы однажды отправленное создание или отмена не дублировались.
type Client struct {
	baseURL string
	token   string
	read    *http.Client
	write   *http.Client
	logger  *zap.Logger
}

// NewClient создаёт клиент бэкенда парковки по указанному адресу.
func NewClient(baseURL, token string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.Logger = nil
	rc.HTTPClient.Timeout = timeout

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		read:    rc.StandardClient(),
		write:   &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// checkToken локально отклоняет заведомо просроченный JWT, не ходя в сеть.
// Токен, который не парсится как JWT, пропускается: решает сервер.
func (c *Client) checkToken() error {
	if c.token == "" {
		return nil
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(c.token, claims); err != nil {
		return nil
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if time.Now().After(exp.Time) {
		return ErrAuthenticationRequired
	}
	return nil
}

// errorMessage вытаскивает текст ошибки из тела ответа сервера.
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return strings.TrimSpace(string(body))
}

// do выполняет запрос и декодирует ответ в out, если out не nil.
// idempotent выбирает клиент с повторами только для безопасных запросов.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any, idempotent bool) error {
	if err := c.checkToken(); err != nil {
		return err
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	u := base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	client := c.write
	if idempotent {
		client = c.read
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrAuthenticationRequired
	case resp.StatusCode == http.StatusNoContent:
		return ErrNoData
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &ServerError{Code: resp.StatusCode, Message: errorMessage(raw)}
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &DecodeError{Err: err}
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out, true)
}

func (c *Client) post(ctx context.Context, path string, query url.Values, body, out any) error {
	return c.do(ctx, http.MethodPost, path, query, body, out, false)
}

func (c *Client) put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, nil, body, out, false)
}
