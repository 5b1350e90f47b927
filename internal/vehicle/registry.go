// Package vehicle хранит локальный реестр транспортных средств пользователя.
package vehicle

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/parkbooking-client/internal/model"
	"github.com/mmeshcher/parkbooking-client/internal/validation"
)

// UserAPI описывает контракт синхронизации списка транспортных средств.
type UserAPI interface {
	FetchUser(ctx context.Context, userID string) (*model.User, error)
}

// Registry — потокобезопасный реестр транспортных средств.
// Локальная копия полностью замещается данными бэкенда при синхронизации.
type Registry struct {
	api    UserAPI
	logger *zap.Logger

	mu       sync.Mutex
	vehicles []model.Vehicle
}

// NewRegistry создаёт пустой реестр.
func NewRegistry(api UserAPI, logger *zap.Logger) *Registry {
	return &Registry{
		api:    api,
		logger: logger,
	}
}

// List возвращает копию списка транспортных средств.
func (r *Registry) List() []model.Vehicle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Vehicle, len(r.vehicles))
	copy(out, r.vehicles)
	return out
}

// Contains сообщает, есть ли номер в реестре. Сравнение без учёта регистра.
func (r *Registry) Contains(number string) bool {
	n := validation.NormalizeVehicleNumber(number)
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.vehicles {
		if validation.NormalizeVehicleNumber(v.Number) == n {
			return true
		}
	}
	return false
}

// Add добавляет номер в реестр. Дубликат не является ошибкой: повторное
// добавление возвращает уже существующую запись.
func (r *Registry) Add(number string) (model.Vehicle, error) {
	n := validation.NormalizeVehicleNumber(number)
	if !validation.IsValidVehicleNumber(n) {
		return model.Vehicle{}, fmt.Errorf("invalid vehicle number %q", strings.TrimSpace(number))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, v := range r.vehicles {
		if validation.NormalizeVehicleNumber(v.Number) == n {
			return v, nil
		}
	}

	v := model.Vehicle{
		ID:        "local-" + uuid.NewString(),
		Number:    n,
		IsDefault: len(r.vehicles) == 0,
	}
	r.vehicles = append(r.vehicles, v)
	return v, nil
}

// Remove удаляет транспортное средство из реестра.
// Если удалён основной номер, основным становится первый оставшийся.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.vehicles[:0]
	removedDefault := false
	for _, v := range r.vehicles {
		if v.ID == id {
			removedDefault = v.IsDefault
			continue
		}
		out = append(out, v)
	}
	r.vehicles = out
	if removedDefault && len(r.vehicles) > 0 {
		r.vehicles[0].IsDefault = true
	}
}

// SetPrimary делает указанное транспортное средство основным.
// Основным может быть только одно; флаг с остальных снимается.
func (r *Registry) SetPrimary(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	found := false
	for i := range r.vehicles {
		if r.vehicles[i].ID == id {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("vehicle %q not found", id)
	}

	for i := range r.vehicles {
		r.vehicles[i].IsDefault = r.vehicles[i].ID == id
	}
	return nil
}

// Primary возвращает основное транспортное средство либо nil, если реестр
// пуст. Вызывающий код в этом случае просит пользователя выбрать или
// добавить номер, а не подставляет заглушку.
func (r *Registry) Primary() *model.Vehicle {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, v := range r.vehicles {
		if v.IsDefault {
			out := v
			return &out
		}
	}
	if len(r.vehicles) > 0 {
		out := r.vehicles[0]
		return &out
	}
	return nil
}

// SyncFromBackend замещает локальный список данными бэкенда целиком,
// без слияния: последняя выборка побеждает.
func (r *Registry) SyncFromBackend(ctx context.Context, userID string) error {
	user, err := r.api.FetchUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("sync vehicles: %w", err)
	}

	vehicles := make([]model.Vehicle, 0, len(user.Vehicles))
	seen := make(map[string]struct{}, len(user.Vehicles))
	defaults := 0
	for _, v := range user.Vehicles {
		n := validation.NormalizeVehicleNumber(v.Number)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		v.Number = n
		if v.IsDefault {
			defaults++
			if defaults > 1 {
				v.IsDefault = false
			}
		}
		vehicles = append(vehicles, v)
	}

	// Бэкенд не гарантирует единственность основного номера.
	if defaults == 0 && len(vehicles) > 0 {
		vehicles[0].IsDefault = true
	}

	r.mu.Lock()
	r.vehicles = vehicles
	r.mu.Unlock()

	r.logger.Debug("vehicle registry synced", zap.Int("count", len(vehicles)))
	return nil
}
