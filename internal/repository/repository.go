// Package repository реализует типизированный доступ к коллекциям
// документного хранилища.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmeshcher/pizzeria-system/internal/docstore"
	"github.com/mmeshcher/pizzeria-system/internal/model"
)

const (
	usersCollection  = "users"
	menuCollection   = "menu"
	ordersCollection = "orders"
	tokensCollection = "tokens"
)

// ErrUserExists возвращается при попытке создать пользователя с уже занятым email.
var (
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrOrderNotFound возвращается, если заказ не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrTokenNotFound возвращается, если токен не найден.
	ErrTokenNotFound = errors.New("token not found")
)

// Store описывает контракт клиента документного хранилища.
type Store interface {
	Create(ctx context.Context, collection, id string, doc any) error
	Read(ctx context.Context, collection, id string, out any) error
	Update(ctx context.Context, collection, id string, partial any) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection string, filter map[string]any, out any) error
}

// DocumentRepository предоставляет доступ к данным сервиса в документном
// хранилище. Операции не транзакционны между документами: порядок зависимых
// записей выбирает вызывающая сторона.
type DocumentRepository struct {
	store Store
}

// New создаёт репозиторий поверх клиента документного хранилища.
func New(store Store) *DocumentRepository {
	return &DocumentRepository{store: store}
}

// CreateUser создаёт нового пользователя. Email должен быть свободен.
func (r *DocumentRepository) CreateUser(ctx context.Context, u *model.User) error {
	var existing model.User
	err := r.store.Read(ctx, usersCollection, u.Email, &existing)
	if err == nil {
		return fmt.Errorf("%w: %s", ErrUserExists, u.Email)
	}
	if !isNotFound(err) {
		return fmt.Errorf("check user: %w", err)
	}

	if err := r.store.Create(ctx, usersCollection, u.Email, u); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetUser возвращает пользователя по email.
func (r *DocumentRepository) GetUser(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	if err := r.store.Read(ctx, usersCollection, email, &u); err != nil {
		if isNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// SaveUser сохраняет документ пользователя целиком (read-modify-write,
// без оптимистической блокировки: при гонке двух сессий побеждает последняя
// запись).
func (r *DocumentRepository) SaveUser(ctx context.Context, u *model.User) error {
	if err := r.store.Update(ctx, usersCollection, u.Email, u); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

// GetMenu возвращает снимок меню, проиндексированный по идентификатору позиции.
func (r *DocumentRepository) GetMenu(ctx context.Context) (map[string]model.MenuItem, error) {
	var items []model.MenuItem
	if err := r.store.Query(ctx, menuCollection, nil, &items); err != nil {
		return nil, fmt.Errorf("get menu: %w", err)
	}

	menu := make(map[string]model.MenuItem, len(items))
	for _, item := range items {
		menu[item.ID] = item
	}
	return menu, nil
}

// CreateOrder сохраняет новый заказ.
func (r *DocumentRepository) CreateOrder(ctx context.Context, o *model.Order) error {
	if err := r.store.Create(ctx, ordersCollection, o.ID, o); err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

// GetOrder возвращает заказ по идентификатору.
func (r *DocumentRepository) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	var o model.Order
	if err := r.store.Read(ctx, ordersCollection, id, &o); err != nil {
		if isNotFound(err) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &o, nil
}

// GetOrdersByEmail возвращает все заказы пользователя. Запрос идёт по
// коллекции заказов, а не по списку в документе пользователя, поэтому
// находит и заказы с оборванной ссылкой.
func (r *DocumentRepository) GetOrdersByEmail(ctx context.Context, email string) ([]model.Order, error) {
	var orders []model.Order
	if err := r.store.Query(ctx, ordersCollection, map[string]any{"email": email}, &orders); err != nil {
		return nil, fmt.Errorf("get orders by email: %w", err)
	}
	return orders, nil
}

// GetUnprocessedOrders возвращает все заказы, ожидающие оплаты.
func (r *DocumentRepository) GetUnprocessedOrders(ctx context.Context) ([]model.Order, error) {
	var orders []model.Order
	if err := r.store.Query(ctx, ordersCollection, map[string]any{"processed": false}, &orders); err != nil {
		return nil, fmt.Errorf("get unprocessed orders: %w", err)
	}
	return orders, nil
}

// MarkOrderProcessed помечает заказ оплаченным. Флаг меняется только в одну
// сторону, обратного перехода нет.
func (r *DocumentRepository) MarkOrderProcessed(ctx context.Context, id string) error {
	if err := r.store.Update(ctx, ordersCollection, id, map[string]any{"processed": true}); err != nil {
		return fmt.Errorf("mark order processed: %w", err)
	}
	return nil
}

// DeleteOrder удаляет заказ.
func (r *DocumentRepository) DeleteOrder(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, ordersCollection, id); err != nil {
		if isNotFound(err) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("delete order: %w", err)
	}
	return nil
}

// CreateToken сохраняет новый токен доступа.
func (r *DocumentRepository) CreateToken(ctx context.Context, t *model.Token) error {
	if err := r.store.Create(ctx, tokensCollection, t.ID, t); err != nil {
		return fmt.Errorf("create token: %w", err)
	}
	return nil
}

// GetToken возвращает токен по идентификатору.
func (r *DocumentRepository) GetToken(ctx context.Context, id string) (*model.Token, error) {
	var t model.Token
	if err := r.store.Read(ctx, tokensCollection, id, &t); err != nil {
		if isNotFound(err) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("get token: %w", err)
	}
	return &t, nil
}

// DeleteToken удаляет токен.
func (r *DocumentRepository) DeleteToken(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, tokensCollection, id); err != nil {
		if isNotFound(err) {
			return ErrTokenNotFound
		}
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var storeErr *docstore.Error
	return errors.As(err, &storeErr) && storeErr.NotFound()
}
