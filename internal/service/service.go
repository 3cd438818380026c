// Package service реализует бизнес-логику сервиса пиццерии.
package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/pizzeria-system/internal/model"
)

// ErrCartLimit возвращается, когда суммарное количество позиций в корзине
// превысило бы настроенный предел.
var (
	ErrCartLimit = errors.New("cart limit exceeded")
	// ErrUnknownMenuItem возвращается при попытке положить в корзину позицию,
	// которой нет в меню.
	ErrUnknownMenuItem = errors.New("unknown menu item")
	// ErrInvalidQuantity возвращается при неположительном количестве.
	ErrInvalidQuantity = errors.New("quantity must be positive")
	// ErrEmptyCart возвращается при попытке оформить заказ из пустой корзины.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInconsistentCart возвращается, когда корзина ссылается на снятую с
	// продажи позицию меню. Частичный заказ в этом случае не создаётся.
	ErrInconsistentCart = errors.New("cart references a retired menu item")
	// ErrNotOwner возвращается, когда заказ не принадлежит вызывающему
	// пользователю, независимо от того, существует ли заказ в хранилище.
	ErrNotOwner = errors.New("order does not belong to the user")
	// ErrAlreadyProcessed возвращается при попытке отменить оплаченный заказ.
	ErrAlreadyProcessed = errors.New("order is already processed and can not be cancelled")
	// ErrInvalidCredentials возвращается при неверном пароле.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

const tokenTTL = time.Hour

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, email string) (*model.User, error)
	SaveUser(ctx context.Context, u *model.User) error
	GetMenu(ctx context.Context) (map[string]model.MenuItem, error)
	CreateOrder(ctx context.Context, o *model.Order) error
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	GetOrdersByEmail(ctx context.Context, email string) ([]model.Order, error)
	DeleteOrder(ctx context.Context, id string) error
	CreateToken(ctx context.Context, t *model.Token) error
	DeleteToken(ctx context.Context, id string) error
}

// Service содержит бизнес-логику сервиса пиццерии: управление корзиной,
// оформление и отмену заказов, учётные записи и токены.
type Service struct {
	repo       Repository
	maxItems   int
	hashSecret []byte
}

// NewService создаёт новый сервис с указанным репозиторием, пределом корзины
// и секретом хеширования паролей.
func NewService(repo Repository, maxItems int, hashSecret string) *Service {
	return &Service{
		repo:       repo,
		maxItems:   maxItems,
		hashSecret: []byte(hashSecret),
	}
}

// RegisterUser регистрирует нового пользователя с пустой корзиной.
func (s *Service) RegisterUser(ctx context.Context, u *model.User, password string) error {
	u.HashedPassword = s.hashPassword(password)
	u.Cart = map[string]int{}
	u.Orders = []string{}

	return s.repo.CreateUser(ctx, u)
}

// CreateToken проверяет пароль пользователя и выдаёт новый токен доступа
// со сроком действия один час.
func (s *Service) CreateToken(ctx context.Context, email, password string) (*model.Token, error) {
	u, err := s.repo.GetUser(ctx, email)
	if err != nil {
		return nil, err
	}

	if s.hashPassword(password) != u.HashedPassword {
		return nil, ErrInvalidCredentials
	}

	t := &model.Token{
		ID:      newID(),
		Email:   email,
		Expires: time.Now().Add(tokenTTL).UnixMilli(),
	}

	if err := s.repo.CreateToken(ctx, t); err != nil {
		return nil, err
	}

	return t, nil
}

// DeleteToken отзывает токен доступа.
func (s *Service) DeleteToken(ctx context.Context, id string) error {
	return s.repo.DeleteToken(ctx, id)
}

// GetMenu возвращает позиции меню, упорядоченные по идентификатору.
func (s *Service) GetMenu(ctx context.Context) ([]model.MenuItem, error) {
	menu, err := s.repo.GetMenu(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]model.MenuItem, 0, len(menu))
	for _, item := range menu {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })

	return items, nil
}

// GetCart возвращает корзину пользователя. Отсутствующая корзина считается
// пустой.
func (s *Service) GetCart(ctx context.Context, email string) (map[string]int, error) {
	u, err := s.repo.GetUser(ctx, email)
	if err != nil {
		return nil, err
	}

	if u.Cart == nil {
		return map[string]int{}, nil
	}
	return u.Cart, nil
}

// SetCartItem устанавливает количество позиции в корзине, заменяя прежнее
// значение. Включение позиции не должно превышать предел maxItems по сумме
// всех количеств. Запись идёт по схеме read-modify-write всего документа
// пользователя без оптимистической блокировки: предполагается один писатель
// на пользователя.
func (s *Service) SetCartItem(ctx context.Context, email, item string, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidQuantity, quantity)
	}

	menu, err := s.repo.GetMenu(ctx)
	if err != nil {
		return err
	}
	if _, ok := menu[item]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMenuItem, item)
	}

	u, err := s.repo.GetUser(ctx, email)
	if err != nil {
		return err
	}

	if u.Cart == nil {
		u.Cart = map[string]int{}
	}

	// Новая запись заменяет существующую, поэтому её текущее количество
	// не занимает место.
	occupied := 0
	for id, q := range u.Cart {
		if id != item {
			occupied += q
		}
	}

	if occupied+quantity > s.maxItems {
		return fmt.Errorf("%w: can only add %d item(s) of this type now", ErrCartLimit, s.maxItems-occupied)
	}

	u.Cart[item] = quantity

	return s.repo.SaveUser(ctx, u)
}

// RemoveCartItem удаляет позицию из корзины. Удаление отсутствующей позиции —
// успешная пустая операция.
func (s *Service) RemoveCartItem(ctx context.Context, email, item string) error {
	u, err := s.repo.GetUser(ctx, email)
	if err != nil {
		return err
	}

	if u.Cart == nil {
		return nil
	}
	if _, ok := u.Cart[item]; !ok {
		return nil
	}

	delete(u.Cart, item)

	return s.repo.SaveUser(ctx, u)
}

// CreateOrder оформляет заказ из текущей корзины пользователя по снимку цен
// меню. Сначала записывается заказ, затем документ пользователя (ссылка на
// заказ и очистка корзины): если вторая запись не удалась, заказ существует,
// но не привязан к пользователю — метод возвращает созданный заказ вместе с
// ошибкой сверки, а обработчик оплаты найдёт заказ по коллекции заказов.
func (s *Service) CreateOrder(ctx context.Context, email string) (*model.Order, error) {
	u, err := s.repo.GetUser(ctx, email)
	if err != nil {
		return nil, err
	}

	if len(u.Cart) == 0 {
		return nil, ErrEmptyCart
	}

	menu, err := s.repo.GetMenu(ctx)
	if err != nil {
		return nil, err
	}

	positions := make(map[string]int, len(u.Cart))
	total := 0.0
	for item, quantity := range u.Cart {
		menuItem, ok := menu[item]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrInconsistentCart, item)
		}
		positions[item] = quantity
		total += float64(quantity) * menuItem.Price
	}

	order := &model.Order{
		ID:        newID(),
		Email:     email,
		Positions: positions,
		Total:     total,
		Processed: false,
	}

	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	u.Orders = append(u.Orders, order.ID)
	u.Cart = map[string]int{}

	if err := s.repo.SaveUser(ctx, u); err != nil {
		return order, fmt.Errorf("order %s created but not linked to user %s: %w", order.ID, email, err)
	}

	return order, nil
}

// GetOrders возвращает все заказы пользователя.
func (s *Service) GetOrders(ctx context.Context, email string) ([]model.Order, error) {
	return s.repo.GetOrdersByEmail(ctx, email)
}

// GetOrder возвращает заказ пользователя. Список заказов в документе
// пользователя — единственный индекс владения: чужой или неизвестный
// идентификатор даёт ErrNotOwner до обращения к коллекции заказов.
func (s *Service) GetOrder(ctx context.Context, email, orderID string) (*model.Order, error) {
	u, err := s.repo.GetUser(ctx, email)
	if err != nil {
		return nil, err
	}

	if !ownsOrder(u, orderID) {
		return nil, fmt.Errorf("%w: %s", ErrNotOwner, orderID)
	}

	return s.repo.GetOrder(ctx, orderID)
}

// CancelOrder отменяет ещё не оплаченный заказ пользователя: удаляет документ
// заказа и убирает его идентификатор из списка пользователя. Оплаченный заказ
// не отменяется и не изменяется.
func (s *Service) CancelOrder(ctx context.Context, email, orderID string) error {
	u, err := s.repo.GetUser(ctx, email)
	if err != nil {
		return err
	}

	if !ownsOrder(u, orderID) {
		return fmt.Errorf("%w: %s", ErrNotOwner, orderID)
	}

	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}

	if order.Processed {
		return ErrAlreadyProcessed
	}

	if err := s.repo.DeleteOrder(ctx, orderID); err != nil {
		return err
	}

	kept := make([]string, 0, len(u.Orders))
	for _, id := range u.Orders {
		if id != orderID {
			kept = append(kept, id)
		}
	}
	u.Orders = kept

	return s.repo.SaveUser(ctx, u)
}

func ownsOrder(u *model.User, orderID string) bool {
	for _, id := range u.Orders {
		if id == orderID {
			return true
		}
	}
	return false
}

func (s *Service) hashPassword(password string) string {
	mac := hmac.New(sha256.New, s.hashSecret)
	mac.Write([]byte(password))
	return hex.EncodeToString(mac.Sum(nil))
}

// newID возвращает непрозрачный идентификатор фиксированной длины: 32
// шестнадцатеричных символа случайного UUID. Уникальность обеспечивается
// энтропией, без проверки по хранилищу.
func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
