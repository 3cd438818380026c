// Package handler содержит HTTP-обработчики API сервиса пиццерии.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/pizzeria-system/internal/middleware"
	"github.com/mmeshcher/pizzeria-system/internal/model"
	"github.com/mmeshcher/pizzeria-system/internal/repository"
	"github.com/mmeshcher/pizzeria-system/internal/service"
	"github.com/mmeshcher/pizzeria-system/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, u *model.User, password string) error
	CreateToken(ctx context.Context, email, password string) (*model.Token, error)
	DeleteToken(ctx context.Context, id string) error
	GetMenu(ctx context.Context) ([]model.MenuItem, error)
	GetCart(ctx context.Context, email string) (map[string]int, error)
	SetCartItem(ctx context.Context, email, item string, quantity int) error
	RemoveCartItem(ctx context.Context, email, item string) error
	CreateOrder(ctx context.Context, email string) (*model.Order, error)
	GetOrders(ctx context.Context, email string) ([]model.Order, error)
	GetOrder(ctx context.Context, email, orderID string) (*model.Order, error)
	CancelOrder(ctx context.Context, email, orderID string) error
}

// Handler реализует HTTP-обработчики API сервиса пиццерии.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	metricsHandler http.Handler
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов. metricsHandler
// может быть nil, тогда /metrics не публикуется.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, metricsHandler http.Handler) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		metricsHandler: metricsHandler,
	}
}

type registerRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Address   string `json:"address"`
	Password  string `json:"password"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !validation.IsValidEmail(req.Email) ||
		!validation.IsNonEmptyString(req.FirstName) ||
		!validation.IsNonEmptyString(req.LastName) ||
		!validation.IsNonEmptyString(req.Address) ||
		!validation.IsNonEmptyString(req.Password) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	u := &model.User{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Address:   req.Address,
	}

	if err := h.service.RegisterUser(r.Context(), u, req.Password); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
			return
		}
		h.logger.Error("register user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CreateToken выполняет аутентификацию пользователя и выдаёт токен доступа.
func (h *Handler) CreateToken(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !validation.IsValidEmail(req.Email) || !validation.IsNonEmptyString(req.Password) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	token, err := h.service.CreateToken(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) || errors.Is(err, service.ErrInvalidCredentials) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error("create token error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, token)
}

// DeleteToken отзывает токен доступа текущего пользователя.
func (h *Handler) DeleteToken(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if !validation.IsValidID(id) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteToken(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("delete token error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// GetMenu возвращает позиции меню.
func (h *Handler) GetMenu(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.GetMenu(r.Context())
	if err != nil {
		h.logger.Error("get menu error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, items)
}

// GetCart возвращает корзину текущего пользователя.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	email, ok := middleware.GetEmailFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	cart, err := h.service.GetCart(r.Context(), email)
	if err != nil {
		h.logger.Error("get cart error", zap.Error(err), zap.String("email", email))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, cart)
}

type cartItemRequest struct {
	Item     string `json:"item"`
	Quantity int    `json:"quantity"`
}

// SetCartItem устанавливает количество позиции в корзине текущего пользователя.
func (h *Handler) SetCartItem(w http.ResponseWriter, r *http.Request) {
	email, ok := middleware.GetEmailFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req cartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Quantity == 0 {
		req.Quantity = 1
	}

	err := h.service.SetCartItem(r.Context(), email, req.Item, req.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidQuantity),
			errors.Is(err, service.ErrUnknownMenuItem),
			errors.Is(err, service.ErrCartLimit):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			h.logger.Error("set cart item error", zap.Error(err), zap.String("email", email))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}

// RemoveCartItem удаляет позицию из корзины текущего пользователя.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	email, ok := middleware.GetEmailFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	item := r.URL.Query().Get("item")
	if !validation.IsNonEmptyString(item) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.RemoveCartItem(r.Context(), email, item); err != nil {
		h.logger.Error("remove cart item error", zap.Error(err), zap.String("email", email))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// CreateOrder оформляет заказ из корзины текущего пользователя.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	email, ok := middleware.GetEmailFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	order, err := h.service.CreateOrder(r.Context(), email)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyCart):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, service.ErrInconsistentCart):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			h.logger.Error("create order error", zap.Error(err), zap.String("email", email))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(order); err != nil {
		h.logger.Error("encode order error", zap.Error(err))
	}
}

// GetOrders возвращает список заказов текущего пользователя.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	email, ok := middleware.GetEmailFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orders, err := h.service.GetOrders(r.Context(), email)
	if err != nil {
		h.logger.Error("get orders error", zap.Error(err), zap.String("email", email))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.writeJSON(w, orders)
}

// GetOrder возвращает заказ текущего пользователя.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	email, ok := middleware.GetEmailFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orderID := pathParam(r, "id")
	order, err := h.service.GetOrder(r.Context(), email, orderID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotOwner):
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		case errors.Is(err, repository.ErrOrderNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		default:
			h.logger.Error("get order error", zap.Error(err), zap.String("order", orderID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, order)
}

// CancelOrder отменяет ещё не оплаченный заказ текущего пользователя.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	email, ok := middleware.GetEmailFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orderID := pathParam(r, "id")
	if err := h.service.CancelOrder(r.Context(), email, orderID); err != nil {
		switch {
		case errors.Is(err, service.ErrNotOwner):
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		case errors.Is(err, repository.ErrOrderNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, service.ErrAlreadyProcessed):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			h.logger.Error("cancel order error", zap.Error(err), zap.String("order", orderID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
