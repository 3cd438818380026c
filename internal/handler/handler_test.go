package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/pizzeria-system/internal/middleware"
	"github.com/mmeshcher/pizzeria-system/internal/model"
	"github.com/mmeshcher/pizzeria-system/internal/repository"
	"github.com/mmeshcher/pizzeria-system/internal/service"
)

const testToken = "0123456789abcdef0123456789abcdef"

type stubService struct {
	registerErr error

	tokenResp *model.Token
	tokenErr  error

	menuResp []model.MenuItem
	menuErr  error

	cartResp map[string]int
	cartErr  error

	setCartErr    error
	removeCartErr error

	orderResp *model.Order
	orderErr  error

	ordersResp []model.Order
	ordersErr  error

	cancelErr error
}

func (s *stubService) RegisterUser(ctx context.Context, u *model.User, password string) error {
	return s.registerErr
}

func (s *stubService) CreateToken(ctx context.Context, email, password string) (*model.Token, error) {
	return s.tokenResp, s.tokenErr
}

func (s *stubService) DeleteToken(ctx context.Context, id string) error {
	return nil
}

func (s *stubService) GetMenu(ctx context.Context) ([]model.MenuItem, error) {
	return s.menuResp, s.menuErr
}

func (s *stubService) GetCart(ctx context.Context, email string) (map[string]int, error) {
	return s.cartResp, s.cartErr
}

func (s *stubService) SetCartItem(ctx context.Context, email, item string, quantity int) error {
	return s.setCartErr
}

func (s *stubService) RemoveCartItem(ctx context.Context, email, item string) error {
	return s.removeCartErr
}

func (s *stubService) CreateOrder(ctx context.Context, email string) (*model.Order, error) {
	return s.orderResp, s.orderErr
}

func (s *stubService) GetOrders(ctx context.Context, email string) ([]model.Order, error) {
	return s.ordersResp, s.ordersErr
}

func (s *stubService) GetOrder(ctx context.Context, email, orderID string) (*model.Order, error) {
	return s.orderResp, s.orderErr
}

func (s *stubService) CancelOrder(ctx context.Context, email, orderID string) error {
	return s.cancelErr
}

type stubTokens struct {
	token *model.Token
}

func (s *stubTokens) GetToken(ctx context.Context, id string) (*model.Token, error) {
	if s.token == nil || s.token.ID != id {
		return nil, repository.ErrTokenNotFound
	}
	return s.token, nil
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	auth := middleware.NewAuthMiddleware(&stubTokens{
		token: &model.Token{
			ID:      testToken,
			Email:   "user@example.com",
			Expires: time.Now().Add(time.Hour).UnixMilli(),
		},
	})

	return NewHandler(svc, logger, auth, nil)
}

func authRequest(method, target string, body []byte) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set("Token", testToken)
	return req
}

func TestRegister_Success(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	body, _ := json.Marshal(registerRequest{
		FirstName: "Ivan",
		LastName:  "Petrov",
		Email:     "user@example.com",
		Address:   "Lenina 1",
		Password:  "secret",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/users", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
}

func TestRegister_ConflictOnDuplicate(t *testing.T) {
	h := newTestHandler(t, &stubService{
		registerErr: repository.ErrUserExists,
	})

	body, _ := json.Marshal(registerRequest{
		FirstName: "Ivan",
		LastName:  "Petrov",
		Email:     "user@example.com",
		Address:   "Lenina 1",
		Password:  "secret",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/users", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusConflict)
	}
}

func TestRegister_BadRequestOnInvalidEmail(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	body, _ := json.Marshal(registerRequest{
		FirstName: "Ivan",
		LastName:  "Petrov",
		Email:     "not-an-email",
		Address:   "Lenina 1",
		Password:  "secret",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/users", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestCreateToken_UnauthorizedOnBadCredentials(t *testing.T) {
	h := newTestHandler(t, &stubService{
		tokenErr: service.ErrInvalidCredentials,
	})

	body, _ := json.Marshal(credentialsRequest{
		Email:    "user@example.com",
		Password: "wrong",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/tokens", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.CreateToken(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
	}
}

func TestCreateToken_ReturnsToken(t *testing.T) {
	h := newTestHandler(t, &stubService{
		tokenResp: &model.Token{
			ID:      testToken,
			Email:   "user@example.com",
			Expires: time.Now().Add(time.Hour).UnixMilli(),
		},
	})

	body, _ := json.Marshal(credentialsRequest{
		Email:    "user@example.com",
		Password: "secret",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/tokens", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.CreateToken(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q, want application/json", ct)
	}

	var token model.Token
	if err := json.NewDecoder(res.Body).Decode(&token); err != nil {
		t.Fatalf("decode token: %v", err)
	}
	if token.ID != testToken {
		t.Fatalf("token id = %q, want %q", token.ID, testToken)
	}
}

func TestGetCart_UnauthorizedWithoutToken(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	rec := httptest.NewRecorder()

	handlerWithAuth := h.authMiddleware.Middleware(http.HandlerFunc(h.GetCart))
	handlerWithAuth.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
	}
}

func TestSetCartItem_BadRequestOnLimit(t *testing.T) {
	h := newTestHandler(t, &stubService{
		setCartErr: fmt.Errorf("%w: в корзине осталось место только для 4 позиций", service.ErrCartLimit),
	})

	body, _ := json.Marshal(cartItemRequest{Item: "aa", Quantity: 7})

	req := authRequest(http.MethodPost, "/api/cart", body)
	rec := httptest.NewRecorder()

	handlerWithAuth := h.authMiddleware.Middleware(http.HandlerFunc(h.SetCartItem))
	handlerWithAuth.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestCreateOrder_Created(t *testing.T) {
	h := newTestHandler(t, &stubService{
		orderResp: &model.Order{
			ID:        testToken,
			Email:     "user@example.com",
			Positions: map[string]int{"aa": 2},
			Total:     13,
		},
	})

	req := authRequest(http.MethodPost, "/api/orders", nil)
	rec := httptest.NewRecorder()

	handlerWithAuth := h.authMiddleware.Middleware(http.HandlerFunc(h.CreateOrder))
	handlerWithAuth.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusCreated)
	}

	var order model.Order
	if err := json.NewDecoder(res.Body).Decode(&order); err != nil {
		t.Fatalf("decode order: %v", err)
	}
	if order.Total != 13 {
		t.Fatalf("total = %v, want 13", order.Total)
	}
}

func TestCreateOrder_BadRequestOnEmptyCart(t *testing.T) {
	h := newTestHandler(t, &stubService{
		orderErr: service.ErrEmptyCart,
	})

	req := authRequest(http.MethodPost, "/api/orders", nil)
	rec := httptest.NewRecorder()

	handlerWithAuth := h.authMiddleware.Middleware(http.HandlerFunc(h.CreateOrder))
	handlerWithAuth.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestGetOrders_NoContent(t *testing.T) {
	h := newTestHandler(t, &stubService{
		ordersResp: []model.Order{},
	})

	req := authRequest(http.MethodGet, "/api/orders", nil)
	rec := httptest.NewRecorder()

	handlerWithAuth := h.authMiddleware.Middleware(http.HandlerFunc(h.GetOrders))
	handlerWithAuth.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNoContent)
	}
}

func TestCancelOrder_ConflictOnProcessed(t *testing.T) {
	h := newTestHandler(t, &stubService{
		cancelErr: service.ErrAlreadyProcessed,
	})

	router := h.SetupRouter()

	req := authRequest(http.MethodDelete, "/api/orders/"+testToken, nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusConflict)
	}
}

func TestGetOrder_ForbiddenForForeignOrder(t *testing.T) {
	h := newTestHandler(t, &stubService{
		orderErr: service.ErrNotOwner,
	})

	router := h.SetupRouter()

	req := authRequest(http.MethodGet, "/api/orders/"+testToken, nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusForbidden)
	}
}
