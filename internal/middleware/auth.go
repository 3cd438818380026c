// Package middleware содержит HTTP middleware сервиса пиццерии.
package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/mmeshcher/pizzeria-system/internal/model"
	"github.com/mmeshcher/pizzeria-system/internal/validation"
)

type contextKey string

const emailKey contextKey = "email"

const tokenHeader = "Token"

// TokenReader описывает доступ к выданным токенам, используемый проверкой
// аутентификации.
type TokenReader interface {
	GetToken(ctx context.Context, id string) (*model.Token, error)
}

// AuthMiddleware выполняет проверку аутентификации пользователя по токену из
// заголовка запроса: токен должен существовать в хранилище и не быть
// просроченным.
type AuthMiddleware struct {
	tokens TokenReader
}

// NewAuthMiddleware создаёт AuthMiddleware с указанным источником токенов.
func NewAuthMiddleware(tokens TokenReader) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Middleware проверяет токен запроса и добавляет email пользователя в
// контекст.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(tokenHeader)
		if !validation.IsValidID(id) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		token, err := a.tokens.GetToken(r.Context(), id)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		if token.Expires < time.Now().UnixMilli() {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), emailKey, token.Email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetEmailFromContext извлекает email пользователя из контекста запроса.
func GetEmailFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(emailKey).(string)
	return email, ok
}
