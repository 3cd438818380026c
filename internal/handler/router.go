package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	custommiddleware "github.com/mmeshcher/pizzeria-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса пиццерии.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/users", h.Register)
		r.Post("/tokens", h.CreateToken)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Delete("/tokens/{id}", h.DeleteToken)

			r.Get("/menu", h.GetMenu)

			r.Get("/cart", h.GetCart)
			r.Post("/cart", h.SetCartItem)
			r.Delete("/cart", h.RemoveCartItem)

			r.Post("/orders", h.CreateOrder)
			r.Get("/orders", h.GetOrders)
			r.Get("/orders/{id}", h.GetOrder)
			r.Delete("/orders/{id}", h.CancelOrder)
		})
	})

	if h.metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", h.metricsHandler)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}

func pathParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}
