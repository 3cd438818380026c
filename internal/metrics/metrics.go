// Package metrics описывает счётчики конвейера оплаты заказов.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics содержит счётчики фонового обработчика оплаты.
type Metrics struct {
	Passes               prometheus.Counter
	OrdersSettled        prometheus.Counter
	ChargeFailures       prometheus.Counter
	NotificationsSent    prometheus.Counter
	NotificationFailures prometheus.Counter
}

// New регистрирует счётчики в указанном реестре.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Passes: factory.NewCounter(prometheus.CounterOpts{
			Name: "settlement_passes_total",
			Help: "Total settlement passes executed",
		}),
		OrdersSettled: factory.NewCounter(prometheus.CounterOpts{
			Name: "orders_settled_total",
			Help: "Total orders charged and marked processed",
		}),
		ChargeFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "charge_failures_total",
			Help: "Total gateway charge failures",
		}),
		NotificationsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total customer notifications sent",
		}),
		NotificationFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "notification_failures_total",
			Help: "Total customer notifications that failed to send",
		}),
	}
}
