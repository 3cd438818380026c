// Package settlement реализует фоновый обработчик оплаты заказов.
package settlement

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/pizzeria-system/internal/metrics"
	"github.com/mmeshcher/pizzeria-system/internal/model"
	"github.com/mmeshcher/pizzeria-system/internal/notify"
)

const (
	defaultInterval    = 5 * time.Minute
	defaultConcurrency = 8
)

// Repository описывает доступ к данным, используемый обработчиком. Поиск
// неоплаченных заказов идёт по коллекции заказов, а не по спискам
// пользователей, поэтому заказ с оборванной ссылкой тоже будет оплачен.
type Repository interface {
	GetUnprocessedOrders(ctx context.Context) ([]model.Order, error)
	GetMenu(ctx context.Context) (map[string]model.MenuItem, error)
	MarkOrderProcessed(ctx context.Context, id string) error
}

// Gateway описывает платёжный шлюз.
type Gateway interface {
	Charge(ctx context.Context, orderID string, amountCents int64, source string) error
}

// Notifier описывает сервис уведомлений покупателей.
type Notifier interface {
	Send(ctx context.Context, msg notify.Message) error
}

// Config содержит настройки обработчика оплаты.
type Config struct {
	Interval    time.Duration
	Concurrency int
	Source      string
}

// Worker периодически находит неоплаченные заказы, списывает их стоимость
// через платёжный шлюз, помечает оплаченными и уведомляет покупателей.
type Worker struct {
	repo     Repository
	gateway  Gateway
	notifier Notifier
	logger   *zap.Logger
	metrics  *metrics.Metrics

	interval    time.Duration
	concurrency int
	source      string
}

// NewWorker создаёт обработчик оплаты заказов.
func NewWorker(repo Repository, gateway Gateway, notifier Notifier, logger *zap.Logger, m *metrics.Metrics, cfg Config) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}

	return &Worker{
		repo:        repo,
		gateway:     gateway,
		notifier:    notifier,
		logger:      logger,
		metrics:     m,
		interval:    cfg.Interval,
		concurrency: cfg.Concurrency,
		source:      cfg.Source,
	}
}

// Run выполняет первый проход сразу, затем по фиксированному периоду до
// отмены контекста. Проход дожидается завершения всех своих задач перед
// возвратом, поэтому проходы не накладываются: затянувшийся проход
// пропускает тики.
func (w *Worker) Run(ctx context.Context) {
	w.RunPass(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunPass(ctx)
		}
	}
}

// RunPass выполняет один проход: находит неоплаченные заказы и обрабатывает
// каждый независимо с ограниченной степенью параллелизма. Ошибка одного
// заказа не прерывает обработку остальных; проход прерывает только ошибка
// поискового запроса.
func (w *Worker) RunPass(ctx context.Context) {
	w.metrics.Passes.Inc()

	orders, err := w.repo.GetUnprocessedOrders(ctx)
	if err != nil {
		w.logger.Error("settlement discovery failed", zap.Error(err))
		return
	}

	if len(orders) == 0 {
		return
	}

	// Свежий снимок меню для чеков. Недоступное меню не мешает списаниям:
	// в чеке вместо названий будут идентификаторы позиций.
	menu, err := w.repo.GetMenu(ctx)
	if err != nil {
		w.logger.Warn("menu snapshot unavailable for receipts", zap.Error(err))
		menu = nil
	}

	g := &errgroup.Group{}
	g.SetLimit(w.concurrency)

	for _, order := range orders {
		order := order
		g.Go(func() error {
			w.settle(ctx, order, menu)
			return nil
		})
	}

	_ = g.Wait()
}

func (w *Worker) settle(ctx context.Context, order model.Order, menu map[string]model.MenuItem) {
	amountCents := int64(math.Round(order.Total * 100))

	if err := w.gateway.Charge(ctx, order.ID, amountCents, w.source); err != nil {
		// Заказ остаётся неоплаченным и будет повторён на следующем проходе.
		w.metrics.ChargeFailures.Inc()
		w.logger.Warn("charge failed",
			zap.String("order", order.ID),
			zap.Int64("amount", amountCents),
			zap.Error(err),
		)
		w.send(ctx, failureNotice(order))
		return
	}

	if err := w.repo.MarkOrderProcessed(ctx, order.ID); err != nil {
		// Списание прошло, но флаг не записан: следующий проход повторит
		// запрос к шлюзу с тем же ключом идемпотентности, второго платежа
		// не будет. Чек до подтверждения флага не отправляется.
		w.logger.Error("order charged but not marked processed",
			zap.String("order", order.ID),
			zap.Error(err),
		)
		return
	}

	w.metrics.OrdersSettled.Inc()
	w.logger.Info("order settled",
		zap.String("order", order.ID),
		zap.Int64("amount", amountCents),
	)

	w.send(ctx, receipt(order, menu))
}

// send отправляет уведомление и глотает ошибку: неудачное уведомление никогда
// не меняет состояние заказа.
func (w *Worker) send(ctx context.Context, msg notify.Message) {
	if w.notifier == nil {
		return
	}

	if err := w.notifier.Send(ctx, msg); err != nil {
		w.metrics.NotificationFailures.Inc()
		w.logger.Warn("notification failed",
			zap.String("to", msg.To),
			zap.String("subject", msg.Subject),
			zap.Error(err),
		)
		return
	}

	w.metrics.NotificationsSent.Inc()
}

// receipt собирает чек: позиции заказа, названные по свежему снимку меню,
// и итоговая сумма. Для позиции, пропавшей из меню, используется её
// идентификатор.
func receipt(order model.Order, menu map[string]model.MenuItem) notify.Message {
	items := make([]string, 0, len(order.Positions))
	for item := range order.Positions {
		items = append(items, item)
	}
	sort.Strings(items)

	var b strings.Builder
	b.WriteString("Your order has been paid and confirmed.\n\n")
	for _, item := range items {
		title := item
		if menuItem, ok := menu[item]; ok {
			title = menuItem.Title
		}
		fmt.Fprintf(&b, "%d x %s\n", order.Positions[item], title)
	}
	fmt.Fprintf(&b, "\nTotal: $%s\n", formatAmount(order.Total))

	return notify.Message{
		To:      order.Email,
		Subject: fmt.Sprintf("Order %s confirmed", order.ID),
		Text:    b.String(),
	}
}

func failureNotice(order model.Order) notify.Message {
	text := fmt.Sprintf(
		"We could not charge $%s for your order %s. Please check your payment method; we will retry shortly.\n",
		formatAmount(order.Total), order.ID,
	)

	return notify.Message{
		To:      order.Email,
		Subject: fmt.Sprintf("Payment for order %s failed", order.ID),
		Text:    text,
	}
}

func formatAmount(total float64) string {
	return strconv.FormatFloat(total, 'f', -1, 64)
}
