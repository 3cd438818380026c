// Package payment предоставляет клиент платёжного шлюза.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

// ErrChargeDeclined возвращается, когда шлюз отклонил списание.
var ErrChargeDeclined = errors.New("charge declined by gateway")

const (
	chargeCurrency = "usd"

	retryBase       = 500 * time.Millisecond
	retryMaxRetries = 3
)

// Client инкапсулирует HTTP-взаимодействие с платёжным шлюзом.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type chargeRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Source   string `json:"source"`
}

type chargeResponse struct {
	Status string `json:"status"`
}

// NewClient создаёт клиент платёжного шлюза по указанному адресу.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Charge списывает amountCents минорных единиц с указанного источника средств.
// Идентификатор заказа передаётся шлюзу ключом идемпотентности, поэтому
// повторное списание одного заказа не приводит ко второму платежу. Сетевые
// ошибки повторяются с нарастающей задержкой; отказ шлюза не повторяется.
func (c *Client) Charge(ctx context.Context, orderID string, amountCents int64, source string) error {
	if c == nil || c.baseURL == "" {
		return errors.New("payment client not configured")
	}

	backoff := retry.WithMaxRetries(retryMaxRetries, retry.NewFibonacci(retryBase))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.charge(ctx, orderID, amountCents, source)
		if err != nil && !errors.Is(err, ErrChargeDeclined) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("charge order %s: %w", orderID, err)
	}

	return nil
}

func (c *Client) charge(ctx context.Context, orderID string, amountCents int64, source string) error {
	body, err := json.Marshal(chargeRequest{
		Amount:   amountCents,
		Currency: chargeCurrency,
		Source:   source,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	url := c.baseURL + "/v1/charges"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Idempotency-Key", orderID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result chargeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if result.Status != "succeeded" {
		return ErrChargeDeclined
	}

	return nil
}
