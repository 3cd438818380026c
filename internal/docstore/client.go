// Package docstore реализует клиент удалённого документного хранилища —
// коллекций JSON-документов, доступных по HTTP API.
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Error описывает ошибку обращения к документному хранилищу. Содержит
// операцию, коллекцию, HTTP-статус ответа (0 при сетевой ошибке) и исходную
// причину.
type Error struct {
	Op         string
	Collection string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("docstore: %s %s: status %d: %v", e.Op, e.Collection, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("docstore: %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound сообщает, что хранилище ответило 404 на запрошенный документ.
func (e *Error) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// Client инкапсулирует HTTP-взаимодействие с документным хранилищем.
// Повторы при временных сетевых сбоях выполняет retryablehttp.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *retryablehttp.Client
}

// NewClient создаёт клиент документного хранилища по указанному адресу.
func NewClient(baseURL, apiKey string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 3 * time.Second
	rc.HTTPClient.Timeout = 10 * time.Second
	rc.Logger = nil

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: rc,
	}
}

// Create создаёт документ с указанным идентификатором в коллекции.
func (c *Client) Create(ctx context.Context, collection, id string, doc any) error {
	body, err := withID(doc, id)
	if err != nil {
		return &Error{Op: "create", Collection: collection, Err: err}
	}

	return c.do(ctx, "create", http.MethodPost, collection, "", nil, body, nil)
}

// Read считывает документ из коллекции в out.
func (c *Client) Read(ctx context.Context, collection, id string, out any) error {
	return c.do(ctx, "read", http.MethodGet, collection, id, nil, nil, out)
}

// Update применяет частичное обновление: перезаписываются только поля
// верхнего уровня, перечисленные в partial, остальной документ не трогается.
func (c *Client) Update(ctx context.Context, collection, id string, partial any) error {
	body, err := json.Marshal(map[string]any{"$set": partial})
	if err != nil {
		return &Error{Op: "update", Collection: collection, Err: err}
	}

	return c.do(ctx, "update", http.MethodPut, collection, id, nil, body, nil)
}

// Delete удаляет документ из коллекции.
func (c *Client) Delete(ctx context.Context, collection, id string) error {
	return c.do(ctx, "delete", http.MethodDelete, collection, id, nil, nil, nil)
}

// Query возвращает в out документы коллекции, поля которых равны значениям
// фильтра. Пустой фильтр возвращает коллекцию целиком.
func (c *Client) Query(ctx context.Context, collection string, filter map[string]any, out any) error {
	query := url.Values{}
	if len(filter) > 0 {
		encoded, err := EncodeFilter(filter)
		if err != nil {
			return &Error{Op: "query", Collection: collection, Err: err}
		}
		query.Set("q", encoded)
	}

	return c.do(ctx, "query", http.MethodGet, collection, "", query, nil, out)
}

// EncodeFilter сериализует фильтр в каноническую форму: JSON с ключами в
// лексикографическом порядке на всех уровнях вложенности, так что один и тот
// же фильтр всегда даёт одну и ту же строку запроса.
func EncodeFilter(filter map[string]any) (string, error) {
	// encoding/json сортирует ключи map при сериализации.
	raw, err := json.Marshal(filter)
	if err != nil {
		return "", fmt.Errorf("marshal filter: %w", err)
	}
	return string(raw), nil
}

func (c *Client) do(ctx context.Context, op, method, collection, id string, query url.Values, body []byte, out any) error {
	u := fmt.Sprintf("%s/collections/%s", c.baseURL, url.PathEscape(collection))
	if id != "" {
		u += "/" + url.PathEscape(id)
	}

	if query == nil {
		query = url.Values{}
	}
	query.Set("key", c.apiKey)
	u += "?" + query.Encode()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return &Error{Op: op, Collection: collection, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Op: op, Collection: collection, Err: fmt.Errorf("do request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return &Error{
			Op:         op,
			Collection: collection,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status: %d", resp.StatusCode),
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &Error{Op: op, Collection: collection, Err: fmt.Errorf("decode response: %w", err)}
		}
	}

	return nil
}

func withID(doc any, id string) ([]byte, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}

	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("document must be a JSON object: %w", err)
	}
	fields["_id"] = id

	return json.Marshal(fields)
}
