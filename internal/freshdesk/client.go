package freshdesk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/exp/slog"
)

// HTTPError — неповторяемая ошибка API с кодом ответа
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("freshdesk: status %d: %s", e.StatusCode, truncateBody(e.Body))
}

// IsNotFound — 404 на вторичном lookup'е: сущность пропускается, не ошибка прогона
func IsNotFound(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.StatusCode == http.StatusNotFound
}

func truncateBody(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), "\n", " ")
	if len(s) > 240 {
		return s[:240] + "…"
	}
	return s
}

// Client — клиент исходного helpdesk API с basic-auth (ключ как логин)
// и повторами при 429/сетевых сбоях. Все повторы последовательные:
// лимит запросов общий на учётку, параллельные ретраи только усиливают
// троттлинг.
type Client struct {
	http       *http.Client
	log        *slog.Logger
	baseURL    string
	apiKey     string
	maxRetries int
	backoff    BackoffPolicy
	sleep      func(time.Duration)
}

// BaseURL нормализует домен: голый поддомен дополняется до
// <sub>.freshdesk.com, схема по умолчанию https
func BaseURL(domain string) string {
	d := strings.TrimRight(strings.TrimSpace(domain), "/")
	if d != "" && !strings.Contains(d, ".") {
		d = d + ".freshdesk.com"
	}
	if !strings.HasPrefix(d, "http") {
		d = "https://" + d
	}
	return d
}

func NewClient(domain, apiKey string, maxRetries int, log *slog.Logger) *Client {
	return &Client{
		http: &http.Client{
			Timeout: 120 * time.Second,
		},
		log:        log.With("component", "freshdesk_client"),
		baseURL:    BaseURL(domain),
		apiKey:     apiKey,
		maxRetries: maxRetries,
		backoff:    DefaultBackoffPolicy(),
		sleep:      time.Sleep,
	}
}

// Get выполняет GET /api/v2<path><query> и возвращает тело ответа.
// 429 ждёт по Retry-After/экспоненте, 5xx и сетевые сбои ретраятся
// с экспонентой до потолка попыток, прочие 4xx сразу *HTTPError.
func (c *Client) Get(ctx context.Context, path, query string) ([]byte, error) {
	url := c.baseURL + "/api/v2" + path + query

	attempt := 0
	for {
		body, status, retryAfter, err := c.do(ctx, url)
		switch {
		case err != nil:
			if attempt >= c.maxRetries {
				return nil, fmt.Errorf("get %s: %w", path, err)
			}
			wait := c.backoff.NetworkWait(attempt)
			c.log.Warn("network failure, retrying", "path", path, "wait", wait, "error", err)
			c.sleep(wait)
		case status == http.StatusTooManyRequests:
			if attempt >= c.maxRetries {
				return nil, &HTTPError{StatusCode: status, Body: string(body)}
			}
			wait := c.backoff.RateLimitWait(attempt, retryAfter)
			c.log.Warn("rate limited, waiting", "path", path, "wait", wait)
			c.sleep(wait)
		case status >= 500:
			if attempt >= c.maxRetries {
				return nil, &HTTPError{StatusCode: status, Body: string(body)}
			}
			wait := c.backoff.NetworkWait(attempt)
			c.log.Warn("server error, retrying", "path", path, "status", status, "wait", wait)
			c.sleep(wait)
		case status >= 400:
			return nil, &HTTPError{StatusCode: status, Body: string(body)}
		default:
			return body, nil
		}
		attempt++
	}
}

func (c *Client) do(ctx context.Context, url string) (body []byte, status int, retryAfter string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, "", err
	}
	req.SetBasicAuth(c.apiKey, "X")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, "", err
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, "", err
	}
	return body, resp.StatusCode, resp.Header.Get("Retry-After"), nil
}

// Download скачивает бинарное содержимое по предподписанной ссылке
// (без авторизации). Возвращает тело и content-type из заголовков.
func (c *Client) Download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, "", &HTTPError{StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// Peek читает только заголовки ответа (content-type, длину), не скачивая тело
func (c *Client) Peek(ctx context.Context, url string) (contentType string, size int64, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", 0, &HTTPError{StatusCode: resp.StatusCode}
	}
	return resp.Header.Get("Content-Type"), resp.ContentLength, nil
}

// Ticket возвращает тикет с переписками; сырой JSON сохраняется в Raw
func (c *Client) Ticket(ctx context.Context, id int64) (*Ticket, error) {
	body, err := c.Get(ctx, fmt.Sprintf("/tickets/%d", id), "?include=conversations")
	if err != nil {
		return nil, err
	}
	var t Ticket
	if err := json.Unmarshal(body, &t); err != nil {
		return nil, fmt.Errorf("decode ticket %d: %w", id, err)
	}
	t.Raw = body
	return &t, nil
}

func (c *Client) Agent(ctx context.Context, id int64) (*Agent, error) {
	body, err := c.Get(ctx, fmt.Sprintf("/agents/%d", id), "")
	if err != nil {
		return nil, err
	}
	var a Agent
	if err := json.Unmarshal(body, &a); err != nil {
		return nil, fmt.Errorf("decode agent %d: %w", id, err)
	}
	a.Raw = body
	return &a, nil
}

func (c *Client) Group(ctx context.Context, id int64) (*Group, error) {
	body, err := c.Get(ctx, fmt.Sprintf("/groups/%d", id), "")
	if err != nil {
		return nil, err
	}
	var g Group
	if err := json.Unmarshal(body, &g); err != nil {
		return nil, fmt.Errorf("decode group %d: %w", id, err)
	}
	g.Raw = body
	return &g, nil
}

func (c *Client) Contact(ctx context.Context, id int64) (*Contact, error) {
	body, err := c.Get(ctx, fmt.Sprintf("/contacts/%d", id), "")
	if err != nil {
		return nil, err
	}
	var ct Contact
	if err := json.Unmarshal(body, &ct); err != nil {
		return nil, fmt.Errorf("decode contact %d: %w", id, err)
	}
	ct.Raw = body
	return &ct, nil
}

func (c *Client) Company(ctx context.Context, id int64) (*Company, error) {
	body, err := c.Get(ctx, fmt.Sprintf("/companies/%d", id), "")
	if err != nil {
		return nil, err
	}
	var co Company
	if err := json.Unmarshal(body, &co); err != nil {
		return nil, fmt.Errorf("decode company %d: %w", id, err)
	}
	co.Raw = body
	return &co, nil
}
