package octadesk

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

	"golang.org/x/exp/slog"
)

// Client — клиент целевой CRM. Авторизация ключом в заголовке,
// почта агента подставляется в каждый запрос.
type Client struct {
	http       *http.Client
	log        *slog.Logger
	baseURL    string
	apiKey     string
	agentEmail string
}

func NewClient(baseURL, apiKey, agentEmail string, timeout time.Duration, log *slog.Logger) *Client {
	return &Client{
		http:       &http.Client{Timeout: timeout},
		log:        log.With("component", "octadesk_client"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		agentEmail: agentEmail,
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.agentEmail != "" {
		req.Header.Set("octa-agent-email", c.agentEmail)
	}
	return req, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	p := path
	if len(query) > 0 {
		p += "?" + query.Encode()
	}
	req, err := c.newRequest(ctx, http.MethodGet, p, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// Post отправляет JSON-тело и возвращает тело ответа
func (c *Client) Post(ctx context.Context, path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", path, err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func filterQuery(property, value string) url.Values {
	q := url.Values{}
	q.Set("filters[0][property]", property)
	q.Set("filters[0][operator]", "eq")
	q.Set("filters[0][value]", value)
	return q
}

// FindContactByEmail ищет контакт по точному совпадению почты.
// Отсутствие совпадений — (nil, nil), не ошибка.
func (c *Client) FindContactByEmail(ctx context.Context, email string) (*Person, error) {
	body, err := c.get(ctx, "/persons", filterQuery("email", email))
	if err != nil {
		return nil, err
	}
	return decodePerson(body)
}

// FindContactByCustomField ищет контакт по кастомному полю customFields.<key>
func (c *Client) FindContactByCustomField(ctx context.Context, key, value string) (*Person, error) {
	body, err := c.get(ctx, "/persons", filterQuery("customFields."+key, value))
	if err != nil {
		return nil, err
	}
	return decodePerson(body)
}

// FindOrganizationByCustomField ищет организацию по кастомному полю
func (c *Client) FindOrganizationByCustomField(ctx context.Context, key, value string) (*Organization, error) {
	body, err := c.get(ctx, "/organizations", filterQuery("customFields."+key, value))
	if err != nil {
		return nil, err
	}
	return decodeOrganization(body)
}

// FindOrganizationByName ищет организацию по точному имени
func (c *Client) FindOrganizationByName(ctx context.Context, name string) (*Organization, error) {
	body, err := c.get(ctx, "/organizations", filterQuery("name", name))
	if err != nil {
		return nil, err
	}
	return decodeOrganization(body)
}

func decodePerson(body []byte) (*Person, error) {
	raw, ok := firstItem(body)
	if !ok {
		return nil, nil
	}
	var p Person
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode person: %w", err)
	}
	if p.ID == "" {
		return nil, nil
	}
	return &p, nil
}

func decodeOrganization(body []byte) (*Organization, error) {
	raw, ok := firstItem(body)
	if !ok {
		return nil, nil
	}
	var o Organization
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, fmt.Errorf("decode organization: %w", err)
	}
	if o.ID == "" {
		return nil, nil
	}
	return &o, nil
}
