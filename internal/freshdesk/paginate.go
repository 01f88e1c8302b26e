package freshdesk

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// ListOptions — параметры перечисления тикетов.
// Явный список id отключает сетевую пагинацию целиком.
type ListOptions struct {
	TicketIDs []int64

	PageSize     int
	UpdatedSince string

	// Локальное окно дат: сервер ненадёжно комбинирует фильтры,
	// поэтому окно всегда перепроверяется на клиенте
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	UpdatedFrom *time.Time
	UpdatedTo   *time.Time
}

// EnumerateTicketIDs возвращает упорядоченный набор id тикетов к обработке.
// Режим списка сохраняет порядок и убирает дубли; постраничный режим
// идёт по возрастающему счётчику страниц до пустой/короткой страницы.
func (c *Client) EnumerateTicketIDs(ctx context.Context, opts ListOptions) ([]int64, error) {
	if len(opts.TicketIDs) > 0 {
		return dedupeKeepFirst(opts.TicketIDs), nil
	}

	pageSize := opts.PageSize
	if pageSize < 1 {
		pageSize = 100
	}
	if pageSize > 100 {
		pageSize = 100
	}

	updatedSince := opts.UpdatedSince
	if opts.UpdatedFrom != nil {
		updatedSince = opts.UpdatedFrom.UTC().Format("2006-01-02T15:04:05Z")
	}

	var ids []int64
	for page := 1; ; page++ {
		query := fmt.Sprintf("?per_page=%d&page=%d", pageSize, page)
		if updatedSince != "" {
			query += "&updated_since=" + updatedSince
		}

		body, err := c.Get(ctx, "/tickets", query)
		if err != nil {
			return nil, err
		}

		var items []listedTicket
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, fmt.Errorf("decode tickets page %d: %w", page, err)
		}
		if len(items) == 0 {
			break
		}

		for _, it := range items {
			if inPeriod(it, opts) {
				ids = append(ids, it.ID)
			}
		}
		if len(items) < pageSize {
			break
		}
	}
	return ids, nil
}

func dedupeKeepFirst(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// inPeriod проверяет окно дат включительно; непарсящаяся дата при
// активной границе исключает тикет (как отсутствующая)
func inPeriod(t listedTicket, opts ListOptions) bool {
	created, createdOK := parseTimeUTC(t.CreatedAt)
	updated, updatedOK := parseTimeUTC(t.UpdatedAt)

	if opts.CreatedFrom != nil && (!createdOK || created.Before(*opts.CreatedFrom)) {
		return false
	}
	if opts.CreatedTo != nil && (!createdOK || created.After(*opts.CreatedTo)) {
		return false
	}
	if opts.UpdatedFrom != nil && (!updatedOK || updated.Before(*opts.UpdatedFrom)) {
		return false
	}
	if opts.UpdatedTo != nil && (!updatedOK || updated.After(*opts.UpdatedTo)) {
		return false
	}
	return true
}

func parseTimeUTC(s *string) (time.Time, bool) {
	if s == nil || *s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, *s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// EndOfDay расширяет границу "до" на конец суток: окно включительное
func EndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}
