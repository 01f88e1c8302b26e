package octadesk

import (
	"errors"
	"fmt"
	"strings"
)

// APIError — ошибка CRM API с кодом и телом ответа
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 240 {
		body = body[:240] + "…"
	}
	return fmt.Sprintf("octadesk: status %d: %s", e.StatusCode, body)
}

// IsInvalidProperty распознаёт отказ API фильтровать по свойству.
// Такой отказ стабилен в рамках прогона: повторять фильтрованный
// поиск бессмысленно, вызывающая сторона отключает его до конца.
func IsInvalidProperty(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && strings.Contains(ae.Body, "INVALID_PROPERTY")
}
