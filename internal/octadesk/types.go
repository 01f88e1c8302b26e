package octadesk

import (
	"bytes"
	"encoding/json"
)

// ID — идентификатор из CRM API. Сервис отдаёт id то строкой,
// то числом в зависимости от эндпоинта, поэтому тип терпит оба варианта.
type ID string

func (i *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*i = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*i = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*i = ID(n.String())
	return nil
}

func (i ID) String() string { return string(i) }

// Person — контакт в CRM
type Person struct {
	ID    ID     `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Organization *struct {
		ID ID `json:"id"`
	} `json:"organization"`
	CustomFields map[string]any `json:"customFields"`
}

// Organization — организация в CRM
type Organization struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// firstItem разворачивает список из конверта ответа: API оборачивает
// результаты то в items, то в data, то в results, а иногда отдаёт
// голый массив.
func firstItem(body []byte) (json.RawMessage, bool) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, false
	}
	if body[0] == '[' {
		var arr []json.RawMessage
		if err := json.Unmarshal(body, &arr); err != nil || len(arr) == 0 {
			return nil, false
		}
		return arr[0], true
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, false
	}
	for _, key := range []string{"items", "data", "results"} {
		raw, ok := envelope[key]
		if !ok {
			continue
		}
		var arr []json.RawMessage
		if err := json.Unmarshal(raw, &arr); err == nil && len(arr) > 0 {
			return arr[0], true
		}
	}
	return nil, false
}
