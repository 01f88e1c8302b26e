package entity

import (
	"fmt"
	"math"
	"strings"
)

// cfAliases — варианты написания ключей кастомных полей. Исходный
// портал хранил поля с потерянными диакритиками (cdigo вместо codigo),
// плюс часть аккаунтов несёт префикс cf_.
var cfAliases = map[string][]string{
	"codigo":       {"codigo", "cdigo"},
	"numero":       {"numero", "nmero"},
	"endereco":     {"endereco", "endereo"},
	"email_padrao": {"email_padrao", "email_padro"},
}

// PickCustomField достаёт значение кастомного поля по каноническому
// ключу, перебирая известные варианты написания и форму с префиксом cf_.
// Пустые строки считаются отсутствием значения.
func PickCustomField(fields map[string]any, key string) (string, bool) {
	if len(fields) == 0 {
		return "", false
	}

	variants, ok := cfAliases[key]
	if !ok {
		variants = []string{key}
	}
	for _, v := range variants {
		for _, candidate := range []string{v, "cf_" + v} {
			raw, ok := fields[candidate]
			if !ok || raw == nil {
				continue
			}
			s := strings.TrimSpace(stringify(raw))
			if s != "" {
				return s, true
			}
		}
	}
	return "", false
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return fmt.Sprintf("%.0f", x)
		}
		return fmt.Sprintf("%v", x)
	case bool:
		if x {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", x)
	}
}

// Int32OrNone отбрасывает значения за пределами int32: колонка
// в staging-схеме объявлена как INTEGER
func Int32OrNone(v *int64) *int64 {
	if v == nil {
		return nil
	}
	if *v > math.MaxInt32 || *v < math.MinInt32 {
		return nil
	}
	out := *v
	return &out
}
