package entity

import (
	"strings"
	"time"
)

const timestampLayout = "2006-01-02 15:04:05"

// NormalizeTimestamp приводит метку времени API к "YYYY-MM-DD HH:MM:SS"
// в UTC. Нераспознанный формат не теряется: T заменяется пробелом,
// дробная часть секунд отбрасывается, остаток сохраняется как есть.
func NormalizeTimestamp(raw *string) *string {
	if raw == nil {
		return nil
	}
	s := strings.TrimSpace(*raw)
	if s == "" {
		return nil
	}

	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", timestampLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			out := t.UTC().Format(timestampLayout)
			return &out
		}
	}

	out := strings.Replace(s, "T", " ", 1)
	if i := strings.IndexByte(out, '.'); i >= 0 {
		out = out[:i]
	}
	out = strings.TrimSuffix(out, "Z")
	return &out
}
