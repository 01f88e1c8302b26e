package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"
)

// Ledger накапливает аномалии прогона и в конце сбрасывает их одним CSV.
// Прогон однопоточный, поэтому синхронизация не нужна.
type Ledger struct {
	entries []Entry
	now     func() time.Time
}

func New() *Ledger {
	return &Ledger{now: time.Now}
}

// Add добавляет запись; kv — пары ключ/значение контекста
func (l *Ledger) Add(kind string, ticketID int64, kv ...string) {
	extra := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		extra[kv[i]] = kv[i+1]
	}
	l.entries = append(l.entries, Entry{
		TS:       l.now().UTC(),
		Kind:     kind,
		TicketID: ticketID,
		Extra:    extra,
	})
}

func (l *Ledger) Len() int { return len(l.entries) }

func (l *Ledger) Entries() []Entry { return l.entries }

// WriteCSV пишет все записи. Колонки: ts_utc, type, ticket_id плюс
// отсортированное объединение контекстных ключей всех записей.
func (l *Ledger) WriteCSV(w io.Writer) error {
	if len(l.entries) == 0 {
		return nil
	}

	keySet := map[string]struct{}{}
	for _, e := range l.entries {
		for k := range e.Extra {
			keySet[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cw := csv.NewWriter(w)
	header := append([]string{"ts_utc", "type", "ticket_id"}, keys...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, e := range l.entries {
		row := make([]string, 0, len(header))
		row = append(row, e.TS.Format("2006-01-02 15:04:05"), e.Kind, "")
		if e.TicketID != 0 {
			row[2] = strconv.FormatInt(e.TicketID, 10)
		}
		for _, k := range keys {
			row = append(row, e.Extra[k])
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Flush сохраняет CSV в файл; пустой ledger файла не создаёт
func (l *Ledger) Flush(path string) error {
	if len(l.entries) == 0 {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create ledger file: %w", err)
	}
	defer f.Close()
	return l.WriteCSV(f)
}
