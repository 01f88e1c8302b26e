package ledger

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"
)

var ErrNoTicketColumn = errors.New("ticket id column not found")

// ErrorData — идентификаторы, извлечённые из CSV прошлого прогона
// для корректирующей обработки
type ErrorData struct {
	TicketIDs  []int64
	ContactIDs map[int64]struct{}
	CompanyIDs map[int64]struct{}
}

// ParseErrorCSV читает ledger прошлого прогона. Колонки ищутся по
// известным псевдонимам; id тикетов возвращаются без дублей с
// сохранением порядка первого вхождения.
func ParseErrorCSV(r io.Reader) (*ErrorData, error) {
	ticketCols := map[string]struct{}{"ticket_id": {}, "ticket": {}, "id": {}}
	contactCols := map[string]struct{}{"contact_fresh_id": {}, "contact_id": {}, "id_contato": {}}
	companyCols := map[string]struct{}{"company_fresh_id": {}, "company_id": {}, "org_id": {}}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	out := &ErrorData{
		ContactIDs: map[int64]struct{}{},
		CompanyIDs: map[int64]struct{}{},
	}
	if len(rows) == 0 {
		return out, nil
	}

	ticketIdx, contactIdx, companyIdx := -1, -1, -1
	for i, h := range rows[0] {
		h = strings.ToLower(strings.TrimSpace(h))
		if _, ok := ticketCols[h]; ok && ticketIdx < 0 {
			ticketIdx = i
		}
		if _, ok := contactCols[h]; ok && contactIdx < 0 {
			contactIdx = i
		}
		if _, ok := companyCols[h]; ok && companyIdx < 0 {
			companyIdx = i
		}
	}
	if ticketIdx < 0 {
		return nil, ErrNoTicketColumn
	}

	seen := map[int64]struct{}{}
	for _, row := range rows[1:] {
		if id, ok := cellInt(row, ticketIdx); ok {
			if _, dup := seen[id]; !dup {
				seen[id] = struct{}{}
				out.TicketIDs = append(out.TicketIDs, id)
			}
		}
		if id, ok := cellInt(row, contactIdx); ok {
			out.ContactIDs[id] = struct{}{}
		}
		if id, ok := cellInt(row, companyIdx); ok {
			out.CompanyIDs[id] = struct{}{}
		}
	}
	return out, nil
}

func cellInt(row []string, idx int) (int64, bool) {
	if idx < 0 || idx >= len(row) {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(row[idx]), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
