package ledger

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAndWriteCSV(t *testing.T) {
	l := New()
	l.now = func() time.Time {
		return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	}

	l.Add(KindAttachSkippedTooLarge, 1001, "name", "big.zip", "size", "3145728")
	l.Add(KindContactNotFound, 1002, "contact_id", "55")

	var buf bytes.Buffer
	require.NoError(t, l.WriteCSV(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)

	// Объединение контекстных ключей отсортировано
	assert.Equal(t, "ts_utc,type,ticket_id,contact_id,name,size", lines[0])
	assert.Equal(t, "2024-03-01 12:00:00,attachment_skipped_too_large,1001,,big.zip,3145728", lines[1])
	assert.Equal(t, "2024-03-01 12:00:00,contact_not_found,1002,55,,", lines[2])
}

func TestWriteCSVEmpty(t *testing.T) {
	l := New()
	var buf bytes.Buffer
	require.NoError(t, l.WriteCSV(&buf))
	assert.Zero(t, buf.Len())
}

func TestParseErrorCSV(t *testing.T) {
	in := strings.NewReader(
		"ts_utc,type,ticket_id,contact_fresh_id,org_id\n" +
			"2024-03-01 12:00:00,ticket_fetch_failed,1001,,\n" +
			"2024-03-01 12:00:01,contact_not_found,1002,55,\n" +
			"2024-03-01 12:00:02,octa_org_not_found,1001,,77\n" +
			"2024-03-01 12:00:03,persist_failed,1003,,\n")

	data, err := ParseErrorCSV(in)
	require.NoError(t, err)

	// Дубли убраны, порядок первого вхождения сохранён
	assert.Equal(t, []int64{1001, 1002, 1003}, data.TicketIDs)
	assert.Contains(t, data.ContactIDs, int64(55))
	assert.Contains(t, data.CompanyIDs, int64(77))
}

func TestParseErrorCSVNoTicketColumn(t *testing.T) {
	in := strings.NewReader("foo,bar\n1,2\n")
	_, err := ParseErrorCSV(in)
	assert.ErrorIs(t, err, ErrNoTicketColumn)
}
