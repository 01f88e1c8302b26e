package repair

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freshsync/internal/app/sync"
	"freshsync/internal/domain/entity"
	"freshsync/internal/utils/logger"
)

type fakeSyncer struct {
	gotOpts sync.Options
	calls   int
}

func (f *fakeSyncer) Run(_ context.Context, opts sync.Options) (*sync.RunStats, error) {
	f.calls++
	f.gotOpts = opts
	return &sync.RunStats{TicketsProcessed: len(opts.TicketIDs)}, nil
}

type fakeMaps struct {
	data map[string]map[string]string
	sets int
}

func (f *fakeMaps) Load(_ context.Context, table string) (map[string]string, error) {
	return f.data[table], nil
}

func (f *fakeMaps) Set(_ context.Context, table, fresh, octa string) error {
	f.sets++
	f.data[table][fresh] = octa
	return nil
}

type fakeDirectory struct {
	contacts  map[int64]*entity.ContactRow
	companies map[int64]*entity.CompanyRow
	sets      int
}

func (f *fakeDirectory) ContactByFreshID(_ context.Context, freshID int64) (*entity.ContactRow, error) {
	c, ok := f.contacts[freshID]
	if !ok {
		return nil, fmt.Errorf("contact %d not found", freshID)
	}
	return c, nil
}

func (f *fakeDirectory) CompanyByFreshID(_ context.Context, freshID int64) (*entity.CompanyRow, error) {
	c, ok := f.companies[freshID]
	if !ok {
		return nil, fmt.Errorf("company %d not found", freshID)
	}
	return c, nil
}

func (f *fakeDirectory) SetContactOctaIDs(_ context.Context, freshID int64, octaContactID, octaOrgID string) error {
	f.sets++
	f.contacts[freshID].OctaContactID = &octaContactID
	f.contacts[freshID].OctaOrgID = &octaOrgID
	return nil
}

func (f *fakeDirectory) SetCompanyOctaID(_ context.Context, freshID int64, octaOrgID string) error {
	f.sets++
	f.companies[freshID].OctaOrgID = &octaOrgID
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRerunFromErrorCSV(t *testing.T) {
	path := writeFile(t,
		"ts_utc,type,ticket_id\n"+
			"2024-03-01 12:00:00,ticket_fetch_failed,1001\n"+
			"2024-03-01 12:00:01,persist_failed,1002\n"+
			"2024-03-01 12:00:02,export_failed,1001\n")

	syncer := &fakeSyncer{}
	svc := New(syncer, &fakeMaps{}, &fakeDirectory{}, logger.New("local"))

	stats, err := svc.RerunFromErrorCSV(context.Background(), path, sync.Options{Attachments: true})
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TicketsProcessed)
	assert.Equal(t, []int64{1001, 1002}, syncer.gotOpts.TicketIDs)
	assert.True(t, syncer.gotOpts.Attachments)
}

func TestRerunFromErrorCSVEmpty(t *testing.T) {
	path := writeFile(t, "ts_utc,type,ticket_id\n")

	syncer := &fakeSyncer{}
	svc := New(syncer, &fakeMaps{}, &fakeDirectory{}, logger.New("local"))

	stats, err := svc.RerunFromErrorCSV(context.Background(), path, sync.Options{})
	require.NoError(t, err)
	assert.Zero(t, stats.TicketsProcessed)
	assert.Zero(t, syncer.calls)
}

func TestApplyMappingCSV(t *testing.T) {
	path := writeFile(t,
		"fresh_value,octa_value\n"+
			"2,open\n"+
			"5,closed\n"+
			"6,\n")

	maps := &fakeMaps{data: map[string]map[string]string{
		"status_map": {"2": "open"},
	}}
	svc := New(&fakeSyncer{}, maps, &fakeDirectory{}, logger.New("local"))

	report, err := svc.ApplyMappingCSV(context.Background(), path, "status_map")
	require.NoError(t, err)

	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 1, report.Unchanged)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, "closed", maps.data["status_map"]["5"])
	assert.Equal(t, 1, maps.sets)
}

func TestApplyMappingCSVBadHeader(t *testing.T) {
	path := writeFile(t, "foo,bar\n1,2\n")

	svc := New(&fakeSyncer{}, &fakeMaps{}, &fakeDirectory{}, logger.New("local"))

	_, err := svc.ApplyMappingCSV(context.Background(), path, "status_map")
	assert.Error(t, err)
}

func TestApplyContactIDCSV(t *testing.T) {
	existing := "octa-org-old"
	matched := "octa-1"
	path := writeFile(t,
		"fresh_id,octa_contact_id,octa_org_id\n"+
			"55,octa-1,\n"+
			"56,octa-2,org-9\n"+
			"57,octa-3,\n"+
			"58,,\n")

	dir := &fakeDirectory{contacts: map[int64]*entity.ContactRow{
		55: {FreshID: 55, OctaContactID: &matched, OctaOrgID: &existing},
		56: {FreshID: 56},
	}}
	svc := New(&fakeSyncer{}, &fakeMaps{}, dir, logger.New("local"))

	report, err := svc.ApplyContactIDCSV(context.Background(), path)
	require.NoError(t, err)

	// 55 уже сверен, пустая колонка организации не стирает org id
	assert.Equal(t, 1, report.Unchanged)
	assert.Equal(t, "octa-org-old", *dir.contacts[55].OctaOrgID)

	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, "octa-2", *dir.contacts[56].OctaContactID)
	assert.Equal(t, "org-9", *dir.contacts[56].OctaOrgID)

	assert.Equal(t, 1, report.Missing)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, dir.sets)
}

func TestApplyCompanyIDCSV(t *testing.T) {
	current := "org-1"
	path := writeFile(t,
		"fresh_id,octa_org_id\n"+
			"7,org-1\n"+
			"8,org-2\n")

	dir := &fakeDirectory{companies: map[int64]*entity.CompanyRow{
		7: {FreshID: 7, OctaOrgID: &current},
		8: {FreshID: 8},
	}}
	svc := New(&fakeSyncer{}, &fakeMaps{}, dir, logger.New("local"))

	report, err := svc.ApplyCompanyIDCSV(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Unchanged)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, "org-2", *dir.companies[8].OctaOrgID)
}
