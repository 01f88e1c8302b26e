package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freshsync/internal/domain/entity"
	"freshsync/internal/domain/ledger"
	"freshsync/internal/domain/resolver"
	"freshsync/internal/freshdesk"
	"freshsync/internal/utils/logger"
)

func strp(s string) *string { return &s }
func i64p(n int64) *int64   { return &n }

type fakeSource struct {
	tickets   map[int64]*freshdesk.Ticket
	agents    map[int64]*freshdesk.Agent
	groups    map[int64]*freshdesk.Group
	contacts  map[int64]*freshdesk.Contact
	companies map[int64]*freshdesk.Company

	ticketCalls  []int64
	contactCalls int
	groupCalls   int
}

func (f *fakeSource) EnumerateTicketIDs(_ context.Context, opts freshdesk.ListOptions) ([]int64, error) {
	return opts.TicketIDs, nil
}

func (f *fakeSource) Ticket(_ context.Context, id int64) (*freshdesk.Ticket, error) {
	f.ticketCalls = append(f.ticketCalls, id)
	t, ok := f.tickets[id]
	if !ok {
		return nil, &freshdesk.HTTPError{StatusCode: 404}
	}
	return t, nil
}

func (f *fakeSource) Agent(_ context.Context, id int64) (*freshdesk.Agent, error) {
	if a, ok := f.agents[id]; ok {
		return a, nil
	}
	return nil, &freshdesk.HTTPError{StatusCode: 404}
}

func (f *fakeSource) Group(_ context.Context, id int64) (*freshdesk.Group, error) {
	f.groupCalls++
	if g, ok := f.groups[id]; ok {
		return g, nil
	}
	return nil, &freshdesk.HTTPError{StatusCode: 404}
}

func (f *fakeSource) Contact(_ context.Context, id int64) (*freshdesk.Contact, error) {
	f.contactCalls++
	if c, ok := f.contacts[id]; ok {
		return c, nil
	}
	return nil, &freshdesk.HTTPError{StatusCode: 404}
}

func (f *fakeSource) Company(_ context.Context, id int64) (*freshdesk.Company, error) {
	if c, ok := f.companies[id]; ok {
		return c, nil
	}
	return nil, &freshdesk.HTTPError{StatusCode: 404}
}

type fakeStorage struct {
	ticketBatches [][]entity.TicketRow
	messages      []entity.MessageRow
	attachments   []entity.AttachmentRow
	contacts      []entity.ContactRow
	companies     []entity.CompanyRow
	agents        []entity.AgentRow
	groups        []entity.GroupRow

	contactOctaIDs map[int64]string
	companyOctaIDs map[int64]string

	ticketErr error
	nextMsgID int64
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		contactOctaIDs: map[int64]string{},
		companyOctaIDs: map[int64]string{},
	}
}

func (f *fakeStorage) UpsertTickets(_ context.Context, rows []entity.TicketRow) error {
	if f.ticketErr != nil {
		return f.ticketErr
	}
	batch := make([]entity.TicketRow, len(rows))
	copy(batch, rows)
	f.ticketBatches = append(f.ticketBatches, batch)
	return nil
}

func (f *fakeStorage) UpsertMessage(_ context.Context, row *entity.MessageRow) (int64, error) {
	f.nextMsgID++
	row.ID = f.nextMsgID
	f.messages = append(f.messages, *row)
	return row.ID, nil
}

func (f *fakeStorage) UpsertAttachments(_ context.Context, rows []entity.AttachmentRow) error {
	f.attachments = append(f.attachments, rows...)
	return nil
}

func (f *fakeStorage) UpsertContact(_ context.Context, row *entity.ContactRow) error {
	f.contacts = append(f.contacts, *row)
	return nil
}

func (f *fakeStorage) UpsertCompany(_ context.Context, row *entity.CompanyRow) error {
	f.companies = append(f.companies, *row)
	return nil
}

func (f *fakeStorage) UpsertAgent(_ context.Context, row *entity.AgentRow) error {
	f.agents = append(f.agents, *row)
	return nil
}

func (f *fakeStorage) UpsertGroup(_ context.Context, row *entity.GroupRow) error {
	f.groups = append(f.groups, *row)
	return nil
}

func (f *fakeStorage) SetContactOctaIDs(_ context.Context, freshID int64, contactID, orgID string) error {
	f.contactOctaIDs[freshID] = contactID
	return nil
}

func (f *fakeStorage) SetCompanyOctaID(_ context.Context, freshID int64, orgID string) error {
	f.companyOctaIDs[freshID] = orgID
	return nil
}

type fakeResolver struct {
	contacts map[string]resolver.Match
	orgs     map[string]string
}

func (f *fakeResolver) ResolveContact(_ context.Context, email, cfValue string) (resolver.Match, error) {
	if m, ok := f.contacts[email]; ok {
		return m, nil
	}
	return resolver.Match{}, nil
}

func (f *fakeResolver) ResolveOrganization(_ context.Context, cfValue, name string) (string, error) {
	return f.orgs[cfValue], nil
}

type fakeCollector struct {
	convRows   []entity.AttachmentRow
	ticketRows []entity.AttachmentRow
	inlineRows []entity.AttachmentRow

	inlineCalls int
	gotMsgIDs   map[int64]int64
}

func (f *fakeCollector) CollectConversations(_ context.Context, t *freshdesk.Ticket, msgIDs map[int64]int64) ([]entity.AttachmentRow, error) {
	f.gotMsgIDs = msgIDs
	return f.convRows, nil
}

func (f *fakeCollector) CollectTicketLevel(_ context.Context, t *freshdesk.Ticket) ([]entity.AttachmentRow, error) {
	return f.ticketRows, nil
}

func (f *fakeCollector) CollectInline(_ context.Context, t *freshdesk.Ticket) ([]entity.AttachmentRow, error) {
	f.inlineCalls++
	return f.inlineRows, nil
}

type fakeMarkers struct {
	done map[int64]bool
}

func newFakeMarkers() *fakeMarkers { return &fakeMarkers{done: map[int64]bool{}} }

func (f *fakeMarkers) IsDone(id int64) (bool, error) { return f.done[id], nil }
func (f *fakeMarkers) MarkDone(id int64) error       { f.done[id] = true; return nil }

func baseTicket(id int64) *freshdesk.Ticket {
	return &freshdesk.Ticket{
		ID:          id,
		Subject:     strp("Problema"),
		RequesterID: i64p(55),
		ResponderID: i64p(7),
		GroupID:     i64p(3),
		Conversations: []freshdesk.Conversation{
			{ID: id * 10, Body: "<p>oi</p>"},
		},
	}
}

func fullSource() *fakeSource {
	return &fakeSource{
		tickets: map[int64]*freshdesk.Ticket{
			1: baseTicket(1),
			2: baseTicket(2),
		},
		agents: map[int64]*freshdesk.Agent{7: {ID: 7, Name: strp("Carla")}},
		groups: map[int64]*freshdesk.Group{3: {ID: 3, Name: strp("Suporte")}},
		contacts: map[int64]*freshdesk.Contact{
			55: {ID: 55, Email: strp("joao@cliente.com"), CompanyID: i64p(900)},
		},
		companies: map[int64]*freshdesk.Company{
			900: {ID: 900, Name: strp("Acme LTDA"), CustomFields: map[string]any{"codigo": "C-9"}},
		},
	}
}

func TestRunPersistsEntitiesInOrder(t *testing.T) {
	source := fullSource()
	storage := newFakeStorage()
	rec := ledger.New()

	svc := New(source, storage, nil, nil, newFakeMarkers(), rec, "codigo", "codigo", logger.New("local"))

	stats, err := svc.Run(context.Background(), Options{TicketIDs: []int64{1, 2}})
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TicketsProcessed)
	assert.Zero(t, stats.TicketsFailed)
	assert.Equal(t, 2, stats.Messages)

	require.Len(t, storage.groups, 1)
	require.Len(t, storage.agents, 1)
	require.Len(t, storage.contacts, 1)
	require.Len(t, storage.companies, 1)
	require.Len(t, storage.ticketBatches, 1)
	assert.Len(t, storage.ticketBatches[0], 2)
	assert.Len(t, storage.messages, 2)

	// Справочники берутся из кеша, по одному запросу на сущность
	assert.Equal(t, 1, source.contactCalls)
	assert.Equal(t, 1, source.groupCalls)
}

func TestRunContinuesAfterTicketFetchFailure(t *testing.T) {
	source := fullSource()
	delete(source.tickets, 1)
	storage := newFakeStorage()
	rec := ledger.New()

	svc := New(source, storage, nil, nil, newFakeMarkers(), rec, "codigo", "codigo", logger.New("local"))

	stats, err := svc.Run(context.Background(), Options{TicketIDs: []int64{1, 2}})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.TicketsProcessed)
	assert.Equal(t, 1, stats.TicketsFailed)

	require.Equal(t, 1, rec.Len())
	assert.Equal(t, ledger.KindTicketFetchFailed, rec.Entries()[0].Kind)
	assert.Equal(t, int64(1), rec.Entries()[0].TicketID)
}

func TestRunBatchFlushThreshold(t *testing.T) {
	source := &fakeSource{tickets: map[int64]*freshdesk.Ticket{}}
	var ids []int64
	for i := int64(1); i <= 5; i++ {
		source.tickets[i] = &freshdesk.Ticket{ID: i}
		ids = append(ids, i)
	}
	storage := newFakeStorage()
	rec := ledger.New()

	svc := New(source, storage, nil, nil, newFakeMarkers(), rec, "", "", logger.New("local"))

	_, err := svc.Run(context.Background(), Options{TicketIDs: ids, BatchSize: 2})
	require.NoError(t, err)

	// 5 тикетов при пачке 2: два полных flush'а и хвост
	require.Len(t, storage.ticketBatches, 3)
	assert.Len(t, storage.ticketBatches[0], 2)
	assert.Len(t, storage.ticketBatches[2], 1)
}

func TestRunPersistFailureRecorded(t *testing.T) {
	source := &fakeSource{tickets: map[int64]*freshdesk.Ticket{1: {ID: 1}}}
	storage := newFakeStorage()
	storage.ticketErr = errors.New("db down")
	rec := ledger.New()

	svc := New(source, storage, nil, nil, newFakeMarkers(), rec, "", "", logger.New("local"))

	stats, err := svc.Run(context.Background(), Options{TicketIDs: []int64{1}})
	require.NoError(t, err)

	assert.Zero(t, stats.TicketsProcessed)
	assert.Equal(t, 1, stats.TicketsFailed)
	require.Equal(t, 1, rec.Len())
	assert.Equal(t, ledger.KindPersistFailed, rec.Entries()[0].Kind)
}

func TestRunResolvesContactsAndOrgs(t *testing.T) {
	source := fullSource()
	storage := newFakeStorage()
	rec := ledger.New()
	res := &fakeResolver{
		contacts: map[string]resolver.Match{
			"joao@cliente.com": {ContactID: "p-1", OrganizationID: "o-9"},
		},
		orgs: map[string]string{"C-9": "o-9"},
	}

	svc := New(source, storage, res, nil, newFakeMarkers(), rec, "codigo", "codigo", logger.New("local"))

	stats, err := svc.Run(context.Background(), Options{TicketIDs: []int64{1}})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.ContactsMatched)
	assert.Equal(t, 1, stats.OrgsMatched)
	assert.Equal(t, "p-1", storage.contactOctaIDs[55])
	assert.Equal(t, "o-9", storage.companyOctaIDs[900])
	assert.Zero(t, rec.Len())
}

func TestRunAttachmentsFlushImmediatelyAndMark(t *testing.T) {
	source := fullSource()
	storage := newFakeStorage()
	rec := ledger.New()
	markers := newFakeMarkers()
	collector := &fakeCollector{
		convRows:   []entity.AttachmentRow{{FreshTicketID: 1, Name: "nota.pdf"}},
		inlineRows: []entity.AttachmentRow{{FreshTicketID: 1, Name: "inline_001_print.png", Inline: true}},
	}

	svc := New(source, storage, nil, collector, markers, rec, "", "", logger.New("local"))

	stats, err := svc.Run(context.Background(), Options{
		TicketIDs:    []int64{1, 2},
		Attachments:  true,
		InlineScrape: true,
	})
	require.NoError(t, err)

	// С вложениями каждый тикет уходит отдельной пачкой
	assert.Len(t, storage.ticketBatches, 2)
	assert.True(t, markers.done[1])
	assert.True(t, markers.done[2])
	assert.Equal(t, 4, stats.Attachments)
	assert.Equal(t, 2, collector.inlineCalls)

	// Карта conv -> staging id сообщений доходит до коллектора
	assert.NotEmpty(t, collector.gotMsgIDs)
}

func TestRunSkipsAttachmentsForDoneTickets(t *testing.T) {
	source := fullSource()
	storage := newFakeStorage()
	rec := ledger.New()
	markers := newFakeMarkers()
	markers.done[1] = true
	collector := &fakeCollector{
		convRows: []entity.AttachmentRow{{FreshTicketID: 1, Name: "nota.pdf"}},
	}

	svc := New(source, storage, nil, collector, markers, rec, "", "", logger.New("local"))

	stats, err := svc.Run(context.Background(), Options{TicketIDs: []int64{1}, Attachments: true})
	require.NoError(t, err)

	// Данные тикета обновились, вложения не скачивались повторно
	assert.Equal(t, 1, stats.TicketsProcessed)
	assert.Zero(t, stats.Attachments)
	assert.Empty(t, storage.attachments)
}
