package sync

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/exp/slog"

	"freshsync/internal/domain/entity"
	"freshsync/internal/domain/ledger"
	"freshsync/internal/domain/resolver"
	"freshsync/internal/freshdesk"
)

// SourceAPI — операции исходного helpdesk, нужные синхронизации
type SourceAPI interface {
	EnumerateTicketIDs(ctx context.Context, opts freshdesk.ListOptions) ([]int64, error)
	Ticket(ctx context.Context, id int64) (*freshdesk.Ticket, error)
	Agent(ctx context.Context, id int64) (*freshdesk.Agent, error)
	Group(ctx context.Context, id int64) (*freshdesk.Group, error)
	Contact(ctx context.Context, id int64) (*freshdesk.Contact, error)
	Company(ctx context.Context, id int64) (*freshdesk.Company, error)
}

// Storage — запись нормализованных сущностей в staging-БД
type Storage interface {
	UpsertTickets(ctx context.Context, rows []entity.TicketRow) error
	UpsertMessage(ctx context.Context, row *entity.MessageRow) (int64, error)
	UpsertAttachments(ctx context.Context, rows []entity.AttachmentRow) error
	UpsertContact(ctx context.Context, row *entity.ContactRow) error
	UpsertCompany(ctx context.Context, row *entity.CompanyRow) error
	UpsertAgent(ctx context.Context, row *entity.AgentRow) error
	UpsertGroup(ctx context.Context, row *entity.GroupRow) error
	SetContactOctaIDs(ctx context.Context, freshID int64, octaContactID, octaOrgID string) error
	SetCompanyOctaID(ctx context.Context, freshID int64, octaOrgID string) error
}

// ContactResolver сверяет контакты и организации с целевой CRM
type ContactResolver interface {
	ResolveContact(ctx context.Context, email, cfValue string) (resolver.Match, error)
	ResolveOrganization(ctx context.Context, cfValue, name string) (string, error)
}

// AttachmentCollector скачивает и учитывает вложения тикета
type AttachmentCollector interface {
	CollectConversations(ctx context.Context, t *freshdesk.Ticket, msgIDs map[int64]int64) ([]entity.AttachmentRow, error)
	CollectTicketLevel(ctx context.Context, t *freshdesk.Ticket) ([]entity.AttachmentRow, error)
	CollectInline(ctx context.Context, t *freshdesk.Ticket) ([]entity.AttachmentRow, error)
}

// Markers — локальные отметки завершённости тикетов между прогонами
type Markers interface {
	IsDone(freshID int64) (bool, error)
	MarkDone(freshID int64) error
}

// Recorder фиксирует аномалии прогона
type Recorder interface {
	Add(kind string, ticketID int64, kv ...string)
}

// Options — параметры одного прогона синхронизации
type Options struct {
	TicketIDs   []int64
	PageSize    int
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	UpdatedFrom *time.Time
	UpdatedTo   *time.Time

	Attachments  bool
	InlineScrape bool
	BatchSize    int
}

// RunStats — итоги прогона
type RunStats struct {
	TicketsProcessed int
	TicketsFailed    int
	Messages         int
	Attachments      int
	ContactsMatched  int
	OrgsMatched      int
}

// Service — оркестратор синхронизации: перечисляет тикеты, тянет
// справочные сущности, нормализует и пишет всё в staging-БД.
// Сбой одного тикета попадает в журнал и не валит прогон.
type Service struct {
	source    SourceAPI
	storage   Storage
	resolver  ContactResolver
	collector AttachmentCollector
	markers   Markers
	rec       Recorder
	log       *slog.Logger

	contactCFKey string
	orgCFKey     string

	// Справочные сущности тянутся по ссылкам из тикетов; кеш помнит
	// уже сохранённые, чтобы не ходить в API повторно
	seenGroups    map[int64]struct{}
	seenAgents    map[int64]struct{}
	seenContacts  map[int64]*entity.ContactRow
	seenCompanies map[int64]*entity.CompanyRow
}

func New(source SourceAPI, storage Storage, res ContactResolver, collector AttachmentCollector,
	markers Markers, rec Recorder, contactCFKey, orgCFKey string, log *slog.Logger) *Service {
	return &Service{
		source:        source,
		storage:       storage,
		resolver:      res,
		collector:     collector,
		markers:       markers,
		rec:           rec,
		log:           log.With("component", "sync_service"),
		contactCFKey:  contactCFKey,
		orgCFKey:      orgCFKey,
		seenGroups:    map[int64]struct{}{},
		seenAgents:    map[int64]struct{}{},
		seenContacts:  map[int64]*entity.ContactRow{},
		seenCompanies: map[int64]*entity.CompanyRow{},
	}
}

// staged — тикет, ожидающий flush'а вместе с исходной карточкой
type staged struct {
	row    entity.TicketRow
	ticket *freshdesk.Ticket
}

// Run выполняет прогон. Возвращает статистику даже при частичных
// сбоях: фатальна только невозможность перечислить тикеты.
func (s *Service) Run(ctx context.Context, opts Options) (*RunStats, error) {
	ids, err := s.source.EnumerateTicketIDs(ctx, freshdesk.ListOptions{
		TicketIDs:   opts.TicketIDs,
		PageSize:    opts.PageSize,
		CreatedFrom: opts.CreatedFrom,
		CreatedTo:   opts.CreatedTo,
		UpdatedFrom: opts.UpdatedFrom,
		UpdatedTo:   opts.UpdatedTo,
	})
	if err != nil {
		return nil, fmt.Errorf("enumerate tickets: %w", err)
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 200
	}
	// Вложения пишутся сразу за тикетом, пачка теряет смысл
	if opts.Attachments {
		batchSize = 1
	}

	s.log.Info("starting sync run", "tickets", len(ids), "attachments", opts.Attachments)

	stats := &RunStats{}
	var batch []staged
	for _, id := range ids {
		t, err := s.source.Ticket(ctx, id)
		if err != nil {
			s.log.Error("failed to fetch ticket", "fresh_id", id, "error", err)
			s.rec.Add(ledger.KindTicketFetchFailed, id, "error", err.Error())
			stats.TicketsFailed++
			continue
		}

		s.collectReferences(ctx, t, stats)

		batch = append(batch, staged{row: entity.BuildTicketRow(t), ticket: t})
		if len(batch) >= batchSize {
			s.flush(ctx, batch, opts, stats)
			batch = batch[:0]
		}
	}
	s.flush(ctx, batch, opts, stats)

	s.log.Info("sync run finished",
		"processed", stats.TicketsProcessed, "failed", stats.TicketsFailed,
		"messages", stats.Messages, "attachments", stats.Attachments)
	return stats, nil
}

// collectReferences тянет и сохраняет группу, агента, контакта и его
// компанию, на которые ссылается тикет. Сбои справочников не мешают
// сохранить сам тикет.
func (s *Service) collectReferences(ctx context.Context, t *freshdesk.Ticket, stats *RunStats) {
	if t.GroupID != nil {
		s.ensureGroup(ctx, t.ID, *t.GroupID)
	}
	if t.ResponderID != nil {
		s.ensureAgent(ctx, t.ID, *t.ResponderID)
	}
	if t.RequesterID != nil {
		s.ensureContact(ctx, t.ID, *t.RequesterID, stats)
	}
}

func (s *Service) ensureGroup(ctx context.Context, ticketID, groupID int64) {
	if _, ok := s.seenGroups[groupID]; ok {
		return
	}
	g, err := s.source.Group(ctx, groupID)
	if err != nil {
		if !freshdesk.IsNotFound(err) {
			s.log.Warn("failed to fetch group", "group_id", groupID, "error", err)
		}
		s.rec.Add(ledger.KindGroupFetchFailed, ticketID, "group_id", fmt.Sprint(groupID))
		return
	}
	row := entity.BuildGroupRow(g)
	if err := s.storage.UpsertGroup(ctx, &row); err != nil {
		s.rec.Add(ledger.KindPersistFailed, ticketID, "entity", "group", "error", err.Error())
		return
	}
	s.seenGroups[groupID] = struct{}{}
}

func (s *Service) ensureAgent(ctx context.Context, ticketID, agentID int64) {
	if _, ok := s.seenAgents[agentID]; ok {
		return
	}
	a, err := s.source.Agent(ctx, agentID)
	if err != nil {
		if !freshdesk.IsNotFound(err) {
			s.log.Warn("failed to fetch agent", "agent_id", agentID, "error", err)
		}
		s.rec.Add(ledger.KindAgentFetchFailed, ticketID, "agent_id", fmt.Sprint(agentID))
		return
	}
	row := entity.BuildAgentRow(a)
	if err := s.storage.UpsertAgent(ctx, &row); err != nil {
		s.rec.Add(ledger.KindPersistFailed, ticketID, "entity", "agent", "error", err.Error())
		return
	}
	s.seenAgents[agentID] = struct{}{}
}

func (s *Service) ensureContact(ctx context.Context, ticketID, contactID int64, stats *RunStats) {
	if _, ok := s.seenContacts[contactID]; ok {
		return
	}
	c, err := s.source.Contact(ctx, contactID)
	if err != nil {
		if !freshdesk.IsNotFound(err) {
			s.log.Warn("failed to fetch contact", "contact_id", contactID, "error", err)
		}
		s.rec.Add(ledger.KindContactNotFound, ticketID, "contact_id", fmt.Sprint(contactID))
		return
	}

	if c.CompanyID != nil {
		s.ensureCompany(ctx, ticketID, *c.CompanyID, stats)
	}

	row := entity.BuildContactRow(c)
	if err := s.storage.UpsertContact(ctx, &row); err != nil {
		s.rec.Add(ledger.KindPersistFailed, ticketID, "entity", "contact", "error", err.Error())
		return
	}
	s.seenContacts[contactID] = &row

	s.matchContact(ctx, ticketID, c, &row, stats)
}

// matchContact сверяет контакт с CRM и записывает найденные id
func (s *Service) matchContact(ctx context.Context, ticketID int64, c *freshdesk.Contact, row *entity.ContactRow, stats *RunStats) {
	if s.resolver == nil {
		return
	}

	email := ""
	if c.Email != nil {
		email = *c.Email
	}
	cfValue, _ := entity.PickCustomField(c.CustomFields, s.contactCFKey)

	m, err := s.resolver.ResolveContact(ctx, email, cfValue)
	if err != nil {
		s.rec.Add(ledger.KindOctaLookupFailed, ticketID, "contact_id", fmt.Sprint(c.ID), "error", err.Error())
		return
	}
	if m.ContactID == "" {
		s.rec.Add(ledger.KindOctaContactNotFound, ticketID, "contact_fresh_id", fmt.Sprint(c.ID))
		return
	}

	if err := s.storage.SetContactOctaIDs(ctx, c.ID, m.ContactID, m.OrganizationID); err != nil {
		s.rec.Add(ledger.KindPersistFailed, ticketID, "entity", "contact", "error", err.Error())
		return
	}
	row.OctaContactID = &m.ContactID
	stats.ContactsMatched++
}

func (s *Service) ensureCompany(ctx context.Context, ticketID, companyID int64, stats *RunStats) {
	if _, ok := s.seenCompanies[companyID]; ok {
		return
	}
	c, err := s.source.Company(ctx, companyID)
	if err != nil {
		if !freshdesk.IsNotFound(err) {
			s.log.Warn("failed to fetch company", "company_id", companyID, "error", err)
		}
		s.rec.Add(ledger.KindCompanyFetchFailed, ticketID, "company_id", fmt.Sprint(companyID))
		return
	}

	row := entity.BuildCompanyRow(c)
	if err := s.storage.UpsertCompany(ctx, &row); err != nil {
		s.rec.Add(ledger.KindPersistFailed, ticketID, "entity", "company", "error", err.Error())
		return
	}
	s.seenCompanies[companyID] = &row

	s.matchCompany(ctx, ticketID, c, &row, stats)
}

// matchCompany сверяет организацию с CRM и записывает найденный id
func (s *Service) matchCompany(ctx context.Context, ticketID int64, c *freshdesk.Company, row *entity.CompanyRow, stats *RunStats) {
	if s.resolver == nil {
		return
	}

	cfValue, _ := entity.PickCustomField(c.CustomFields, s.orgCFKey)
	name := ""
	if c.Name != nil {
		name = *c.Name
	}

	orgID, err := s.resolver.ResolveOrganization(ctx, cfValue, name)
	if err != nil {
		s.rec.Add(ledger.KindOctaLookupFailed, ticketID, "company_id", fmt.Sprint(c.ID), "error", err.Error())
		return
	}
	if orgID == "" {
		s.rec.Add(ledger.KindOctaOrgNotFound, ticketID, "company_fresh_id", fmt.Sprint(c.ID))
		return
	}

	if err := s.storage.SetCompanyOctaID(ctx, c.ID, orgID); err != nil {
		s.rec.Add(ledger.KindPersistFailed, ticketID, "entity", "company", "error", err.Error())
		return
	}
	row.OctaOrgID = &orgID
	stats.OrgsMatched++
}

// flush пишет пачку тикетов, затем их сообщения и вложения.
// Сообщения идут после тикетов: на них смотрит внешний ключ.
func (s *Service) flush(ctx context.Context, batch []staged, opts Options, stats *RunStats) {
	if len(batch) == 0 {
		return
	}

	rows := make([]entity.TicketRow, len(batch))
	for i, st := range batch {
		rows[i] = st.row
	}
	if err := s.storage.UpsertTickets(ctx, rows); err != nil {
		s.log.Error("failed to persist ticket batch", "size", len(batch), "error", err)
		for _, st := range batch {
			s.rec.Add(ledger.KindPersistFailed, st.row.FreshID, "entity", "ticket", "error", err.Error())
		}
		stats.TicketsFailed += len(batch)
		return
	}

	for _, st := range batch {
		msgIDs, ok := s.persistMessages(ctx, st.ticket, stats)
		if ok && opts.Attachments {
			s.persistAttachments(ctx, st.ticket, msgIDs, opts, stats)
		}
		stats.TicketsProcessed++
	}
}

func (s *Service) persistMessages(ctx context.Context, t *freshdesk.Ticket, stats *RunStats) (map[int64]int64, bool) {
	msgIDs := make(map[int64]int64, len(t.Conversations))
	for _, row := range entity.BuildMessageRows(t) {
		id, err := s.storage.UpsertMessage(ctx, &row)
		if err != nil {
			s.rec.Add(ledger.KindPersistFailed, t.ID, "entity", "message", "error", err.Error())
			return msgIDs, false
		}
		msgIDs[row.FreshConvID] = id
		stats.Messages++
	}
	return msgIDs, true
}

func (s *Service) persistAttachments(ctx context.Context, t *freshdesk.Ticket, msgIDs map[int64]int64, opts Options, stats *RunStats) {
	if s.collector == nil || s.markers == nil {
		return
	}

	// Отметка завершённости защищает от повторного скачивания при
	// перезапуске; строки тикета и сообщений обновляются всегда
	done, err := s.markers.IsDone(t.ID)
	if err != nil {
		s.log.Warn("failed to check done marker", "fresh_id", t.ID, "error", err)
	}
	if done {
		return
	}

	var rows []entity.AttachmentRow

	convRows, err := s.collector.CollectConversations(ctx, t, msgIDs)
	if err != nil {
		s.rec.Add(ledger.KindPersistFailed, t.ID, "entity", "attachment", "error", err.Error())
		return
	}
	rows = append(rows, convRows...)

	ticketRows, err := s.collector.CollectTicketLevel(ctx, t)
	if err != nil {
		s.rec.Add(ledger.KindPersistFailed, t.ID, "entity", "attachment", "error", err.Error())
		return
	}
	rows = append(rows, ticketRows...)

	if opts.InlineScrape {
		inlineRows, err := s.collector.CollectInline(ctx, t)
		if err != nil {
			s.rec.Add(ledger.KindPersistFailed, t.ID, "entity", "attachment", "error", err.Error())
			return
		}
		rows = append(rows, inlineRows...)
	}

	if err := s.storage.UpsertAttachments(ctx, rows); err != nil {
		s.rec.Add(ledger.KindPersistFailed, t.ID, "entity", "attachment", "error", err.Error())
		return
	}
	stats.Attachments += len(rows)

	if err := s.markers.MarkDone(t.ID); err != nil {
		s.log.Warn("failed to set done marker", "fresh_id", t.ID, "error", err)
	}
}
