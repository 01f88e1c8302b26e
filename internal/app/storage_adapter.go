package app

import (
	"context"

	"freshsync/internal/domain/entity"
	"freshsync/internal/infrastructure/storage/postgres"
)

// storageAdapter сводит репозитории staging-БД к интерфейсам сервисов
type storageAdapter struct {
	db *postgres.Storage
}

func (s *storageAdapter) UpsertTickets(ctx context.Context, rows []entity.TicketRow) error {
	return s.db.Tickets.UpsertBatch(ctx, rows)
}

func (s *storageAdapter) UpsertMessage(ctx context.Context, row *entity.MessageRow) (int64, error) {
	return s.db.Messages.Upsert(ctx, row)
}

func (s *storageAdapter) UpsertAttachments(ctx context.Context, rows []entity.AttachmentRow) error {
	return s.db.Attachments.UpsertBatch(ctx, rows)
}

func (s *storageAdapter) UpsertContact(ctx context.Context, row *entity.ContactRow) error {
	return s.db.Directory.UpsertContact(ctx, row)
}

func (s *storageAdapter) UpsertCompany(ctx context.Context, row *entity.CompanyRow) error {
	return s.db.Directory.UpsertCompany(ctx, row)
}

func (s *storageAdapter) UpsertAgent(ctx context.Context, row *entity.AgentRow) error {
	return s.db.Directory.UpsertAgent(ctx, row)
}

func (s *storageAdapter) UpsertGroup(ctx context.Context, row *entity.GroupRow) error {
	return s.db.Directory.UpsertGroup(ctx, row)
}

func (s *storageAdapter) SetContactOctaIDs(ctx context.Context, freshID int64, octaContactID, octaOrgID string) error {
	return s.db.Directory.SetContactOctaIDs(ctx, freshID, octaContactID, octaOrgID)
}

func (s *storageAdapter) SetCompanyOctaID(ctx context.Context, freshID int64, octaOrgID string) error {
	return s.db.Directory.SetCompanyOctaID(ctx, freshID, octaOrgID)
}

func (s *storageAdapter) ListPendingExport(ctx context.Context, limit int) ([]entity.TicketRow, error) {
	return s.db.Tickets.ListPendingExport(ctx, limit)
}

func (s *storageAdapter) ListStagedIDs(ctx context.Context) ([]int64, error) {
	return s.db.Tickets.ListStagedIDs(ctx)
}

func (s *storageAdapter) MessagesByTicket(ctx context.Context, freshTicketID int64) ([]entity.MessageRow, error) {
	return s.db.Messages.ListByTicket(ctx, freshTicketID)
}

func (s *storageAdapter) AttachmentsByTicket(ctx context.Context, freshTicketID int64) ([]entity.AttachmentRow, error) {
	return s.db.Attachments.ListByTicket(ctx, freshTicketID)
}

func (s *storageAdapter) ContactByFreshID(ctx context.Context, freshID int64) (*entity.ContactRow, error) {
	return s.db.Directory.ContactByFreshID(ctx, freshID)
}

func (s *storageAdapter) SetTicketOctaID(ctx context.Context, freshID int64, octaID string) error {
	return s.db.Tickets.SetOctaID(ctx, freshID, octaID)
}

func (s *storageAdapter) LoadMap(ctx context.Context, table string) (map[string]string, error) {
	return s.db.Maps.Load(ctx, table)
}
