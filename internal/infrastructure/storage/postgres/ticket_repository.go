package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/exp/slog"

	"freshsync/internal/domain/entity"
)

type TicketRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewTicketRepository(pool *pgxpool.Pool, log *slog.Logger) *TicketRepository {
	return &TicketRepository{
		pool: pool,
		log:  log.With("component", "ticket_repository"),
	}
}

const upsertTicketQuery = `
	INSERT INTO tickets (fresh_id, subject, description, status, priority, type, source,
	                     fresh_group_id, fresh_requester_id, fresh_responder_id, is_escalated,
	                     created_at, updated_at, due_by, fr_due_by,
	                     tags, cc_emails, custom_fields, raw_json)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	ON CONFLICT (fresh_id) DO UPDATE SET
		subject = EXCLUDED.subject,
		description = EXCLUDED.description,
		status = EXCLUDED.status,
		priority = EXCLUDED.priority,
		type = EXCLUDED.type,
		source = EXCLUDED.source,
		fresh_group_id = EXCLUDED.fresh_group_id,
		fresh_requester_id = EXCLUDED.fresh_requester_id,
		fresh_responder_id = EXCLUDED.fresh_responder_id,
		is_escalated = EXCLUDED.is_escalated,
		created_at = EXCLUDED.created_at,
		updated_at = EXCLUDED.updated_at,
		due_by = EXCLUDED.due_by,
		fr_due_by = EXCLUDED.fr_due_by,
		tags = EXCLUDED.tags,
		cc_emails = EXCLUDED.cc_emails,
		custom_fields = EXCLUDED.custom_fields,
		raw_json = EXCLUDED.raw_json`

// UpsertBatch пишет пачку тикетов одной транзакцией: либо вся пачка,
// либо ничего
func (r *TicketRepository) UpsertBatch(ctx context.Context, rows []entity.TicketRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, row := range rows {
		_, err = tx.Exec(ctx, upsertTicketQuery,
			row.FreshID, row.Subject, row.Description, row.Status, row.Priority,
			row.Type, row.Source, row.GroupFreshID, row.RequesterFreshID,
			row.ResponderFreshID, row.IsEscalated,
			row.CreatedAt, row.UpdatedAt, row.DueBy, row.FrDueBy,
			row.Tags, row.CCEmails, row.CustomFields, row.RawJSON,
		)
		if err != nil {
			r.log.Error("failed to upsert ticket", "fresh_id", row.FreshID, "error", err)
			return fmt.Errorf("upsert ticket %d: %w", row.FreshID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tickets: %w", err)
	}
	return nil
}

// SetOctaID отмечает тикет выгруженным в CRM
func (r *TicketRepository) SetOctaID(ctx context.Context, freshID int64, octaID string) error {
	const query = `UPDATE tickets SET octa_ticket_id = $1 WHERE fresh_id = $2`

	result, err := r.pool.Exec(ctx, query, octaID, freshID)
	if err != nil {
		r.log.Error("failed to set octa ticket id", "fresh_id", freshID, "error", err)
		return fmt.Errorf("set octa ticket id %d: %w", freshID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("set octa ticket id %d: ticket not staged", freshID)
	}
	return nil
}

const selectTicketColumns = `
	SELECT fresh_id, subject, description, status, priority, type, source,
	       fresh_group_id, fresh_requester_id, fresh_responder_id, is_escalated,
	       created_at, updated_at, due_by, fr_due_by,
	       tags, cc_emails, custom_fields, raw_json, octa_ticket_id
	FROM tickets`

func (r *TicketRepository) GetByFreshID(ctx context.Context, freshID int64) (*entity.TicketRow, error) {
	row := r.pool.QueryRow(ctx, selectTicketColumns+` WHERE fresh_id = $1`, freshID)
	t, err := scanTicket(row)
	if err != nil {
		return nil, fmt.Errorf("get ticket %d: %w", freshID, err)
	}
	return t, nil
}

// ListPendingExport возвращает тикеты, ещё не выгруженные в CRM
func (r *TicketRepository) ListPendingExport(ctx context.Context, limit int) ([]entity.TicketRow, error) {
	query := selectTicketColumns + ` WHERE octa_ticket_id IS NULL ORDER BY fresh_id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("failed to list pending tickets", "error", err)
		return nil, fmt.Errorf("list pending tickets: %w", err)
	}
	defer rows.Close()

	var out []entity.TicketRow
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// ListStagedIDs возвращает fresh id всех тикетов в staging-БД
func (r *TicketRepository) ListStagedIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT fresh_id FROM tickets ORDER BY fresh_id`)
	if err != nil {
		return nil, fmt.Errorf("list staged ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan staged id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanTicket(row pgx.Row) (*entity.TicketRow, error) {
	var t entity.TicketRow
	err := row.Scan(
		&t.FreshID, &t.Subject, &t.Description, &t.Status, &t.Priority,
		&t.Type, &t.Source, &t.GroupFreshID, &t.RequesterFreshID,
		&t.ResponderFreshID, &t.IsEscalated,
		&t.CreatedAt, &t.UpdatedAt, &t.DueBy, &t.FrDueBy,
		&t.Tags, &t.CCEmails, &t.CustomFields, &t.RawJSON, &t.OctaTicketID,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
