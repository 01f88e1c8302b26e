package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/exp/slog"

	"freshsync/internal/domain/entity"
)

type AttachmentRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewAttachmentRepository(pool *pgxpool.Pool, log *slog.Logger) *AttachmentRepository {
	return &AttachmentRepository{
		pool: pool,
		log:  log.With("component", "attachment_repository"),
	}
}

// UpsertBatch пишет учтённые вложения тикета. Ключ конфликта — пара
// (fresh_ticket_id, name): имена внутри тикета уникальны.
func (r *AttachmentRepository) UpsertBatch(ctx context.Context, rows []entity.AttachmentRow) error {
	if len(rows) == 0 {
		return nil
	}

	const query = `
		INSERT INTO attachments (fresh_ticket_id, message_id, name, content_type,
		                         size_bytes, source_url, stored_path, sha256, inline)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (fresh_ticket_id, name) DO UPDATE SET
			message_id = EXCLUDED.message_id,
			content_type = EXCLUDED.content_type,
			size_bytes = EXCLUDED.size_bytes,
			source_url = EXCLUDED.source_url,
			stored_path = EXCLUDED.stored_path,
			sha256 = EXCLUDED.sha256,
			inline = EXCLUDED.inline`

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, row := range rows {
		_, err = tx.Exec(ctx, query,
			row.FreshTicketID, row.MessageID, row.Name, row.ContentType,
			row.SizeBytes, row.SourceURL, row.StoredPath, row.SHA256, row.Inline,
		)
		if err != nil {
			r.log.Error("failed to upsert attachment",
				"fresh_ticket_id", row.FreshTicketID, "name", row.Name, "error", err)
			return fmt.Errorf("upsert attachment %q: %w", row.Name, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit attachments: %w", err)
	}
	return nil
}

func (r *AttachmentRepository) ListByTicket(ctx context.Context, freshTicketID int64) ([]entity.AttachmentRow, error) {
	const query = `
		SELECT fresh_ticket_id, message_id, name, content_type,
		       size_bytes, source_url, stored_path, sha256, inline
		FROM attachments
		WHERE fresh_ticket_id = $1
		ORDER BY name`

	rows, err := r.pool.Query(ctx, query, freshTicketID)
	if err != nil {
		r.log.Error("failed to list attachments", "fresh_ticket_id", freshTicketID, "error", err)
		return nil, fmt.Errorf("list attachments %d: %w", freshTicketID, err)
	}
	defer rows.Close()

	var out []entity.AttachmentRow
	for rows.Next() {
		var a entity.AttachmentRow
		err := rows.Scan(&a.FreshTicketID, &a.MessageID, &a.Name, &a.ContentType,
			&a.SizeBytes, &a.SourceURL, &a.StoredPath, &a.SHA256, &a.Inline)
		if err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
