package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/exp/slog"

	"freshsync/internal/domain/entity"
)

type MessageRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewMessageRepository(pool *pgxpool.Pool, log *slog.Logger) *MessageRepository {
	return &MessageRepository{
		pool: pool,
		log:  log.With("component", "message_repository"),
	}
}

// Upsert пишет сообщение и возвращает его staging-id. Повторный прогон
// того же тикета обновляет строку по fresh_conv_id, id стабилен.
func (r *MessageRepository) Upsert(ctx context.Context, row *entity.MessageRow) (int64, error) {
	const query = `
		INSERT INTO messages (fresh_conv_id, fresh_ticket_id, body, from_email, from_name,
		                      private, created_at, raw_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (fresh_conv_id) DO UPDATE SET
			body = EXCLUDED.body,
			from_email = EXCLUDED.from_email,
			from_name = EXCLUDED.from_name,
			private = EXCLUDED.private,
			created_at = EXCLUDED.created_at,
			raw_json = EXCLUDED.raw_json
		RETURNING id`

	err := r.pool.QueryRow(ctx, query,
		row.FreshConvID, row.FreshTicketID, row.Body, row.FromEmail, row.FromName,
		row.Private, row.CreatedAt, row.RawJSON,
	).Scan(&row.ID)
	if err != nil {
		r.log.Error("failed to upsert message",
			"fresh_conv_id", row.FreshConvID, "fresh_ticket_id", row.FreshTicketID, "error", err)
		return 0, fmt.Errorf("upsert message %d: %w", row.FreshConvID, err)
	}
	return row.ID, nil
}

// ListByTicket возвращает сообщения тикета в порядке создания
func (r *MessageRepository) ListByTicket(ctx context.Context, freshTicketID int64) ([]entity.MessageRow, error) {
	const query = `
		SELECT id, fresh_conv_id, fresh_ticket_id, body, from_email, from_name,
		       private, created_at, raw_json
		FROM messages
		WHERE fresh_ticket_id = $1
		ORDER BY created_at NULLS LAST, id`

	rows, err := r.pool.Query(ctx, query, freshTicketID)
	if err != nil {
		r.log.Error("failed to list messages", "fresh_ticket_id", freshTicketID, "error", err)
		return nil, fmt.Errorf("list messages %d: %w", freshTicketID, err)
	}
	defer rows.Close()

	var out []entity.MessageRow
	for rows.Next() {
		var m entity.MessageRow
		err := rows.Scan(&m.ID, &m.FreshConvID, &m.FreshTicketID, &m.Body,
			&m.FromEmail, &m.FromName, &m.Private, &m.CreatedAt, &m.RawJSON)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
