package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/exp/slog"
)

// Migrator приводит схему staging-БД к актуальной версии
type Migrator interface {
	Up() error
}

// Storage — staging-хранилище поверх Postgres. Схема накатывается
// при создании, репозитории разделяют общий пул.
type Storage struct {
	pool *pgxpool.Pool

	Tickets     *TicketRepository
	Messages    *MessageRepository
	Attachments *AttachmentRepository
	Directory   *DirectoryRepository
	Maps        *MapRepository
}

func New(ctx context.Context, databaseURI string, mg Migrator, log *slog.Logger) (*Storage, error) {
	if err := mg.Up(); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	pool, err := pgxpool.New(ctx, databaseURI)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	return &Storage{
		pool:        pool,
		Tickets:     NewTicketRepository(pool, log),
		Messages:    NewMessageRepository(pool, log),
		Attachments: NewAttachmentRepository(pool, log),
		Directory:   NewDirectoryRepository(pool, log),
		Maps:        NewMapRepository(pool, log),
	}, nil
}

func (s *Storage) Close() error {
	s.pool.Close()
	return nil
}

func (s *Storage) Pool() *pgxpool.Pool {
	return s.pool
}
