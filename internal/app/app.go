package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/exp/slog"

	"freshsync/internal/app/config"
	"freshsync/internal/app/export"
	"freshsync/internal/app/repair"
	syncapp "freshsync/internal/app/sync"
	"freshsync/internal/app/verify"
	"freshsync/internal/domain/attachment"
	"freshsync/internal/domain/ledger"
	"freshsync/internal/domain/resolver"
	"freshsync/internal/freshdesk"
	"freshsync/internal/infrastructure/migration"
	"freshsync/internal/infrastructure/storage/files"
	"freshsync/internal/infrastructure/storage/postgres"
	"freshsync/internal/infrastructure/storage/state"
	"freshsync/internal/octadesk"
)

// App собирает пайплайн целиком: клиенты, хранилища и сервисы.
// Сервис выгрузки появляется только при полных реквизитах CRM.
type App struct {
	Cfg    *config.Config
	Log    *slog.Logger
	Ledger *ledger.Ledger

	Source  *freshdesk.Client
	Octa    *octadesk.Client
	Storage *postgres.Storage
	Files   *files.Storage
	State   *state.Store

	Sync   *syncapp.Service
	Export *export.Service
	Verify *verify.Service
	Repair *repair.Service
}

func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	mg := migration.NewMigration(cfg, migration.DefaultEngine)
	db, err := postgres.New(ctx, cfg.DB.DatabaseURI, mg, log)
	if err != nil {
		return nil, fmt.Errorf("инициализация staging-БД: %w", err)
	}

	st, err := state.New(cfg.DB.StatePath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("инициализация базы состояния: %w", err)
	}

	led := ledger.New()
	source := freshdesk.NewClient(cfg.Freshdesk.Domain, cfg.Freshdesk.APIKey, cfg.Freshdesk.MaxRetries, log)
	fileStore := files.New(cfg.Attachments.DownloadDir)
	staging := &storageAdapter{db: db}

	var octa *octadesk.Client
	var res syncapp.ContactResolver
	if cfg.OctaLookupEnabled() {
		octa = octadesk.NewClient(
			cfg.Octadesk.BaseURL, cfg.Octadesk.APIKey, cfg.Octadesk.AgentEmail,
			time.Duration(cfg.Octadesk.TimeoutSeconds)*time.Second, log)
		res = resolver.New(octa, cfg.Octadesk.ContactCFKey, cfg.Octadesk.OrgCFKey, log)
	} else {
		log.Info("octadesk credentials incomplete, crm lookups disabled")
	}

	collector := attachment.NewCollector(source, fileStore, led, attachment.Policy{
		MaxBytes:        int64(cfg.Attachments.MaxAttachMB) * 1024 * 1024,
		MinBytes:        int64(cfg.Attachments.MinAttachKB) * 1024,
		SignatureBlock:  cfg.Attachments.SignatureBlock,
		InlineBlocklist: attachment.DefaultInlineBlocklist,
	}, log)

	syncSvc := syncapp.New(source, staging, res, collector, st, led,
		cfg.Octadesk.ContactCFKey, cfg.Octadesk.OrgCFKey, log)

	a := &App{
		Cfg:     cfg,
		Log:     log,
		Ledger:  led,
		Source:  source,
		Octa:    octa,
		Storage: db,
		Files:   fileStore,
		State:   st,
		Sync:    syncSvc,
		Verify:  verify.New(staging, fileStore, source, st, log),
		Repair:  repair.New(syncSvc, db.Maps, db.Directory, log),
	}
	if octa != nil {
		a.Export = export.New(staging, fileStore, octa, led, cfg.Octadesk.ChannelID, log)
	}
	return a, nil
}

type ctxKey struct{}

// NewContext кладёт собранное приложение в контекст команды
func NewContext(ctx context.Context, a *App) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// FromContext достаёт приложение из контекста; false, если его там нет
func FromContext(ctx context.Context) (*App, bool) {
	a, ok := ctx.Value(ctxKey{}).(*App)
	return a, ok
}

func (a *App) Close() {
	if a.State != nil {
		a.State.Close()
	}
	if a.Storage != nil {
		a.Storage.Close()
	}
}
