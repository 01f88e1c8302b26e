package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/exp/slog"

	"freshsync/internal/domain/entity"
)

// DirectoryRepository хранит справочные сущности: контакты, компании,
// агентов и группы
type DirectoryRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewDirectoryRepository(pool *pgxpool.Pool, log *slog.Logger) *DirectoryRepository {
	return &DirectoryRepository{
		pool: pool,
		log:  log.With("component", "directory_repository"),
	}
}

func (r *DirectoryRepository) UpsertContact(ctx context.Context, row *entity.ContactRow) error {
	const query = `
		INSERT INTO contacts (fresh_id, email, name, fresh_company_id, raw_json)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (fresh_id) DO UPDATE SET
			email = EXCLUDED.email,
			name = EXCLUDED.name,
			fresh_company_id = EXCLUDED.fresh_company_id,
			raw_json = EXCLUDED.raw_json`

	_, err := r.pool.Exec(ctx, query,
		row.FreshID, row.Email, row.Name, row.CompanyFreshID, row.RawJSON)
	if err != nil {
		r.log.Error("failed to upsert contact", "fresh_id", row.FreshID, "error", err)
		return fmt.Errorf("upsert contact %d: %w", row.FreshID, err)
	}
	return nil
}

func (r *DirectoryRepository) UpsertCompany(ctx context.Context, row *entity.CompanyRow) error {
	const query = `
		INSERT INTO companies (fresh_id, name, domains, created_at, custom_fields, raw_json)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (fresh_id) DO UPDATE SET
			name = EXCLUDED.name,
			domains = EXCLUDED.domains,
			created_at = EXCLUDED.created_at,
			custom_fields = EXCLUDED.custom_fields,
			raw_json = EXCLUDED.raw_json`

	_, err := r.pool.Exec(ctx, query,
		row.FreshID, row.Name, row.Domains, row.CreatedAt, row.CustomFields, row.RawJSON)
	if err != nil {
		r.log.Error("failed to upsert company", "fresh_id", row.FreshID, "error", err)
		return fmt.Errorf("upsert company %d: %w", row.FreshID, err)
	}
	return nil
}

func (r *DirectoryRepository) UpsertAgent(ctx context.Context, row *entity.AgentRow) error {
	const query = `
		INSERT INTO agents (fresh_id, email, name, raw_json)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (fresh_id) DO UPDATE SET
			email = EXCLUDED.email,
			name = EXCLUDED.name,
			raw_json = EXCLUDED.raw_json`

	_, err := r.pool.Exec(ctx, query, row.FreshID, row.Email, row.Name, row.RawJSON)
	if err != nil {
		r.log.Error("failed to upsert agent", "fresh_id", row.FreshID, "error", err)
		return fmt.Errorf("upsert agent %d: %w", row.FreshID, err)
	}
	return nil
}

func (r *DirectoryRepository) UpsertGroup(ctx context.Context, row *entity.GroupRow) error {
	const query = `
		INSERT INTO b_groups (fresh_id, name, raw_json)
		VALUES ($1, $2, $3)
		ON CONFLICT (fresh_id) DO UPDATE SET
			name = EXCLUDED.name,
			raw_json = EXCLUDED.raw_json`

	_, err := r.pool.Exec(ctx, query, row.FreshID, row.Name, row.RawJSON)
	if err != nil {
		r.log.Error("failed to upsert group", "fresh_id", row.FreshID, "error", err)
		return fmt.Errorf("upsert group %d: %w", row.FreshID, err)
	}
	return nil
}

// SetContactOctaIDs записывает результат сверки контакта с CRM
func (r *DirectoryRepository) SetContactOctaIDs(ctx context.Context, freshID int64, octaContactID, octaOrgID string) error {
	const query = `
		UPDATE contacts
		SET octa_contact_id = NULLIF($1, ''), octa_org_id = NULLIF($2, '')
		WHERE fresh_id = $3`

	_, err := r.pool.Exec(ctx, query, octaContactID, octaOrgID, freshID)
	if err != nil {
		r.log.Error("failed to set contact octa ids", "fresh_id", freshID, "error", err)
		return fmt.Errorf("set contact octa ids %d: %w", freshID, err)
	}
	return nil
}

// SetCompanyOctaID записывает результат сверки организации с CRM
func (r *DirectoryRepository) SetCompanyOctaID(ctx context.Context, freshID int64, octaOrgID string) error {
	const query = `UPDATE companies SET octa_org_id = NULLIF($1, '') WHERE fresh_id = $2`

	_, err := r.pool.Exec(ctx, query, octaOrgID, freshID)
	if err != nil {
		r.log.Error("failed to set company octa id", "fresh_id", freshID, "error", err)
		return fmt.Errorf("set company octa id %d: %w", freshID, err)
	}
	return nil
}

func (r *DirectoryRepository) ContactByFreshID(ctx context.Context, freshID int64) (*entity.ContactRow, error) {
	const query = `
		SELECT fresh_id, email, name, fresh_company_id, raw_json, octa_contact_id, octa_org_id
		FROM contacts WHERE fresh_id = $1`

	var c entity.ContactRow
	err := r.pool.QueryRow(ctx, query, freshID).Scan(
		&c.FreshID, &c.Email, &c.Name, &c.CompanyFreshID, &c.RawJSON,
		&c.OctaContactID, &c.OctaOrgID)
	if err != nil {
		return nil, fmt.Errorf("get contact %d: %w", freshID, err)
	}
	return &c, nil
}

func (r *DirectoryRepository) CompanyByFreshID(ctx context.Context, freshID int64) (*entity.CompanyRow, error) {
	const query = `
		SELECT fresh_id, name, domains, created_at, custom_fields, raw_json, octa_org_id
		FROM companies WHERE fresh_id = $1`

	var c entity.CompanyRow
	err := r.pool.QueryRow(ctx, query, freshID).Scan(
		&c.FreshID, &c.Name, &c.Domains, &c.CreatedAt, &c.CustomFields,
		&c.RawJSON, &c.OctaOrgID)
	if err != nil {
		return nil, fmt.Errorf("get company %d: %w", freshID, err)
	}
	return &c, nil
}

// AgentNames возвращает справочник имён агентов по fresh id
func (r *DirectoryRepository) AgentNames(ctx context.Context) (map[int64]string, error) {
	return r.nameMap(ctx, `SELECT fresh_id, name FROM agents WHERE name IS NOT NULL`)
}

// GroupNames возвращает справочник имён групп по fresh id
func (r *DirectoryRepository) GroupNames(ctx context.Context) (map[int64]string, error) {
	return r.nameMap(ctx, `SELECT fresh_id, name FROM b_groups WHERE name IS NOT NULL`)
}

func (r *DirectoryRepository) nameMap(ctx context.Context, query string) (map[int64]string, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load name map: %w", err)
	}
	defer rows.Close()

	out := map[int64]string{}
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan name: %w", err)
		}
		out[id] = name
	}
	return out, rows.Err()
}
