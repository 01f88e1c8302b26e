package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/exp/slog"
)

// Виды таблиц соответствий исходных кодов значениям CRM
const (
	MapStatus   = "status_map"
	MapPriority = "priority_map"
	MapType     = "type_map"
)

var mapTables = map[string]struct{}{
	MapStatus:   {},
	MapPriority: {},
	MapType:     {},
}

// MapRepository читает и правит таблицы соответствий status/priority/type.
// Базовый набор заливается миграцией, repair-команда докладывает свои строки.
type MapRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewMapRepository(pool *pgxpool.Pool, log *slog.Logger) *MapRepository {
	return &MapRepository{
		pool: pool,
		log:  log.With("component", "map_repository"),
	}
}

// Load читает таблицу соответствий целиком
func (r *MapRepository) Load(ctx context.Context, table string) (map[string]string, error) {
	if _, ok := mapTables[table]; !ok {
		return nil, fmt.Errorf("unknown map table %q", table)
	}

	rows, err := r.pool.Query(ctx, `SELECT fresh_value, octa_value FROM `+table)
	if err != nil {
		r.log.Error("failed to load value map", "table", table, "error", err)
		return nil, fmt.Errorf("load %s: %w", table, err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var fresh, octa string
		if err := rows.Scan(&fresh, &octa); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		out[fresh] = octa
	}
	return out, rows.Err()
}

// Set добавляет или заменяет одно соответствие
func (r *MapRepository) Set(ctx context.Context, table, freshValue, octaValue string) error {
	if _, ok := mapTables[table]; !ok {
		return fmt.Errorf("unknown map table %q", table)
	}

	query := `
		INSERT INTO ` + table + ` (fresh_value, octa_value)
		VALUES ($1, $2)
		ON CONFLICT (fresh_value) DO UPDATE SET octa_value = EXCLUDED.octa_value`

	_, err := r.pool.Exec(ctx, query, freshValue, octaValue)
	if err != nil {
		r.log.Error("failed to set value map", "table", table, "fresh_value", freshValue, "error", err)
		return fmt.Errorf("set %s: %w", table, err)
	}
	return nil
}
