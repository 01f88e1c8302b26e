package state

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store — локальные отметки завершённости тикетов. Живёт в SQLite
// рядом с бинарём: прерванный прогон продолжается с места остановки,
// не трогая staging-БД.
type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия базы состояния: %w", err)
	}

	store := &Store{db: db}
	if err := store.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка инициализации таблиц состояния: %w", err)
	}
	return store, nil
}

func (s *Store) initTables() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS done_tickets (
			fresh_id INTEGER PRIMARY KEY,
			done_at  TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS runs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at  TEXT NOT NULL,
			finished_at TEXT,
			processed   INTEGER NOT NULL DEFAULT 0,
			failed      INTEGER NOT NULL DEFAULT 0
		);
	`)
	return err
}

// IsDone проверяет, завершён ли тикет в одном из прошлых прогонов
func (s *Store) IsDone(freshID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRow(
		"SELECT EXISTS(SELECT 1 FROM done_tickets WHERE fresh_id = ?)", freshID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки отметки тикета %d: %w", freshID, err)
	}
	return exists, nil
}

// MarkDone ставит отметку завершённости; повторная отметка не ошибка
func (s *Store) MarkDone(freshID int64) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO done_tickets (fresh_id, done_at) VALUES (?, ?)",
		freshID, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("ошибка отметки тикета %d: %w", freshID, err)
	}
	return nil
}

// MarkAll ставит отметки пачке тикетов одной транзакцией
func (s *Store) MarkAll(freshIDs []int64) error {
	if len(freshIDs) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("ошибка открытия транзакции: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, id := range freshIDs {
		if _, err := tx.Exec(
			"INSERT OR REPLACE INTO done_tickets (fresh_id, done_at) VALUES (?, ?)", id, now,
		); err != nil {
			return fmt.Errorf("ошибка отметки тикета %d: %w", id, err)
		}
	}
	return tx.Commit()
}

// DoneIDs возвращает все отмеченные тикеты
func (s *Store) DoneIDs() (map[int64]struct{}, error) {
	rows, err := s.db.Query("SELECT fresh_id FROM done_tickets")
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения отметок: %w", err)
	}
	defer rows.Close()

	out := map[int64]struct{}{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ошибка сканирования отметки: %w", err)
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

// StartRun регистрирует начало прогона и возвращает его id
func (s *Store) StartRun() (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO runs (started_at) VALUES (?)",
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("ошибка регистрации прогона: %w", err)
	}
	return res.LastInsertId()
}

// FinishRun фиксирует итоги прогона
func (s *Store) FinishRun(runID int64, processed, failed int) error {
	_, err := s.db.Exec(
		"UPDATE runs SET finished_at = ?, processed = ?, failed = ? WHERE id = ?",
		time.Now().UTC().Format(time.RFC3339), processed, failed, runID,
	)
	if err != nil {
		return fmt.Errorf("ошибка фиксации прогона %d: %w", runID, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
