package files

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Storage раскладывает скачанные вложения по папкам тикетов:
// <root>/<fresh_id>/<имя файла>. Папка old/ собирает осиротевшие
// каталоги после сверки с staging-БД.
type Storage struct {
	root string
}

func New(root string) *Storage {
	return &Storage{root: root}
}

func (s *Storage) Root() string { return s.root }

// TicketDir — путь к папке тикета
func (s *Storage) TicketDir(ticketID int64) string {
	return filepath.Join(s.root, strconv.FormatInt(ticketID, 10))
}

// Save записывает файл в папку тикета и возвращает итоговый путь
func (s *Storage) Save(ticketID int64, name string, data []byte) (string, error) {
	dir := s.TicketDir(ticketID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("создание папки тикета %d: %w", ticketID, err)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("запись файла %q: %w", name, err)
	}
	return path, nil
}

// Exists проверяет наличие файла в папке тикета
func (s *Storage) Exists(ticketID int64, name string) bool {
	_, err := os.Stat(filepath.Join(s.TicketDir(ticketID), name))
	return err == nil
}

// ListTicketDirs возвращает fresh id всех папок тикетов в корне.
// Папки с нечисловыми именами (включая old/) пропускаются.
func (s *Storage) ListTicketDirs() ([]int64, error) {
	entries, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("чтение корня вложений: %w", err)
	}

	var ids []int64
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, err := strconv.ParseInt(e.Name(), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ListFiles возвращает имена файлов в папке тикета
func (s *Storage) ListFiles(ticketID int64) ([]string, error) {
	entries, err := os.ReadDir(s.TicketDir(ticketID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("чтение папки тикета %d: %w", ticketID, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Read возвращает содержимое файла из папки тикета
func (s *Storage) Read(ticketID int64, name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.TicketDir(ticketID), name))
	if err != nil {
		return nil, fmt.Errorf("чтение файла %q тикета %d: %w", name, ticketID, err)
	}
	return data, nil
}

// MoveToOld убирает папку тикета в <root>/old/<fresh_id>
func (s *Storage) MoveToOld(ticketID int64) error {
	oldDir := filepath.Join(s.root, "old")
	if err := os.MkdirAll(oldDir, 0o755); err != nil {
		return fmt.Errorf("создание папки old: %w", err)
	}

	src := s.TicketDir(ticketID)
	dst := filepath.Join(oldDir, strconv.FormatInt(ticketID, 10))
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("перенос папки тикета %d: %w", ticketID, err)
	}
	return nil
}
