package repair

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/exp/slog"

	"freshsync/internal/app/sync"
	"freshsync/internal/domain/entity"
	"freshsync/internal/domain/ledger"
)

// Syncer перегоняет конкретные тикеты через обычный пайплайн
type Syncer interface {
	Run(ctx context.Context, opts sync.Options) (*sync.RunStats, error)
}

// Maps — чтение и правка таблиц соответствий
type Maps interface {
	Load(ctx context.Context, table string) (map[string]string, error)
	Set(ctx context.Context, table, freshValue, octaValue string) error
}

// Directory — чтение и правка сверенных с CRM id контактов и компаний
type Directory interface {
	ContactByFreshID(ctx context.Context, freshID int64) (*entity.ContactRow, error)
	CompanyByFreshID(ctx context.Context, freshID int64) (*entity.CompanyRow, error)
	SetContactOctaIDs(ctx context.Context, freshID int64, octaContactID, octaOrgID string) error
	SetCompanyOctaID(ctx context.Context, freshID int64, octaOrgID string) error
}

// MappingReport — итоги применения CSV с соответствиями
type MappingReport struct {
	Updated   int
	Unchanged int
	Missing   int
	Skipped   int
}

// Service чинит последствия прошлых прогонов: перегоняет тикеты из
// журнала аномалий и докладывает ручные соответствия в таблицы.
type Service struct {
	syncer Syncer
	maps   Maps
	dir    Directory
	log    *slog.Logger
}

func New(syncer Syncer, maps Maps, dir Directory, log *slog.Logger) *Service {
	return &Service{
		syncer: syncer,
		maps:   maps,
		dir:    dir,
		log:    log.With("component", "repair_service"),
	}
}

// RerunFromErrorCSV читает журнал аномалий прошлого прогона и повторно
// синхронизирует упомянутые в нём тикеты
func (s *Service) RerunFromErrorCSV(ctx context.Context, path string, opts sync.Options) (*sync.RunStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("открытие журнала аномалий: %w", err)
	}
	defer f.Close()

	data, err := ledger.ParseErrorCSV(f)
	if err != nil {
		return nil, fmt.Errorf("разбор журнала аномалий: %w", err)
	}
	if len(data.TicketIDs) == 0 {
		s.log.Info("error csv has no tickets to rerun", "path", path)
		return &sync.RunStats{}, nil
	}

	s.log.Info("rerunning tickets from error csv",
		"path", path, "tickets", len(data.TicketIDs),
		"contacts", len(data.ContactIDs), "companies", len(data.CompanyIDs))

	opts.TicketIDs = data.TicketIDs
	return s.syncer.Run(ctx, opts)
}

// ApplyMappingCSV докладывает соответствия из CSV (fresh_value,octa_value)
// в таблицу. Уже совпадающие строки не трогаются, пустые пропускаются.
func (s *Service) ApplyMappingCSV(ctx context.Context, path, table string) (*MappingReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("открытие файла соответствий: %w", err)
	}
	defer f.Close()

	rows, err := parseMappingCSV(f)
	if err != nil {
		return nil, err
	}

	current, err := s.maps.Load(ctx, table)
	if err != nil {
		return nil, err
	}

	report := &MappingReport{}
	for fresh, octa := range rows {
		if octa == "" {
			report.Skipped++
			continue
		}
		if current[fresh] == octa {
			report.Unchanged++
			continue
		}
		if err := s.maps.Set(ctx, table, fresh, octa); err != nil {
			return nil, err
		}
		report.Updated++
	}

	s.log.Info("mapping csv applied", "table", table,
		"updated", report.Updated, "unchanged", report.Unchanged, "skipped", report.Skipped)
	return report, nil
}

// ApplyContactIDCSV докладывает заранее сверенные id контактов из CSV
// (fresh_id, octa_contact_id[, octa_org_id]). Совпадающие строки не
// трогаются, контакты вне staging-БД считаются отсутствующими.
func (s *Service) ApplyContactIDCSV(ctx context.Context, path string) (*MappingReport, error) {
	rows, err := readIDMappingCSV(path, "octa_contact_id", true)
	if err != nil {
		return nil, err
	}

	report := &MappingReport{}
	for _, m := range rows {
		if m.octaID == "" {
			report.Skipped++
			continue
		}
		current, err := s.dir.ContactByFreshID(ctx, m.freshID)
		if err != nil {
			s.log.Warn("contact not staged, mapping row skipped", "fresh_id", m.freshID)
			report.Missing++
			continue
		}

		orgID := m.orgID
		// Пустая колонка организации не стирает прежнюю сверку
		if orgID == "" && current.OctaOrgID != nil {
			orgID = *current.OctaOrgID
		}
		if strValue(current.OctaContactID) == m.octaID && strValue(current.OctaOrgID) == orgID {
			report.Unchanged++
			continue
		}
		if err := s.dir.SetContactOctaIDs(ctx, m.freshID, m.octaID, orgID); err != nil {
			return nil, err
		}
		report.Updated++
	}

	s.log.Info("contact id csv applied", "updated", report.Updated,
		"unchanged", report.Unchanged, "missing", report.Missing, "skipped", report.Skipped)
	return report, nil
}

// ApplyCompanyIDCSV докладывает заранее сверенные id организаций из CSV
// (fresh_id, octa_org_id)
func (s *Service) ApplyCompanyIDCSV(ctx context.Context, path string) (*MappingReport, error) {
	rows, err := readIDMappingCSV(path, "octa_org_id", false)
	if err != nil {
		return nil, err
	}

	report := &MappingReport{}
	for _, m := range rows {
		if m.octaID == "" {
			report.Skipped++
			continue
		}
		current, err := s.dir.CompanyByFreshID(ctx, m.freshID)
		if err != nil {
			s.log.Warn("company not staged, mapping row skipped", "fresh_id", m.freshID)
			report.Missing++
			continue
		}
		if strValue(current.OctaOrgID) == m.octaID {
			report.Unchanged++
			continue
		}
		if err := s.dir.SetCompanyOctaID(ctx, m.freshID, m.octaID); err != nil {
			return nil, err
		}
		report.Updated++
	}

	s.log.Info("company id csv applied", "updated", report.Updated,
		"unchanged", report.Unchanged, "missing", report.Missing, "skipped", report.Skipped)
	return report, nil
}

// idMapping — одна строка файла сверенных id
type idMapping struct {
	freshID int64
	octaID  string
	orgID   string
}

func readIDMappingCSV(path, octaHeader string, wantOrg bool) ([]idMapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("открытие файла сверенных id: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("чтение CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	freshCol, octaCol, orgCol := -1, -1, -1
	for i, name := range records[0] {
		h := strings.ToLower(strings.TrimSpace(name))
		switch {
		case h == "fresh_id" || h == "fresh":
			freshCol = i
		case h == octaHeader || h == "octa_id":
			octaCol = i
		case wantOrg && h == "octa_org_id":
			orgCol = i
		}
	}
	if freshCol < 0 || octaCol < 0 {
		return nil, fmt.Errorf("в CSV нет колонок fresh_id/%s", octaHeader)
	}

	var out []idMapping
	for _, row := range records[1:] {
		if freshCol >= len(row) || octaCol >= len(row) {
			continue
		}
		freshID, err := strconv.ParseInt(strings.TrimSpace(row[freshCol]), 10, 64)
		if err != nil {
			continue
		}
		m := idMapping{freshID: freshID, octaID: strings.TrimSpace(row[octaCol])}
		if orgCol >= 0 && orgCol < len(row) {
			m.orgID = strings.TrimSpace(row[orgCol])
		}
		out = append(out, m)
	}
	return out, nil
}

func strValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func parseMappingCSV(r io.Reader) (map[string]string, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("чтение CSV: %w", err)
	}
	if len(records) == 0 {
		return map[string]string{}, nil
	}

	header := records[0]
	freshCol, octaCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "fresh_value", "fresh", "from":
			freshCol = i
		case "octa_value", "octa", "to":
			octaCol = i
		}
	}
	if freshCol < 0 || octaCol < 0 {
		return nil, fmt.Errorf("в CSV нет колонок fresh_value/octa_value")
	}

	out := map[string]string{}
	for _, row := range records[1:] {
		if freshCol >= len(row) || octaCol >= len(row) {
			continue
		}
		fresh := strings.TrimSpace(row[freshCol])
		if fresh == "" {
			continue
		}
		out[fresh] = strings.TrimSpace(row[octaCol])
	}
	return out, nil
}
