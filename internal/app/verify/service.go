package verify

import (
	"context"
	"fmt"

	"golang.org/x/exp/slog"

	"freshsync/internal/domain/entity"
)

// Staging — чтение учтённых тикетов и вложений
type Staging interface {
	ListStagedIDs(ctx context.Context) ([]int64, error)
	AttachmentsByTicket(ctx context.Context, freshTicketID int64) ([]entity.AttachmentRow, error)
}

// Files — проверка и правка папок вложений на диске
type Files interface {
	ListTicketDirs() ([]int64, error)
	Exists(ticketID int64, name string) bool
	Save(ticketID int64, name string, data []byte) (string, error)
	MoveToOld(ticketID int64) error
}

// Downloader докачивает потерянные файлы по исходной ссылке
type Downloader interface {
	Download(ctx context.Context, url string) (data []byte, contentType string, err error)
}

// Markers — массовое проставление отметок завершённости
type Markers interface {
	IsDone(freshID int64) (bool, error)
	MarkAll(freshIDs []int64) error
}

// Options — что именно чинить при проверке
type Options struct {
	MoveOrphans     bool
	Redownload      bool
	BackfillMarkers bool
}

// Report — итоги проверки хранилища вложений
type Report struct {
	StagedTickets int
	OrphanDirs    []int64
	MissingFiles  int
	Redownloaded  int
	MarkedDone    int
}

// Service сверяет папки вложений на диске с учётом в staging-БД:
// папки без тикета уходят в old/, потерянные файлы докачиваются,
// полностью собранные тикеты получают отметку завершённости.
type Service struct {
	staging Staging
	files   Files
	dl      Downloader
	markers Markers
	log     *slog.Logger
}

func New(staging Staging, files Files, dl Downloader, markers Markers, log *slog.Logger) *Service {
	return &Service{
		staging: staging,
		files:   files,
		dl:      dl,
		markers: markers,
		log:     log.With("component", "verify_service"),
	}
}

func (s *Service) Run(ctx context.Context, opts Options) (*Report, error) {
	stagedIDs, err := s.staging.ListStagedIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list staged tickets: %w", err)
	}
	staged := make(map[int64]struct{}, len(stagedIDs))
	for _, id := range stagedIDs {
		staged[id] = struct{}{}
	}

	report := &Report{StagedTickets: len(stagedIDs)}

	if err := s.sweepOrphans(staged, opts, report); err != nil {
		return nil, err
	}

	var complete []int64
	for _, id := range stagedIDs {
		ok, err := s.checkTicket(ctx, id, opts, report)
		if err != nil {
			return nil, err
		}
		if ok {
			complete = append(complete, id)
		}
	}

	if opts.BackfillMarkers && s.markers != nil {
		marked, err := s.backfillMarkers(complete)
		if err != nil {
			return nil, err
		}
		report.MarkedDone = marked
	}

	s.log.Info("verify run finished",
		"staged", report.StagedTickets, "orphans", len(report.OrphanDirs),
		"missing", report.MissingFiles, "redownloaded", report.Redownloaded,
		"marked_done", report.MarkedDone)
	return report, nil
}

// sweepOrphans находит папки без тикета в staging-БД
func (s *Service) sweepOrphans(staged map[int64]struct{}, opts Options, report *Report) error {
	dirs, err := s.files.ListTicketDirs()
	if err != nil {
		return fmt.Errorf("list ticket dirs: %w", err)
	}

	for _, id := range dirs {
		if _, ok := staged[id]; ok {
			continue
		}
		report.OrphanDirs = append(report.OrphanDirs, id)
		if opts.MoveOrphans {
			if err := s.files.MoveToOld(id); err != nil {
				return fmt.Errorf("move orphan dir %d: %w", id, err)
			}
		}
	}
	return nil
}

// checkTicket сверяет учтённые вложения тикета с файлами на диске.
// Возвращает true, когда все файлы на месте.
func (s *Service) checkTicket(ctx context.Context, ticketID int64, opts Options, report *Report) (bool, error) {
	rows, err := s.staging.AttachmentsByTicket(ctx, ticketID)
	if err != nil {
		return false, fmt.Errorf("list attachments %d: %w", ticketID, err)
	}

	complete := true
	for _, a := range rows {
		if a.StoredPath == nil || s.files.Exists(ticketID, a.Name) {
			continue
		}
		report.MissingFiles++

		if !opts.Redownload || a.SourceURL == nil {
			complete = false
			continue
		}

		// Докачка без фильтров: файл уже прошёл политику при сборе
		data, _, err := s.dl.Download(ctx, *a.SourceURL)
		if err != nil {
			s.log.Warn("failed to redownload attachment",
				"fresh_ticket_id", ticketID, "name", a.Name, "error", err)
			complete = false
			continue
		}
		if _, err := s.files.Save(ticketID, a.Name, data); err != nil {
			return false, fmt.Errorf("save redownloaded %q: %w", a.Name, err)
		}
		report.Redownloaded++
	}
	return complete, nil
}

func (s *Service) backfillMarkers(complete []int64) (int, error) {
	var toMark []int64
	for _, id := range complete {
		done, err := s.markers.IsDone(id)
		if err != nil {
			return 0, fmt.Errorf("check marker %d: %w", id, err)
		}
		if !done {
			toMark = append(toMark, id)
		}
	}
	if err := s.markers.MarkAll(toMark); err != nil {
		return 0, fmt.Errorf("backfill markers: %w", err)
	}
	return len(toMark), nil
}
