package export

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"

	"golang.org/x/exp/slog"

	"freshsync/internal/domain/entity"
	"freshsync/internal/domain/ledger"
	"freshsync/internal/infrastructure/storage/postgres"
	"freshsync/internal/octadesk"
)

// Staging — чтение подготовленных данных и фиксация выгрузки
type Staging interface {
	ListPendingExport(ctx context.Context, limit int) ([]entity.TicketRow, error)
	MessagesByTicket(ctx context.Context, freshTicketID int64) ([]entity.MessageRow, error)
	AttachmentsByTicket(ctx context.Context, freshTicketID int64) ([]entity.AttachmentRow, error)
	ContactByFreshID(ctx context.Context, freshID int64) (*entity.ContactRow, error)
	SetTicketOctaID(ctx context.Context, freshID int64, octaID string) error
	LoadMap(ctx context.Context, table string) (map[string]string, error)
}

// FileReader отдаёт содержимое сохранённого вложения
type FileReader interface {
	Read(ticketID int64, name string) ([]byte, error)
}

// CRM — создание тикетов в целевой системе
type CRM interface {
	Post(ctx context.Context, path string, payload any) ([]byte, error)
}

// Recorder фиксирует аномалии выгрузки
type Recorder interface {
	Add(kind string, ticketID int64, kv ...string)
}

// Options — параметры прогона выгрузки
type Options struct {
	Limit           int
	WithAttachments bool
}

// Stats — итоги выгрузки
type Stats struct {
	Exported int
	Skipped  int
	Failed   int
}

// Service выгружает подготовленные тикеты из staging-БД в CRM.
// Тикет без сверенного контакта пропускается: CRM требует requester.
type Service struct {
	staging Staging
	files   FileReader
	crm     CRM
	rec     Recorder
	log     *slog.Logger

	channelID string
}

func New(staging Staging, files FileReader, crm CRM, rec Recorder, channelID string, log *slog.Logger) *Service {
	return &Service{
		staging:   staging,
		files:     files,
		crm:       crm,
		rec:       rec,
		log:       log.With("component", "export_service"),
		channelID: channelID,
	}
}

// Run выгружает тикеты без octa_ticket_id; успешные помечаются в staging-БД
func (s *Service) Run(ctx context.Context, opts Options) (*Stats, error) {
	tickets, err := s.staging.ListPendingExport(ctx, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("list pending tickets: %w", err)
	}

	statusMap, err := s.staging.LoadMap(ctx, postgres.MapStatus)
	if err != nil {
		return nil, fmt.Errorf("load status map: %w", err)
	}
	priorityMap, err := s.staging.LoadMap(ctx, postgres.MapPriority)
	if err != nil {
		return nil, fmt.Errorf("load priority map: %w", err)
	}
	typeMap, err := s.staging.LoadMap(ctx, postgres.MapType)
	if err != nil {
		return nil, fmt.Errorf("load type map: %w", err)
	}

	s.log.Info("starting export run", "pending", len(tickets))

	stats := &Stats{}
	for _, t := range tickets {
		payload, ok := s.buildPayload(ctx, &t, maps{statusMap, priorityMap, typeMap}, opts)
		if !ok {
			stats.Skipped++
			continue
		}

		body, err := s.crm.Post(ctx, "/tickets", payload)
		if err != nil {
			s.log.Error("failed to export ticket", "fresh_id", t.FreshID, "error", err)
			s.rec.Add(ledger.KindExportFailed, t.FreshID, "error", err.Error())
			stats.Failed++
			continue
		}

		octaID, err := ticketIDFromResponse(body)
		if err != nil {
			s.rec.Add(ledger.KindExportFailed, t.FreshID, "error", err.Error())
			stats.Failed++
			continue
		}

		if err := s.staging.SetTicketOctaID(ctx, t.FreshID, octaID); err != nil {
			s.rec.Add(ledger.KindExportFailed, t.FreshID, "error", err.Error())
			stats.Failed++
			continue
		}
		stats.Exported++
	}

	s.log.Info("export run finished",
		"exported", stats.Exported, "skipped", stats.Skipped, "failed", stats.Failed)
	return stats, nil
}

// maps — загруженные таблицы соответствий исходных кодов значениям CRM
type maps struct {
	status     map[string]string
	priority   map[string]string
	ticketType map[string]string
}

func (s *Service) buildPayload(ctx context.Context, t *entity.TicketRow, m maps, opts Options) (map[string]any, bool) {
	payload := map[string]any{}

	if t.Subject != nil {
		payload["summary"] = *t.Subject
	}
	if t.Description != nil {
		payload["description"] = *t.Description
	}
	if t.CreatedAt != nil {
		payload["createdAt"] = *t.CreatedAt
	}
	if s.channelID != "" {
		payload["channelId"] = s.channelID
	}
	if t.Status != nil {
		if v, ok := m.status[strconv.FormatInt(*t.Status, 10)]; ok {
			payload["status"] = v
		}
	}
	if t.Priority != nil {
		if v, ok := m.priority[strconv.FormatInt(*t.Priority, 10)]; ok {
			payload["priority"] = v
		}
	}
	if t.Type != nil {
		if v, ok := m.ticketType[*t.Type]; ok {
			payload["type"] = v
		}
	}

	if !s.attachRequester(ctx, t, payload) {
		return nil, false
	}

	comments, err := s.buildComments(ctx, t.FreshID)
	if err != nil {
		s.rec.Add(ledger.KindExportFailed, t.FreshID, "error", err.Error())
		return nil, false
	}
	if len(comments) > 0 {
		payload["comments"] = comments
	}

	if opts.WithAttachments {
		attachments, err := s.buildAttachments(ctx, t.FreshID)
		if err != nil {
			s.rec.Add(ledger.KindExportFailed, t.FreshID, "error", err.Error())
			return nil, false
		}
		if len(attachments) > 0 {
			payload["attachments"] = attachments
		}
	}

	return payload, true
}

// attachRequester подставляет сверенный с CRM контакт заявителя.
// Без него CRM отклонит тикет, поэтому несверенный контакт — пропуск.
func (s *Service) attachRequester(ctx context.Context, t *entity.TicketRow, payload map[string]any) bool {
	if t.RequesterFreshID == nil {
		s.rec.Add(ledger.KindOctaContactNotFound, t.FreshID)
		return false
	}

	contact, err := s.staging.ContactByFreshID(ctx, *t.RequesterFreshID)
	if err != nil || contact.OctaContactID == nil {
		s.rec.Add(ledger.KindOctaContactNotFound, t.FreshID,
			"contact_fresh_id", strconv.FormatInt(*t.RequesterFreshID, 10))
		return false
	}

	payload["requester"] = map[string]any{"id": *contact.OctaContactID}
	if contact.OctaOrgID != nil {
		payload["organization"] = map[string]any{"id": *contact.OctaOrgID}
	}
	return true
}

func (s *Service) buildComments(ctx context.Context, freshTicketID int64) ([]map[string]any, error) {
	messages, err := s.staging.MessagesByTicket(ctx, freshTicketID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	comments := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		comment := map[string]any{
			"isPublic": !m.Private,
		}
		if m.Body != nil {
			comment["body"] = *m.Body
		}
		if m.CreatedAt != nil {
			comment["createdAt"] = *m.CreatedAt
		}
		if m.FromEmail != nil {
			comment["author"] = map[string]any{"email": *m.FromEmail}
		}
		comments = append(comments, comment)
	}
	return comments, nil
}

// buildAttachments кодирует сохранённые файлы тикета в base64
func (s *Service) buildAttachments(ctx context.Context, freshTicketID int64) ([]map[string]any, error) {
	rows, err := s.staging.AttachmentsByTicket(ctx, freshTicketID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}

	out := make([]map[string]any, 0, len(rows))
	for _, a := range rows {
		if a.StoredPath == nil {
			continue
		}
		data, err := s.files.Read(freshTicketID, a.Name)
		if err != nil {
			return nil, fmt.Errorf("read attachment %q: %w", a.Name, err)
		}

		item := map[string]any{
			"name":    a.Name,
			"content": base64.StdEncoding.EncodeToString(data),
		}
		if a.ContentType != nil {
			item["contentType"] = *a.ContentType
		}
		out = append(out, item)
	}
	return out, nil
}

func ticketIDFromResponse(body []byte) (string, error) {
	var resp struct {
		ID octadesk.ID `json:"id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode ticket response: %w", err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("ticket response without id")
	}
	return resp.ID.String(), nil
}
