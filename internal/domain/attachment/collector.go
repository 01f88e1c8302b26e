package attachment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/exp/slog"

	"freshsync/internal/domain/entity"
	"freshsync/internal/domain/ledger"
	"freshsync/internal/freshdesk"
)

// Downloader скачивает содержимое вложения по ссылке
type Downloader interface {
	Download(ctx context.Context, url string) (data []byte, contentType string, err error)
	Peek(ctx context.Context, url string) (contentType string, size int64, err error)
}

// Store сохраняет содержимое в папку тикета и возвращает путь
type Store interface {
	Save(ticketID int64, name string, data []byte) (string, error)
}

// Recorder фиксирует пропуски и сбои в журнале аномалий
type Recorder interface {
	Add(kind string, ticketID int64, kv ...string)
}

// Policy — пороги и фильтры сбора вложений
type Policy struct {
	MaxBytes        int64
	MinBytes        int64
	SignatureBlock  bool
	InlineBlocklist []string
}

// Collector скачивает вложения тикета и готовит строки для staging-БД.
// Сбой одного вложения фиксируется в журнале и не прерывает остальные.
type Collector struct {
	dl     Downloader
	store  Store
	rec    Recorder
	log    *slog.Logger
	policy Policy
}

func NewCollector(dl Downloader, store Store, rec Recorder, policy Policy, log *slog.Logger) *Collector {
	return &Collector{
		dl:     dl,
		store:  store,
		rec:    rec,
		log:    log.With("component", "attachment_collector"),
		policy: policy,
	}
}

// CollectConversations обходит вложения всех сообщений переписки.
// msgIDs отображает fresh id переписки в staging-id сообщения.
func (c *Collector) CollectConversations(ctx context.Context, t *freshdesk.Ticket, msgIDs map[int64]int64) ([]entity.AttachmentRow, error) {
	used := map[string]int{}
	var rows []entity.AttachmentRow
	for _, conv := range t.Conversations {
		for _, a := range conv.Attachments {
			var msgID *int64
			if id, ok := msgIDs[conv.ID]; ok {
				msgID = &id
			}
			row, ok, err := c.collectOne(ctx, t.ID, a, msgID, used)
			if err != nil {
				return rows, err
			}
			if ok {
				rows = append(rows, row)
			}
		}
	}
	return rows, nil
}

// CollectTicketLevel обходит вложения уровня тикета (вне переписки)
func (c *Collector) CollectTicketLevel(ctx context.Context, t *freshdesk.Ticket) ([]entity.AttachmentRow, error) {
	used := map[string]int{}
	var rows []entity.AttachmentRow
	for _, a := range t.Attachments {
		row, ok, err := c.collectOne(ctx, t.ID, a, nil, used)
		if err != nil {
			return rows, err
		}
		if ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (c *Collector) collectOne(ctx context.Context, ticketID int64, a freshdesk.Attachment, msgID *int64, used map[string]int) (entity.AttachmentRow, bool, error) {
	url := a.DownloadURL()
	if url == "" {
		c.rec.Add(ledger.KindAttachDownloadFailed, ticketID, "name", a.Name, "error", "no download url")
		return entity.AttachmentRow{}, false, nil
	}

	if c.policy.SignatureBlock && IsSignatureLike(a.Name, url) {
		c.rec.Add(ledger.KindAttachSkippedSignature, ticketID, "name", a.Name)
		return entity.AttachmentRow{}, false, nil
	}

	size := a.Size
	contentType := a.ContentType
	if size == 0 || contentType == "" {
		// Метаданные API бывают пустыми, заголовки ответа авторитетны
		if ct, n, err := c.dl.Peek(ctx, url); err == nil {
			if size == 0 && n > 0 {
				size = n
			}
			if contentType == "" {
				contentType = ct
			}
		}
	}

	if c.policy.MaxBytes > 0 && size > c.policy.MaxBytes {
		c.rec.Add(ledger.KindAttachSkippedTooLarge, ticketID, "name", a.Name, "size", strconv.FormatInt(size, 10))
		return entity.AttachmentRow{}, false, nil
	}
	if !ContentTypeAllowed(contentType) {
		c.rec.Add(ledger.KindAttachSkippedType, ticketID, "name", a.Name, "content_type", contentType)
		return entity.AttachmentRow{}, false, nil
	}

	data, downloadedType, err := c.dl.Download(ctx, url)
	if err != nil {
		c.rec.Add(ledger.KindAttachDownloadFailed, ticketID, "name", a.Name, "error", err.Error())
		return entity.AttachmentRow{}, false, nil
	}
	if downloadedType != "" {
		contentType = downloadedType
	}
	if c.policy.MaxBytes > 0 && int64(len(data)) > c.policy.MaxBytes {
		c.rec.Add(ledger.KindAttachSkippedTooLarge, ticketID, "name", a.Name, "size", strconv.Itoa(len(data)))
		return entity.AttachmentRow{}, false, nil
	}
	if c.policy.MinBytes > 0 && int64(len(data)) < c.policy.MinBytes {
		c.rec.Add(ledger.KindAttachSkippedTooSmall, ticketID, "name", a.Name, "size", strconv.Itoa(len(data)))
		return entity.AttachmentRow{}, false, nil
	}

	name := uniqueName(used, SafeFilename(a.Name))
	storedPath, err := c.store.Save(ticketID, name, data)
	if err != nil {
		return entity.AttachmentRow{}, false, fmt.Errorf("save attachment %q: %w", name, err)
	}

	sum := sha256.Sum256(data)
	return entity.AttachmentRow{
		FreshTicketID: ticketID,
		MessageID:     msgID,
		Name:          name,
		ContentType:   optional(contentType),
		SizeBytes:     sizeOf(data),
		SourceURL:     optional(url),
		StoredPath:    optional(storedPath),
		SHA256:        optional(hex.EncodeToString(sum[:])),
	}, true, nil
}

// CollectInline выдёргивает ссылки на картинки из HTML описания и
// сообщений, скачивает их и сохраняет рядом с обычными вложениями
func (c *Collector) CollectInline(ctx context.Context, t *freshdesk.Ticket) ([]entity.AttachmentRow, error) {
	var html strings.Builder
	if t.Description != nil {
		html.WriteString(*t.Description)
		html.WriteByte('\n')
	}
	for _, conv := range t.Conversations {
		html.WriteString(conv.Body)
		html.WriteByte('\n')
	}

	used := map[string]int{}
	var rows []entity.AttachmentRow
	for i, url := range ExtractInlineImageURLs(html.String()) {
		if pattern, blocked := BlockedByPattern(url, c.policy.InlineBlocklist); blocked {
			c.rec.Add(ledger.KindInlineBlockedByPattern, t.ID, "url", url, "pattern", pattern)
			continue
		}
		if c.policy.SignatureBlock && IsSignatureLike(FilenameFromURL(url), url) {
			c.rec.Add(ledger.KindInlineBlockedByPattern, t.ID, "url", url, "pattern", "signature")
			continue
		}

		data, contentType, err := c.dl.Download(ctx, url)
		if err != nil {
			c.rec.Add(ledger.KindInlineDownloadFailed, t.ID, "url", url, "host", Hostname(url))
			continue
		}
		if contentType != "" && !strings.HasPrefix(strings.ToLower(contentType), "image/") {
			c.rec.Add(ledger.KindInlineSkippedType, t.ID, "url", url, "content_type", contentType)
			continue
		}
		if c.policy.MinBytes > 0 && int64(len(data)) < c.policy.MinBytes {
			c.rec.Add(ledger.KindInlineSkippedTooSmall, t.ID, "url", url, "size", strconv.Itoa(len(data)))
			continue
		}
		if c.policy.MaxBytes > 0 && int64(len(data)) > c.policy.MaxBytes {
			c.rec.Add(ledger.KindAttachSkippedTooLarge, t.ID, "name", FilenameFromURL(url), "size", strconv.Itoa(len(data)))
			continue
		}

		name := uniqueName(used, fmt.Sprintf("inline_%03d_%s", i+1, FilenameFromURL(url)))
		storedPath, err := c.store.Save(t.ID, name, data)
		if err != nil {
			return rows, fmt.Errorf("save inline image %q: %w", name, err)
		}

		sum := sha256.Sum256(data)
		rows = append(rows, entity.AttachmentRow{
			FreshTicketID: t.ID,
			Name:          name,
			ContentType:   optional(contentType),
			SizeBytes:     sizeOf(data),
			SourceURL:     optional(url),
			StoredPath:    optional(storedPath),
			SHA256:        optional(hex.EncodeToString(sum[:])),
			Inline:        true,
		})
	}
	return rows, nil
}

// uniqueName разводит повторяющиеся имена внутри одного тикета,
// добавляя счётчик перед расширением
func uniqueName(used map[string]int, name string) string {
	n := used[name]
	used[name] = n + 1
	if n == 0 {
		return name
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return fmt.Sprintf("%s_%d%s", base, n+1, ext)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func sizeOf(data []byte) *int64 {
	n := int64(len(data))
	return &n
}
