package ledger

import "time"

// Виды записей, которые пишет пайплайн. Набор открытый: репозитории и
// коллектор добавляют свои kind'ы, колонки CSV собираются по факту.
const (
	KindTicketFetchFailed      = "ticket_fetch_failed"
	KindContactNotFound        = "contact_not_found"
	KindAgentFetchFailed       = "agent_fetch_failed"
	KindGroupFetchFailed       = "group_fetch_failed"
	KindCompanyFetchFailed     = "company_fetch_failed"
	KindPersistFailed          = "persist_failed"
	KindOctaContactNotFound    = "octa_contact_not_found"
	KindOctaOrgNotFound        = "octa_org_not_found"
	KindOctaLookupFailed       = "octa_lookup_failed"
	KindExportFailed           = "export_failed"
	KindAttachSkippedSignature = "attachment_skipped_signature_like"
	KindAttachSkippedType      = "attachment_skipped_content_type"
	KindAttachSkippedTooLarge  = "attachment_skipped_too_large"
	KindAttachSkippedTooSmall  = "attachment_skipped_too_small"
	KindAttachDownloadFailed   = "conv_attachment_download_failed"
	KindInlineBlockedByPattern = "inline_blocked_by_pattern"
	KindInlineSkippedTooSmall  = "inline_skipped_too_small"
	KindInlineSkippedType      = "inline_skipped_content_type"
	KindInlineDownloadFailed   = "inline_download_failed"
)

// Entry — одна аномалия прогона
type Entry struct {
	TS       time.Time
	Kind     string
	TicketID int64
	Extra    map[string]string
}
