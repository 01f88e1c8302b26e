package freshdesk

import "encoding/json"

// Ticket — полная карточка тикета (include=conversations).
// Raw хранит нетронутое тело ответа для аудита.
type Ticket struct {
	ID            int64          `json:"id"`
	Subject       *string        `json:"subject"`
	Description   *string        `json:"description"`
	Status        *int64         `json:"status"`
	Priority      *int64         `json:"priority"`
	Type          *string        `json:"type"`
	Source        *int64         `json:"source"`
	GroupID       *int64         `json:"group_id"`
	RequesterID   *int64         `json:"requester_id"`
	ResponderID   *int64         `json:"responder_id"`
	EmailConfigID *int64         `json:"email_config_id"`
	IsEscalated   *bool          `json:"is_escalated"`
	CreatedAt     *string        `json:"created_at"`
	UpdatedAt     *string        `json:"updated_at"`
	DueBy         *string        `json:"due_by"`
	FrDueBy       *string        `json:"fr_due_by"`
	Tags          []string       `json:"tags"`
	CCEmails      []string       `json:"cc_emails"`
	FwdEmails     []string       `json:"fwd_emails"`
	ReplyCCEmails []string       `json:"reply_cc_emails"`
	CustomFields  map[string]any `json:"custom_fields"`
	Attachments   []Attachment   `json:"attachments"`
	Conversations []Conversation `json:"conversations"`

	Raw json.RawMessage `json:"-"`
}

// Conversation — сообщение в переписке тикета
type Conversation struct {
	ID          int64        `json:"id"`
	Body        string       `json:"body"`
	FromEmail   string       `json:"from_email"`
	Email       string       `json:"email"`
	FromName    string       `json:"from_name"`
	UserName    string       `json:"user_name"`
	Private     bool         `json:"private"`
	CreatedAt   *string      `json:"created_at"`
	Attachments []Attachment `json:"attachments"`
}

// Attachment — метаданные вложения из API; размер и content-type здесь
// лишь подсказка, авторитетны заголовки ответа при скачивании
type Attachment struct {
	Name          string `json:"name"`
	ContentType   string `json:"content_type"`
	Size          int64  `json:"size"`
	AttachmentURL string `json:"attachment_url"`
	URL           string `json:"url"`
	ContentURL    string `json:"content_url"`
}

// DownloadURL — ссылка на содержимое с учётом разных форм ответа API
func (a Attachment) DownloadURL() string {
	if a.AttachmentURL != "" {
		return a.AttachmentURL
	}
	if a.URL != "" {
		return a.URL
	}
	return a.ContentURL
}

type Contact struct {
	ID           int64           `json:"id"`
	Email        *string         `json:"email"`
	Name         *string         `json:"name"`
	CompanyID    *int64          `json:"company_id"`
	CustomFields map[string]any  `json:"custom_fields"`
	Raw          json.RawMessage `json:"-"`
}

type Company struct {
	ID           int64           `json:"id"`
	Name         *string         `json:"name"`
	Domains      []string        `json:"domains"`
	CreatedAt    *string         `json:"created_at"`
	CustomFields map[string]any  `json:"custom_fields"`
	Raw          json.RawMessage `json:"-"`
}

type Agent struct {
	ID      int64   `json:"id"`
	Email   *string `json:"email"`
	Name    *string `json:"name"`
	Contact struct {
		Name  *string `json:"name"`
		Email *string `json:"email"`
	} `json:"contact"`
	Raw json.RawMessage `json:"-"`
}

type Group struct {
	ID   int64           `json:"id"`
	Name *string         `json:"name"`
	Raw  json.RawMessage `json:"-"`
}

// listedTicket — урезанная форма из постраничного списка,
// достаточная для локального фильтра по датам
type listedTicket struct {
	ID        int64   `json:"id"`
	CreatedAt *string `json:"created_at"`
	UpdatedAt *string `json:"updated_at"`
}
