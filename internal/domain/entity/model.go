package entity

// TicketRow — строка тикета в staging-хранилище. Списочные и
// произвольные поля сериализованы в JSON-текст, временные метки
// нормализованы в "YYYY-MM-DD HH:MM:SS".
type TicketRow struct {
	FreshID          int64
	Subject          *string
	Description      *string
	Status           *int64
	Priority         *int64
	Type             *string
	Source           *int64
	GroupFreshID     *int64
	RequesterFreshID *int64
	ResponderFreshID *int64
	IsEscalated      *bool
	CreatedAt        *string
	UpdatedAt        *string
	DueBy            *string
	FrDueBy          *string
	Tags             *string
	CCEmails         *string
	CustomFields     *string
	RawJSON          []byte
	OctaTicketID     *string
}

// MessageRow — сообщение переписки; ID выдаёт staging-БД при upsert'е,
// fresh_conv_id уникален и служит ключом конфликта
type MessageRow struct {
	ID            int64
	FreshConvID   int64
	FreshTicketID int64
	Body          *string
	FromEmail     *string
	FromName      *string
	Private       bool
	CreatedAt     *string
	RawJSON       []byte
}

// AttachmentRow — учтённое вложение. MessageID ссылается на staging-id
// сообщения (nil для вложений уровня тикета и inline-картинок).
type AttachmentRow struct {
	FreshTicketID int64
	MessageID     *int64
	Name          string
	ContentType   *string
	SizeBytes     *int64
	SourceURL     *string
	StoredPath    *string
	SHA256        *string
	Inline        bool
}

type ContactRow struct {
	FreshID        int64
	Email          *string
	Name           *string
	CompanyFreshID *int64
	RawJSON        []byte
	OctaContactID  *string
	OctaOrgID      *string
}

type CompanyRow struct {
	FreshID      int64
	Name         *string
	Domains      *string
	CreatedAt    *string
	CustomFields *string
	RawJSON      []byte
	OctaOrgID    *string
}

type AgentRow struct {
	FreshID int64
	Email   *string
	Name    *string
	RawJSON []byte
}

type GroupRow struct {
	FreshID int64
	Name    *string
	RawJSON []byte
}
