package entity

import (
	"encoding/json"

	"freshsync/internal/freshdesk"
)

// BuildTicketRow нормализует карточку тикета в staging-строку
func BuildTicketRow(t *freshdesk.Ticket) TicketRow {
	return TicketRow{
		FreshID:          t.ID,
		Subject:          t.Subject,
		Description:      t.Description,
		Status:           t.Status,
		Priority:         t.Priority,
		Type:             t.Type,
		Source:           t.Source,
		GroupFreshID:     t.GroupID,
		RequesterFreshID: t.RequesterID,
		ResponderFreshID: t.ResponderID,
		IsEscalated:      t.IsEscalated,
		CreatedAt:        NormalizeTimestamp(t.CreatedAt),
		UpdatedAt:        NormalizeTimestamp(t.UpdatedAt),
		DueBy:            NormalizeTimestamp(t.DueBy),
		FrDueBy:          NormalizeTimestamp(t.FrDueBy),
		Tags:             jsonText(t.Tags),
		CCEmails:         jsonText(t.CCEmails),
		CustomFields:     jsonText(t.CustomFields),
		RawJSON:          t.Raw,
	}
}

// BuildMessageRows разворачивает переписку тикета в строки сообщений
func BuildMessageRows(t *freshdesk.Ticket) []MessageRow {
	rows := make([]MessageRow, 0, len(t.Conversations))
	for _, conv := range t.Conversations {
		rows = append(rows, MessageRow{
			FreshConvID:   conv.ID,
			FreshTicketID: t.ID,
			Body:          nonEmpty(conv.Body),
			FromEmail:     nonEmpty(firstOf(conv.FromEmail, conv.Email)),
			FromName:      nonEmpty(firstOf(conv.FromName, conv.UserName)),
			Private:       conv.Private,
			CreatedAt:     NormalizeTimestamp(conv.CreatedAt),
			RawJSON:       marshalRaw(conv),
		})
	}
	return rows
}

func BuildContactRow(c *freshdesk.Contact) ContactRow {
	return ContactRow{
		FreshID:        c.ID,
		Email:          c.Email,
		Name:           c.Name,
		CompanyFreshID: Int32OrNone(c.CompanyID),
		RawJSON:        c.Raw,
	}
}

func BuildCompanyRow(c *freshdesk.Company) CompanyRow {
	return CompanyRow{
		FreshID:      c.ID,
		Name:         c.Name,
		Domains:      jsonText(c.Domains),
		CreatedAt:    NormalizeTimestamp(c.CreatedAt),
		CustomFields: jsonText(c.CustomFields),
		RawJSON:      c.Raw,
	}
}

// BuildAgentRow берёт имя и почту с верхнего уровня, при их отсутствии
// заглядывает во вложенный contact-объект ответа
func BuildAgentRow(a *freshdesk.Agent) AgentRow {
	email := a.Email
	if email == nil || *email == "" {
		email = a.Contact.Email
	}
	name := a.Name
	if name == nil || *name == "" {
		name = a.Contact.Name
	}
	return AgentRow{
		FreshID: a.ID,
		Email:   email,
		Name:    name,
		RawJSON: a.Raw,
	}
}

func BuildGroupRow(g *freshdesk.Group) GroupRow {
	return GroupRow{
		FreshID: g.ID,
		Name:    g.Name,
		RawJSON: g.Raw,
	}
}

func jsonText(v any) *string {
	switch x := v.(type) {
	case []string:
		if len(x) == 0 {
			return nil
		}
	case map[string]any:
		if len(x) == 0 {
			return nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	s := string(data)
	return &s
}

func marshalRaw(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
