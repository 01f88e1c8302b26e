package resolver

import (
	"context"

	"golang.org/x/exp/slog"

	"freshsync/internal/octadesk"
)

// Lookup — поисковые операции CRM, нужные сверке
type Lookup interface {
	FindContactByEmail(ctx context.Context, email string) (*octadesk.Person, error)
	FindContactByCustomField(ctx context.Context, key, value string) (*octadesk.Person, error)
	FindOrganizationByCustomField(ctx context.Context, key, value string) (*octadesk.Organization, error)
	FindOrganizationByName(ctx context.Context, name string) (*octadesk.Organization, error)
}

// Match — результат сверки контакта: его id в CRM и, если CRM знает,
// id его организации
type Match struct {
	ContactID      string
	OrganizationID string
}

// Service сверяет контакты и организации с CRM, кешируя только
// успешные находки. Промахи не кешируются: данные в CRM могут
// появиться по ходу длинного прогона.
type Service struct {
	lookup Lookup
	log    *slog.Logger

	contactCFKey string
	orgCFKey     string

	contactByEmail map[string]Match
	contactByCF    map[string]Match
	orgByCF        map[string]string
	orgByName      map[string]string

	// CRM, не знающая свойства customFields.<key>, не узнает его и
	// дальше: после первого INVALID_PROPERTY фильтрованный поиск
	// организаций выключается до конца прогона
	orgFiltersDisabled bool
}

func New(lookup Lookup, contactCFKey, orgCFKey string, log *slog.Logger) *Service {
	return &Service{
		lookup:         lookup,
		log:            log.With("component", "resolver"),
		contactCFKey:   contactCFKey,
		orgCFKey:       orgCFKey,
		contactByEmail: map[string]Match{},
		contactByCF:    map[string]Match{},
		orgByCF:        map[string]string{},
		orgByName:      map[string]string{},
	}
}

// ResolveContact ищет контакт по почте, затем по кастомному полю.
// Отсутствие совпадений — пустой Match без ошибки.
func (s *Service) ResolveContact(ctx context.Context, email, cfValue string) (Match, error) {
	if email != "" {
		if m, ok := s.contactByEmail[email]; ok {
			return m, nil
		}
		p, err := s.lookup.FindContactByEmail(ctx, email)
		if err != nil {
			return Match{}, err
		}
		if p != nil {
			m := matchOf(p)
			s.contactByEmail[email] = m
			return m, nil
		}
	}

	if cfValue != "" && s.contactCFKey != "" {
		if m, ok := s.contactByCF[cfValue]; ok {
			return m, nil
		}
		p, err := s.lookup.FindContactByCustomField(ctx, s.contactCFKey, cfValue)
		if err != nil {
			return Match{}, err
		}
		if p != nil {
			m := matchOf(p)
			s.contactByCF[cfValue] = m
			return m, nil
		}
	}
	return Match{}, nil
}

// ResolveOrganization ищет организацию по кастомному полю, затем по
// точному имени
func (s *Service) ResolveOrganization(ctx context.Context, cfValue, name string) (string, error) {
	if cfValue != "" && s.orgCFKey != "" && !s.orgFiltersDisabled {
		if id, ok := s.orgByCF[cfValue]; ok {
			return id, nil
		}
		o, err := s.lookup.FindOrganizationByCustomField(ctx, s.orgCFKey, cfValue)
		switch {
		case octadesk.IsInvalidProperty(err):
			s.orgFiltersDisabled = true
			s.log.Warn("organization custom field rejected, falling back to name lookups",
				"key", s.orgCFKey)
		case err != nil:
			return "", err
		case o != nil:
			s.orgByCF[cfValue] = o.ID.String()
			return o.ID.String(), nil
		}
	}

	if name != "" {
		if id, ok := s.orgByName[name]; ok {
			return id, nil
		}
		o, err := s.lookup.FindOrganizationByName(ctx, name)
		if err != nil {
			return "", err
		}
		if o != nil {
			s.orgByName[name] = o.ID.String()
			return o.ID.String(), nil
		}
	}
	return "", nil
}

func matchOf(p *octadesk.Person) Match {
	m := Match{ContactID: p.ID.String()}
	if p.Organization != nil {
		m.OrganizationID = p.Organization.ID.String()
	}
	return m
}
