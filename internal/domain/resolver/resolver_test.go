package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freshsync/internal/octadesk"
	"freshsync/internal/utils/logger"
)

type fakeLookup struct {
	persons map[string]*octadesk.Person
	orgs    map[string]*octadesk.Organization

	emailCalls  int
	cfCalls     int
	orgCFCalls  int
	orgNameErr  error
	orgCFErr    error
	nameCalls   int
}

func (f *fakeLookup) FindContactByEmail(_ context.Context, email string) (*octadesk.Person, error) {
	f.emailCalls++
	return f.persons["email:"+email], nil
}

func (f *fakeLookup) FindContactByCustomField(_ context.Context, key, value string) (*octadesk.Person, error) {
	f.cfCalls++
	return f.persons["cf:"+key+":"+value], nil
}

func (f *fakeLookup) FindOrganizationByCustomField(_ context.Context, key, value string) (*octadesk.Organization, error) {
	f.orgCFCalls++
	if f.orgCFErr != nil {
		return nil, f.orgCFErr
	}
	return f.orgs["cf:"+key+":"+value], nil
}

func (f *fakeLookup) FindOrganizationByName(_ context.Context, name string) (*octadesk.Organization, error) {
	f.nameCalls++
	if f.orgNameErr != nil {
		return nil, f.orgNameErr
	}
	return f.orgs["name:"+name], nil
}

func person(id, orgID string) *octadesk.Person {
	p := &octadesk.Person{ID: octadesk.ID(id)}
	if orgID != "" {
		p.Organization = &struct {
			ID octadesk.ID `json:"id"`
		}{ID: octadesk.ID(orgID)}
	}
	return p
}

func newService(f *fakeLookup) *Service {
	return New(f, "codigo", "codigo", logger.New("local"))
}

func TestResolveContactByEmailMemoized(t *testing.T) {
	f := &fakeLookup{persons: map[string]*octadesk.Person{
		"email:joao@cliente.com": person("p-1", "o-9"),
	}}
	s := newService(f)

	for i := 0; i < 3; i++ {
		m, err := s.ResolveContact(context.Background(), "joao@cliente.com", "")
		require.NoError(t, err)
		assert.Equal(t, Match{ContactID: "p-1", OrganizationID: "o-9"}, m)
	}

	// Повторные обращения идут из кеша
	assert.Equal(t, 1, f.emailCalls)
}

func TestResolveContactFallsBackToCustomField(t *testing.T) {
	f := &fakeLookup{persons: map[string]*octadesk.Person{
		"cf:codigo:C-7": person("p-2", ""),
	}}
	s := newService(f)

	m, err := s.ResolveContact(context.Background(), "nobody@x.com", "C-7")
	require.NoError(t, err)
	assert.Equal(t, "p-2", m.ContactID)
	assert.Empty(t, m.OrganizationID)
	assert.Equal(t, 1, f.emailCalls)
	assert.Equal(t, 1, f.cfCalls)
}

func TestResolveContactNotFoundIsNotError(t *testing.T) {
	f := &fakeLookup{}
	s := newService(f)

	m, err := s.ResolveContact(context.Background(), "nobody@x.com", "Z-0")
	require.NoError(t, err)
	assert.Empty(t, m.ContactID)

	// Промахи не кешируются
	_, err = s.ResolveContact(context.Background(), "nobody@x.com", "Z-0")
	require.NoError(t, err)
	assert.Equal(t, 2, f.emailCalls)
}

func TestResolveOrganizationPrefersCustomField(t *testing.T) {
	f := &fakeLookup{orgs: map[string]*octadesk.Organization{
		"cf:codigo:555":   {ID: "o-5"},
		"name:Acme LTDA":  {ID: "o-wrong"},
	}}
	s := newService(f)

	id, err := s.ResolveOrganization(context.Background(), "555", "Acme LTDA")
	require.NoError(t, err)
	assert.Equal(t, "o-5", id)
	assert.Zero(t, f.nameCalls)

	id, err = s.ResolveOrganization(context.Background(), "555", "Acme LTDA")
	require.NoError(t, err)
	assert.Equal(t, "o-5", id)
	assert.Equal(t, 1, f.orgCFCalls)
}

func TestResolveOrganizationInvalidPropertyDisablesFilters(t *testing.T) {
	f := &fakeLookup{
		orgCFErr: &octadesk.APIError{StatusCode: 400, Body: `{"code":"INVALID_PROPERTY"}`},
		orgs: map[string]*octadesk.Organization{
			"name:Acme LTDA": {ID: "o-1"},
		},
	}
	s := newService(f)

	id, err := s.ResolveOrganization(context.Background(), "555", "Acme LTDA")
	require.NoError(t, err)
	assert.Equal(t, "o-1", id)
	assert.Equal(t, 1, f.orgCFCalls)

	// После отказа фильтрованный поиск больше не зовётся
	id, err = s.ResolveOrganization(context.Background(), "777", "Beta SA")
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.Equal(t, 1, f.orgCFCalls)
	assert.Equal(t, 2, f.nameCalls)
}

func TestResolveOrganizationLookupErrorPropagates(t *testing.T) {
	f := &fakeLookup{orgNameErr: errors.New("timeout")}
	s := newService(f)

	_, err := s.ResolveOrganization(context.Background(), "", "Acme LTDA")
	require.Error(t, err)
}
