package projector

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronicleworks/chronicle/internal/prov/id"
)

func TestQuery_UnknownNamespaceReturnsEmptyModel(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id FROM namespace WHERE external_id = \$1`).
		WithArgs("nosuch").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	m, err := Query(ctxBg(), s, "nosuch")
	require.NoError(t, err)
	assert.Empty(t, m.Namespaces)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_ReadsFullGraph(t *testing.T) {
	s, mock := newMockStore(t)

	nsUUID := uuid.New()
	entityID := nsUUID.String() + "/painting"

	mock.ExpectQuery(`SELECT id FROM namespace WHERE external_id = \$1`).
		WithArgs("default").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(nsUUID.String()))

	mock.ExpectQuery(`SELECT a.external_id, a.domaintype, a.attributes, i.public_key`).
		WillReturnRows(sqlmock.NewRows([]string{"external_id", "domaintype", "attributes", "public_key"}).
			AddRow("bobross", "artist", []byte(`{}`), "deadbeef"))

	mock.ExpectQuery(`SELECT external_id, domaintype, started, ended, attributes`).
		WillReturnRows(sqlmock.NewRows([]string{"external_id", "domaintype", "started", "ended", "attributes"}).
			AddRow("paint", nil, nil, nil, []byte(`{}`)))

	mock.ExpectQuery(`SELECT e.id, e.external_id, e.domaintype, t.signature, t.signature_time, t.locator`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "external_id", "domaintype", "signature", "signature_time", "locator"}).
			AddRow(entityID, "painting", nil, "sig1", nil, nil))

	mock.ExpectQuery(`SELECT entity_id, typename, value FROM entity_attribute`).
		WillReturnRows(sqlmock.NewRows([]string{"entity_id", "typename", "value"}).
			AddRow(entityID, "medium", []byte(`{"Name":"medium","Kind":"String","StringValue":"oil"}`)))

	mock.ExpectQuery(`SELECT agent, activity, role FROM association`).
		WillReturnRows(sqlmock.NewRows([]string{"agent", "activity", "role"}).AddRow("bobross", "paint", ""))

	mock.ExpectQuery(`SELECT agent, entity, role FROM attribution`).
		WillReturnRows(sqlmock.NewRows([]string{"agent", "entity", "role"}).AddRow("bobross", "painting", ""))

	mock.ExpectQuery(`SELECT delegate, responsible, role, activity FROM delegation`).
		WillReturnRows(sqlmock.NewRows([]string{"delegate", "responsible", "role", "activity"}))

	mock.ExpectQuery(`SELECT activity, entity FROM usage`).
		WillReturnRows(sqlmock.NewRows([]string{"activity", "entity"}).AddRow("paint", "painting"))

	mock.ExpectQuery(`SELECT activity, entity FROM generation`).
		WillReturnRows(sqlmock.NewRows([]string{"activity", "entity"}).AddRow("paint", "painting"))

	mock.ExpectQuery(`SELECT activity, informing FROM wasinformedby`).
		WillReturnRows(sqlmock.NewRows([]string{"activity", "informing"}))

	mock.ExpectQuery(`SELECT generated, used, kind, activity FROM derivation`).
		WillReturnRows(sqlmock.NewRows([]string{"generated", "used", "kind", "activity"}))

	m, err := Query(ctxBg(), s, "default")
	require.NoError(t, err)

	ns := id.NamespaceID{ExternalID: "default", UUID: nsUUID}
	assert.Contains(t, m.Namespaces, ns)

	agent, ok := m.GetAgent(ns, "bobross")
	require.True(t, ok)
	require.NotNil(t, agent)
	assert.Equal(t, "deadbeef", agent.CurrentIdentity.PublicKey)

	require.NoError(t, mock.ExpectationsWereMet())
}
