package projector

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronicleworks/chronicle/internal/ledger"
	"github.com/chronicleworks/chronicle/internal/prov/id"
	"github.com/chronicleworks/chronicle/internal/prov/model"
)

func ctxBg() context.Context { return context.Background() }

var assertError = errors.New("boom")

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })

	return &Store{db: db}, mock
}

func TestStore_Checkpoint_NoRowsMeansFirst(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT block_id FROM projector_checkpoint WHERE id = 1`).
		WillReturnRows(sqlmock.NewRows([]string{"block_id"}))

	pos, err := s.Checkpoint(ctxBg())
	require.NoError(t, err)
	assert.Equal(t, ledger.PositionFirst, pos.Kind)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Checkpoint_ReturnsLastBlock(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT block_id FROM projector_checkpoint WHERE id = 1`).
		WillReturnRows(sqlmock.NewRows([]string{"block_id"}).AddRow("block-7"))

	pos, err := s.Checkpoint(ctxBg())
	require.NoError(t, err)
	assert.Equal(t, ledger.PositionBlock, pos.Kind)
	assert.Equal(t, "block-7", pos.BlockID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Project_ContradictedEvent_OnlyWritesCheckpoint(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO projector_checkpoint`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.Project(ctxBg(), ledger.Event{Kind: ledger.EventContradicted, BlockID: "block-1", Position: 3, Reason: "nope"})
	require.NoError(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Project_EmptyBlockIDIsNoOp(t *testing.T) {
	s, _ := newMockStore(t)

	err := s.Project(ctxBg(), ledger.Event{Kind: ledger.EventCommitted, Delta: nil})
	require.NoError(t, err)
}

func TestStore_Project_CommittedDelta_WritesEveryRecordKind(t *testing.T) {
	s, mock := newMockStore(t)

	ns := id.NamespaceID{ExternalID: "default", UUID: uuid.New()}

	m := model.New()
	m.AddNamespace(ns)

	agent := m.AddAgent(ns, "bobross")
	agent.CurrentIdentity = &model.IdentityRef{AgentExternalID: "bobross", PublicKey: "deadbeef"}

	m.AddActivity(ns, "paint")

	entity := m.AddEntity(ns, "painting")
	entity.Evidence = &model.Evidence{Signature: "sig1"}
	entity.Attributes["medium"] = model.NewStringAttribute("medium", "oil")

	m.AddAssociation(model.AssociationKey{Namespace: ns, Agent: "bobross", Activity: "paint"})
	m.AddAttribution(model.AttributionKey{Namespace: ns, Agent: "bobross", Entity: "painting"})
	m.AddDelegation(model.DelegationKey{Namespace: ns, Delegate: "d", Responsible: "r"})
	m.AddUsage(model.UsageKey{Namespace: ns, Activity: "paint", Entity: "painting"})
	m.AddGeneration(model.GenerationKey{Namespace: ns, Activity: "paint", Entity: "painting"})
	m.AddInformedBy(model.InformedByKey{Namespace: ns, Activity: "paint", Informing: "sketch"})
	m.SetDerivation(model.DerivationKey{Namespace: ns, Generated: "painting", Used: "sketch"}, model.DerivationRevision, nil)

	delta, err := m.ToExpandedJSON(ns)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO namespace`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO agent`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO identity`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE agent SET identity_id`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO activity`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO entity`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO attachment`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE entity SET attachment_id`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO entity_attribute`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO association`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO attribution`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO delegation`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO usage`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO generation`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO wasinformedby`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO derivation`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO projector_checkpoint`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = s.Project(ctxBg(), ledger.Event{Kind: ledger.EventCommitted, BlockID: "block-1", Position: 1, Delta: delta})
	require.NoError(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Project_RollsBackOnError(t *testing.T) {
	s, mock := newMockStore(t)

	ns := id.NamespaceID{ExternalID: "default", UUID: uuid.New()}
	m := model.New()
	m.AddNamespace(ns)
	m.AddAgent(ns, "bobross")

	delta, err := m.ToExpandedJSON(ns)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO namespace`).WillReturnError(assertError)
	mock.ExpectRollback()

	err = s.Project(ctxBg(), ledger.Event{Kind: ledger.EventCommitted, BlockID: "b", Position: 1, Delta: delta})
	require.Error(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}
