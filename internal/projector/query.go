package projector

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/chronicleworks/chronicle/internal/prov/id"
	"github.com/chronicleworks/chronicle/internal/prov/model"
	"github.com/chronicleworks/chronicle/pkg/chronerr"
)

// Query reads namespaceExternalID's full graph back out of the relational
// index (spec §6.4: "query(namespace) -> ProvModel — read-through on the
// persistent projection"). Unlike Dispatcher.runQuery's in-process
// mirror, this is authoritative across every dispatcher node sharing the
// same database.
func Query(ctx context.Context, s *Store, namespaceExternalID string) (*model.Model, error) {
	var nsIDStr string

	err := s.db.QueryRowContext(ctx, `SELECT id FROM namespace WHERE external_id = $1`, namespaceExternalID).Scan(&nsIDStr)
	if errors.Is(err, sql.ErrNoRows) {
		return model.New(), nil
	}

	if err != nil {
		return nil, chronerr.StoreError{Op: "query namespace", Err: err}
	}

	u, err := uuid.Parse(nsIDStr)
	if err != nil {
		return nil, chronerr.StoreError{Op: "query namespace", Err: err}
	}

	ns := id.NamespaceID{ExternalID: namespaceExternalID, UUID: u}

	m := model.New()
	m.AddNamespace(ns)

	if err := queryAgents(ctx, s.db, ns, m); err != nil {
		return nil, err
	}

	if err := queryActivities(ctx, s.db, ns, m); err != nil {
		return nil, err
	}

	entityIDs, err := queryEntities(ctx, s.db, ns, m)
	if err != nil {
		return nil, err
	}

	if err := queryEntityAttributes(ctx, s.db, entityIDs, m, ns); err != nil {
		return nil, err
	}

	if err := queryRelations(ctx, s.db, ns, m); err != nil {
		return nil, err
	}

	return m, nil
}

func queryAgents(ctx context.Context, db *sql.DB, ns id.NamespaceID, m *model.Model) error {
	rows, err := db.QueryContext(ctx, `
		SELECT a.external_id, a.domaintype, a.attributes, i.public_key
		FROM agent a LEFT JOIN identity i ON i.id = a.identity_id
		WHERE a.namespace_id = $1`, ns.UUID.String())
	if err != nil {
		return chronerr.StoreError{Op: "query agents", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var externalID string

		var domainType sql.NullString

		var attrsJSON []byte

		var publicKey sql.NullString

		if err := rows.Scan(&externalID, &domainType, &attrsJSON, &publicKey); err != nil {
			return chronerr.StoreError{Op: "scan agent", Err: err}
		}

		agent := m.AddAgent(ns, externalID)
		if domainType.Valid {
			agent.DomainType = &domainType.String
		}

		if err := unmarshalAttributes(attrsJSON, &agent.Attributes); err != nil {
			return err
		}

		if publicKey.Valid {
			agent.CurrentIdentity = &model.IdentityRef{AgentExternalID: externalID, PublicKey: publicKey.String}
		}
	}

	return rows.Err()
}

func queryActivities(ctx context.Context, db *sql.DB, ns id.NamespaceID, m *model.Model) error {
	rows, err := db.QueryContext(ctx, `
		SELECT external_id, domaintype, started, ended, attributes
		FROM activity WHERE namespace_id = $1`, ns.UUID.String())
	if err != nil {
		return chronerr.StoreError{Op: "query activities", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var externalID string

		var domainType sql.NullString

		var started, ended sql.NullTime

		var attrsJSON []byte

		if err := rows.Scan(&externalID, &domainType, &started, &ended, &attrsJSON); err != nil {
			return chronerr.StoreError{Op: "scan activity", Err: err}
		}

		activity := m.AddActivity(ns, externalID)
		if domainType.Valid {
			activity.DomainType = &domainType.String
		}

		if started.Valid {
			t := started.Time
			activity.Started = &t
		}

		if ended.Valid {
			t := ended.Time
			activity.Ended = &t
		}

		if err := unmarshalAttributes(attrsJSON, &activity.Attributes); err != nil {
			return err
		}
	}

	return rows.Err()
}

func queryEntities(ctx context.Context, db *sql.DB, ns id.NamespaceID, m *model.Model) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT e.id, e.external_id, e.domaintype, t.signature, t.signature_time, t.locator
		FROM entity e LEFT JOIN attachment t ON t.id = e.attachment_id
		WHERE e.namespace_id = $1`, ns.UUID.String())
	if err != nil {
		return nil, chronerr.StoreError{Op: "query entities", Err: err}
	}
	defer rows.Close()

	var ids []string

	for rows.Next() {
		var entityID, externalID string

		var domainType, signature, locator sql.NullString

		var signatureTime sql.NullTime

		if err := rows.Scan(&entityID, &externalID, &domainType, &signature, &signatureTime, &locator); err != nil {
			return nil, chronerr.StoreError{Op: "scan entity", Err: err}
		}

		entity := m.AddEntity(ns, externalID)
		if domainType.Valid {
			entity.DomainType = &domainType.String
		}

		if signature.Valid {
			ev := &model.Evidence{Signature: signature.String}
			if signatureTime.Valid {
				ev.SignatureTime = signatureTime.Time
			}

			if locator.Valid {
				ev.Locator = &locator.String
			}

			entity.Evidence = ev
		}

		ids = append(ids, entityID)
	}

	return ids, rows.Err()
}

func queryEntityAttributes(ctx context.Context, db *sql.DB, entityIDs []string, m *model.Model, ns id.NamespaceID) error {
	if len(entityIDs) == 0 {
		return nil
	}

	rows, err := db.QueryContext(ctx, `
		SELECT entity_id, typename, value FROM entity_attribute WHERE entity_id = ANY($1)`, pq.Array(entityIDs))
	if err != nil {
		return chronerr.StoreError{Op: "query entity attributes", Err: err}
	}
	defer rows.Close()

	byID := make(map[string]string, len(entityIDs))
	for key, e := range m.Entities {
		if key.Namespace == ns {
			byID[ns.UUID.String()+"/"+e.ExternalID] = e.ExternalID
		}
	}

	for rows.Next() {
		var entityID, typename string

		var value []byte

		if err := rows.Scan(&entityID, &typename, &value); err != nil {
			return chronerr.StoreError{Op: "scan entity attribute", Err: err}
		}

		externalID, ok := byID[entityID]
		if !ok {
			continue
		}

		var attr model.Attribute
		if err := json.Unmarshal(value, &attr); err != nil {
			return chronerr.ProcessorError{Message: "unmarshal entity attribute", Err: err}
		}

		if e, ok := m.GetEntity(ns, externalID); ok {
			e.Attributes[typename] = attr
		}
	}

	return rows.Err()
}

func queryRelations(ctx context.Context, db *sql.DB, ns id.NamespaceID, m *model.Model) error {
	nsID := ns.UUID.String()

	if err := queryRows(ctx, db, `SELECT agent, activity, role FROM association WHERE namespace_id = $1`, nsID, func(s *sql.Rows) error {
		var agent, activity, role string
		if err := s.Scan(&agent, &activity, &role); err != nil {
			return err
		}
		m.AddAssociation(model.AssociationKey{Namespace: ns, Agent: agent, Activity: activity, Role: role})
		return nil
	}); err != nil {
		return err
	}

	if err := queryRows(ctx, db, `SELECT agent, entity, role FROM attribution WHERE namespace_id = $1`, nsID, func(s *sql.Rows) error {
		var agent, entity, role string
		if err := s.Scan(&agent, &entity, &role); err != nil {
			return err
		}
		m.AddAttribution(model.AttributionKey{Namespace: ns, Agent: agent, Entity: entity, Role: role})
		return nil
	}); err != nil {
		return err
	}

	if err := queryRows(ctx, db, `SELECT delegate, responsible, role, activity FROM delegation WHERE namespace_id = $1`, nsID, func(s *sql.Rows) error {
		var delegate, responsible, role, activity string
		if err := s.Scan(&delegate, &responsible, &role, &activity); err != nil {
			return err
		}
		m.AddDelegation(model.DelegationKey{Namespace: ns, Delegate: delegate, Responsible: responsible, Role: role, Activity: activity})
		return nil
	}); err != nil {
		return err
	}

	if err := queryRows(ctx, db, `SELECT activity, entity FROM usage WHERE namespace_id = $1`, nsID, func(s *sql.Rows) error {
		var activity, entity string
		if err := s.Scan(&activity, &entity); err != nil {
			return err
		}
		m.AddUsage(model.UsageKey{Namespace: ns, Activity: activity, Entity: entity})
		return nil
	}); err != nil {
		return err
	}

	if err := queryRows(ctx, db, `SELECT activity, entity FROM generation WHERE namespace_id = $1`, nsID, func(s *sql.Rows) error {
		var activity, entity string
		if err := s.Scan(&activity, &entity); err != nil {
			return err
		}
		m.AddGeneration(model.GenerationKey{Namespace: ns, Activity: activity, Entity: entity})
		return nil
	}); err != nil {
		return err
	}

	if err := queryRows(ctx, db, `SELECT activity, informing FROM wasinformedby WHERE namespace_id = $1`, nsID, func(s *sql.Rows) error {
		var activity, informing string
		if err := s.Scan(&activity, &informing); err != nil {
			return err
		}
		m.AddInformedBy(model.InformedByKey{Namespace: ns, Activity: activity, Informing: informing})
		return nil
	}); err != nil {
		return err
	}

	return queryRows(ctx, db, `SELECT generated, used, kind, activity FROM derivation WHERE namespace_id = $1`, nsID, func(s *sql.Rows) error {
		var generated, used, kind string

		var activity sql.NullString

		if err := s.Scan(&generated, &used, &kind, &activity); err != nil {
			return err
		}

		var activityPtr *string
		if activity.Valid {
			activityPtr = &activity.String
		}

		m.SetDerivation(model.DerivationKey{Namespace: ns, Generated: generated, Used: used}, model.DerivationKind(kind), activityPtr)

		return nil
	})
}

func queryRows(ctx context.Context, db *sql.DB, query, nsID string, scan func(*sql.Rows) error) error {
	rows, err := db.QueryContext(ctx, query, nsID)
	if err != nil {
		return chronerr.StoreError{Op: "query relation", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return chronerr.StoreError{Op: "scan relation", Err: err}
		}
	}

	return rows.Err()
}

func unmarshalAttributes(data []byte, out *map[string]model.Attribute) error {
	if len(data) == 0 {
		return nil
	}

	var attrs map[string]model.Attribute
	if err := json.Unmarshal(data, &attrs); err != nil {
		return chronerr.ProcessorError{Message: "unmarshal attributes", Err: err}
	}

	for k, v := range attrs {
		(*out)[k] = v
	}

	return nil
}
