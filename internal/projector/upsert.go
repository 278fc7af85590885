package projector

import (
	"context"
	"database/sql"
	"encoding/json"

	sqrl "github.com/Masterminds/squirrel"

	"github.com/chronicleworks/chronicle/internal/prov/id"
	"github.com/chronicleworks/chronicle/internal/prov/model"
)

func upsertNamespace(ctx context.Context, tx *sql.Tx, ns id.NamespaceID) (string, error) {
	nsID := ns.UUID.String()

	query, args, err := sqrl.Insert("namespace").PlaceholderFormat(sqrl.Dollar).
		Columns("id", "external_id", "uuid").
		Values(nsID, ns.ExternalID, nsID).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
	if err != nil {
		return "", err
	}

	_, err = tx.ExecContext(ctx, query, args...)

	return nsID, err
}

func upsertAgent(ctx context.Context, tx *sql.Tx, nsID string, a *model.Agent) (string, error) {
	agentID := nsID + "/" + a.ExternalID

	attrs, err := marshalAttributes(a.Attributes)
	if err != nil {
		return "", err
	}

	query, args, err := sqrl.Insert("agent").PlaceholderFormat(sqrl.Dollar).
		Columns("id", "namespace_id", "external_id", "domaintype", "attributes").
		Values(agentID, nsID, a.ExternalID, a.DomainType, attrs).
		Suffix(`ON CONFLICT (namespace_id, external_id) DO UPDATE SET
			domaintype = EXCLUDED.domaintype, attributes = EXCLUDED.attributes`).
		ToSql()
	if err != nil {
		return "", err
	}

	_, err = tx.ExecContext(ctx, query, args...)

	return agentID, err
}

func upsertActivity(ctx context.Context, tx *sql.Tx, nsID string, a *model.Activity) error {
	activityID := nsID + "/" + a.ExternalID

	attrs, err := marshalAttributes(a.Attributes)
	if err != nil {
		return err
	}

	// started/ended only move from null to set, or stay equal — a
	// contradicting re-set is rejected by the apply engine before
	// projection ever sees it (spec §4.8 step 5). On conflict COALESCE
	// keeps a stored started/ended and only fills a null column.
	query, args, err := sqrl.Insert("activity").PlaceholderFormat(sqrl.Dollar).
		Columns("id", "namespace_id", "external_id", "domaintype", "started", "ended", "attributes").
		Values(activityID, nsID, a.ExternalID, a.DomainType, a.Started, a.Ended, attrs).
		Suffix(`ON CONFLICT (namespace_id, external_id) DO UPDATE SET
			domaintype = EXCLUDED.domaintype,
			started = COALESCE(activity.started, EXCLUDED.started),
			ended = COALESCE(activity.ended, EXCLUDED.ended),
			attributes = EXCLUDED.attributes`).
		ToSql()
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, query, args...)

	return err
}

func upsertEntity(ctx context.Context, tx *sql.Tx, nsID string, e *model.Entity) (string, error) {
	entityID := nsID + "/" + e.ExternalID

	query, args, err := sqrl.Insert("entity").PlaceholderFormat(sqrl.Dollar).
		Columns("id", "namespace_id", "external_id", "domaintype").
		Values(entityID, nsID, e.ExternalID, e.DomainType).
		Suffix(`ON CONFLICT (namespace_id, external_id) DO UPDATE SET domaintype = EXCLUDED.domaintype`).
		ToSql()
	if err != nil {
		return "", err
	}

	_, err = tx.ExecContext(ctx, query, args...)

	return entityID, err
}

func upsertIdentity(ctx context.Context, tx *sql.Tx, agentID string, ref *model.IdentityRef) error {
	identityID := agentID + "#" + ref.PublicKey

	if _, _, err := execInsert(ctx, tx, "identity", map[string]any{
		"id": identityID, "agent_id": agentID, "public_key": ref.PublicKey,
	}, "id"); err != nil {
		return err
	}

	_, err := tx.ExecContext(ctx, `UPDATE agent SET identity_id = $1 WHERE id = $2`, identityID, agentID)

	return err
}

func upsertAttachment(ctx context.Context, tx *sql.Tx, entityID string, ev *model.Evidence) error {
	attachmentID := entityID + "#" + ev.Signature

	if _, _, err := execInsert(ctx, tx, "attachment", map[string]any{
		"id": attachmentID, "entity_id": entityID, "signature": ev.Signature,
		"signature_time": ev.SignatureTime, "locator": ev.Locator,
	}, "id"); err != nil {
		return err
	}

	_, err := tx.ExecContext(ctx, `UPDATE entity SET attachment_id = $1 WHERE id = $2`, attachmentID, entityID)

	return err
}

func upsertEntityAttributes(ctx context.Context, tx *sql.Tx, entityID string, attrs map[string]model.Attribute) error {
	for name, a := range attrs {
		value, err := json.Marshal(a)
		if err != nil {
			return err
		}

		if _, _, err := execInsert(ctx, tx, "entity_attribute", map[string]any{
			"entity_id": entityID, "typename": name, "value": value,
		}, "entity_id", "typename"); err != nil {
			return err
		}
	}

	return nil
}

func marshalAttributes(attrs map[string]model.Attribute) ([]byte, error) {
	return json.Marshal(attrs)
}

// execInsert upserts a single row keyed by conflictCols, overwriting
// every other column on conflict — the "replace wholesale" half of
// §4.8's upsert-per-kind algorithm (identity/attachment/entity_attribute
// are each last-writer-wins, unlike the plain relation tables which are
// insert-or-ignore on their natural key).
func execInsert(ctx context.Context, tx *sql.Tx, table string, cols map[string]any, conflictCols ...string) (sql.Result, string, error) {
	names := make([]string, 0, len(cols))
	for k := range cols {
		names = append(names, k)
	}

	vals := make([]any, len(names))

	updates := make([]sqrl.Sqlizer, 0, len(names))

	for i, n := range names {
		vals[i] = cols[n]

		if !contains(conflictCols, n) {
			updates = append(updates, sqrl.Expr(n+" = EXCLUDED."+n))
		}
	}

	suffix := "ON CONFLICT (" + joinCols(conflictCols) + ")"
	if len(updates) == 0 {
		suffix += " DO NOTHING"
	} else {
		suffix += " DO UPDATE SET " + joinSqlizers(updates)
	}

	query, args, err := sqrl.Insert(table).PlaceholderFormat(sqrl.Dollar).
		Columns(names...).Values(vals...).
		Suffix(suffix).
		ToSql()
	if err != nil {
		return nil, "", err
	}

	res, err := tx.ExecContext(ctx, query, args...)

	return res, query, err
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}

	return false
}

func joinSqlizers(parts []sqrl.Sqlizer) string {
	out := ""

	for i, p := range parts {
		sql, _, _ := p.ToSql()

		if i > 0 {
			out += ", "
		}

		out += sql
	}

	return out
}
