// Package projector implements the Persistence Projector (spec §4.8): an
// idempotent fold of each committed delta into a relational index, so
// queries can read through a SQL store instead of the in-process mirror
// any single dispatcher node happens to hold.
package projector

import (
	"context"
	"database/sql"
	"errors"

	sqrl "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/chronicleworks/chronicle/internal/ledger"
	"github.com/chronicleworks/chronicle/internal/prov/model"
	"github.com/chronicleworks/chronicle/pkg/chronerr"
)

// Store owns the projector's connection pool, grounded on teacher's
// OrganizationPostgreSQLRepository/InstrumentPostgreSQLRepository shape
// (*sql.DB + squirrel, one repository per aggregate) but collapsed into
// one struct since the projector writes one committed delta atomically
// across every PROV record kind rather than one aggregate at a time.
type Store struct {
	db *sql.DB
}

// Open connects to connStr via the pgx stdlib driver and ensures the
// schema exists.
func Open(ctx context.Context, connStr string) (*Store, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, chronerr.StoreError{Op: "open", Err: err}
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, chronerr.StoreError{Op: "ping", Err: err}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, chronerr.StoreError{Op: "ensure-schema", Err: err}
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Project applies a single committed event, per spec §4.8 steps 1-5, in
// one database transaction. A non-committed or empty-delta event (a
// depth charge, a contradicted transaction) still advances the
// checkpoint so a restart doesn't replay past it.
func (s *Store) Project(ctx context.Context, ev ledger.Event) error {
	if ev.Kind != ledger.EventCommitted || len(ev.Delta) == 0 {
		return s.checkpointOnly(ctx, ev.BlockID, ev.Position)
	}

	m, ns, err := model.FromExpandedJSON(ev.Delta)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return chronerr.StoreError{Op: "begin", Err: err}
	}
	defer tx.Rollback() //nolint:errcheck

	nsID, err := upsertNamespace(ctx, tx, ns)
	if err != nil {
		return translate(err, "namespace")
	}

	for key, a := range m.Agents {
		if key.Namespace != ns {
			continue
		}

		agentID, err := upsertAgent(ctx, tx, nsID, a)
		if err != nil {
			return translate(err, "agent")
		}

		if a.CurrentIdentity != nil {
			if err := upsertIdentity(ctx, tx, agentID, a.CurrentIdentity); err != nil {
				return translate(err, "identity")
			}
		}
	}

	for key, a := range m.Activities {
		if key.Namespace != ns {
			continue
		}

		if err := upsertActivity(ctx, tx, nsID, a); err != nil {
			return translate(err, "activity")
		}
	}

	for key, e := range m.Entities {
		if key.Namespace != ns {
			continue
		}

		entityID, err := upsertEntity(ctx, tx, nsID, e)
		if err != nil {
			return translate(err, "entity")
		}

		if e.Evidence != nil {
			if err := upsertAttachment(ctx, tx, entityID, e.Evidence); err != nil {
				return translate(err, "attachment")
			}
		}

		if err := upsertEntityAttributes(ctx, tx, entityID, e.Attributes); err != nil {
			return translate(err, "entity attributes")
		}
	}

	for key := range m.Associations {
		if key.Namespace != ns {
			continue
		}

		if err := insertIgnore(ctx, tx, "association", map[string]any{
			"namespace_id": nsID, "agent": key.Agent, "activity": key.Activity, "role": key.Role,
		}, "namespace_id", "agent", "activity", "role"); err != nil {
			return translate(err, "association")
		}
	}

	for key := range m.Attributions {
		if key.Namespace != ns {
			continue
		}

		if err := insertIgnore(ctx, tx, "attribution", map[string]any{
			"namespace_id": nsID, "agent": key.Agent, "entity": key.Entity, "role": key.Role,
		}, "namespace_id", "agent", "entity", "role"); err != nil {
			return translate(err, "attribution")
		}
	}

	for key := range m.Delegations {
		if key.Namespace != ns {
			continue
		}

		if err := insertIgnore(ctx, tx, "delegation", map[string]any{
			"namespace_id": nsID, "delegate": key.Delegate, "responsible": key.Responsible,
			"role": key.Role, "activity": key.Activity,
		}, "namespace_id", "delegate", "responsible", "role", "activity"); err != nil {
			return translate(err, "delegation")
		}
	}

	for key := range m.Usages {
		if key.Namespace != ns {
			continue
		}

		if err := insertIgnore(ctx, tx, "usage", map[string]any{
			"namespace_id": nsID, "activity": key.Activity, "entity": key.Entity,
		}, "namespace_id", "activity", "entity"); err != nil {
			return translate(err, "usage")
		}
	}

	for key := range m.Generations {
		if key.Namespace != ns {
			continue
		}

		if err := insertIgnore(ctx, tx, "generation", map[string]any{
			"namespace_id": nsID, "activity": key.Activity, "entity": key.Entity,
		}, "namespace_id", "activity", "entity"); err != nil {
			return translate(err, "generation")
		}
	}

	for key := range m.InformedBys {
		if key.Namespace != ns {
			continue
		}

		if err := insertIgnore(ctx, tx, "wasinformedby", map[string]any{
			"namespace_id": nsID, "activity": key.Activity, "informing": key.Informing,
		}, "namespace_id", "activity", "informing"); err != nil {
			return translate(err, "wasinformedby")
		}
	}

	for key, d := range m.Derivations {
		if key.Namespace != ns {
			continue
		}

		if err := insertIgnore(ctx, tx, "derivation", map[string]any{
			"namespace_id": nsID, "generated": key.Generated, "used": key.Used,
			"kind": string(d.Kind), "activity": d.Activity,
		}, "namespace_id", "generated", "used"); err != nil {
			return translate(err, "derivation")
		}
	}

	if err := writeCheckpoint(ctx, tx, ev.BlockID, ev.Position); err != nil {
		return translate(err, "checkpoint")
	}

	if err := tx.Commit(); err != nil {
		return chronerr.StoreError{Op: "commit", Err: err}
	}

	return nil
}

func (s *Store) checkpointOnly(ctx context.Context, blockID string, position uint64) error {
	if blockID == "" {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return chronerr.StoreError{Op: "begin", Err: err}
	}
	defer tx.Rollback() //nolint:errcheck

	if err := writeCheckpoint(ctx, tx, blockID, position); err != nil {
		return translate(err, "checkpoint")
	}

	if err := tx.Commit(); err != nil {
		return chronerr.StoreError{Op: "commit", Err: err}
	}

	return nil
}

// Checkpoint returns the last successfully projected block position, or
// ledger.Position{Kind: ledger.PositionFirst} if the projector has never
// run (spec §4.8: "resumes from it on restart").
func (s *Store) Checkpoint(ctx context.Context) (ledger.Position, error) {
	var blockID string

	err := s.db.QueryRowContext(ctx, `SELECT block_id FROM projector_checkpoint WHERE id = 1`).Scan(&blockID)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Position{Kind: ledger.PositionFirst}, nil
	}

	if err != nil {
		return ledger.Position{}, chronerr.StoreError{Op: "checkpoint", Err: err}
	}

	return ledger.Position{Kind: ledger.PositionBlock, BlockID: blockID}, nil
}

func writeCheckpoint(ctx context.Context, tx *sql.Tx, blockID string, position uint64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projector_checkpoint (id, block_id, position) VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET block_id = EXCLUDED.block_id, position = EXCLUDED.position
	`, blockID, position)

	return err
}

// insertIgnore renders an INSERT ... ON CONFLICT DO NOTHING for a
// relation row keyed by its natural tuple (spec §4.8 step 4).
func insertIgnore(ctx context.Context, tx *sql.Tx, table string, cols map[string]any, conflictCols ...string) error {
	names := make([]string, 0, len(cols))
	for k := range cols {
		names = append(names, k)
	}

	vals := make([]any, len(names))
	for i, n := range names {
		vals[i] = cols[n]
	}

	query, args, err := sqrl.Insert(table).PlaceholderFormat(sqrl.Dollar).
		Columns(names...).Values(vals...).
		Suffix("ON CONFLICT (" + joinCols(conflictCols) + ") DO NOTHING").
		ToSql()
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, query, args...)

	return err
}

func joinCols(cols []string) string {
	out := ""

	for i, c := range cols {
		if i > 0 {
			out += ", "
		}

		out += c
	}

	return out
}

func translate(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return chronerr.StoreError{Op: op, Message: pgErr.Message, Err: err}
	}

	return chronerr.StoreError{Op: op, Err: err}
}
