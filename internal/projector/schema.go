package projector

// schema is the relational index's DDL (spec §6.3, abbreviated). chronicled
// runs this once at startup rather than carrying a full migration
// framework — see DESIGN.md for why teacher's golang-migrate/dbresolver
// pairing isn't wired here.
const schema = `
CREATE TABLE IF NOT EXISTS namespace (
	id          TEXT PRIMARY KEY,
	external_id TEXT NOT NULL,
	uuid        TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS agent (
	id            TEXT PRIMARY KEY,
	namespace_id  TEXT NOT NULL REFERENCES namespace(id),
	external_id   TEXT NOT NULL,
	domaintype    TEXT,
	identity_id   TEXT,
	attributes    JSONB NOT NULL DEFAULT '{}'::jsonb,
	UNIQUE(namespace_id, external_id)
);

CREATE TABLE IF NOT EXISTS activity (
	id            TEXT PRIMARY KEY,
	namespace_id  TEXT NOT NULL REFERENCES namespace(id),
	external_id   TEXT NOT NULL,
	domaintype    TEXT,
	started       TIMESTAMPTZ,
	ended         TIMESTAMPTZ,
	attributes    JSONB NOT NULL DEFAULT '{}'::jsonb,
	UNIQUE(namespace_id, external_id)
);

CREATE TABLE IF NOT EXISTS entity (
	id            TEXT PRIMARY KEY,
	namespace_id  TEXT NOT NULL REFERENCES namespace(id),
	external_id   TEXT NOT NULL,
	domaintype    TEXT,
	attachment_id TEXT,
	UNIQUE(namespace_id, external_id)
);

CREATE TABLE IF NOT EXISTS identity (
	id            TEXT PRIMARY KEY,
	agent_id      TEXT NOT NULL,
	public_key    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS attachment (
	id             TEXT PRIMARY KEY,
	entity_id      TEXT NOT NULL,
	signature      TEXT NOT NULL,
	signature_time TIMESTAMPTZ NOT NULL,
	locator        TEXT
);

CREATE TABLE IF NOT EXISTS entity_attribute (
	entity_id TEXT NOT NULL,
	typename  TEXT NOT NULL,
	value     JSONB NOT NULL,
	PRIMARY KEY (entity_id, typename)
);

CREATE TABLE IF NOT EXISTS association (
	namespace_id TEXT NOT NULL,
	agent        TEXT NOT NULL,
	activity     TEXT NOT NULL,
	role         TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (namespace_id, agent, activity, role)
);

CREATE TABLE IF NOT EXISTS attribution (
	namespace_id TEXT NOT NULL,
	agent        TEXT NOT NULL,
	entity       TEXT NOT NULL,
	role         TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (namespace_id, agent, entity, role)
);

CREATE TABLE IF NOT EXISTS delegation (
	namespace_id TEXT NOT NULL,
	delegate     TEXT NOT NULL,
	responsible  TEXT NOT NULL,
	role         TEXT NOT NULL DEFAULT '',
	activity     TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (namespace_id, delegate, responsible, role, activity)
);

CREATE TABLE IF NOT EXISTS usage (
	namespace_id TEXT NOT NULL,
	activity     TEXT NOT NULL,
	entity       TEXT NOT NULL,
	PRIMARY KEY (namespace_id, activity, entity)
);

CREATE TABLE IF NOT EXISTS generation (
	namespace_id TEXT NOT NULL,
	activity     TEXT NOT NULL,
	entity       TEXT NOT NULL,
	PRIMARY KEY (namespace_id, activity, entity)
);

CREATE TABLE IF NOT EXISTS wasinformedby (
	namespace_id TEXT NOT NULL,
	activity     TEXT NOT NULL,
	informing    TEXT NOT NULL,
	PRIMARY KEY (namespace_id, activity, informing)
);

CREATE TABLE IF NOT EXISTS derivation (
	namespace_id TEXT NOT NULL,
	generated    TEXT NOT NULL,
	used         TEXT NOT NULL,
	kind         TEXT NOT NULL,
	activity     TEXT,
	PRIMARY KEY (namespace_id, generated, used)
);

CREATE TABLE IF NOT EXISTS projector_checkpoint (
	id       SMALLINT PRIMARY KEY DEFAULT 1,
	block_id TEXT NOT NULL,
	position BIGINT NOT NULL
);
`
