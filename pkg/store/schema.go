package store

// schemaStatements is the ordered list of DDL statements that bring a
// fresh or existing database file up to the current schema. Statements
// are idempotent (CREATE ... IF NOT EXISTS) so Open can run them
// unconditionally on every startup, the same "statement list applied in
// order" shape the teacher's writeSchema uses, generalized from a
// single tool-call ledger into NOVA's five-lane event store.
var schemaStatements = []string{
	"PRAGMA journal_mode=WAL;",
	"PRAGMA synchronous=NORMAL;",
	"PRAGMA busy_timeout=30000;",

	`CREATE TABLE IF NOT EXISTS event_index (
		event_id   TEXT PRIMARY KEY,
		lane       TEXT NOT NULL,
		ingest_seq INTEGER
	);`,

	`CREATE TABLE IF NOT EXISTS raw_events (
		event_id             TEXT PRIMARY KEY,
		scope_id             TEXT NOT NULL,
		source_truth_time    TEXT NOT NULL,
		canonical_truth_time TEXT NOT NULL,
		system_id            TEXT NOT NULL,
		container_id         TEXT NOT NULL,
		unique_id            TEXT NOT NULL,
		ingest_seq           INTEGER NOT NULL,
		connection_id        TEXT,
		sequence              INTEGER,
		raw_bytes            BLOB NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS parsed_events (
		event_id             TEXT PRIMARY KEY,
		scope_id             TEXT NOT NULL,
		source_truth_time    TEXT NOT NULL,
		canonical_truth_time TEXT NOT NULL,
		system_id            TEXT NOT NULL,
		container_id         TEXT NOT NULL,
		unique_id            TEXT NOT NULL,
		ingest_seq           INTEGER NOT NULL,
		message_type         TEXT NOT NULL,
		schema_version       INTEGER NOT NULL,
		payload_json         TEXT NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS ui_events (
		event_id             TEXT PRIMARY KEY,
		scope_id             TEXT NOT NULL,
		source_truth_time    TEXT NOT NULL,
		canonical_truth_time TEXT NOT NULL,
		system_id            TEXT NOT NULL,
		container_id         TEXT NOT NULL,
		unique_id            TEXT NOT NULL,
		ingest_seq           INTEGER NOT NULL,
		message_type         TEXT NOT NULL,
		view_id              TEXT NOT NULL,
		manifest_id          TEXT NOT NULL,
		manifest_version     TEXT NOT NULL,
		payload_json         TEXT NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS command_events (
		event_id             TEXT PRIMARY KEY,
		scope_id             TEXT NOT NULL,
		source_truth_time    TEXT NOT NULL,
		canonical_truth_time TEXT NOT NULL,
		system_id            TEXT NOT NULL,
		container_id         TEXT NOT NULL,
		unique_id            TEXT NOT NULL,
		ingest_seq           INTEGER NOT NULL,
		message_type         TEXT NOT NULL,
		command_id           TEXT NOT NULL,
		request_id           TEXT,
		target_id            TEXT,
		command_type         TEXT,
		payload_json         TEXT NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS metadata_events (
		event_id             TEXT PRIMARY KEY,
		scope_id             TEXT NOT NULL,
		source_truth_time    TEXT NOT NULL,
		canonical_truth_time TEXT NOT NULL,
		ingest_seq           INTEGER NOT NULL,
		message_type         TEXT NOT NULL,
		effective_time       TEXT,
		manifest_id          TEXT,
		payload_json         TEXT NOT NULL
	);`,

	// Per lane: (sourceTruthTime, eventId) and (canonicalTruthTime,
	// eventId), per spec.md §4.3's "Indexes required" list, item 1 —
	// these back Global Truth Order scans under either timebase without
	// reference to a specific entity.
	"CREATE INDEX IF NOT EXISTS idx_raw_source_time ON raw_events(source_truth_time, event_id);",
	"CREATE INDEX IF NOT EXISTS idx_raw_canonical_time ON raw_events(canonical_truth_time, event_id);",
	"CREATE INDEX IF NOT EXISTS idx_parsed_source_time ON parsed_events(source_truth_time, event_id);",
	"CREATE INDEX IF NOT EXISTS idx_parsed_canonical_time ON parsed_events(canonical_truth_time, event_id);",
	"CREATE INDEX IF NOT EXISTS idx_ui_source_time ON ui_events(source_truth_time, event_id);",
	"CREATE INDEX IF NOT EXISTS idx_ui_canonical_time ON ui_events(canonical_truth_time, event_id);",
	"CREATE INDEX IF NOT EXISTS idx_command_source_time ON command_events(source_truth_time, event_id);",
	"CREATE INDEX IF NOT EXISTS idx_command_canonical_time ON command_events(canonical_truth_time, event_id);",
	"CREATE INDEX IF NOT EXISTS idx_metadata_source_time ON metadata_events(source_truth_time, event_id);",
	"CREATE INDEX IF NOT EXISTS idx_metadata_canonical_time ON metadata_events(canonical_truth_time, event_id);",

	// Per lane: (systemId, containerId, uniqueId) composed with each
	// timebase, for entity-scoped scans (item 2). metadata_events has no
	// entity columns (metadata is scope-level, not entity-level), so it
	// has no equivalent here.
	"CREATE INDEX IF NOT EXISTS idx_raw_entity_source ON raw_events(system_id, container_id, unique_id, source_truth_time);",
	"CREATE INDEX IF NOT EXISTS idx_raw_entity_canonical ON raw_events(system_id, container_id, unique_id, canonical_truth_time);",

	"CREATE INDEX IF NOT EXISTS idx_parsed_entity_source ON parsed_events(system_id, container_id, unique_id, source_truth_time);",
	"CREATE INDEX IF NOT EXISTS idx_parsed_entity_canonical ON parsed_events(system_id, container_id, unique_id, canonical_truth_time);",
	"CREATE INDEX IF NOT EXISTS idx_parsed_message_type ON parsed_events(message_type);",

	"CREATE INDEX IF NOT EXISTS idx_ui_entity_source ON ui_events(system_id, container_id, unique_id, source_truth_time);",
	"CREATE INDEX IF NOT EXISTS idx_ui_entity_canonical ON ui_events(system_id, container_id, unique_id, canonical_truth_time);",
	"CREATE INDEX IF NOT EXISTS idx_ui_view_manifest ON ui_events(view_id, manifest_id, manifest_version, source_truth_time);",

	"CREATE INDEX IF NOT EXISTS idx_command_entity_source ON command_events(system_id, container_id, unique_id, source_truth_time);",
	"CREATE INDEX IF NOT EXISTS idx_command_entity_canonical ON command_events(system_id, container_id, unique_id, canonical_truth_time);",
	"CREATE INDEX IF NOT EXISTS idx_command_type ON command_events(command_type);",

	// Command lane: conditional unique index on requestId (item 3).
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_command_request_id
		ON command_events(request_id)
		WHERE message_type = 'CommandRequest' AND request_id IS NOT NULL;`,

	// Metadata lane: (manifestId, messageType) and (effectiveTime),
	// exactly as item 4 names them — two separate indexes, not one
	// composite, since binding.go's bindingResolver.at() filters on
	// messageType without always supplying manifestId.
	"CREATE INDEX IF NOT EXISTS idx_metadata_manifest_type ON metadata_events(manifest_id, message_type);",
	"CREATE INDEX IF NOT EXISTS idx_metadata_effective_time ON metadata_events(effective_time);",
	"CREATE INDEX IF NOT EXISTS idx_metadata_scope_source ON metadata_events(scope_id, source_truth_time);",
}
