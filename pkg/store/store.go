// Package store is NOVA's append-only persistence layer: one logical
// table per lane plus a shared event_index for global dedupe, per
// spec.md §4.3. It is the only component permitted to mutate
// persistent state.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/peakyragnar/nova/pkg/event"
	"github.com/peakyragnar/nova/pkg/novaerr"
)

// lockTimeout bounds writer-handle acquisition, per spec.md §5: "Store
// locks carry a timeout (default 30s) and fail loud rather than
// deadlock."
const lockTimeout = 30 * time.Second

// Outcome is the result of an Insert call.
type Outcome struct {
	// Inserted is true when the event was newly persisted.
	Inserted bool
	// IngestSeq is the monotonic File Parity Order position assigned to
	// the event. Zero when Inserted is false.
	IngestSeq int64
}

// Store wraps a writer and a reader *sql.DB handle over one SQLite
// file, the generalization of the teacher's single sqlite3-CLI-backed
// ledger into a concurrent, long-lived database/sql store.
type Store struct {
	writer   *sql.DB
	reader   *sql.DB
	writeMu  sync.Mutex
	dbPath   string
}

// Open creates (if needed) the database file's parent directory,
// opens the writer and reader handles, and applies the schema.
func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("store: dbPath is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("store: create db dir: %w", err)
	}

	writerDSN := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=30000", dbPath)
	writer, err := sql.Open("sqlite3", writerDSN)
	if err != nil {
		return nil, novaerr.Store("open writer handle", err)
	}
	writer.SetMaxOpenConns(1)

	readerDSN := fmt.Sprintf("file:%s?mode=ro&_journal_mode=WAL&_busy_timeout=30000", dbPath)
	reader, err := sql.Open("sqlite3", readerDSN)
	if err != nil {
		writer.Close()
		return nil, novaerr.Store("open reader handle", err)
	}
	reader.SetMaxOpenConns(8)

	s := &Store{writer: writer, reader: reader, dbPath: dbPath}
	if err := s.migrate(); err != nil {
		writer.Close()
		reader.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	for _, stmt := range schemaStatements {
		if _, err := s.writer.Exec(stmt); err != nil {
			return novaerr.Store("apply schema: "+stmt, err)
		}
	}
	return nil
}

// Close closes both handles.
func (s *Store) Close() error {
	writerErr := s.writer.Close()
	readerErr := s.reader.Close()
	if writerErr != nil {
		return writerErr
	}
	return readerErr
}

// Checkpoint collapses the WAL into the base file, per spec.md §4.3.
func (s *Store) Checkpoint(ctx context.Context) error {
	if err := s.acquireWriter(ctx); err != nil {
		return err
	}
	defer s.writeMu.Unlock()

	if _, err := s.writer.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE);"); err != nil {
		return novaerr.Store("checkpoint", err)
	}
	return nil
}

// acquireWriter serializes writer-handle access with a timeout, so a
// stuck writer fails loud instead of deadlocking every caller.
func (s *Store) acquireWriter(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.writeMu.Lock()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(lockTimeout):
		return novaerr.Store("writer lock timeout", fmt.Errorf("exceeded %s", lockTimeout))
	case <-ctx.Done():
		return novaerr.Wrap(novaerr.KindCancelled, "store: acquire writer", ctx.Err())
	}
}

// Insert atomically dedupes and persists e. eventIndex is checked
// first; a unique-key violation means the event is already present and
// Insert returns Outcome{Inserted: false} without error, per spec.md
// §4.3's "abort and return Duplicate (expected, silent)".
func (s *Store) Insert(ctx context.Context, e event.Event) (Outcome, error) {
	if err := s.acquireWriter(ctx); err != nil {
		return Outcome{}, err
	}
	defer s.writeMu.Unlock()

	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return Outcome{}, novaerr.Store("begin transaction", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO event_index (event_id, lane) VALUES (?, ?);",
		e.EventID, string(e.Lane))
	if err != nil {
		if isUniqueViolation(err) {
			return Outcome{Inserted: false}, nil
		}
		return Outcome{}, novaerr.Store("insert event_index", err)
	}
	ingestSeq, err := res.LastInsertId()
	if err != nil {
		return Outcome{}, novaerr.Store("read ingest_seq", err)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE event_index SET ingest_seq = ? WHERE event_id = ?;",
		ingestSeq, e.EventID); err != nil {
		return Outcome{}, novaerr.Store("stamp ingest_seq", err)
	}

	if err := insertLaneRow(ctx, tx, e, ingestSeq); err != nil {
		return Outcome{}, err
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return Outcome{Inserted: false}, nil
		}
		return Outcome{}, novaerr.Store("commit", err)
	}

	return Outcome{Inserted: true, IngestSeq: ingestSeq}, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}
