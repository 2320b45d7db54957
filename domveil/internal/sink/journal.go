package sink

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/veil/dbopen"
	"github.com/hazyhaar/veil/domveil/protocol"
	"github.com/hazyhaar/veil/idgen"
)

// JournalSchema creates the outbound message journal.
const JournalSchema = `
CREATE TABLE IF NOT EXISTS outbound (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	kind       TEXT NOT NULL,
	payload    TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS outbound_session ON outbound(session_id, created_at);
`

// Entry is one journaled message.
type Entry struct {
	ID        string
	SessionID string
	Kind      string
	Payload   string
	CreatedAt int64
}

// Journal appends every outbound message to an SQLite table, giving a
// replayable record of what the controller was sent.
type Journal struct {
	db        *sql.DB
	sessionID string
	newID     idgen.Generator
	owned     bool
}

// OpenJournal opens (or creates) a journal database at path.
func OpenJournal(path, sessionID string) (*Journal, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(JournalSchema))
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	j := NewJournal(db, sessionID)
	j.owned = true
	return j, nil
}

// NewJournal wraps an already opened database. The schema must exist.
func NewJournal(db *sql.DB, sessionID string) *Journal {
	return &Journal{db: db, sessionID: sessionID, newID: idgen.Prefixed("jrn_", idgen.UUIDv7())}
}

func (j *Journal) Send(ctx context.Context, msg protocol.Outbound) error {
	data, err := protocol.MarshalOutbound(msg)
	if err != nil {
		return fmt.Errorf("journal: marshal: %w", err)
	}
	_, err = dbopen.Exec(ctx, j.db,
		`INSERT INTO outbound (id, session_id, kind, payload, created_at) VALUES (?, ?, ?, ?, ?)`,
		j.newID(), j.sessionID, msg.Kind(), string(data), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("journal: insert: %w", err)
	}
	return nil
}

// Entries returns the messages journaled for a session, oldest first.
func (j *Journal) Entries(ctx context.Context, sessionID string) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, session_id, kind, payload, created_at FROM outbound
		 WHERE session_id = ? ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("journal: query: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Kind, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the database if the journal opened it.
func (j *Journal) Close() error {
	if j.owned {
		return j.db.Close()
	}
	return nil
}
