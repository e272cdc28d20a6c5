// Package history keeps a record of emitted pass events so clients can ask
// "what did I miss" after connecting. The pass-detection core does not need
// it; dropped notifications stay dropped, but the history answers direct
// queries.
package history

import (
	"database/sql"
	"encoding/json"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/consolecowboy0/iracing-mcp-server/internal/race"
)

// Log records pass events and serves the most recent ones, newest first.
type Log interface {
	Append(ev *race.PassEvent) error
	Recent(n int) ([]*race.PassEvent, error)
	Close() error
}

// memoryLog is the fallback when no database path is configured. Bounded so
// an all-day session cannot grow without limit.
type memoryLog struct {
	mu     sync.Mutex
	events []*race.PassEvent
	max    int
}

const memoryLogCap = 256

func NewMemory() Log {
	return &memoryLog{max: memoryLogCap}
}

func (m *memoryLog) Append(ev *race.PassEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	if len(m.events) > m.max {
		m.events = m.events[len(m.events)-m.max:]
	}
	return nil
}

func (m *memoryLog) Recent(n int) ([]*race.PassEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n <= 0 || n > len(m.events) {
		n = len(m.events)
	}
	out := make([]*race.PassEvent, 0, n)
	for i := len(m.events) - 1; i >= len(m.events)-n; i-- {
		out = append(out, m.events[i])
	}
	return out, nil
}

func (m *memoryLog) Close() error { return nil }

// sqliteLog persists events to a local database file. Columns carry the
// queryable fields; the full wire payload is stored alongside so replay
// matches what was broadcast byte for byte.
type sqliteLog struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS passes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts TEXT NOT NULL,
	previous_position INTEGER NOT NULL,
	current_position INTEGER NOT NULL,
	lap_completed INTEGER NOT NULL,
	payload TEXT NOT NULL
);
`

func Open(path string) (Log, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "open history db")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create history schema")
	}
	return &sqliteLog{db: db}, nil
}

func (s *sqliteLog) Append(ev *race.PassEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal pass event")
	}
	_, err = s.db.Exec(
		`INSERT INTO passes (ts, previous_position, current_position, lap_completed, payload)
		 VALUES (?, ?, ?, ?, ?)`,
		ev.Timestamp, ev.PreviousPosition, ev.CurrentPosition, ev.LapCompleted, string(payload),
	)
	return errors.Wrap(err, "insert pass event")
}

func (s *sqliteLog) Recent(n int) ([]*race.PassEvent, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := s.db.Query(
		`SELECT payload FROM passes ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, errors.Wrap(err, "query pass history")
	}
	defer rows.Close()

	var events []*race.PassEvent
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, errors.Wrap(err, "scan pass row")
		}
		ev := &race.PassEvent{}
		if err := json.Unmarshal([]byte(payload), ev); err != nil {
			// A corrupt row should not hide the rest of the history.
			continue
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *sqliteLog) Close() error {
	return s.db.Close()
}
