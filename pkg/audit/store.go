package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"strconv"
	"time"

	"github.com/lib/pq"
)

// Schema creates the messages table when it does not exist yet.
const Schema = `CREATE TABLE IF NOT EXISTS messages (
	id        BIGSERIAL PRIMARY KEY,
	facility  INTEGER NOT NULL,
	severity  INTEGER NOT NULL,
	timestamp TIMESTAMPTZ NOT NULL,
	hostname  TEXT NOT NULL,
	appname   TEXT NOT NULL,
	procid    TEXT NOT NULL,
	msgid     TEXT NOT NULL,
	tenant    TEXT NOT NULL DEFAULT '',
	sdids     TEXT[] NOT NULL DEFAULT '{}',
	sdata     JSONB,
	message   TEXT NOT NULL
)`

const insertMessage = `INSERT INTO messages
	(facility, severity, timestamp, hostname, appname, procid, msgid, tenant, sdids, sdata, message)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

// Store writes audit events to the PostgreSQL messages table.
type Store struct {
	db       *sql.DB
	hostname string
	procid   string
	now      func() time.Time
}

// NewStore opens a store from AUDIT_DATABASE_URL.
// Returns nil if AUDIT_DATABASE_URL is not set (audit DB disabled).
func NewStore() (*Store, error) {
	dbURL := os.Getenv("AUDIT_DATABASE_URL")
	if dbURL == "" {
		return nil, nil
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, err
	}
	return NewStoreWithDB(db), nil
}

// NewStoreWithDB creates a store with an existing database connection
func NewStoreWithDB(db *sql.DB) *Store {
	hostname, _ := os.Hostname()
	return &Store{
		db:       db,
		hostname: hostname,
		procid:   strconv.Itoa(os.Getpid()),
		now:      time.Now,
	}
}

// EnsureSchema creates the messages table if needed.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx, Schema)
	return err
}

// Close closes the database connection
func (s *Store) Close() error {
	if s != nil && s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save inserts one row for event. The tenant and the structured data ids are
// stored in their own columns so rows can be filtered without parsing sdata.
func (s *Store) Save(event Event) error {
	if s == nil || s.db == nil {
		return nil
	}

	sd := event.StructuredData()
	sdataJSON, err := json.Marshal(sd)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(insertMessage,
		event.Facility(),
		int(event.Severity()),
		s.now().UTC(),
		s.hostname,
		AppName,
		s.procid,
		event.MessageID(),
		sd[SDIDTenant]["tenant"],
		pq.Array(sortedIDs(sd)),
		sdataJSON,
		event.Message(),
	)
	return err
}
