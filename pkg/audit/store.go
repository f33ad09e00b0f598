package audit

import (
	"database/sql"
	"encoding/json"
	"os"
	"time"

	_ "github.com/lib/pq"
)

// Store persists audit events to the messages table. Besides the RFC5424
// fields each row carries the event's Subject in its own columns so the
// trail of a resource or an operator can be queried without parsing sdata.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore opens AUDIT_DATABASE_URL. It returns nil when the variable is unset.
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

// NewStoreWithDB wraps an existing connection.
func NewStoreWithDB(db *sql.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save inserts one event.
func (s *Store) Save(event Event) error {
	if s.db == nil {
		return nil
	}

	sdataJSON, err := json.Marshal(event.StructuredData())
	if err != nil {
		return err
	}

	subject := event.Subject()
	_, err = s.db.Exec(`
		INSERT INTO messages (facility, severity, timestamp, msgid, operation, operator_id, resource_id, did, success, sdata, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		event.Facility(),
		int(event.Severity()),
		s.now(),
		event.MessageID(),
		subject.Operation,
		nullable(subject.OperatorID),
		nullable(subject.ResourceID),
		nullable(subject.DID),
		subject.Success,
		sdataJSON,
		event.Message(),
	)

	return err
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
