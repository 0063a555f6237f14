package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/vainnor/session-stats/models"
)

const (
	driverPostgres = "postgres"
	driverSQLite   = "sqlite"
)

// SessionsTableSchema is the table layout SQLStore expects. Timestamps are
// stored as ISO-8601 text, mirroring the document form.
const SessionsTableSchema = `CREATE TABLE IF NOT EXISTS user_sessions (
	user_id TEXT NOT NULL,
	start_time TEXT,
	end_time TEXT
)`

var findSessionsQuery = map[string]string{
	driverPostgres: `SELECT user_id, start_time, end_time FROM user_sessions WHERE user_id = $1`,
	driverSQLite:   `SELECT user_id, start_time, end_time FROM user_sessions WHERE user_id = ?`,
}

// SQLStore reads session rows from a user_sessions table in PostgreSQL or SQLite.
type SQLStore struct {
	db     *sql.DB
	driver string
}

func openSQL(driver, dsn string) (*SQLStore, error) {
	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	return NewSQLStore(conn, driver), nil
}

// NewSQLStore wraps an open handle. driver must be "postgres" or "sqlite".
func NewSQLStore(conn *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: conn, driver: driver}
}

func (s *SQLStore) FindSessions(ctx context.Context, userID string) ([]models.SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx, findSessionsQuery[s.driver], userID)
	if err != nil {
		return nil, fmt.Errorf("error querying sessions: %w", err)
	}
	defer rows.Close()

	var records []models.SessionRecord
	for rows.Next() {
		var (
			record     models.SessionRecord
			start, end sql.NullString
		)
		if err := rows.Scan(&record.UserID, &start, &end); err != nil {
			return nil, fmt.Errorf("error scanning session: %w", err)
		}
		record.StartTime = start.String
		record.EndTime = end.String
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading sessions: %w", err)
	}

	return records, nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close(context.Context) error {
	return s.db.Close()
}
