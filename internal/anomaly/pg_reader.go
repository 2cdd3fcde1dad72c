package anomaly

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PGUsageReader reads usage events straight from Postgres. The detectors
// need a bounded range scan, which is cheaper over a direct connection
// than through the REST layer used for the CRUD paths.
type PGUsageReader struct {
	db *sql.DB
}

// NewPGUsageReader opens a connection pool against the given DSN.
func NewPGUsageReader(dsn string) (*PGUsageReader, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	return &PGUsageReader{db: db}, nil
}

// Close releases the connection pool.
func (r *PGUsageReader) Close() error {
	return r.db.Close()
}

// EventsSince returns up to limit usage events for the org newer than
// since, newest first.
func (r *PGUsageReader) EventsSince(ctx context.Context, orgID string, since time.Time, limit int) ([]Event, error) {
	if limit <= 0 || limit > scanLimit {
		limit = scanLimit
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT COALESCE(subject_id, ''), endpoint, method, COALESCE(source_ip, ''), created_at
		FROM usage_events
		WHERE org_id = $1 AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT $3`,
		orgID, since, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query usage_events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.SubjectID, &ev.Endpoint, &ev.Method, &ev.SourceIP, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("scan usage event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
