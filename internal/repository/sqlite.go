package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"activity-tracker/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists samples in a single append-only table. Writes are
// serialized by mu; readers run against the WAL journal without it.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
	now    func() time.Time
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{dbPath: path, now: time.Now}
}

func (s *SQLiteStore) Init() error {
	var err error

	s.db, err = sql.Open("sqlite3", s.dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return fmt.Errorf("error opening database: %w", err)
	}

	if err = s.db.Ping(); err != nil {
		return fmt.Errorf("error connecting to database: %w", err)
	}

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS activity (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		subreddit TEXT NOT NULL,
		active_users INTEGER NOT NULL,
		subscribers INTEGER,
		active_percentage REAL,
		timestamp INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_activity_subreddit_timestamp ON activity(subreddit, timestamp);`

	_, err = s.db.Exec(createTableSQL)
	if err != nil {
		return fmt.Errorf("error creating table: %w", err)
	}

	log.Println("SQLiteStore initialized.")
	return nil
}

func (s *SQLiteStore) Append(ctx context.Context, sample domain.Sample) error {
	if err := sample.Validate(); err != nil {
		return err
	}
	row := sample.Prepare(s.now())

	var total sql.NullInt64
	if row.TotalCount != nil {
		total = sql.NullInt64{Int64: *row.TotalCount, Valid: true}
	}
	var ratio sql.NullFloat64
	if row.ActiveRatio != nil {
		ratio = sql.NullFloat64{Float64: *row.ActiveRatio, Valid: true}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO activity(subreddit, active_users, subscribers, active_percentage, timestamp) VALUES(?, ?, ?, ?, ?)",
		row.ResourceID, row.ActiveCount, total, ratio, row.ObservedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("error inserting sample: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Query(ctx context.Context, resourceID string, opts domain.QueryOptions) ([]domain.Sample, error) {
	query := "SELECT id, subreddit, active_users, subscribers, active_percentage, timestamp FROM activity WHERE subreddit = ?"
	args := []interface{}{resourceID}

	if !opts.Start.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, opts.Start.UnixMilli())
	}
	if !opts.End.IsZero() {
		query += " AND timestamp <= ?"
		args = append(args, opts.End.UnixMilli())
	}

	if opts.Order == domain.OrderDescending {
		query += " ORDER BY timestamp DESC, id DESC"
	} else {
		query += " ORDER BY timestamp ASC, id ASC"
	}

	limit := opts.EffectiveLimit()
	if limit <= 0 {
		limit = -1
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying database: %w", err)
	}
	defer rows.Close()

	fetched := []domain.Sample{}

	for rows.Next() {
		var (
			sample domain.Sample
			total  sql.NullInt64
			ratio  sql.NullFloat64
			millis int64
		)

		if err := rows.Scan(&sample.ID, &sample.ResourceID, &sample.ActiveCount, &total, &ratio, &millis); err != nil {
			log.Printf("Error scanning row: %v", err)
			continue
		}
		sample.ObservedAt = time.UnixMilli(millis).UTC()
		if total.Valid {
			v := total.Int64
			sample.TotalCount = &v
		}
		if ratio.Valid {
			v := ratio.Float64
			sample.ActiveRatio = &v
		}
		fetched = append(fetched, sample)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return fetched, nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM activity").Scan(&n); err != nil {
		return 0, fmt.Errorf("error counting samples: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) DistinctResources(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT subreddit FROM activity ORDER BY subreddit")
	if err != nil {
		return nil, fmt.Errorf("error querying resources: %w", err)
	}
	defer rows.Close()

	resources := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("error scanning resource: %w", err)
		}
		resources = append(resources, name)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return resources, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
