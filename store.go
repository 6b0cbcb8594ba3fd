package main

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// Message is one stored contact submission. Submissions land here
// before delivery is attempted, so a provider outage never loses mail.
type Message struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Message       string    `json:"message"`
	CreatedAt     time.Time `json:"created_at"`
	Delivered     bool      `json:"delivered"`
	DeliveryError string    `json:"delivery_error,omitempty"`
}

// VisitorMetric is one privacy-conscious page view record: the IP is
// stored as a salted hash, never raw.
type VisitorMetric struct {
	ID        int       `json:"id"`
	HashedIP  string    `json:"hashed_ip"`
	UserAgent string    `json:"user_agent"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
}

// VisitorStats summarizes the visitors table for the dashboard.
type VisitorStats struct {
	Total    int64 `json:"total_visitors"`
	Unique   int64 `json:"unique_visitors"`
	Today    int64 `json:"visitors_today"`
	ThisWeek int64 `json:"visitors_this_week"`
}

// SQLite's date functions only understand a handful of ISO-8601 layouts.
// Binding a time.Time directly stores Go's String() form, which DATE()
// and datetime() cannot parse, so timestamps are bound as UTC text in
// this layout instead. It sorts chronologically and keeps sub-second
// precision.
const sqliteTimeLayout = "2006-01-02 15:04:05.999999999"

// Store wraps the site's SQLite database: the contact message inbox
// and the visitor metrics.
type Store struct {
	db *sql.DB

	mu      sync.Mutex
	entropy *rand.Rand
}

// OpenStore opens or creates the database at path and applies the
// schema. Pass ":memory:" for a throwaway database in tests.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// modernc's driver is happiest with a single writer connection.
	db.SetMaxOpenConns(1)

	s := &Store{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		id             TEXT PRIMARY KEY,
		name           TEXT NOT NULL,
		email          TEXT NOT NULL,
		message        TEXT NOT NULL,
		created_at     DATETIME NOT NULL,
		delivered      INTEGER NOT NULL DEFAULT 0,
		delivery_error TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(created_at DESC);

	CREATE TABLE IF NOT EXISTS visitors (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		hashed_ip TEXT NOT NULL,
		user_agent TEXT,
		path      TEXT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_visitors_timestamp ON visitors(timestamp DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// newID mints a ULID. The entropy source is not safe for concurrent
// use, hence the lock.
func (s *Store) newID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

// InsertMessage stores a submission in the inbox, initially marked
// undelivered, and returns the stored record.
func (s *Store) InsertMessage(ctx context.Context, sub Submission) (Message, error) {
	msg := Message{
		ID:        s.newID(),
		Name:      sub.Name,
		Email:     sub.Email,
		Message:   sub.Message,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, name, email, message, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, msg.ID, msg.Name, msg.Email, msg.Message, msg.CreatedAt.Format(sqliteTimeLayout))
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}

	return msg, nil
}

// MarkDelivered flags a message as successfully relayed.
func (s *Store) MarkDelivered(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE messages SET delivered = 1, delivery_error = '' WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	return nil
}

// MarkDeliveryFailed records why a message could not be relayed. The
// message stays in the inbox for the admin to see.
func (s *Store) MarkDeliveryFailed(ctx context.Context, id, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE messages SET delivered = 0, delivery_error = ? WHERE id = ?
	`, reason, id)
	if err != nil {
		return fmt.Errorf("mark delivery failed: %w", err)
	}
	return nil
}

// ListMessages returns the newest messages first, at most limit.
func (s *Store) ListMessages(ctx context.Context, limit int) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, message, created_at, delivered, delivery_error
		FROM messages
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Message, &m.CreatedAt, &m.Delivered, &m.DeliveryError); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// DeleteMessage removes a message from the inbox. The bool reports
// whether anything was actually deleted.
func (s *Store) DeleteMessage(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete message: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

// MessageCounts returns total and undelivered message counts.
func (s *Store) MessageCounts(ctx context.Context) (total, undelivered int64, err error) {
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&total)
	if err != nil {
		return 0, 0, fmt.Errorf("count messages: %w", err)
	}
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE delivered = 0`).Scan(&undelivered)
	if err != nil {
		return 0, 0, fmt.Errorf("count undelivered: %w", err)
	}
	return total, undelivered, nil
}

// InsertVisit records one page view with an already-hashed IP.
func (s *Store) InsertVisit(ctx context.Context, hashedIP, userAgent, path string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO visitors (hashed_ip, user_agent, path, timestamp)
		VALUES (?, ?, ?, ?)
	`, hashedIP, userAgent, path, time.Now().UTC().Format(sqliteTimeLayout))
	if err != nil {
		return fmt.Errorf("insert visit: %w", err)
	}
	return nil
}

// VisitorStats aggregates the visitors table.
func (s *Store) VisitorStats(ctx context.Context) (*VisitorStats, error) {
	stats := &VisitorStats{}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM visitors`).Scan(&stats.Total); err != nil {
		return nil, fmt.Errorf("total visitors: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT hashed_ip) FROM visitors`).Scan(&stats.Unique); err != nil {
		return nil, fmt.Errorf("unique visitors: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM visitors WHERE DATE(timestamp) = DATE('now')
	`).Scan(&stats.Today); err != nil {
		return nil, fmt.Errorf("visitors today: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM visitors WHERE timestamp >= datetime('now', '-7 days')
	`).Scan(&stats.ThisWeek); err != nil {
		return nil, fmt.Errorf("visitors this week: %w", err)
	}

	return stats, nil
}

// RecentVisitors returns the newest visits first, at most limit.
func (s *Store) RecentVisitors(ctx context.Context, limit int) ([]VisitorMetric, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, hashed_ip, user_agent, path, timestamp
		FROM visitors
		ORDER BY timestamp DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent visitors: %w", err)
	}
	defer rows.Close()

	var visitors []VisitorMetric
	for rows.Next() {
		var v VisitorMetric
		if err := rows.Scan(&v.ID, &v.HashedIP, &v.UserAgent, &v.Path, &v.Timestamp); err != nil {
			return nil, fmt.Errorf("scan visitor: %w", err)
		}
		visitors = append(visitors, v)
	}
	return visitors, rows.Err()
}

// CleanupVisitors removes visitor rows older than the retention window
// and reports how many were deleted.
func (s *Store) CleanupVisitors(ctx context.Context, retentionDays int) (int64, error) {
	result, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM visitors WHERE timestamp < datetime('now', '-%d days')
	`, retentionDays))
	if err != nil {
		return 0, fmt.Errorf("cleanup visitors: %w", err)
	}
	deleted, _ := result.RowsAffected()
	return deleted, nil
}
