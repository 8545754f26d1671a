package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rcliao/growthbot/internal/model"
)

// SQLiteStore keeps both knowledge logs and the post history in one SQLite
// database. Each log is a namespace inside the knowledge_entries table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS knowledge_entries (
		log            TEXT NOT NULL,
		id             TEXT NOT NULL,
		topic_id       INTEGER NOT NULL DEFAULT 0,
		theme          TEXT NOT NULL,
		keywords       TEXT,
		generated_text TEXT NOT NULL,
		research       TEXT NOT NULL,
		raw_response   TEXT NOT NULL DEFAULT '',
		created_at     TEXT NOT NULL,
		PRIMARY KEY (log, id)
	);
	CREATE INDEX IF NOT EXISTS idx_knowledge_log ON knowledge_entries(log);

	CREATE TABLE IF NOT EXISTS post_history (
		id        TEXT PRIMARY KEY,
		ts        TEXT NOT NULL,
		theme     TEXT NOT NULL,
		text      TEXT NOT NULL,
		post_id   TEXT,
		status    TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_post_history_ts ON post_history(ts);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// Databases created before raw responses were kept lack the column.
	s.db.Exec(`ALTER TABLE knowledge_entries ADD COLUMN raw_response TEXT NOT NULL DEFAULT ''`)
	return nil
}

// Log returns the knowledge log stored under name.
func (s *SQLiteStore) Log(name string) KnowledgeLog {
	return &sqliteLog{db: s.db, name: name}
}

// History returns the post history.
func (s *SQLiteStore) History() PostHistory {
	return &sqliteHistory{db: s.db}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type sqliteLog struct {
	db   *sql.DB
	name string
}

func (l *sqliteLog) Append(ctx context.Context, e model.KnowledgeEntry) (model.KnowledgeEntry, error) {
	if e.ID == "" {
		e.ID = newID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	var keywords *string
	if len(e.Keywords) > 0 {
		b, _ := json.Marshal(e.Keywords)
		k := string(b)
		keywords = &k
	}
	research, err := json.Marshal(e.Research)
	if err != nil {
		return e, fmt.Errorf("encode research: %w", err)
	}

	_, err = l.db.ExecContext(ctx,
		`INSERT INTO knowledge_entries (log, id, topic_id, theme, keywords, generated_text, research, raw_response, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.name, e.ID, e.TopicID, e.Theme, keywords, e.GeneratedText, string(research), e.RawResponse,
		e.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return e, fmt.Errorf("insert knowledge entry: %w", err)
	}
	return e, nil
}

func (l *sqliteLog) All(ctx context.Context) ([]model.KnowledgeEntry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, topic_id, theme, keywords, generated_text, research, raw_response, created_at
		 FROM knowledge_entries WHERE log = ? ORDER BY rowid`, l.name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []model.KnowledgeEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (l *sqliteLog) Len(ctx context.Context) (int, error) {
	var n int
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM knowledge_entries WHERE log = ?`, l.name).Scan(&n)
	return n, err
}

func (l *sqliteLog) Reset(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, `DELETE FROM knowledge_entries WHERE log = ?`, l.name)
	return err
}

type sqliteHistory struct {
	db *sql.DB
}

func (h *sqliteHistory) Append(ctx context.Context, e model.PostHistoryEntry) (model.PostHistoryEntry, error) {
	if err := checkStatus(e); err != nil {
		return e, err
	}
	if e.ID == "" {
		e.ID = newID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	_, err := h.db.ExecContext(ctx,
		`INSERT INTO post_history (id, ts, theme, text, post_id, status) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Timestamp.UTC().Format(time.RFC3339Nano), e.Theme, e.Text, e.PostID, e.Status)
	if err != nil {
		return e, fmt.Errorf("insert post history: %w", err)
	}
	return e, nil
}

func (h *sqliteHistory) All(ctx context.Context) ([]model.PostHistoryEntry, error) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT id, ts, theme, text, post_id, status FROM post_history ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []model.PostHistoryEntry{}
	for rows.Next() {
		var e model.PostHistoryEntry
		var ts string
		var postID sql.NullString
		if err := rows.Scan(&e.ID, &ts, &e.Theme, &e.Text, &postID, &e.Status); err != nil {
			return nil, err
		}
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		if postID.Valid {
			id := postID.String
			e.PostID = &id
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row scanner) (model.KnowledgeEntry, error) {
	var e model.KnowledgeEntry
	var keywords sql.NullString
	var research, createdAt string

	err := row.Scan(&e.ID, &e.TopicID, &e.Theme, &keywords, &e.GeneratedText, &research, &e.RawResponse, &createdAt)
	if err != nil {
		return e, err
	}

	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	if keywords.Valid {
		json.Unmarshal([]byte(keywords.String), &e.Keywords)
	}
	if err := json.Unmarshal([]byte(research), &e.Research); err != nil {
		return e, fmt.Errorf("decode research for %s: %w", e.ID, err)
	}
	return e, nil
}
