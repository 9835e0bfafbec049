package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"spin-trainer-bot/training"
)

// SQLiteStore persists sessions and stats as JSON documents keyed by user,
// plus an append-only training history table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (and creates if needed) the database at dbPath.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS users (
		user_id INTEGER PRIMARY KEY,
		session_json TEXT NOT NULL,
		stats_json TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trainings (
		round_id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		score INTEGER NOT NULL,
		questions INTEGER NOT NULL,
		clarity INTEGER NOT NULL,
		contextual INTEGER NOT NULL,
		reason TEXT NOT NULL,
		finished_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_trainings_user ON trainings(user_id, finished_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetUser returns the stored session and stats, or nils when the user has
// never been saved.
func (s *SQLiteStore) GetUser(ctx context.Context, userID int64) (*training.Session, *training.Stats, error) {
	query := `SELECT session_json, stats_json FROM users WHERE user_id = ?`
	row := s.db.QueryRowContext(ctx, query, userID)

	var sessionJSON, statsJSON string
	err := row.Scan(&sessionJSON, &statsJSON)
	if err == sql.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("scan user row: %w", err)
	}

	var session training.Session
	if err := json.Unmarshal([]byte(sessionJSON), &session); err != nil {
		return nil, nil, fmt.Errorf("decode session for user %d: %w", userID, err)
	}
	var stats training.Stats
	if err := json.Unmarshal([]byte(statsJSON), &stats); err != nil {
		return nil, nil, fmt.Errorf("decode stats for user %d: %w", userID, err)
	}
	return &session, &stats, nil
}

// SaveUser upserts the session and stats documents in one statement.
func (s *SQLiteStore) SaveUser(ctx context.Context, userID int64, session *training.Session, stats *training.Stats) error {
	sessionJSON, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}

	query := `
	INSERT INTO users (user_id, session_json, stats_json, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		session_json = excluded.session_json,
		stats_json = excluded.stats_json,
		updated_at = excluded.updated_at`

	if _, err := s.db.ExecContext(ctx, query,
		userID, string(sessionJSON), string(statsJSON), time.Now().Unix(),
	); err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// AppendTraining records a finished round.
func (s *SQLiteStore) AppendTraining(ctx context.Context, rec training.Record) error {
	query := `
	INSERT INTO trainings (round_id, user_id, score, questions, clarity, contextual, reason, finished_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	if _, err := s.db.ExecContext(ctx, query,
		rec.RoundID, rec.UserID, rec.Score, rec.Questions,
		rec.Clarity, rec.Contextual, rec.Reason, rec.FinishedAt.Unix(),
	); err != nil {
		return fmt.Errorf("append training: %w", err)
	}
	return nil
}

// RecentTrainings returns the latest records for a user, newest first.
func (s *SQLiteStore) RecentTrainings(ctx context.Context, userID int64, limit int) ([]training.Record, error) {
	query := `
	SELECT round_id, user_id, score, questions, clarity, contextual, reason, finished_at
	FROM trainings WHERE user_id = ? ORDER BY finished_at DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query trainings: %w", err)
	}
	defer rows.Close()

	var recs []training.Record
	for rows.Next() {
		var rec training.Record
		var finishedAt int64
		if err := rows.Scan(
			&rec.RoundID, &rec.UserID, &rec.Score, &rec.Questions,
			&rec.Clarity, &rec.Contextual, &rec.Reason, &finishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan training row: %w", err)
		}
		rec.FinishedAt = time.Unix(finishedAt, 0)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trainings: %w", err)
	}
	return recs, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
