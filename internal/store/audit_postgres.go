package store

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawblock/ecg-auth-engine/pkg/models"
)

// AuditStore is a supplemental, non-authoritative forensic log of login
// attempts in Postgres, adapted from the teacher's connection-pool-and-
// insert pattern. It never participates in the accept/reject decision —
// Record is fire-and-forget from the matcher's perspective.
type AuditStore struct {
	pool *pgxpool.Pool
}

// ConnectAudit initializes the connection pool for the audit sink.
func ConnectAudit(connStr string) (*AuditStore, error) {
	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("audit: unable to connect to database: %w", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("audit: ping failed: %w", err)
	}
	log.Println("connected to audit database")
	return &AuditStore{pool: pool}, nil
}

// Close releases the connection pool.
func (s *AuditStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema creates the login_attempts table if it does not already
// exist.
func (s *AuditStore) InitSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS login_attempts (
			id BIGSERIAL PRIMARY KEY,
			attempted_at TIMESTAMPTZ NOT NULL,
			user_id TEXT NOT NULL,
			accepted BOOLEAN NOT NULL,
			similarity DOUBLE PRECISION NOT NULL,
			threshold DOUBLE PRECISION NOT NULL,
			remote_addr TEXT
		);
	`
	_, err := s.pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("audit: init schema: %w", err)
	}
	return nil
}

// Record inserts one login attempt row. Errors are logged, not returned —
// the matcher calls this from a detached goroutine and has nowhere to
// surface a failure that wouldn't block an unrelated caller.
func (s *AuditStore) Record(attempt models.LoginAttempt) {
	const insert = `
		INSERT INTO login_attempts (attempted_at, user_id, accepted, similarity, threshold, remote_addr)
		VALUES ($1, $2, $3, $4, $5, $6);
	`
	_, err := s.pool.Exec(context.Background(), insert,
		attempt.AttemptedAt, attempt.UserID, attempt.Accepted,
		attempt.Similarity, attempt.Threshold, attempt.RemoteAddr,
	)
	if err != nil {
		log.Printf("audit: failed to record login attempt: %v", err)
	}
}
