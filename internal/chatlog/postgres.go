package chatlog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evernorth/melodie/internal/policy"
)

// PostgresStore persists conversation turns in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS chat_turns (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			initiator_id INTEGER NOT NULL,
			user_company_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			initiator_name TEXT NOT NULL,
			answer_by_ai BOOLEAN NOT NULL,
			response_id TEXT NOT NULL DEFAULT '',
			response_answer_id TEXT NOT NULL DEFAULT '',
			response_answer_role TEXT NOT NULL DEFAULT '',
			response_answer_status TEXT NOT NULL DEFAULT '',
			response_answer_content TEXT NOT NULL,
			response_answer_type TEXT NOT NULL DEFAULT 'text',
			remarks TEXT NOT NULL DEFAULT '',
			pii_redacted BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chat_turns_session_created ON chat_turns (session_id, created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) SaveTurn(ctx context.Context, record TurnRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	content, redacted := policy.RedactTurn(record.ResponseAnswerContent)

	_, err := s.pool.Exec(ctx,
		`INSERT INTO chat_turns (
			id, session_id, initiator_id, user_company_id, user_id,
			initiator_name, answer_by_ai, response_id, response_answer_id,
			response_answer_role, response_answer_status, response_answer_content,
			response_answer_type, remarks, pii_redacted, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		record.ID,
		record.SessionID,
		record.InitiatorID,
		record.UserCompanyID,
		record.UserID,
		record.InitiatorName,
		record.AnswerByAI,
		record.ResponseID,
		record.ResponseAnswerID,
		record.ResponseAnswerRole,
		record.ResponseAnswerStatus,
		content,
		record.ResponseAnswerType,
		record.Remarks,
		redacted || record.Redacted,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save turn: %w", err)
	}
	return nil
}

// RecentTurns returns the last limit turns of a session in chronological
// order.
func (s *PostgresStore) RecentTurns(ctx context.Context, sessionID string, limit int) ([]TurnRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, initiator_id, user_company_id, user_id,
			initiator_name, answer_by_ai, response_id, response_answer_id,
			response_answer_role, response_answer_status, response_answer_content,
			response_answer_type, remarks, pii_redacted, created_at
		 FROM chat_turns WHERE session_id=$1 ORDER BY created_at DESC LIMIT $2`,
		sessionID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent turns: %w", err)
	}
	defer rows.Close()

	items := make([]TurnRecord, 0, limit)
	for rows.Next() {
		var r TurnRecord
		if err := rows.Scan(
			&r.ID, &r.SessionID, &r.InitiatorID, &r.UserCompanyID, &r.UserID,
			&r.InitiatorName, &r.AnswerByAI, &r.ResponseID, &r.ResponseAnswerID,
			&r.ResponseAnswerRole, &r.ResponseAnswerStatus, &r.ResponseAnswerContent,
			&r.ResponseAnswerType, &r.Remarks, &r.Redacted, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan turn row: %w", err)
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turn rows: %w", err)
	}

	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}

	return items, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
