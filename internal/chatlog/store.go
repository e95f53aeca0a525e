package chatlog

import (
	"context"
	"time"
)

// TurnRecord is one persisted conversation turn. The response fields mirror
// the conversation-log service's entity model.
type TurnRecord struct {
	ID            string
	SessionID     string
	InitiatorID   int
	UserCompanyID int
	UserID        int
	InitiatorName string
	AnswerByAI    bool

	ResponseID            string
	ResponseStatus        string
	ResponseAnswerID      string
	ResponseAnswerRole    string
	ResponseAnswerStatus  string
	ResponseAnswerContent string
	ResponseAnswerType    string
	Remarks               string

	Redacted  bool
	CreatedAt time.Time
}

// Store persists conversation turns. Persistence failures are logged and
// swallowed by callers; the transcript in memory is the source of truth for
// the running session.
type Store interface {
	SaveTurn(ctx context.Context, record TurnRecord) error
	Close() error
}

// HistorySource reads back previously persisted turns so a resumed session
// can rebuild its transcript.
type HistorySource interface {
	RecentTurns(ctx context.Context, sessionID string, limit int) ([]TurnRecord, error)
}

// NoopStore discards every turn. Used when no persistence backend is
// configured.
type NoopStore struct{}

func (NoopStore) SaveTurn(context.Context, TurnRecord) error { return nil }
func (NoopStore) Close() error                               { return nil }
