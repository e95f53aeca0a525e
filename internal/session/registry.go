// Package session tracks live widget conversations and expires the ones
// that go quiet.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/evernorth/melodie/internal/realtime"
)

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

var ErrNotFound = errors.New("session not found")

// Entry is one tracked conversation. Agent is shared, not cloned; all other
// fields are snapshots.
type Entry struct {
	ID             string    `json:"session_id"`
	UserID         int       `json:"user_id"`
	CompanyID      int       `json:"company_id"`
	Status         Status    `json:"status"`
	Mode           string    `json:"mode"`
	StartedAt      time.Time `json:"started_at"`
	LastActivityAt time.Time `json:"last_activity_at"`

	Agent *realtime.Manager `json:"-"`
}

// Registry holds active conversations keyed by session id. One user has at
// most one active session; creating a second ends the first.
type Registry struct {
	mu                sync.RWMutex
	entries           map[string]*Entry
	byUser            map[int]string
	inactivityTimeout time.Duration
}

func NewRegistry(inactivityTimeout time.Duration) *Registry {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 2 * time.Minute
	}
	return &Registry{
		entries:           make(map[string]*Entry),
		byUser:            make(map[int]string),
		inactivityTimeout: inactivityTimeout,
	}
}

// NewSessionID returns the id used to key a conversation before its agent
// exists, so the agent can carry the same id.
func NewSessionID() string {
	return uuid.NewString()
}

// Add registers a conversation. A previous active session for the same user
// is ended and its agent stopped.
func (r *Registry) Add(id string, userID, companyID int, agent *realtime.Manager) *Entry {
	now := time.Now().UTC()
	entry := &Entry{
		ID:             id,
		UserID:         userID,
		CompanyID:      companyID,
		Status:         StatusActive,
		StartedAt:      now,
		LastActivityAt: now,
		Agent:          agent,
	}

	var displaced *Entry
	r.mu.Lock()
	if prevID, ok := r.byUser[userID]; ok {
		if prev, ok := r.entries[prevID]; ok && prev.Status == StatusActive {
			prev.Status = StatusEnded
			displaced = prev
		}
	}
	r.entries[id] = entry
	r.byUser[userID] = id
	r.mu.Unlock()

	if displaced != nil && displaced.Agent != nil {
		displaced.Agent.Stop()
	}
	return snapshot(entry)
}

func (r *Registry) Get(id string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return snapshot(entry), nil
}

// Touch marks activity, deferring inactivity expiry.
func (r *Registry) Touch(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if !ok {
		return ErrNotFound
	}
	entry.LastActivityAt = time.Now().UTC()
	return nil
}

// End marks the session ended and stops its agent.
func (r *Registry) End(id string) (*Entry, error) {
	r.mu.Lock()
	entry, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return nil, ErrNotFound
	}
	entry.Status = StatusEnded
	entry.LastActivityAt = time.Now().UTC()
	delete(r.byUser, entry.UserID)
	r.mu.Unlock()

	if entry.Agent != nil {
		entry.Agent.Stop()
	}
	return snapshot(entry), nil
}

func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, entry := range r.entries {
		if entry.Status == StatusActive {
			count++
		}
	}
	return count
}

// StartJanitor expires inactive sessions until ctx ends.
func (r *Registry) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.expireInactive()
			}
		}
	}()
}

func (r *Registry) expireInactive() {
	now := time.Now().UTC()
	var expired []*Entry

	r.mu.Lock()
	for _, entry := range r.entries {
		if entry.Status != StatusActive {
			continue
		}
		if now.Sub(entry.LastActivityAt) < r.inactivityTimeout {
			continue
		}
		entry.Status = StatusEnded
		entry.LastActivityAt = now
		delete(r.byUser, entry.UserID)
		expired = append(expired, entry)
	}
	r.mu.Unlock()

	for _, entry := range expired {
		if entry.Agent != nil {
			entry.Agent.Stop()
		}
	}
}

func snapshot(entry *Entry) *Entry {
	copied := *entry
	if copied.Agent != nil {
		copied.Mode = string(copied.Agent.Mode())
	}
	return &copied
}
