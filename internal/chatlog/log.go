// Package chatlog holds the visible conversation transcript and its
// persistence backends.
package chatlog

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Senders of chat messages.
const (
	SenderUser = "user"
	SenderBot  = "bot"
)

// ChatMessage is one line of the visible transcript.
type ChatMessage struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// Log is the append-only transcript. Subscribers see every appended message
// in order; nothing is ever removed or rewritten.
type Log struct {
	mu       sync.Mutex
	messages []ChatMessage
	subs     map[int]func(ChatMessage)
	nextSub  int
}

func NewLog() *Log {
	return &Log{subs: make(map[int]func(ChatMessage))}
}

// Append adds a message, filling ID and timestamp when absent, and delivers
// it to all subscribers. The stored message is returned.
func (l *Log) Append(msg ChatMessage) ChatMessage {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	l.mu.Lock()
	l.messages = append(l.messages, msg)
	subs := make([]func(ChatMessage), 0, len(l.subs))
	for _, fn := range l.subs {
		subs = append(subs, fn)
	}
	l.mu.Unlock()

	for _, fn := range subs {
		fn(msg)
	}
	return msg
}

// Messages returns a copy of the transcript in append order.
func (l *Log) Messages() []ChatMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ChatMessage, len(l.messages))
	copy(out, l.messages)
	return out
}

// Subscribe registers fn for all subsequent appends. The returned func
// removes the subscription; widget connections call it on detach so a
// reconnecting client does not accumulate dead subscribers.
func (l *Log) Subscribe(fn func(ChatMessage)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = fn
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.subs, id)
	}
}
