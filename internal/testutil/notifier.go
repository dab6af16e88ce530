package testutil

import (
	"context"
	"sync"
)

// SentMessage is one message captured by RecordingNotifier.
type SentMessage struct {
	Title string
	Body  string
}

// RecordingNotifier captures messages and reports a configurable delivery result.
type RecordingNotifier struct {
	mu       sync.Mutex
	failing  bool
	attempts int
	sent     []SentMessage
}

// NewRecordingNotifier creates a notifier that accepts every message.
func NewRecordingNotifier() *RecordingNotifier { return &RecordingNotifier{} }

// Notify records the message unless the notifier is failing.
func (r *RecordingNotifier) Notify(_ context.Context, title, body string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts++
	if r.failing {
		return false
	}
	r.sent = append(r.sent, SentMessage{Title: title, Body: body})
	return true
}

// SetFailing toggles delivery failure.
func (r *RecordingNotifier) SetFailing(failing bool) {
	r.mu.Lock()
	r.failing = failing
	r.mu.Unlock()
}

// Sent returns a copy of the delivered messages.
func (r *RecordingNotifier) Sent() []SentMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SentMessage, len(r.sent))
	copy(out, r.sent)
	return out
}

// Attempts returns how many times Notify was called.
func (r *RecordingNotifier) Attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}
