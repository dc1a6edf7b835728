package events

import (
	"context"
	"sync"
)

// Recorder is an in-memory Publisher that keeps every event it receives.
// It can be told to fail, to exercise callers' error paths.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

// Publish records the event, or returns r.Err when set
func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns the recorded event types in order
func (r *Recorder) Types() []string {
	events := r.Events()
	types := make([]string, len(events))
	for i, e := range events {
		types[i] = e.EventType
	}
	return types
}
