// Package audit records who changed what. Events are published to a queue by the
// API and appended to the Postgres audit log by the worker.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"checkin/internal/queue"
)

// MessageType is the queue message type carrying an Event.
const MessageType = "audit.event"

// Event types.
const (
	RecordCreated    = "attendance.created"
	RecordUpdated    = "attendance.updated"
	DuplicateFlagged = "attendance.duplicate_flagged"
	UpdateConflict   = "attendance.conflict"
	ScanRepeated     = "attendance.scan_repeated"
	UserCreated      = "user.created"
	UserRoleChanged  = "user.role_changed"
	UserDeactivated  = "user.deactivated"
	UserReconciled   = "user.reconciled"
	OptionsReplaced  = "options.replaced"
)

// Event is one audit entry.
type Event struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Actor    string         `json:"actor"`
	RecordID string         `json:"recordId,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
	At       time.Time      `json:"at"`
}

// New builds an event with a fresh id.
func New(typ, actor, recordID string, at time.Time, details map[string]any) Event {
	return Event{
		ID:       uuid.NewString(),
		Type:     typ,
		Actor:    actor,
		RecordID: recordID,
		Details:  details,
		At:       at.UTC(),
	}
}

// Publisher accepts audit events.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Discard drops every event.
type Discard struct{}

// Publish implements Publisher.
func (Discard) Publish(context.Context, Event) error { return nil }

// QueuePublisher forwards events to a queue for the worker.
type QueuePublisher struct {
	q queue.Queue
}

// NewQueuePublisher wraps q.
func NewQueuePublisher(q queue.Queue) *QueuePublisher {
	return &QueuePublisher{q: q}
}

// Publish encodes evt and enqueues it.
func (p *QueuePublisher) Publish(ctx context.Context, evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	return p.q.Publish(ctx, queue.Message{Type: MessageType, Body: body})
}

// Decode extracts the event carried by msg.
func Decode(msg queue.Message) (Event, error) {
	if msg.Type != MessageType {
		return Event{}, fmt.Errorf("unexpected message type %q", msg.Type)
	}
	var evt Event
	if err := json.Unmarshal(msg.Body, &evt); err != nil {
		return Event{}, fmt.Errorf("decode audit event: %w", err)
	}
	return evt, nil
}
