// Package reconcile merges pushed, polled and optimistic messages into one
// de-duplicated conversation timeline.
package reconcile

import (
	"sort"
	"sync"
	"time"

	"github.com/vovakirdan/wirechat-fanout/internal/store"
)

// Entry is a message as displayed to the user.
type Entry struct {
	ID             int64  // zero while pending
	TempID         string // set while pending
	ConversationID int64
	SenderID       int64
	Content        string
	CreatedAt      time.Time
}

// Pending reports whether the entry still awaits its authoritative copy.
func (e Entry) Pending() bool {
	return e.ID == 0
}

// Timeline holds the messages of one conversation. Safe for concurrent use.
type Timeline struct {
	mu        sync.Mutex
	confirmed map[int64]Entry
	pending   []Entry // oldest first
}

// NewTimeline creates an empty timeline.
func NewTimeline() *Timeline {
	return &Timeline{confirmed: make(map[int64]Entry)}
}

// AddPending inserts an optimistic entry for a message not yet acknowledged.
// Adding the same tempID twice keeps the first entry.
func (t *Timeline) AddPending(tempID string, conversationID, senderID int64, content string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, p := range t.pending {
		if p.TempID == tempID {
			return
		}
	}
	t.pending = append(t.pending, Entry{
		TempID:         tempID,
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      at,
	})
}

// ApplyPush merges a pushed message. A non-empty clientID replaces the
// pending entry it names. It reports whether the message was new.
func (t *Timeline) ApplyPush(msg *store.Message, clientID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if clientID != "" {
		t.dropPendingLocked(func(p Entry) bool { return p.TempID == clientID })
	}
	return t.upsertLocked(msg)
}

// Confirm replaces the pending entry tempID with its authoritative message.
func (t *Timeline) Confirm(tempID string, msg *store.Message) bool {
	return t.ApplyPush(msg, tempID)
}

// ApplyPoll merges an authoritative page of messages. A message not seen
// before replaces the oldest pending entry with the same sender and content
// that was created no later than the message itself; a later pending entry
// cannot be its origin. It returns how many messages were new.
func (t *Timeline) ApplyPoll(msgs []*store.Message) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	added := 0
	for _, msg := range msgs {
		if _, seen := t.confirmed[msg.ID]; !seen {
			t.dropPendingLocked(func(p Entry) bool {
				return p.SenderID == msg.SenderID && p.Content == msg.Content &&
					!p.CreatedAt.After(msg.CreatedAt)
			})
		}
		if t.upsertLocked(msg) {
			added++
		}
	}
	return added
}

// Messages returns the timeline ordered by (CreatedAt, ID), pending entries last.
func (t *Timeline) Messages() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Entry, 0, len(t.confirmed)+len(t.pending))
	for _, e := range t.confirmed {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return append(out, t.pending...)
}

// LastID is the highest authoritative message id, for incremental polls.
func (t *Timeline) LastID() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	var last int64
	for id := range t.confirmed {
		if id > last {
			last = id
		}
	}
	return last
}

func (t *Timeline) upsertLocked(msg *store.Message) bool {
	_, seen := t.confirmed[msg.ID]
	t.confirmed[msg.ID] = Entry{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Content:        msg.Content,
		CreatedAt:      msg.CreatedAt,
	}
	return !seen
}

// dropPendingLocked removes the first pending entry matching fn.
func (t *Timeline) dropPendingLocked(fn func(Entry) bool) {
	for i, p := range t.pending {
		if fn(p) {
			t.pending = append(t.pending[:i], t.pending[i+1:]...)
			return
		}
	}
}
