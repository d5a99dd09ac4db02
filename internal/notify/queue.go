// Package notify provides a server-owned notification queue. Each
// notification carries its own expiry timer, so removing one can never
// affect another.
package notify

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Variant selects how a notification is presented.
type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

// Event types published to subscribers.
const (
	EventAdded   = "added"
	EventRemoved = "removed"
)

// Default queue settings.
const (
	DefaultLifetime = 3 * time.Second
	DefaultCapacity = 20
	subscriberBuf   = 16
)

// ErrNotFound is returned when dismissing an unknown or expired notification.
var ErrNotFound = errors.New("notification not found")

// Notification is a short-lived message for dashboard users.
type Notification struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Variant     Variant   `json:"variant"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Event describes a change to the queue.
type Event struct {
	Type         string       `json:"type"`
	Notification Notification `json:"notification"`
}

type entry struct {
	n     Notification
	timer *time.Timer
}

// Queue holds live notifications.
type Queue struct {
	lifetime time.Duration
	capacity int
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
	order   []string
	subs    map[chan Event]struct{}
	closed  bool
}

// NewQueue creates a queue. Non-positive arguments fall back to defaults.
func NewQueue(lifetime time.Duration, capacity int) *Queue {
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{
		lifetime: lifetime,
		capacity: capacity,
		now:      time.Now,
		entries:  make(map[string]*entry),
		subs:     make(map[chan Event]struct{}),
	}
}

// Push adds a notification and schedules its removal. The returned copy
// carries the assigned ID and timestamps. When the queue is full the oldest
// notification is removed first.
func (q *Queue) Push(title, description string, variant Variant) Notification {
	if variant == "" {
		variant = VariantDefault
	}

	now := q.now()
	n := Notification{
		ID:          uuid.New().String(),
		Title:       title,
		Description: description,
		Variant:     variant,
		CreatedAt:   now,
		ExpiresAt:   now.Add(q.lifetime),
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return n
	}

	for len(q.order) >= q.capacity {
		q.removeLocked(q.order[0])
	}

	id := n.ID
	q.entries[id] = &entry{
		n:     n,
		timer: time.AfterFunc(q.lifetime, func() { q.expire(id) }),
	}
	q.order = append(q.order, id)
	q.publishLocked(Event{Type: EventAdded, Notification: n})

	return n
}

// Info pushes a default notification.
func (q *Queue) Info(title, description string) Notification {
	return q.Push(title, description, VariantDefault)
}

// Error pushes a destructive notification.
func (q *Queue) Error(title, description string) Notification {
	return q.Push(title, description, VariantDestructive)
}

// Dismiss removes a notification before it expires.
func (q *Queue) Dismiss(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.removeLocked(id) {
		return ErrNotFound
	}
	return nil
}

// List returns live notifications, oldest first.
func (q *Queue) List() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	list := make([]Notification, 0, len(q.order))
	for _, id := range q.order {
		n := q.entries[id].n
		if !now.Before(n.ExpiresAt) {
			continue
		}
		list = append(list, n)
	}
	return list
}

// Subscribe returns a channel of queue events. Slow subscribers miss events
// rather than blocking the queue.
func (q *Queue) Subscribe() chan Event {
	ch := make(chan Event, subscriberBuf)

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		close(ch)
		return ch
	}
	q.subs[ch] = struct{}{}
	return ch
}

// Unsubscribe stops delivery to ch and closes it.
func (q *Queue) Unsubscribe(ch chan Event) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.subs[ch]; ok {
		delete(q.subs, ch)
		close(ch)
	}
}

// Close stops every pending timer and closes all subscriber channels.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true

	for _, e := range q.entries {
		e.timer.Stop()
	}
	q.entries = make(map[string]*entry)
	q.order = nil

	for ch := range q.subs {
		close(ch)
	}
	q.subs = make(map[chan Event]struct{})
}

func (q *Queue) expire(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.removeLocked(id)
}

// removeLocked removes id if present. Removal is keyed by id only.
func (q *Queue) removeLocked(id string) bool {
	e, ok := q.entries[id]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(q.entries, id)

	for i, existing := range q.order {
		if existing == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}

	q.publishLocked(Event{Type: EventRemoved, Notification: e.n})
	return true
}

func (q *Queue) publishLocked(ev Event) {
	for ch := range q.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
