// Package notify holds the single-slot queue for one-shot user notifications.
package notify

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/vedran77/dermacheck/internal/domain"
)

// Slot holds at most one notification. Publish overwrites an unconsumed
// value and Consume hands it out exactly once.
type Slot struct {
	mu       sync.Mutex
	last     *domain.Notification
	consumed bool
	ready    chan struct{}
	now      func() time.Time
}

func NewSlot() *Slot {
	return &Slot{
		consumed: true,
		ready:    make(chan struct{}, 1),
		now:      time.Now,
	}
}

// Publish stores a new notification, replacing any unconsumed one.
func (s *Slot) Publish(kind domain.NotificationKind, message string) domain.Notification {
	now := s.now()
	n := domain.Notification{
		ID:        ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		Kind:      kind,
		Message:   message,
		CreatedAt: now,
	}

	s.mu.Lock()
	s.last = &n
	s.consumed = false
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
	return n
}

// Consume takes the pending notification. It returns false when the slot is
// empty or its notification was already consumed.
func (s *Slot) Consume() (domain.Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil || s.consumed {
		return domain.Notification{}, false
	}
	s.consumed = true
	return *s.last, true
}

// ConsumeFunc runs fn with the pending notification, if there is one.
func (s *Slot) ConsumeFunc(fn func(domain.Notification)) bool {
	n, ok := s.Consume()
	if ok {
		fn(n)
	}
	return ok
}

// Pending reports whether an unconsumed notification is waiting.
func (s *Slot) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last != nil && !s.consumed
}

// peek returns the most recent notification whether or not it was consumed.
func (s *Slot) peek() (domain.Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return domain.Notification{}, false
	}
	return *s.last, true
}

// Ready receives a value after each Publish. Readers still have to Consume,
// and may lose the race to another reader.
func (s *Slot) Ready() <-chan struct{} {
	return s.ready
}
