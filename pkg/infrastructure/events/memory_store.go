package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vsinha/vmi/pkg/domain/entities"
	"github.com/vsinha/vmi/pkg/domain/repositories"
)

type subscription struct {
	handler EventHandler
	types   map[entities.AuditEventType]bool
}

func (s subscription) wants(t entities.AuditEventType) bool {
	return len(s.types) == 0 || s.types[t]
}

// InMemoryEventStore journals activity by day and hands each record to the
// subscribed handlers before Append returns.
type InMemoryEventStore struct {
	mu      sync.RWMutex
	journal []Event
	days    map[string][]int
	subs    []subscription

	// serializes Append so handlers observe journal order
	deliver sync.Mutex

	now    func() time.Time
	logger *zap.Logger
}

// Verify interface compliance
var (
	_ EventStore            = (*InMemoryEventStore)(nil)
	_ repositories.AuditLog = (*InMemoryEventStore)(nil)
)

func NewInMemoryEventStore(logger *zap.Logger) *InMemoryEventStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryEventStore{
		days:   make(map[string][]int),
		now:    time.Now,
		logger: logger,
	}
}

// Record satisfies repositories.AuditLog
func (s *InMemoryEventStore) Record(ctx context.Context, record entities.AuditEvent) {
	s.Append(record)
}

// Append journals record, stamping the current time when it has none
func (s *InMemoryEventStore) Append(record entities.AuditEvent) Event {
	if record.Time.IsZero() {
		record.Time = s.now()
	}

	s.deliver.Lock()
	defer s.deliver.Unlock()

	s.mu.Lock()
	day := DayOf(record.Time)
	event := Event{
		Seq:     len(s.journal) + 1,
		Day:     day,
		Version: len(s.days[day]) + 1,
		Audit:   record,
	}
	s.days[day] = append(s.days[day], len(s.journal))
	s.journal = append(s.journal, event)
	subs := append([]subscription(nil), s.subs...)
	s.mu.Unlock()

	for _, sub := range subs {
		if !sub.wants(event.Type()) || !sub.handler.CanHandle(event.Type()) {
			continue
		}
		if err := sub.handler.Handle(event); err != nil {
			s.logger.Error("event handler failed",
				zap.String("type", string(event.Type())),
				zap.String("day", event.Day),
				zap.Int("seq", event.Seq),
				zap.Error(err))
		}
	}
	return event
}

// ReadDay returns the events journaled on day from fromVersion on
func (s *InMemoryEventStore) ReadDay(day time.Time, fromVersion int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.days[DayOf(day)]
	if fromVersion < 1 {
		fromVersion = 1
	}
	if fromVersion > len(idx) {
		return nil
	}

	out := make([]Event, 0, len(idx)-fromVersion+1)
	for _, i := range idx[fromVersion-1:] {
		out = append(out, s.journal[i])
	}
	return out
}

// ReadAll returns the journal from sequence number fromSeq on
func (s *InMemoryEventStore) ReadAll(fromSeq int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if fromSeq < 1 {
		fromSeq = 1
	}
	if fromSeq > len(s.journal) {
		return nil
	}
	return append([]Event(nil), s.journal[fromSeq-1:]...)
}

func (s *InMemoryEventStore) Subscribe(handler EventHandler, types ...entities.AuditEventType) {
	sub := subscription{handler: handler}
	if len(types) > 0 {
		sub.types = make(map[entities.AuditEventType]bool, len(types))
		for _, t := range types {
			sub.types[t] = true
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, sub)
}

func (s *InMemoryEventStore) Unsubscribe(handler EventHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.subs[:0]
	for _, sub := range s.subs {
		if sub.handler != handler {
			kept = append(kept, sub)
		}
	}
	s.subs = kept
}
