package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/NordCoder/Farewatch/internal/domain/monitor"
	"github.com/NordCoder/Farewatch/internal/obs"
)

var (
	ErrNotFound = errors.New("monitor not found")
	ErrBusy     = errors.New("monitor refresh already in flight")
)

type EventKind string

const (
	EventCreated    EventKind = "created"
	EventUpdated    EventKind = "updated"
	EventDeleted    EventKind = "deleted"
	EventRefreshing EventKind = "refreshing"
	EventRefreshed  EventKind = "refreshed"
)

type Event struct {
	Kind    EventKind       `json:"kind"`
	Monitor monitor.Monitor `json:"monitor"`
}

const subscriberBuffer = 64

// Store is the ordered monitor list, newest first. Every durable mutation is
// written to the slot before it becomes visible; a failed write leaves the
// list unchanged.
type Store struct {
	mu       sync.Mutex
	slot     monitor.SnapshotSlot
	monitors []monitor.Monitor
	subs     map[int]chan Event
	nextSub  int
	newID    func() string
	log      *zap.Logger
}

func New(slot monitor.SnapshotSlot, log *zap.Logger) *Store {
	return &Store{
		slot:  slot,
		subs:  map[int]chan Event{},
		newID: uuid.NewString,
		log:   obs.Component(log, "store"),
	}
}

func (s *Store) Load(ctx context.Context) error {
	body, err := s.slot.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	var list []monitor.Monitor
	if len(body) > 0 {
		if err := json.Unmarshal(body, &list); err != nil {
			return fmt.Errorf("decode snapshot: %w", err)
		}
	}
	for i := range list {
		list[i].Updating = false
		if list[i].History == nil {
			list[i].History = []monitor.Quote{}
		}
	}

	s.mu.Lock()
	s.monitors = list
	s.mu.Unlock()
	s.log.Info("monitors loaded", zap.Int("count", len(list)))
	return nil
}

func (s *Store) List() []monitor.Monitor {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]monitor.Monitor, len(s.monitors))
	for i, m := range s.monitors {
		out[i] = m.Clone()
	}
	return out
}

// Active returns the active monitors in display order.
func (s *Store) Active() []monitor.Monitor {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []monitor.Monitor
	for _, m := range s.monitors {
		if m.IsActive {
			out = append(out, m.Clone())
		}
	}
	return out
}

func (s *Store) Get(id string) (monitor.Monitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return monitor.Monitor{}, ErrNotFound
	}
	return s.monitors[i].Clone(), nil
}

func (s *Store) Create(ctx context.Context, d monitor.Draft) (monitor.Monitor, error) {
	if err := d.Validate(); err != nil {
		return monitor.Monitor{}, err
	}
	m := monitor.Monitor{
		ID:       s.newID(),
		IsActive: true,
		History:  []monitor.Quote{},
	}
	d.Apply(&m)

	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]monitor.Monitor, 0, len(s.monitors)+1)
	next = append(next, m)
	next = append(next, s.monitors...)
	if err := s.commit(ctx, next); err != nil {
		return monitor.Monitor{}, err
	}
	s.publish(EventCreated, m)
	return m.Clone(), nil
}

// Update applies an edit. Identity, history, activity and lastChecked survive.
func (s *Store) Update(ctx context.Context, id string, d monitor.Draft) (monitor.Monitor, error) {
	if err := d.Validate(); err != nil {
		return monitor.Monitor{}, err
	}
	return s.mutate(ctx, id, EventUpdated, func(m *monitor.Monitor) { d.Apply(m) })
}

func (s *Store) Toggle(ctx context.Context, id string) (monitor.Monitor, error) {
	return s.mutate(ctx, id, EventUpdated, func(m *monitor.Monitor) { m.IsActive = !m.IsActive })
}

func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	gone := s.monitors[i]
	next := make([]monitor.Monitor, 0, len(s.monitors)-1)
	next = append(next, s.monitors[:i]...)
	next = append(next, s.monitors[i+1:]...)
	if err := s.commit(ctx, next); err != nil {
		return err
	}
	s.publish(EventDeleted, gone)
	return nil
}

// BeginRefresh marks the monitor updating and returns its snapshot. A monitor
// that is already updating is refused with ErrBusy.
func (s *Store) BeginRefresh(id string) (monitor.Monitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return monitor.Monitor{}, ErrNotFound
	}
	if s.monitors[i].Updating {
		return monitor.Monitor{}, ErrBusy
	}
	s.monitors[i].Updating = true
	m := s.monitors[i].Clone()
	s.publish(EventRefreshing, m)
	return m, nil
}

// CommitRefresh appends one batch stamped with ts, sets lastChecked and clears
// the updating flag. Edits made while the oracle call was in flight are kept.
func (s *Store) CommitRefresh(ctx context.Context, id string, quotes []monitor.Quote, ts int64) (monitor.Monitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return monitor.Monitor{}, ErrNotFound
	}

	batch := make([]monitor.Quote, len(quotes))
	for j, q := range quotes {
		q.Timestamp = ts
		if q.CurrencyType == "" {
			q.CurrencyType = s.monitors[i].CurrencyType
		}
		batch[j] = q
	}

	m := s.monitors[i].Clone()
	m.History = monitor.AppendBatch(m.History, batch)
	m.LastChecked = &ts
	m.Updating = false

	next := append([]monitor.Monitor(nil), s.monitors...)
	next[i] = m
	if err := s.commit(ctx, next); err != nil {
		s.monitors[i].Updating = false
		s.publish(EventUpdated, s.monitors[i])
		return monitor.Monitor{}, err
	}
	s.publish(EventRefreshed, m)
	return m.Clone(), nil
}

// AbortRefresh clears the updating flag and leaves everything else unchanged.
func (s *Store) AbortRefresh(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 || !s.monitors[i].Updating {
		return
	}
	s.monitors[i].Updating = false
	s.publish(EventUpdated, s.monitors[i])
}

// Subscribe returns a channel of store events and a cancel func. Slow
// subscribers lose events rather than block writers.
func (s *Store) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan Event, subscriberBuffer)
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

func (s *Store) mutate(ctx context.Context, id string, kind EventKind, fn func(m *monitor.Monitor)) (monitor.Monitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return monitor.Monitor{}, ErrNotFound
	}
	m := s.monitors[i].Clone()
	fn(&m)
	next := append([]monitor.Monitor(nil), s.monitors...)
	next[i] = m
	if err := s.commit(ctx, next); err != nil {
		return monitor.Monitor{}, err
	}
	s.publish(kind, m)
	return m.Clone(), nil
}

// commit persists next and swaps it in. Callers hold mu.
func (s *Store) commit(ctx context.Context, next []monitor.Monitor) error {
	body, err := Encode(next)
	if err != nil {
		return err
	}
	if err := s.slot.Save(ctx, body); err != nil {
		s.log.Error("persist snapshot", zap.Error(err))
		return fmt.Errorf("persist snapshot: %w", err)
	}
	s.monitors = next
	return nil
}

func (s *Store) publish(kind EventKind, m monitor.Monitor) {
	ev := Event{Kind: kind, Monitor: m.Clone()}
	for id, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			s.log.Debug("subscriber lagging, event dropped", zap.Int("subscriber", id), zap.String("kind", string(kind)))
		}
	}
}

func (s *Store) indexOf(id string) int {
	for i := range s.monitors {
		if s.monitors[i].ID == id {
			return i
		}
	}
	return -1
}

// Encode renders the persisted form of the list. The updating flag is not
// part of it.
func Encode(list []monitor.Monitor) ([]byte, error) {
	if list == nil {
		list = []monitor.Monitor{}
	}
	body, err := json.Marshal(list)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return body, nil
}
