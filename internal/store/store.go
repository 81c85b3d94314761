// Package store is a process-wide key/value store with change notification.
//
// Writes notify subscribers of the written key synchronously, after the
// write is visible to readers. Keys prefixed with ActionPrefix are action
// keys: their value records when an event last happened and consumers
// react to the change, not the payload.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Entry is a stored value with its write metadata.
type Entry struct {
	Key       string    `json:"key"`
	Value     any       `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   uint64    `json:"version"`
}

// Listener receives the new value of a key after each write.
type Listener func(value any)

type subscription struct {
	id uuid.UUID
	fn Listener
}

// Store holds entries for the lifetime of the process. There is no delete.
// It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Entry
	subs    map[string][]subscription
	version uint64

	logger  zerolog.Logger
	nowFunc func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for write tracing and listener panics.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithClock sets the time source for UpdatedAt and default action payloads.
func WithClock(fn func() time.Time) Option {
	return func(s *Store) {
		s.nowFunc = fn
	}
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		entries: make(map[string]Entry),
		subs:    make(map[string][]subscription),
		logger:  zerolog.Nop(),
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Set writes value under key, notifies the key's subscribers and returns
// the value now current for key.
func (s *Store) Set(key string, value any) any {
	s.SetVars(map[string]any{key: value})
	return s.Get(key)
}

// SetVars writes several keys as one batch. Subscribers are notified per
// key in key order once every write is visible.
func (s *Store) SetVars(vars map[string]any) {
	if len(vars) == 0 {
		return
	}

	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	type delivery struct {
		key       string
		value     any
		listeners []Listener
	}

	s.mu.Lock()
	now := s.nowFunc()
	deliveries := make([]delivery, 0, len(keys))
	for _, k := range keys {
		s.version++
		s.entries[k] = Entry{Key: k, Value: vars[k], UpdatedAt: now, Version: s.version}
		if subs := s.subs[k]; len(subs) > 0 {
			listeners := make([]Listener, len(subs))
			for i, sub := range subs {
				listeners[i] = sub.fn
			}
			deliveries = append(deliveries, delivery{key: k, value: vars[k], listeners: listeners})
		}
	}
	s.mu.Unlock()

	for _, k := range keys {
		s.logger.Debug().Str("key", k).Msg("variable set")
	}
	for _, d := range deliveries {
		for _, fn := range d.listeners {
			s.notify(d.key, fn, d.value)
		}
	}
}

func (s *Store) notify(key string, fn Listener, value any) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("key", key).Interface("panic", r).Msg("store listener panicked")
		}
	}()
	fn(value)
}

// Get returns the value of key, or nil if it was never set.
func (s *Store) Get(key string) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[key].Value
}

// Lookup returns the entry for key and whether it has been set.
func (s *Store) Lookup(key string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return e, ok
}

// GetVars returns the values of the given keys that have been set.
func (s *Store) GetVars(keys []string) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]any, len(keys))
	for _, k := range keys {
		if e, ok := s.entries[k]; ok {
			out[k] = e.Value
		}
	}
	return out
}

// Snapshot returns every entry ordered by key.
func (s *Store) Snapshot() []Entry {
	s.mu.RLock()
	entries := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries
}

// Subscribe registers fn for writes to key and returns a function that
// removes exactly this subscription. Calling it more than once is a no-op.
// A nil fn is not registered.
func (s *Store) Subscribe(key string, fn Listener) (unsubscribe func()) {
	if fn == nil {
		s.logger.Error().Str("key", key).Msg("subscribe requires a listener")
		return func() {}
	}

	id := uuid.New()
	s.mu.Lock()
	s.subs[key] = append(s.subs[key], subscription{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.unsubscribe(key, id) })
	}
}

func (s *Store) unsubscribe(key string, id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs := s.subs[key]
	for i, sub := range subs {
		if sub.id == id {
			subs = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(subs) == 0 {
		delete(s.subs, key)
		return
	}
	s.subs[key] = subs
}

// Subscribers returns the number of listeners registered for key.
func (s *Store) Subscribers(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs[key])
}
