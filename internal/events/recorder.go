package events

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/andywolf/reqsync/internal/requirement"
	"github.com/andywolf/reqsync/internal/store"
)

// Recorder writes every record published under LastExport to its sinks.
// A failing sink is logged and does not stop the others.
type Recorder struct {
	mu     sync.Mutex
	sinks  []Sink
	logger zerolog.Logger
	unsub  func()
}

// NewRecorder creates a Recorder over sinks.
func NewRecorder(logger zerolog.Logger, sinks ...Sink) *Recorder {
	return &Recorder{sinks: sinks, logger: logger}
}

// Attach subscribes the recorder to s. A second call replaces the first
// subscription.
func (r *Recorder) Attach(s *store.Store) {
	unsub := LastExport.Subscribe(s, r.Record)

	r.mu.Lock()
	prev := r.unsub
	r.unsub = unsub
	r.mu.Unlock()

	if prev != nil {
		prev()
	}
}

// Record writes rec to every sink.
func (r *Recorder) Record(rec requirement.ExportRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, sink := range r.sinks {
		if err := sink.Write(rec); err != nil {
			r.logger.Error().Err(err).
				Str("owner", rec.Owner).
				Str("repo", rec.Repo).
				Int("issue_number", rec.IssueNumber).
				Msg("failed to record export")
		}
	}
}

// Close detaches from the store and closes every sink.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.unsub != nil {
		r.unsub()
		r.unsub = nil
	}

	var errs []error
	for _, sink := range r.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.sinks = nil
	return errors.Join(errs...)
}
