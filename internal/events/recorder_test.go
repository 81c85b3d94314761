package events

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/andywolf/reqsync/internal/requirement"
	"github.com/andywolf/reqsync/internal/store"
)

type memorySink struct {
	records  []requirement.ExportRecord
	writeErr error
	closed   bool
}

func (m *memorySink) Write(rec requirement.ExportRecord) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *memorySink) Close() error {
	m.closed = true
	return nil
}

func TestRecorder(t *testing.T) {
	s := store.New()
	failing := &memorySink{writeErr: errors.New("disk full")}
	healthy := &memorySink{}

	rec := NewRecorder(zerolog.Nop(), failing, healthy)
	rec.Attach(s)

	var completed int
	s.SubscribeAction(ActionExportCompleted, func(any) { completed++ })

	PublishExport(s, testRecord(42), testRecord(43))

	if len(healthy.records) != 2 {
		t.Fatalf("healthy sink got %d records, want 2", len(healthy.records))
	}
	if healthy.records[1].IssueNumber != 43 {
		t.Errorf("last record = %d, want 43", healthy.records[1].IssueNumber)
	}
	if completed != 2 {
		t.Errorf("EXPORT_COMPLETED triggered %d times, want 2", completed)
	}
	if last, ok := LastExport.Get(s); !ok || last.IssueNumber != 43 {
		t.Errorf("LastExport = %+v, %v", last, ok)
	}

	if err := rec.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !failing.closed || !healthy.closed {
		t.Error("sinks not closed")
	}
	if n := s.Subscribers(LastExport.Name()); n != 0 {
		t.Errorf("subscribers after close = %d, want 0", n)
	}

	PublishExport(s, testRecord(44))
	if len(healthy.records) != 2 {
		t.Error("recorder received records after close")
	}
}

func TestRecorder_AttachReplaces(t *testing.T) {
	s := store.New()
	sink := &memorySink{}
	rec := NewRecorder(zerolog.Nop(), sink)

	rec.Attach(s)
	rec.Attach(s)
	PublishExport(s, testRecord(1))

	if len(sink.records) != 1 {
		t.Errorf("got %d records, want 1", len(sink.records))
	}
}
