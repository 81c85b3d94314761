// Package events records completed exports. Exports are published to the
// store under LastExport; a Recorder fans each record out to audit sinks.
package events

import (
	"github.com/andywolf/reqsync/internal/requirement"
	"github.com/andywolf/reqsync/internal/store"
)

// Action names triggered by the HTTP layer.
const (
	ActionExportCompleted = "EXPORT_COMPLETED"
	ActionIssueCreated    = "ISSUE_CREATED"
	ActionIssueUpdated    = "ISSUE_UPDATED"
	ActionCommentCreated  = "COMMENT_CREATED"
)

// Store keys shared by the server, the recorder and config reload.
var (
	// LastExport holds the most recent export record.
	LastExport = store.NewKey[requirement.ExportRecord]("lastExport")
	// Organization holds the configured default organization.
	Organization = store.NewKey[string]("organization")
	// LogLevel holds the active log level name.
	LogLevel = store.NewKey[string]("logLevel")
)

// Sink receives export records.
type Sink interface {
	Write(rec requirement.ExportRecord) error
	Close() error
}

// PublishExport stores each record under LastExport and triggers
// ActionExportCompleted once per record.
func PublishExport(s *store.Store, records ...requirement.ExportRecord) {
	for _, rec := range records {
		LastExport.Set(s, rec)
		s.Trigger(ActionExportCompleted)
	}
}
