package model

import (
	"database/sql"
	"time"
)

// Event levels
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// Event categories
const (
	EventCategoryTranslate = "translate"
	EventCategoryLead      = "lead"
	EventCategoryWebhook   = "webhook"
	EventCategoryContent   = "content"
	EventCategorySystem    = "system"
	EventCategoryCache     = "cache"
)

// Event represents a system event log entry.
type Event struct {
	ID        int64
	Level     string
	Category  string
	Message   string
	Lang      sql.NullString
	Metadata  string // JSON string
	CreatedAt time.Time
}
