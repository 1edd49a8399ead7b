package model

import (
	"time"
)

// Request kinds
const (
	KindCalendar = "calendar"
	KindScripts  = "scripts"
)

// Request lifecycle: pending -> processing -> completed | failed
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

type ContentRequest struct {
	ID             int64       `gorm:"primaryKey" json:"id"`
	RequestKey     string      `gorm:"size:36;uniqueIndex;not null" json:"request_key"`
	UserID         int64       `gorm:"not null;index" json:"user_id"`
	TenantID       int64       `gorm:"not null;default:0;index" json:"tenant_id"`
	Kind           string      `gorm:"size:20;not null;default:calendar" json:"kind"`
	Industry       string      `gorm:"size:200;not null" json:"industry"`
	SelectedTopics StringArray `gorm:"type:text" json:"selected_topics"`
	BrandTone      string      `gorm:"size:200" json:"brand_tone,omitempty"`
	CallToAction   string      `gorm:"size:500" json:"call_to_action,omitempty"`
	Status         string      `gorm:"size:20;default:pending;index" json:"status"`
	CSVBase64      string      `json:"-"`
	CSVFilename    string      `gorm:"size:255" json:"csv_filename,omitempty"`
	CSVURL         string      `gorm:"size:500" json:"csv_url,omitempty"`
	ScriptContent  string      `json:"-"`
	ErrorMessage   string      `gorm:"type:text" json:"error_message,omitempty"`
	StartedAt      *time.Time  `json:"started_at,omitempty"`
	CompletedAt    *time.Time  `json:"completed_at,omitempty"`
	CreatedAt      time.Time   `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (ContentRequest) TableName() string {
	return "content_requests"
}

// IsTerminal reports whether the request can no longer change status.
func (r *ContentRequest) IsTerminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}
