package domain

import "time"

type ExportFormat string

const (
	ExportText     ExportFormat = "txt"
	ExportWorkbook ExportFormat = "xlsx"
)

func (f ExportFormat) IsValid() bool {
	return f == ExportText || f == ExportWorkbook
}

func (f ExportFormat) ContentType() string {
	if f == ExportWorkbook {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/plain; charset=utf-8"
}

// ExportArtifact is the durable output of a completed session.
type ExportArtifact struct {
	SessionID   string       `json:"session_id"`
	Filename    string       `json:"filename"`
	Format      ExportFormat `json:"format"`
	ContentType string       `json:"content_type"`
	Content     []byte       `json:"-"`
}

const EventApplicationExported = "application.exported"

// ExportEvent announces a stored export artifact.
type ExportEvent struct {
	ID            string        `json:"id"`
	Type          string        `json:"type"`
	SessionID     string        `json:"session_id"`
	Filename      string        `json:"filename"`
	Format        ExportFormat  `json:"format"`
	StorageKey    string        `json:"storage_key"`
	Organization  string        `json:"organization"`
	Determination Determination `json:"determination"`
	SizeBytes     int           `json:"size_bytes"`
	CreatedAt     time.Time     `json:"created_at"`
}
