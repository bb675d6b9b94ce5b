package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
)

// Document is the ingestion-side record of one uploaded source file. Its
// chunks live in the scope's indices; the document row tracks lifecycle only.
type Document struct {
	ID          string         `json:"id"`
	Filename    string         `json:"filename"`
	MimeType    string         `json:"mime_type"`
	StoragePath string         `json:"storage_path"`
	Scope       string         `json:"scope"`
	Pages       int            `json:"pages,omitempty"`
	Chunks      int            `json:"chunks,omitempty"`
	Status      DocumentStatus `json:"status"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// PageText is one extracted page of a source document. Loaders that have no
// page concept emit a single PageText with Page 1.
type PageText struct {
	Page    int
	Content string
}
