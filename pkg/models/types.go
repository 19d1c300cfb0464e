package models

import "time"

// FileRecord is the message body published for each scanned file.
// The four JSON fields are the whole wire format: one object per
// message, no envelope.
type FileRecord struct {
	Path       string `json:"path"`
	Name       string `json:"name"`
	SizeBytes  int64  `json:"size_bytes"`
	ModifiedTS string `json:"modified_ts"`
}

type FileEvent struct {
	Path      string
	Operation string // CREATE, MODIFY, DELETE
	Timestamp time.Time
}
