package models

import "time"

// FileInfo represents metadata about an uploaded plot file.
type FileInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	Format     Format    `json:"format,omitempty"` // empty when the extension is unknown
	UploadedAt time.Time `json:"uploadedAt"`
	Status     string    `json:"status"` // "uploaded", "processing", "processed", "error"
}
