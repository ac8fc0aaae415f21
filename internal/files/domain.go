package files

import "time"

// Attachment is a stored file linked to a message.
type Attachment struct {
	ID          int64
	MessageID   int64
	Name        string
	Key         string
	SizeBytes   int64
	ContentType string
	UploadedBy  int64
	CreatedAt   time.Time
}
