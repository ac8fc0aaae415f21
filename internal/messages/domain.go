package messages

import "time"

// Message is one chat message. ParentID points at the thread root for
// replies; deleted messages keep their row with DeletedAt set.
type Message struct {
	ID        int64
	ChannelID int64
	AuthorID  int64
	Body      string
	ParentID  *int64
	Mentions  []string
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Deleted reports whether the message has been soft-deleted.
func (m *Message) Deleted() bool {
	return m.DeletedAt != nil
}

// Reaction is one emoji reaction by one user on one message.
type Reaction struct {
	MessageID int64
	UserID    int64
	Emoji     string
	CreatedAt time.Time
}
