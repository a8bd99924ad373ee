package message

import (
	"time"

	"github.com/kailas-cloud/studybuddy/internal/domain/category"
)

// Role identifies the author of a message.
type Role string

// Message role constants.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// IsValid checks if the role is one of the supported values.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Draft is a message before the conversation log assigns its id and timestamp.
type Draft struct {
	Role     Role
	Text     string
	Category category.Category
	Failed   bool // assistant placeholder shown after a failed provider call
}

// Message is an immutable entry of the conversation log.
type Message struct {
	id        int64
	role      Role
	text      string
	category  category.Category
	failed    bool
	createdAt time.Time
}

// New creates a Message from a draft.
func New(id int64, d Draft, createdAt time.Time) Message {
	return Message{
		id:        id,
		role:      d.Role,
		text:      d.Text,
		category:  d.Category,
		failed:    d.Failed,
		createdAt: createdAt,
	}
}

// ID returns the log-assigned id (starts at 1).
func (m Message) ID() int64 { return m.id }

// Role returns the author role.
func (m Message) Role() Role { return m.role }

// Text returns the message body.
func (m Message) Text() string { return m.text }

// Category returns the answer type the exchange was made under.
func (m Message) Category() category.Category { return m.category }

// Failed reports whether this is a placeholder for a failed answer.
func (m Message) Failed() bool { return m.failed }

// CreatedAt returns the append time.
func (m Message) CreatedAt() time.Time { return m.createdAt }
