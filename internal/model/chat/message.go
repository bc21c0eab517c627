package chat

import "time"

// Role identifies who authored a transcript record.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single transcript record.
type Message struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewMessage builds a record for the given exchange token.
func NewMessage(token string, role Role, content string) Message {
	return Message{
		ID:        string(role) + "-" + token,
		Token:     token,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}
