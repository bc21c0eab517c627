package chat

import "github.com/google/uuid"

// newToken returns a time-ordered correlation token.
func newToken() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
