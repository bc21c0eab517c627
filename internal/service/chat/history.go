package chat

import (
	"strings"

	"github.com/havenchat/companion/internal/model/chat"
)

// ExpandHistory turns persisted exchanges into transcript records, user first
// and assistant second, skipping missing sides and keeping source order.
func ExpandHistory(exchanges []chat.Exchange) []chat.Message {
	messages := make([]chat.Message, 0, len(exchanges)*2)
	for _, exchange := range exchanges {
		token := newToken()
		if strings.TrimSpace(exchange.User) != "" {
			messages = append(messages, chat.NewMessage(token, chat.RoleUser, exchange.User))
		}
		if strings.TrimSpace(exchange.Bot) != "" {
			messages = append(messages, chat.NewMessage(token, chat.RoleAssistant, exchange.Bot))
		}
	}
	return messages
}
