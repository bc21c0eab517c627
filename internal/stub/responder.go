package stub

import (
	"strings"
)

// Responder produces the assistant reply for a user utterance.
type Responder interface {
	Reply(text string) string
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(text string) string

func (f ResponderFunc) Reply(text string) string { return f(text) }

// ReflectiveResponder answers with short supportive prompts keyed on the utterance.
type ReflectiveResponder struct{}

var reflectiveRules = []struct {
	keywords []string
	reply    string
}{
	{[]string{"anxious", "anxiety", "nervous", "worried", "panic"}, "That sounds really unsettling. Tell me more about what is making you feel anxious."},
	{[]string{"sad", "down", "depressed", "lonely", "cry"}, "I'm sorry you're feeling this way. Would you like to talk about what's been weighing on you?"},
	{[]string{"angry", "furious", "annoyed", "frustrated"}, "It makes sense to feel frustrated. What happened that brought this up?"},
	{[]string{"sleep", "tired", "exhausted", "insomnia"}, "Rest matters a lot. How have your evenings been going lately?"},
	{[]string{"thank", "better", "good", "great"}, "I'm glad to hear that. What has been helping you?"},
}

func (ReflectiveResponder) Reply(text string) string {
	lower := strings.ToLower(text)
	for _, rule := range reflectiveRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.reply
			}
		}
	}
	return "I'm here with you. Tell me more."
}
