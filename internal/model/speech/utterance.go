package speech

// Utterance is a reply to be spoken. Prompt is the user text it answers and
// may be empty.
type Utterance struct {
	Text   string `json:"text"`
	Prompt string `json:"prompt,omitempty"`
}
