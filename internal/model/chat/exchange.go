package chat

// Exchange is one persisted user/bot turn as returned by the remote history endpoint.
// Either side may be missing.
type Exchange struct {
	User string `json:"user,omitempty"`
	Bot  string `json:"bot,omitempty"`
}

// HistoryResponse is the body of GET /chat/.
type HistoryResponse struct {
	ChatHistory []Exchange `json:"chat_history"`
}

// SendRequest is the body of POST /chat/.
type SendRequest struct {
	Text string `json:"text"`
}

// SendResponse is the reply to POST /chat/.
type SendResponse struct {
	Response string `json:"response"`
}
