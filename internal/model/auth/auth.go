package auth

import (
	"encoding/json"
	"strings"
)

// Credentials is the body of POST /login/ and POST /register/.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Normalize trims both fields.
func (c Credentials) Normalize() Credentials {
	return Credentials{
		Username: strings.TrimSpace(c.Username),
		Password: strings.TrimSpace(c.Password),
	}
}

// ErrorPayload is the structured error body the remote service may return.
type ErrorPayload struct {
	Detail         string      `json:"detail,omitempty"`
	NonFieldErrors FieldErrors `json:"non_field_errors,omitempty"`
	Username       FieldErrors `json:"username,omitempty"`
	Password       FieldErrors `json:"password,omitempty"`
}

// FieldErrors accepts either a single string or a list of strings. Values of
// any other shape are ignored so that the rest of the payload still decodes.
type FieldErrors []string

func (f *FieldErrors) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single != "" {
			*f = FieldErrors{single}
		}
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil
	}
	var out FieldErrors
	for _, item := range items {
		var msg string
		if json.Unmarshal(item, &msg) == nil && msg != "" {
			out = append(out, msg)
		}
	}
	*f = out
	return nil
}

// Message returns the first known field, in precedence order, joined with ", ".
func (p ErrorPayload) Message() (string, bool) {
	switch {
	case p.Detail != "":
		return p.Detail, true
	case len(p.NonFieldErrors) > 0:
		return strings.Join(p.NonFieldErrors, ", "), true
	case len(p.Username) > 0:
		return strings.Join(p.Username, ", "), true
	case len(p.Password) > 0:
		return strings.Join(p.Password, ", "), true
	default:
		return "", false
	}
}
