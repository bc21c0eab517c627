package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/havenchat/companion/internal/model/auth"
	"github.com/havenchat/companion/internal/model/chat"
)

// Client talks to the remote chat service. Session credentials are cookies
// kept in the client's jar.
type Client struct {
	baseURL string
	http    *http.Client
	jar     *SessionJar
}

// NewClient returns a client for baseURL with a fresh cookie jar.
func NewClient(baseURL string, timeout time.Duration) *Client {
	jar := NewSessionJar()
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		jar: jar,
	}
}

// Jar exposes the cookie jar holding session credentials.
func (c *Client) Jar() *SessionJar {
	return c.jar
}

// History issues GET /chat/.
func (c *Client) History(ctx context.Context) ([]chat.Exchange, error) {
	var out chat.HistoryResponse
	if err := c.do(ctx, http.MethodGet, "/chat/", nil, &out); err != nil {
		return nil, err
	}
	return out.ChatHistory, nil
}

// Send issues POST /chat/ with the utterance.
func (c *Client) Send(ctx context.Context, text string) (chat.SendResponse, error) {
	var out chat.SendResponse
	if err := c.do(ctx, http.MethodPost, "/chat/", chat.SendRequest{Text: text}, &out); err != nil {
		return chat.SendResponse{}, err
	}
	return out, nil
}

// Login issues POST /login/ and returns the raw success payload.
func (c *Client) Login(ctx context.Context, creds auth.Credentials) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/login/", creds, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Register issues POST /register/ and returns the raw success payload.
func (c *Client) Register(ctx context.Context, creds auth.Credentials) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/register/", creds, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Logout issues POST /logout/ without a body.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/logout/", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s request: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %s %s: %v", ErrNoResponse, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: read %s %s: %v", ErrNoResponse, method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrInvalidResponse, method, path, err)
	}
	return nil
}

const maxBodyBytes = 4 << 20

// ErrNoResponse marks transport failures where the server never answered.
var ErrNoResponse = errors.New("no response from server")

// ErrInvalidResponse marks a 2xx reply whose body could not be decoded.
var ErrInvalidResponse = errors.New("invalid response body")
