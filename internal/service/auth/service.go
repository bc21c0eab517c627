package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/havenchat/companion/internal/model/auth"
	"github.com/havenchat/companion/internal/remote"
)

// Routes the view is sent to after auth changes.
const (
	HomeRoute  = "/home"
	LoginRoute = "/auth"
)

const (
	MsgUsernameRequired = "Username is required"
	MsgPasswordRequired = "Password is required"
	statusError         = "Request failed with status %d"
)

var ErrInvalidInput = errors.New("invalid credentials input")

// Remote is the part of the remote client used for authentication.
type Remote interface {
	Login(ctx context.Context, creds auth.Credentials) (json.RawMessage, error)
	Register(ctx context.Context, creds auth.Credentials) (json.RawMessage, error)
	Logout(ctx context.Context) error
}

// CookieStore holds the session cookie.
type CookieStore interface {
	Clear()
}

// Result is what the view needs after an auth call.
type Result struct {
	Redirect string          `json:"redirect,omitempty"`
	Error    string          `json:"error,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// Service signs the user in and out.
type Service struct {
	remote   Remote
	cookies  CookieStore
	cacheDir string
	onChange func(route string)
}

// NewService wires the auth flow. onChange is told the route after every
// successful login, registration or logout and may be nil.
func NewService(remote Remote, cookies CookieStore, cacheDir string, onChange func(route string)) *Service {
	return &Service{
		remote:   remote,
		cookies:  cookies,
		cacheDir: cacheDir,
		onChange: onChange,
	}
}

// Login validates the credentials and signs in.
func (s *Service) Login(ctx context.Context, creds auth.Credentials) (Result, error) {
	return s.authenticate(ctx, "login", creds, s.remote.Login)
}

// Register validates the credentials and creates the account.
func (s *Service) Register(ctx context.Context, creds auth.Credentials) (Result, error) {
	return s.authenticate(ctx, "register", creds, s.remote.Register)
}

func (s *Service) authenticate(
	ctx context.Context,
	op string,
	creds auth.Credentials,
	call func(context.Context, auth.Credentials) (json.RawMessage, error),
) (Result, error) {
	creds = creds.Normalize()
	if msg := validate(creds); msg != "" {
		return Result{Error: msg}, fmt.Errorf("%w: %s", ErrInvalidInput, msg)
	}

	data, err := call(ctx, creds)
	if err != nil {
		log.Printf("[auth] %s failed for %q: %v", op, creds.Username, err)
		return Result{Error: remote.Describe(err, statusError)}, fmt.Errorf("%s: %w", op, err)
	}

	log.Printf("[auth] %s succeeded for %q", op, creds.Username)
	s.navigate(HomeRoute)
	return Result{Redirect: HomeRoute, Data: data}, nil
}

func validate(creds auth.Credentials) string {
	if creds.Username == "" {
		return MsgUsernameRequired
	}
	if creds.Password == "" {
		return MsgPasswordRequired
	}
	return ""
}

// Logout ends the remote session. Local session artifacts are cleared and
// the view is sent to the login route even when the remote call fails.
func (s *Service) Logout(ctx context.Context) (Result, error) {
	err := s.remote.Logout(ctx)
	if err != nil {
		log.Printf("[auth] remote logout failed, clearing local session anyway: %v", err)
	}

	if s.cookies != nil {
		s.cookies.Clear()
	}
	if clearErr := s.clearCache(); clearErr != nil {
		log.Printf("[auth] failed to clear cache dir: %v", clearErr)
	}

	s.navigate(LoginRoute)
	result := Result{Redirect: LoginRoute}
	if err != nil {
		return result, fmt.Errorf("logout: %w", err)
	}
	return result, nil
}

func (s *Service) clearCache() error {
	if s.cacheDir == "" {
		return nil
	}
	if err := os.RemoveAll(s.cacheDir); err != nil {
		return err
	}
	return os.MkdirAll(s.cacheDir, 0o700)
}

func (s *Service) navigate(route string) {
	if s.onChange != nil {
		s.onChange(route)
	}
}
