package remote_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenchat/companion/internal/model/auth"
	"github.com/havenchat/companion/internal/remote"
	"github.com/havenchat/companion/internal/stub"
)

func newStubClient(t *testing.T) (*remote.Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(stub.New(stub.NewStore(), nil).Router())
	t.Cleanup(srv.Close)
	return remote.NewClient(srv.URL, 5*time.Second), srv
}

func TestHistoryRequiresSession(t *testing.T) {
	client, _ := newStubClient(t)

	_, err := client.History(context.Background())
	require.Error(t, err)
	assert.True(t, remote.IsUnauthorized(err))
}

func TestRegisterSendAndHistory(t *testing.T) {
	client, _ := newStubClient(t)
	ctx := context.Background()

	_, err := client.Register(ctx, auth.Credentials{Username: "sam", Password: "pw"})
	require.NoError(t, err)

	_, err = client.History(ctx)
	require.Error(t, err)
	assert.True(t, remote.IsNotFound(err), "empty history is reported as 404")

	resp, err := client.Send(ctx, "I feel anxious")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Response)

	history, err := client.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "I feel anxious", history[0].User)
	assert.Equal(t, resp.Response, history[0].Bot)
}

func TestLoginErrorPayloadIsDescribed(t *testing.T) {
	client, _ := newStubClient(t)

	_, err := client.Login(context.Background(), auth.Credentials{Username: "ghost", Password: "nope"})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, remote.StatusCode(err))
	assert.Equal(t, "Invalid username or password.", remote.Describe(err, "Request failed with status %d"))
}

func TestLogoutThenClearDropsSession(t *testing.T) {
	client, _ := newStubClient(t)
	ctx := context.Background()

	_, err := client.Register(ctx, auth.Credentials{Username: "kim", Password: "pw"})
	require.NoError(t, err)
	require.NoError(t, client.Logout(ctx))
	client.Jar().Clear()

	_, err = client.History(ctx)
	assert.True(t, remote.IsUnauthorized(err))
}

func TestTransportFailureIsNoResponse(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := remote.NewClient(url, time.Second)
	_, err := client.Send(context.Background(), "test")
	require.Error(t, err)
	assert.True(t, errors.Is(err, remote.ErrNoResponse))
	assert.Equal(t, remote.MsgNoResponse, remote.Describe(err, "Failed to send message: %d"))
}

func TestDescribeFallsBackToStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))
	t.Cleanup(srv.Close)

	client := remote.NewClient(srv.URL, time.Second)
	_, err := client.Send(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, "Failed to send message: 502", remote.Describe(err, "Failed to send message: %d"))
}

func TestDescribeFieldPrecedence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"password":["too short","too common"],"username":["taken"]}`))
	}))
	t.Cleanup(srv.Close)

	client := remote.NewClient(srv.URL, time.Second)
	_, err := client.Register(context.Background(), auth.Credentials{Username: "a", Password: "b"})
	assert.Equal(t, "taken", remote.Describe(err, "Request failed with status %d"))
}

func TestDescribeJoinsNonFieldErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"non_field_errors":["first","second"]}`))
	}))
	t.Cleanup(srv.Close)

	client := remote.NewClient(srv.URL, time.Second)
	_, err := client.Login(context.Background(), auth.Credentials{Username: "a", Password: "b"})
	assert.Equal(t, "first, second", remote.Describe(err, "Request failed with status %d"))
}
