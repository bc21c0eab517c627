package auth

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodePayload(t *testing.T, body string) ErrorPayload {
	t.Helper()
	var p ErrorPayload
	require.NoError(t, json.Unmarshal([]byte(body), &p))
	return p
}

func TestUnknownFieldShapeKeepsDetail(t *testing.T) {
	p := decodePayload(t, `{"detail":"Invalid credentials","username":{"x":1}}`)
	msg, ok := p.Message()
	assert.True(t, ok)
	assert.Equal(t, "Invalid credentials", msg)
	assert.Empty(t, p.Username)
}

func TestFieldErrorsAcceptStringOrList(t *testing.T) {
	p := decodePayload(t, `{"username":"taken"}`)
	msg, _ := p.Message()
	assert.Equal(t, "taken", msg)

	p = decodePayload(t, `{"password":["too short","too common"]}`)
	msg, _ = p.Message()
	assert.Equal(t, "too short, too common", msg)
}

func TestFieldErrorsSkipNonStringItems(t *testing.T) {
	p := decodePayload(t, `{"non_field_errors":[1,"bad pair",null,{"a":"b"}],"password":42}`)
	assert.Equal(t, FieldErrors{"bad pair"}, p.NonFieldErrors)
	assert.Empty(t, p.Password)

	msg, ok := p.Message()
	assert.True(t, ok)
	assert.Equal(t, "bad pair", msg)
}

func TestMessagePrecedence(t *testing.T) {
	p := decodePayload(t, `{"password":["p"],"username":["u"],"non_field_errors":["n"]}`)
	msg, _ := p.Message()
	assert.Equal(t, "n", msg)

	_, ok := decodePayload(t, `{}`).Message()
	assert.False(t, ok)
}
