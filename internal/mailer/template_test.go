package mailer

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/inkpost/internal/activation"
	"github.com/hitoshi/inkpost/internal/model"
)

func TestNewActivationEmailData(t *testing.T) {
	user := testUser()
	token := &model.ActivationToken{Token: "0b5c7a2e-8d4f-4e1a-9c3b-2a1d0e9f8c7b", UserID: user.ID}

	data, err := NewActivationEmailData("https://blog.example.com", user, token, 24*time.Hour)
	require.NoError(t, err)

	assert.Equal(t, "https", data.Protocol)
	assert.Equal(t, "blog.example.com", data.Domain)
	assert.Equal(t, activation.EncodeUserID(user.ID), data.UID)
	assert.Equal(t, token.Token, data.Token)
	assert.Equal(t, activation.BuildURL("https://blog.example.com", user.ID, token.Token), data.Link)
	assert.Equal(t, "24 hours", data.ValidFor)
}

func TestNewActivationEmailData_InvalidBaseURL(t *testing.T) {
	_, err := NewActivationEmailData("not a url", testUser(), &model.ActivationToken{}, time.Hour)
	assert.Error(t, err)
}

func TestRenderActivationEmail_ContainsLinkAndEscapesUsername(t *testing.T) {
	data := ActivationEmailData{
		Username: "<b>alice</b>",
		Protocol: "http",
		Domain:   "localhost:8080",
		UID:      "dWlk",
		Token:    "tok",
		Link:     "http://localhost:8080/activate/dWlk/tok/",
		ValidFor: "1 hour",
	}

	body, err := RenderActivationEmail(data)
	require.NoError(t, err)

	assert.Contains(t, body, `href="http://localhost:8080/activate/dWlk/tok/"`)
	assert.Contains(t, body, "1 hour")
	assert.False(t, strings.Contains(body, "<b>alice</b>"), "username must be escaped")
	assert.Contains(t, body, "&lt;b&gt;alice&lt;/b&gt;")
}

func TestHumanizeDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{time.Hour, "1 hour"},
		{48 * time.Hour, "48 hours"},
		{30 * time.Minute, "30 minutes"},
		{90 * time.Second, "1m30s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, humanizeDuration(tt.in))
	}
}
