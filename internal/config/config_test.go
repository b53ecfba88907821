package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testYAML = `
Name: chatkin
Host: 127.0.0.1
Port: 9999
Auth:
  AccessSecret: ${TEST_CHATKIN_SECRET}
AI:
  AnthropicAPIKey: key
Chat:
  RecentWindow: 20
`

func TestLoadFromBytesExpandsEnv(t *testing.T) {
	t.Setenv("TEST_CHATKIN_SECRET", "s3cret")

	c, err := LoadFromBytes([]byte(testYAML))
	require.NoError(t, err)

	assert.Equal(t, 9999, c.Port)
	assert.Equal(t, "s3cret", c.Auth.AccessSecret)
	assert.Equal(t, 20, c.Chat.RecentWindow)
}

func TestDefaults(t *testing.T) {
	c, err := LoadFromBytes([]byte("Name: chatkin\nHost: 0.0.0.0\nPort: 8388\nAuth:\n  AccessSecret: x\n"))
	require.NoError(t, err)

	assert.Equal(t, "anthropic", c.AI.Provider)
	assert.Equal(t, 4096, c.AI.MaxTokens)
	assert.Equal(t, 5, c.AI.MaxQueryRounds)
	assert.Equal(t, 50, c.Chat.RecentWindow)
	assert.Equal(t, "@every 5m", c.Chat.SummarizeSpec)
	assert.True(t, c.IsSummarizeEnabled())
	assert.EqualValues(t, 86400, c.Auth.AccessExpire)
}

func TestParseBool(t *testing.T) {
	assert.True(t, parseBool("true", false))
	assert.True(t, parseBool("1", false))
	assert.True(t, parseBool("Yes", false))
	assert.False(t, parseBool("false", true))
	assert.True(t, parseBool("", true))
}
