package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.toml")

	config, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Gateway.URL, config.Gateway.URL)

	_, err = os.Stat(path)
	assert.NoError(t, err, "default config file gets written")
}

func TestLoadParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[gateway]
url = "wss://example.org/ws"
api_base = "https://example.org"

[chat]
backlog_lines = 300

[emotes]
names = ["OhKrappa", "Klappa"]
`), 0o644))

	config, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "wss://example.org/ws", config.Gateway.URL)
	assert.Equal(t, 300, config.Chat.BacklogLines)
	assert.Equal(t, []string{"OhKrappa", "Klappa"}, config.Emotes.Names)
}

func TestEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.toml")
	t.Setenv("OPENWIDGET_GATEWAY_URL", "wss://override.example/ws")
	t.Setenv("OPENWIDGET_CHAT_BACKLOG_LINES", "42")

	config, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "wss://override.example/ws", config.Gateway.URL)
	assert.Equal(t, 42, config.Chat.BacklogLines)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	expanded, err := ExpandPath("~/foo/bar.toml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "foo/bar.toml"), expanded)

	plain, err := ExpandPath("/etc/chat.toml")
	require.NoError(t, err)
	assert.Equal(t, "/etc/chat.toml", plain)
}
