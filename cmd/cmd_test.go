package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtzll/ytrag/internal"
)

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "", maskKey(""))
	assert.Equal(t, "****", maskKey("sk-1234"))
	assert.Equal(t, "sk-...wxyz", maskKey("sk-abcdefghijklmnopqrstuvwxyz"))
}

func TestEffectiveConfigMasksKey(t *testing.T) {
	c := internal.DefaultConfig(t.TempDir())
	c.OpenAIAPIKey = "sk-abcdefghijklmnopqrstuvwxyz"

	data, err := toml.Marshal(newEffectiveConfig(c))
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "openai_api_key = 'sk-...wxyz'")
	assert.Contains(t, out, "chunk_size = 1000")
	assert.Contains(t, out, "summary_timeout = '2m0s'")
	assert.NotContains(t, out, "openai_base_url")
	assert.NotContains(t, out, "abcdefghijklmnop")
}

func TestRegisterMCPServerPreservesOtherKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claude_desktop_config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "globalShortcut": "Ctrl+Space",
  "mcpServers": {
    "other": {"command": "other-server", "args": ["--flag"], "env": {"A": "1"}}
  }
}`), 0644))

	entry := MCPServerConfig{Command: "/usr/local/bin/ytrag", Args: []string{"mcp"}, Env: map[string]string{}}
	require.NoError(t, registerMCPServer(path, "ytrag", entry))
	// registering twice replaces the entry
	require.NoError(t, registerMCPServer(path, "ytrag", entry))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc struct {
		GlobalShortcut string                     `json:"globalShortcut"`
		MCPServers     map[string]MCPServerConfig `json:"mcpServers"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "Ctrl+Space", doc.GlobalShortcut)
	require.Len(t, doc.MCPServers, 2)
	assert.Equal(t, "other-server", doc.MCPServers["other"].Command)
	assert.Equal(t, map[string]string{"A": "1"}, doc.MCPServers["other"].Env)
	assert.Equal(t, entry, doc.MCPServers["ytrag"])
}

func TestRegisterMCPServerErrors(t *testing.T) {
	dir := t.TempDir()
	entry := MCPServerConfig{Command: "ytrag", Args: []string{"mcp"}}

	err := registerMCPServer(filepath.Join(dir, "missing.json"), "ytrag", entry)
	assert.ErrorContains(t, err, "not found")

	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte("{"), 0644))
	assert.ErrorContains(t, registerMCPServer(broken, "ytrag", entry), "parsing existing config")

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{"mcpServers": null}`), 0644))
	require.NoError(t, registerMCPServer(empty, "ytrag", entry))
	data, err := os.ReadFile(empty)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"ytrag"`)
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"Name", "Videos"}, [][]string{
		{"cats", "12"},
		{"rockets"},
	}, 1)

	lines := strings.Split(out, "\n")
	require.NotEmpty(t, lines)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "cats")
	assert.Contains(t, out, "rockets")
	assert.Contains(t, out, "╭")

	assert.Empty(t, renderTable(nil, nil))
}

func TestCommandNames(t *testing.T) {
	names := commandNames()
	assert.Contains(t, names, "chat")
	assert.Contains(t, names, "sessions")
	assert.Contains(t, names, "mcp")
}
