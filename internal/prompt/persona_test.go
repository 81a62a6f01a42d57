package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/discovery-widget/internal/leads"
)

func TestDefault(t *testing.T) {
	p := Default()
	assert.Equal(t, "I'm with AI Sync 101. What operational challenges are you dealing with?", p.Greeting)
	assert.Contains(t, p.FallbackReply, "info@aisync101.com")
	assert.Contains(t, p.SystemPrompt, "Which is causing you the most pain?")
	assert.Contains(t, p.LeadInfoInstructions, "<lead_info>")
}

func TestLoad_OverlaysDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persona.yaml")
	require.NoError(t, os.WriteFile(path, []byte("greeting: \"Hey there, what's broken?\"\n"), 0o600))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Hey there, what's broken?", p.Greeting)
	assert.Equal(t, Default().SystemPrompt, p.SystemPrompt)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("greeting: [unterminated"), 0o600))
	_, err = Load(path)
	assert.Error(t, err)

	p, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), p)
}

func TestSystem(t *testing.T) {
	p := Default()

	blocks := p.System(leads.Info{})
	assert.Len(t, blocks, 2)

	blocks = p.System(leads.Info{Name: "Carlos", Email: "c@computech.support", Website: "computech.support"})
	require.Len(t, blocks, 3)
	assert.Contains(t, blocks[1], "- Name: Carlos")
	assert.NotContains(t, blocks[1], "Phone")
	assert.Contains(t, blocks[1], "All details required for scheduling are known.")
}
