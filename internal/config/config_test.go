package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/agsrecall/internal/channel"
	"github.com/roach88/agsrecall/internal/engine"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, engine.DefaultMaxContexts, cfg.Engine.MaxContexts)
}

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
engine:
  max_contexts: 8
  id_prefix: ctx
midi:
  audio: synth
  channel: 9
db: session.db
`))
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Engine.MaxContexts)
	assert.Equal(t, engine.DefaultBufferSize, cfg.Engine.BufferSize, "unset keys keep defaults")
	assert.Equal(t, "ctx", cfg.Engine.IDPrefix)
	assert.Equal(t, "synth", cfg.MIDI.Audio)
	require.NotNil(t, cfg.MIDI.Channel)
	assert.Equal(t, 9, *cfg.MIDI.Channel)
	assert.Equal(t, "session.db", cfg.DB)
	assert.Len(t, cfg.EngineOptions(), 3)
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("engine:\n  max_context: 8\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_context")
}

func TestParse_Validation(t *testing.T) {
	_, err := Parse([]byte("engine:\n  buffer_size: -1\n"))
	assert.ErrorContains(t, err, "buffer_size")

	_, err = Parse([]byte("midi:\n  channel: 16\n"))
	assert.ErrorContains(t, err, "midi.channel")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agsrecall.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  max_contexts: -1\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, -1, cfg.Engine.MaxContexts)

	e := engine.New(channel.NewGraph(), cfg.EngineOptions()...)
	assert.Equal(t, 0, e.Quota().Max(), "negative limit disables the quota")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}
