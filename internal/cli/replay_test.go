package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/agsrecall/internal/store"
)

func TestReplayMatchesJournal(t *testing.T) {
	db := playSession(t)

	out, err := execute(t, "--config", configYAML, "replay", sessionCUE, "--db", db)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Replay Summary: 4 task(s), 0 reset(s), 3 live context(s)")
	assert.Contains(t, out, "✓ Replay matches journal")
}

func TestReplayIgnoresRecallIDs(t *testing.T) {
	db := playSession(t)

	// Without the config the replay engine draws UUID recall ids.
	out, err := execute(t, "--format", "json", "replay", sessionCUE, "--db", db)
	require.NoError(t, err, out)

	var result ReplayResult
	decode(t, out, &result)
	assert.True(t, result.Deterministic)
	assert.Equal(t, 4, result.Tasks)
}

func TestReplayWithResets(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "edit.yaml", `steps:
  - task: start_playback
    args: { audio: synth }
  - task: note_on
    args: { audio: synth, pad: 1 }
  - task: link
    args: { input: synth, input_line: 1, output: osc, output_line: 0 }
  - task: add_pad
    args: { audio: synth, orientation: input }
  - task: remove_pad
    args: { audio: synth, orientation: input }
`)
	db := filepath.Join(dir, "edit.db")
	_, err := execute(t, "--config", configYAML, "play", sessionCUE, "--script", script, "--db", db)
	require.NoError(t, err)

	out, err := execute(t, "--format", "json", "replay", sessionCUE, "--db", db)
	require.NoError(t, err, out)

	var result ReplayResult
	decode(t, out, &result)
	assert.True(t, result.Deterministic)
	assert.Positive(t, result.Resets)
}

func TestReplayDetectsDivergence(t *testing.T) {
	db := playSession(t)

	st, err := store.Open(db)
	require.NoError(t, err)
	_, err = st.DB().Exec(`UPDATE tasks SET error = 'NOT_PLAYING: tampered' WHERE seq = 2`)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := execute(t, "--config", configYAML, "replay", sessionCUE, "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, `[2] error: journal "NOT_PLAYING: tampered", replay ""`)
	assert.Contains(t, out, "✗ Replay diverged from journal")
}

func TestReplayQuotaChangesOutcome(t *testing.T) {
	db := playSession(t)
	cfg := writeFile(t, t.TempDir(), "tight.yaml", "engine:\n  max_contexts: 3\n")

	var result ReplayResult
	out, err := execute(t, "--config", cfg, "--format", "json", "replay", sessionCUE, "--db", db)
	require.Error(t, err)
	decode(t, out, &result)
	assert.False(t, result.Deterministic)
	require.NotEmpty(t, result.Divergences)
	// The second voice no longer fits.
	assert.Equal(t, int64(3), result.Divergences[0].Seq)
	assert.Equal(t, "error", result.Divergences[0].Field)
}

func TestReplayTopologyMismatch(t *testing.T) {
	db := playSession(t)
	other := writeFile(t, t.TempDir(), "other.cue", "package session\n\naudio: synth: {output_pads: 1, input_pads: 3}\n")

	out, err := execute(t, "replay", other, "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeHashMismatch+"]")
}
