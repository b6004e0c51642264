package cli

import (
	"encoding/json"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wordLengthsGolden = `{"aggregators":{"pipetest/assert/failure":0,"pipetest/assert/success":1},"assertions":1,"outcome":"pass","outputs":{"lengths":[1,2,3],"words":["a","bb","ccc"]},"scenario":"word_lengths","streaming":false}`

const expectedFailureScenario = `
name: rejects
pipeline:
  - create: words
    values: [a]
  - map: boom
    input: words
    fn: fail
expect:
  outcome: execution_failure
  message: rejected by fail
`

func TestTestCommandMissingArgs(t *testing.T) {
	_, _, err := execute(NewTestCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentDir(t *testing.T) {
	opts := &RootOptions{Format: "text", Fs: memFs(t, nil)}

	_, _, err := execute(NewTestCommand(opts), "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyDir(t *testing.T) {
	fs := memFs(t, nil)
	require.NoError(t, fs.MkdirAll("/scenarios", 0o755))

	out, _, err := execute(NewTestCommand(&RootOptions{Format: "text", Fs: fs}), "/scenarios")
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommandEmptyDirJSON(t *testing.T) {
	fs := memFs(t, nil)
	require.NoError(t, fs.MkdirAll("/scenarios", 0o755))

	out, _, err := execute(NewTestCommand(&RootOptions{Format: "json", Fs: fs}), "/scenarios")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 0, resp.Data.Total)
	assert.Empty(t, resp.Data.Scenarios)
}

func TestTestCommandAllPass(t *testing.T) {
	fs := memFs(t, map[string]string{
		"/scenarios/lengths.yaml": wordLengthsScenario,
		"/scenarios/rejects.yml":  expectedFailureScenario,
		"/scenarios/README.md":    "not a scenario",
	})

	out, _, err := execute(NewTestCommand(&RootOptions{Format: "text", Fs: fs}), "/scenarios")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ word_lengths (pass)")
	assert.Contains(t, out, "✓ rejects (execution_failure)")
	assert.Contains(t, out, "Test Summary: 2 scenarios, 2 passed, 0 failed")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandFailure(t *testing.T) {
	fs := memFs(t, map[string]string{
		"/scenarios/lengths.yaml": wordLengthsScenario,
		"/scenarios/wrong.yaml":   wrongScenario,
	})

	out, _, err := execute(NewTestCommand(&RootOptions{Format: "text", Fs: fs}), "/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.EqualError(t, err, "1 scenario failed")
	assert.Contains(t, out, "✗ wrong")
	assert.Contains(t, out, "Test Summary: 2 scenarios, 1 passed, 1 failed")
}

func TestTestCommandLoadError(t *testing.T) {
	fs := memFs(t, map[string]string{"/scenarios/broken.yaml": "name: [unclosed\n"})

	out, _, err := execute(NewTestCommand(&RootOptions{Format: "text", Fs: fs}), "/scenarios")
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestCommandFilter(t *testing.T) {
	fs := memFs(t, map[string]string{
		"/scenarios/lengths.yaml": wordLengthsScenario,
		"/scenarios/wrong.yaml":   wrongScenario,
	})

	out, _, err := execute(NewTestCommand(&RootOptions{Format: "text", Fs: fs}), "/scenarios", "--filter", "len*")
	require.NoError(t, err)
	assert.Contains(t, out, "Test Summary: 1 scenario, 1 passed, 0 failed")
	assert.NotContains(t, out, "wrong")
}

func TestTestCommandGoldenUpdateAndCompare(t *testing.T) {
	fs := memFs(t, map[string]string{"/scenarios/lengths.yaml": wordLengthsScenario})
	opts := &RootOptions{Format: "text", Fs: fs}

	out, _, err := execute(NewTestCommand(opts), "/scenarios", "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ word_lengths (pass, golden updated)")

	golden, err := afero.ReadFile(fs, "/scenarios/golden/word_lengths.golden")
	require.NoError(t, err)
	assert.Equal(t, wordLengthsGolden, string(golden))

	out, _, err = execute(NewTestCommand(opts), "/scenarios")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ word_lengths (pass)")

	require.NoError(t, afero.WriteFile(fs, "/scenarios/golden/word_lengths.golden", []byte(`{}`), 0o644))
	out, _, err = execute(NewTestCommand(opts), "/scenarios")
	require.Error(t, err)
	assert.Contains(t, out, "report does not match golden file")
}

func TestTestCommandStreamingGolden(t *testing.T) {
	fs := memFs(t, map[string]string{"/scenarios/lengths.yaml": "streaming: true\n" + wordLengthsScenario})

	_, _, err := execute(NewTestCommand(&RootOptions{Format: "text", Fs: fs}), "/scenarios", "--update")
	require.NoError(t, err)

	golden, err := afero.ReadFile(fs, "/scenarios/golden/word_lengths.golden")
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"streaming":true`)
	assert.Contains(t, string(golden), `"outputs":{"lengths":[1,2,3],"words":["a","bb","ccc"]}`)
}

func TestTestCommandJSONFailure(t *testing.T) {
	fs := memFs(t, map[string]string{
		"/scenarios/lengths.yaml": wordLengthsScenario,
		"/scenarios/wrong.yaml":   wrongScenario,
	})

	out, _, err := execute(NewTestCommand(&RootOptions{Format: "json", Fs: fs}), "/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string    `json:"status"`
		Error  *CLIError `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)
	assert.Equal(t, "1 scenario failed", resp.Error.Message)
}
