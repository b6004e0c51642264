package cli

import (
	"bytes"
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wordLengthsScenario = `
name: word_lengths
pipeline:
  - create: words
    values: [a, bb, ccc]
  - map: lengths
    input: words
    fn: length
assertions:
  - input: lengths
    contains_in_any_order: [1, 2, 3]
`

const wrongScenario = `
name: wrong
pipeline:
  - create: nums
    values: [1, 2, 3]
assertions:
  - input: nums
    name: nums
    has_size: 2
`

// execute runs cmd with args and returns what it wrote to stdout and stderr.
func execute(cmd *cobra.Command, args ...string) (string, string, error) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// memFs returns an in-memory filesystem holding files.
func memFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	}
	return fs
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "pipetest", cmd.Use)
	assert.Contains(t, cmd.Long, "pipelines under test")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"run", "test", "validate", "history"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestSubcommandFlags(t *testing.T) {
	tests := []struct {
		command string
		flags   []string
	}{
		{"run", []string{"streaming", "db"}},
		{"test", []string{"update", "filter"}},
		{"history", []string{"db", "limit"}},
	}
	cmd := NewRootCommand()
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{tt.command})
			require.NoError(t, err)
			for _, name := range tt.flags {
				assert.NotNil(t, sub.Flags().Lookup(name), "flag --%s", name)
			}
		})
	}
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	_, _, err := execute(NewRootCommand(), "--format", "invalid", "validate", "options.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestRootOptions_ReadsFromFs(t *testing.T) {
	opts := &RootOptions{Format: "text", Fs: memFs(t, map[string]string{"/s.yaml": wordLengthsScenario})}
	out, _, err := execute(NewRunCommand(opts), "/s.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ word_lengths (pass)")
}

func TestRootOptions_Logger(t *testing.T) {
	buf := &bytes.Buffer{}

	(&RootOptions{}).logger(buf).Debug("hidden")
	assert.Empty(t, buf.String())

	(&RootOptions{Verbose: true}).logger(buf).Debug("shown", "k", 1)
	assert.Contains(t, buf.String(), "level=DEBUG msg=shown k=1")
}
