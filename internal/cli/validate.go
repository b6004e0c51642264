package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/pipetest/internal/options"
)

// ValidationResult holds the result of validating an options file.
type ValidationResult struct {
	Valid   bool             `json:"valid"`
	Field   string           `json:"field,omitempty"`
	Error   string           `json:"error,omitempty"`
	Options *options.Options `json:"options,omitempty"`

	// Derived is the configuration a test runner would execute with.
	Derived *options.Options `json:"derived,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <options.yaml>",
		Short: "Validate execution options",
		Long: `Validate an execution options file against the options schema and
print the configuration a test runner derives from it.

The derived configuration always targets the in-process engine
("[auto]"), whatever target the file names.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	loaded, err := options.Load(opts.fs(), path)
	if err != nil {
		var ce *options.ConfigurationError
		if !errors.As(err, &ce) {
			if errors.Is(err, fs.ErrNotExist) {
				return NewExitError(ExitCommandError, fmt.Sprintf("options file not found: %s", path))
			}
			return WrapExitError(ExitCommandError, "failed to read options", err)
		}
		result := ValidationResult{Field: ce.Field, Error: ce.Error()}
		if outErr := formatter.Error(ErrCodeInvalidOptions, ce.Error(), result); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitFailure, "validation failed", err)
	}

	derived := options.DeriveTestOptions(loaded)
	result := ValidationResult{Valid: true, Options: &loaded, Derived: &derived}
	if opts.Format == "json" {
		return formatter.Success(result)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "✓ %s is valid\n", path)
	if derived.Target != loaded.Target {
		fmt.Fprintf(w, "target %q replaced by %q for test runs\n", loaded.Target, derived.Target)
	}
	data, err := yaml.Marshal(derived)
	if err != nil {
		return fmt.Errorf("encode derived options: %w", err)
	}
	fmt.Fprintln(w, "\nTest configuration:")
	_, err = w.Write(data)
	return err
}
