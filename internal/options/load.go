package options

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Load reads options from a YAML file on fs. Fields absent from the file
// keep their Default values; unknown fields are rejected. The result is
// validated before it is returned.
func Load(fs afero.Fs, path string) (Options, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return Options{}, fmt.Errorf("read options file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML options over Default and validates them.
func Parse(data []byte) (Options, error) {
	opts := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		return Options{}, &ConfigurationError{Message: fmt.Sprintf("parse YAML: %v", err), Cause: err}
	}

	if err := Validate(opts); err != nil {
		return Options{}, err
	}
	return opts, nil
}
