package options

import (
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Validate(Default()))
}

func TestDeriveTestOptions_ForcesSentinel(t *testing.T) {
	targets := []string{"", TestTarget, LocalTarget, CollectionTarget, "cluster.example:8081", "[weird]"}

	for _, target := range targets {
		t.Run(target, func(t *testing.T) {
			base := Default()
			base.Target = target
			assert.Equal(t, TestTarget, DeriveTestOptions(base).Target)
		})
	}
}

func TestDeriveTestOptions_DoesNotAliasBase(t *testing.T) {
	base := Default()
	base.Target = "cluster.example:8081"
	base.Labels = map[string]string{"team": "data"}

	derived := DeriveTestOptions(base)
	derived.Labels["team"] = "changed"

	assert.Equal(t, "cluster.example:8081", base.Target)
	assert.Equal(t, "data", base.Labels["team"])
}

func TestDeriveTestOptions_KeepsOtherFields(t *testing.T) {
	base := Options{
		Runner:      "TestRunner",
		Target:      LocalTarget,
		Streaming:   true,
		Parallelism: 4,
		JobName:     "job-1",
		MetricsDB:   "/tmp/m.db",
	}
	derived := DeriveTestOptions(base)

	want := base
	want.Target = TestTarget
	assert.Equal(t, want, derived)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(o *Options)
		field  string
	}{
		{"empty runner", func(o *Options) { o.Runner = "" }, "runner"},
		{"runner with spaces", func(o *Options) { o.Runner = "my runner" }, "runner"},
		{"zero parallelism", func(o *Options) { o.Parallelism = 0 }, "parallelism"},
		{"negative parallelism", func(o *Options) { o.Parallelism = -3 }, "parallelism"},
		{"bad job name", func(o *Options) { o.JobName = "-job" }, "job_name"},
		{"empty metrics db", func(o *Options) { o.MetricsDB = "" }, "metrics_db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := Default()
			tt.mutate(&o)

			err := Validate(o)
			require.Error(t, err)

			var ce *ConfigurationError
			require.True(t, errors.As(err, &ce))
			assert.Contains(t, ce.Field, tt.field)
			assert.True(t, IsConfigurationError(err))
		})
	}
}

func TestValidate_AcceptsVariants(t *testing.T) {
	o := Default()
	o.Parallelism = 8
	o.JobName = "nightly.words_v2"
	o.Streaming = true
	o.Labels = map[string]string{"owner": "qa"}
	o.Target = "cluster.example:8081"

	require.NoError(t, Validate(o))
}

func TestParse_OverlaysDefaults(t *testing.T) {
	opts, err := Parse([]byte("streaming: true\nparallelism: 2\nlabels:\n  env: ci\n"))
	require.NoError(t, err)

	assert.Equal(t, DefaultRunner, opts.Runner)
	assert.Equal(t, TestTarget, opts.Target)
	assert.Equal(t, DefaultMetricsDB, opts.MetricsDB)
	assert.True(t, opts.Streaming)
	assert.Equal(t, 2, opts.Parallelism)
	assert.Equal(t, map[string]string{"env": "ci"}, opts.Labels)
}

func TestParse_EmptyDocumentIsDefault(t *testing.T) {
	opts, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), opts)
}

func TestParse_UnknownFieldIsConfigurationError(t *testing.T) {
	_, err := Parse([]byte("cluster_master: localhost\n"))
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
	assert.Contains(t, err.Error(), "cluster_master")
}

func TestParse_InvalidValueIsConfigurationError(t *testing.T) {
	_, err := Parse([]byte("parallelism: 0\n"))
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
}

func TestLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/cfg/opts.yaml", []byte("job_name: words\n"), 0o644))

	opts, err := Load(fs, "/cfg/opts.yaml")
	require.NoError(t, err)
	assert.Equal(t, "words", opts.JobName)

	_, err = Load(fs, "/cfg/missing.yaml")
	require.Error(t, err)
	assert.False(t, IsConfigurationError(err))
}

func TestConfigurationError_Message(t *testing.T) {
	assert.Equal(t, "invalid options: runner: required", (&ConfigurationError{Field: "runner", Message: "required"}).Error())
	assert.Equal(t, "invalid options: broken", (&ConfigurationError{Message: "broken"}).Error())
}
