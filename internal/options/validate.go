package options

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaCUE string

// ConfigurationError reports options that are missing or malformed.
// It is returned at construction time and is never retried.
type ConfigurationError struct {
	// Field is the dotted option path, empty when the error is not
	// attributable to a single field.
	Field   string
	Message string
	Cause   error
}

func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid options: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid options: %s", e.Message)
}

func (e *ConfigurationError) Unwrap() error { return e.Cause }

// IsConfigurationError reports whether err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// schema is compiled once. A cue.Context is not safe for concurrent use,
// so validations are serialized on mu.
var schema struct {
	once sync.Once
	mu   sync.Mutex
	ctx  *cue.Context
	def  cue.Value
	err  error
}

func loadSchema() (*cue.Context, cue.Value, error) {
	schema.once.Do(func() {
		schema.ctx = cuecontext.New()
		v := schema.ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			schema.err = fmt.Errorf("compile options schema: %w", err)
			return
		}
		schema.def = v.LookupPath(cue.ParsePath("#Options"))
		if err := schema.def.Err(); err != nil {
			schema.err = fmt.Errorf("lookup #Options: %w", err)
		}
	})
	return schema.ctx, schema.def, schema.err
}

// Validate checks o against the required option shape.
// The returned error, if any, is a *ConfigurationError.
func Validate(o Options) error {
	schema.mu.Lock()
	defer schema.mu.Unlock()

	ctx, def, err := loadSchema()
	if err != nil {
		return &ConfigurationError{Message: "schema unavailable", Cause: err}
	}

	encoded := ctx.Encode(o)
	if err := encoded.Err(); err != nil {
		return &ConfigurationError{Message: "cannot encode options", Cause: err}
	}

	unified := def.Unify(encoded)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return toConfigurationError(err)
	}
	return nil
}

// toConfigurationError keeps the first CUE error that names a field,
// falling back to the first error overall.
func toConfigurationError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &ConfigurationError{Message: err.Error(), Cause: err}
	}
	first := errs[0]
	for _, e := range errs {
		if len(e.Path()) > 0 {
			first = e
			break
		}
	}
	format, args := first.Msg()
	return &ConfigurationError{
		Field:   strings.Join(first.Path(), "."),
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}
