package scenario

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/pipetest/internal/ir"
	"github.com/roach88/pipetest/internal/pipeline"
)

// Builtins lists the functions a scenario step can name, per step kind.
// Parameterized functions take their argument after a colon, e.g. "add:3".
var Builtins = map[string][]string{
	"map":      {"identity", "upper", "lower", "length", "add:N", "mul:N", "fail", "panic"},
	"filter":   {"even", "odd", "nonempty", "fail", "panic"},
	"flat_map": {"split", "fail", "panic"},
}

// errRejected is returned by the "fail" builtin.
var errRejected = errors.New("rejected by fail")

func mapFn(ref string) (pipeline.MapFn, error) {
	name, arg, hasArg := strings.Cut(ref, ":")
	switch name {
	case "identity":
		return func(v ir.Value) (ir.Value, error) { return v, nil }, noArg(ref, hasArg)
	case "upper":
		return stringFn("upper", strings.ToUpper), noArg(ref, hasArg)
	case "lower":
		return stringFn("lower", strings.ToLower), noArg(ref, hasArg)
	case "length":
		return func(v ir.Value) (ir.Value, error) {
			switch val := v.(type) {
			case ir.String:
				return ir.Int(len([]rune(string(val)))), nil
			case ir.List:
				return ir.Int(len(val)), nil
			default:
				return nil, fmt.Errorf("length: expected string or list, got %s", ir.Format(v))
			}
		}, noArg(ref, hasArg)
	case "add", "mul":
		n, err := intArg(ref, arg, hasArg)
		if err != nil {
			return nil, err
		}
		return func(v ir.Value) (ir.Value, error) {
			i, ok := v.(ir.Int)
			if !ok {
				return nil, fmt.Errorf("%s: expected int, got %s", name, ir.Format(v))
			}
			if name == "add" {
				return i + ir.Int(n), nil
			}
			return i * ir.Int(n), nil
		}, nil
	case "fail":
		return func(v ir.Value) (ir.Value, error) { return nil, rejected(v) }, noArg(ref, hasArg)
	case "panic":
		return func(v ir.Value) (ir.Value, error) { panic(panicked(v)) }, noArg(ref, hasArg)
	}
	return nil, unknownFn("map", ref)
}

func filterFn(ref string) (pipeline.FilterFn, error) {
	name, _, hasArg := strings.Cut(ref, ":")
	switch name {
	case "even", "odd":
		want := int64(0)
		if name == "odd" {
			want = 1
		}
		return func(v ir.Value) (bool, error) {
			i, ok := v.(ir.Int)
			if !ok {
				return false, fmt.Errorf("%s: expected int, got %s", name, ir.Format(v))
			}
			r := int64(i) % 2
			if r < 0 {
				r = -r
			}
			return r == want, nil
		}, noArg(ref, hasArg)
	case "nonempty":
		return func(v ir.Value) (bool, error) {
			switch val := v.(type) {
			case ir.String:
				return val != "", nil
			case ir.List:
				return len(val) > 0, nil
			case ir.Record:
				return len(val) > 0, nil
			default:
				return true, nil
			}
		}, noArg(ref, hasArg)
	case "fail":
		return func(v ir.Value) (bool, error) { return false, rejected(v) }, noArg(ref, hasArg)
	case "panic":
		return func(v ir.Value) (bool, error) { panic(panicked(v)) }, noArg(ref, hasArg)
	}
	return nil, unknownFn("filter", ref)
}

func flatMapFn(ref string) (pipeline.FlatMapFn, error) {
	name, _, hasArg := strings.Cut(ref, ":")
	switch name {
	case "split":
		return func(v ir.Value) ([]ir.Value, error) {
			s, ok := v.(ir.String)
			if !ok {
				return nil, fmt.Errorf("split: expected string, got %s", ir.Format(v))
			}
			var out []ir.Value
			for _, f := range strings.Fields(string(s)) {
				out = append(out, ir.String(f))
			}
			return out, nil
		}, noArg(ref, hasArg)
	case "fail":
		return func(v ir.Value) ([]ir.Value, error) { return nil, rejected(v) }, noArg(ref, hasArg)
	case "panic":
		return func(v ir.Value) ([]ir.Value, error) { panic(panicked(v)) }, noArg(ref, hasArg)
	}
	return nil, unknownFn("flat_map", ref)
}

func stringFn(name string, f func(string) string) pipeline.MapFn {
	return func(v ir.Value) (ir.Value, error) {
		s, ok := v.(ir.String)
		if !ok {
			return nil, fmt.Errorf("%s: expected string, got %s", name, ir.Format(v))
		}
		return ir.String(f(string(s))), nil
	}
}

func rejected(v ir.Value) error {
	return fmt.Errorf("%w: %s", errRejected, ir.Format(v))
}

func panicked(v ir.Value) string {
	return "panic requested by element " + ir.Format(v)
}

func noArg(ref string, hasArg bool) error {
	if hasArg {
		return fmt.Errorf("function %q takes no argument", ref)
	}
	return nil
}

func intArg(ref, arg string, hasArg bool) (int64, error) {
	if !hasArg {
		return 0, fmt.Errorf("function %q requires an integer argument, e.g. %s:1", ref, ref)
	}
	n, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("function %q: invalid integer argument: %w", ref, err)
	}
	return n, nil
}

func unknownFn(kind, ref string) error {
	return fmt.Errorf("unknown %s function %q (available: %s)", kind, ref, strings.Join(Builtins[kind], ", "))
}
