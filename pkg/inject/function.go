package inject

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Function is the JavaScript source of a function to run inside a target.
// Only this text crosses into the page, so the function must be
// self-contained: it cannot reference variables from the scope it was written
// in, and its arguments must be JSON values.
type Function string

var nativeFunction = regexp.MustCompile(`^function (\w+)\(\) \{[\n\s]+\[native code\][\n\s]+\}`)

// IsNative reports whether the source is a built-in's "[native code]" stub.
func (f Function) IsNative() bool {
	return nativeFunction.MatchString(strings.TrimSpace(string(f)))
}

// Validate rejects empty sources and native function stubs.
func (f Function) Validate() error {
	src := strings.TrimSpace(string(f))
	if src == "" {
		return fmt.Errorf("%w: empty function source", ErrValidation)
	}
	if m := nativeFunction.FindStringSubmatch(src); m != nil {
		return fmt.Errorf("%w: native function %s cannot be executed in another context, wrap the built-in in a user-defined function first, like `() => %s()`",
			ErrValidation, m[1], m[1])
	}
	return nil
}

// Invocation renders the function as an immediately invoked call expression
// with args spread into it.
func (f Function) Invocation(args []any) (string, error) {
	if args == nil {
		args = []any{}
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("%w: function arguments must be JSON values: %v", ErrValidation, err)
	}
	return fmt.Sprintf("(%s)(...%s)", strings.TrimSpace(string(f)), encoded), nil
}

// ExecuteFunction runs fn with args inside the frame named by where and returns
// the value it produced. A bare TabID runs it in the top frame.
func (i *Injector) ExecuteFunction(ctx context.Context, where Where, fn Function, args ...any) (any, error) {
	if where == nil {
		return nil, fmt.Errorf("%w: nil target", ErrValidation)
	}
	target := CastTarget(where)
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if err := fn.Validate(); err != nil {
		return nil, err
	}

	result, err := i.strategy.executeFunction(ctx, target, fn, args)
	i.observer.Injected(KindFunction, i.capability, err)
	if err != nil {
		return nil, fmt.Errorf("execute function in tab %d frame %d: %w", target.TabID, target.FrameID, err)
	}
	return result, nil
}

// ExecuteFunctionAs runs fn like ExecuteFunction and decodes its result into T.
func ExecuteFunctionAs[T any](ctx context.Context, i *Injector, where Where, fn Function, args ...any) (T, error) {
	var out T
	result, err := i.ExecuteFunction(ctx, where, fn, args...)
	if err != nil {
		return out, err
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return out, fmt.Errorf("encode function result: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode function result into %T: %w", out, err)
	}
	return out, nil
}
