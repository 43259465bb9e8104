package inject

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nativeDate = "function Date() {\n    [native code]\n}"

func TestFunction_Validate(t *testing.T) {
	assert.NoError(t, Function("() => document.title").Validate())
	assert.NoError(t, Function("function named() { return 1 }").Validate())
	assert.True(t, Function(nativeDate).IsNative())

	err := Function(nativeDate).Validate()
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "wrap the built-in in a user-defined function")
	assert.Contains(t, err.Error(), "Date")

	assert.ErrorIs(t, Function("  ").Validate(), ErrValidation)
}

func TestFunction_Invocation(t *testing.T) {
	code, err := Function("(a, b) => a + b").Invocation([]any{1, "two"})
	require.NoError(t, err)
	assert.Equal(t, `((a, b) => a + b)(...[1,"two"])`, code)

	code, err = Function("() => 1").Invocation(nil)
	require.NoError(t, err)
	assert.Equal(t, `(() => 1)(...[])`, code)

	_, err = Function("(f) => f()").Invocation([]any{func() {}})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestExecuteFunction_NativeIsRejected(t *testing.T) {
	for _, host := range []any{&scriptingHost{}, &tabsHost{}} {
		i, err := New(host)
		require.NoError(t, err)

		_, err = i.ExecuteFunction(context.Background(), TabID(1), Function(nativeDate))
		require.ErrorIs(t, err, ErrValidation)
		assert.Contains(t, err.Error(), "user-defined function")
	}
}

func TestExecuteFunction_Scripting(t *testing.T) {
	host := &scriptingHost{scriptFn: func(ScriptInjection) ([]InjectionResult, error) {
		return []InjectionResult{{FrameID: 4, Result: "first"}, {FrameID: 5, Result: "second"}}, nil
	}}
	i, err := New(host)
	require.NoError(t, err)

	got, err := i.ExecuteFunction(context.Background(), Target{TabID: 1, FrameID: 4}, "(x) => x", "arg")
	require.NoError(t, err)
	assert.Equal(t, "first", got)

	calls := host.scriptCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, InjectionTarget{TabID: 1, FrameIDs: []int{4}}, calls[0].Target)
	assert.Equal(t, Function("(x) => x"), calls[0].Func)
	assert.Equal(t, []any{"arg"}, calls[0].Args)
}

func TestExecuteFunction_Tabs(t *testing.T) {
	host := &tabsHost{scriptFn: func(int, InjectDetails) ([]any, error) {
		return []any{float64(3)}, nil
	}}
	i, err := New(host)
	require.NoError(t, err)

	got, err := i.ExecuteFunction(context.Background(), TabID(6), "(a, b) => a + b", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, float64(3), got)

	calls := host.scriptCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, 6, calls[0].TabID)
	assert.Equal(t, InjectDetails{FrameID: ptr(0), Code: "((a, b) => a + b)(...[1,2])", MatchAboutBlank: true}, calls[0].Details)
}

func TestExecuteFunction_TabsRejectsUnserializableArgs(t *testing.T) {
	host := &tabsHost{}
	i, err := New(host)
	require.NoError(t, err)

	_, err = i.ExecuteFunction(context.Background(), TabID(6), "(c) => c", make(chan int))
	assert.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, host.scriptCalls())
}

func TestExecuteFunctionAs(t *testing.T) {
	host := &scriptingHost{scriptFn: func(ScriptInjection) ([]InjectionResult, error) {
		return []InjectionResult{{Result: map[string]any{"title": "Example", "links": float64(3)}}}, nil
	}}
	i, err := New(host)
	require.NoError(t, err)

	type page struct {
		Title string `json:"title"`
		Links int    `json:"links"`
	}
	got, err := ExecuteFunctionAs[page](context.Background(), i, TabID(1), "() => ({title: document.title, links: document.links.length})")
	require.NoError(t, err)
	assert.Equal(t, page{Title: "Example", Links: 3}, got)
}

func TestExecuteFunction_NegativeFrame(t *testing.T) {
	i, err := New(&tabsHost{})
	require.NoError(t, err)

	_, err = i.ExecuteFunction(context.Background(), Target{TabID: 1, FrameID: -2}, "() => 1")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestExecuteFunction_NilTarget(t *testing.T) {
	scripting, tabs := &scriptingHost{}, &tabsHost{}
	for _, host := range []any{scripting, tabs} {
		i, err := New(host)
		require.NoError(t, err)

		_, err = i.ExecuteFunction(context.Background(), nil, "() => 1")
		assert.ErrorIs(t, err, ErrValidation)
	}
	assert.Empty(t, scripting.scriptCalls())
	assert.Empty(t, tabs.scriptCalls())
}
