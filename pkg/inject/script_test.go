package inject

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteScript_Scripting(t *testing.T) {
	ctx := context.Background()

	t.Run("files go out as one batch", func(t *testing.T) {
		host := &scriptingHost{}
		i, err := New(host)
		require.NoError(t, err)

		err = i.ExecuteScript(ctx, InjectionBundle{TabID: 3, AllFrames: true, Files: Files("a.js", "b.js", "a.js")}, Options{})
		require.NoError(t, err)

		want := []ScriptInjection{{
			Target: InjectionTarget{TabID: 3, AllFrames: true},
			Files:  []string{"a.js", "b.js"},
		}}
		assert.Empty(t, cmp.Diff(want, host.scriptCalls()))
	})

	t.Run("inline code is rejected before any call", func(t *testing.T) {
		host := &scriptingHost{}
		i, err := New(host)
		require.NoError(t, err)

		err = i.ExecuteScript(ctx, InjectionBundle{TabID: 3, Files: []FileSource{File("a.js"), Code("x()")}}, Options{})
		assert.ErrorIs(t, err, ErrUnsupportedOperation)
		assert.Empty(t, host.scriptCalls())
	})

	t.Run("nothing to inject", func(t *testing.T) {
		host := &scriptingHost{}
		i, err := New(host)
		require.NoError(t, err)

		require.NoError(t, i.ExecuteScript(ctx, InjectionBundle{TabID: 3}, Options{}))
		assert.Empty(t, host.scriptCalls())
	})

	t.Run("target loss", func(t *testing.T) {
		host := &scriptingHost{scriptFn: func(ScriptInjection) ([]InjectionResult, error) {
			return nil, NoTab(3)
		}}
		i, err := New(host)
		require.NoError(t, err)

		bundle := InjectionBundle{TabID: 3, Files: Files("a.js")}
		err = i.ExecuteScript(ctx, bundle, Options{})
		assert.True(t, IsTargetLost(err))
		assert.Contains(t, err.Error(), "No tab with id: 3.")

		assert.NoError(t, i.ExecuteScript(ctx, bundle, Options{IgnoreTargetErrors: true}))
	})

	t.Run("host rejections propagate", func(t *testing.T) {
		denied := errors.New("Cannot access contents of the page.")
		host := &scriptingHost{scriptFn: func(ScriptInjection) ([]InjectionResult, error) { return nil, denied }}
		i, err := New(host)
		require.NoError(t, err)

		err = i.ExecuteScript(ctx, InjectionBundle{TabID: 3, Files: Files("a.js")}, Options{IgnoreTargetErrors: true})
		assert.ErrorIs(t, err, denied)
	})
}

func TestExecuteScript_Tabs(t *testing.T) {
	ctx := context.Background()

	t.Run("one call per source", func(t *testing.T) {
		host := &tabsHost{}
		i, err := New(host)
		require.NoError(t, err)

		err = i.ExecuteScript(ctx, InjectionBundle{
			TabID:           8,
			FrameID:         ptr(2),
			Files:           []FileSource{File("a.js"), Code("x()")},
			MatchAboutBlank: true,
			RunAt:           RunAtDocumentEnd,
		}, Options{})
		require.NoError(t, err)

		want := []tabsCall{
			{TabID: 8, Details: InjectDetails{FrameID: ptr(2), File: "a.js", RunAt: RunAtDocumentEnd, MatchAboutBlank: true}},
			{TabID: 8, Details: InjectDetails{FrameID: ptr(2), Code: "x()", RunAt: RunAtDocumentEnd, MatchAboutBlank: true}},
		}
		assert.Empty(t, cmp.Diff(want, host.scriptCalls()))
	})

	t.Run("run at defaults to the host default", func(t *testing.T) {
		host := &tabsHost{}
		i, err := New(host)
		require.NoError(t, err)

		require.NoError(t, i.ExecuteScript(ctx, InjectionBundle{TabID: 8, AllFrames: true, Files: Files("a.js")}, Options{}))
		calls := host.scriptCalls()
		require.Len(t, calls, 1)
		assert.Equal(t, RunAt(""), calls[0].Details.RunAt)
		assert.True(t, calls[0].Details.AllFrames)
		assert.Nil(t, calls[0].Details.FrameID)
	})

	t.Run("failure before inline code stops the sequence", func(t *testing.T) {
		boom := errors.New("Could not load file: 'a.js'.")
		host := &tabsHost{scriptFn: func(_ int, d InjectDetails) ([]any, error) {
			if d.File == "a.js" {
				return nil, boom
			}
			return nil, nil
		}}
		i, err := New(host)
		require.NoError(t, err)

		err = i.ExecuteScript(ctx, InjectionBundle{TabID: 8, Files: []FileSource{File("a.js"), Code("x()"), File("b.js")}}, Options{})
		assert.ErrorIs(t, err, boom)

		calls := host.scriptCalls()
		require.Len(t, calls, 1)
		assert.Equal(t, "a.js", calls[0].Details.File)
	})

	t.Run("ignored target loss lets the sequence continue", func(t *testing.T) {
		host := &tabsHost{scriptFn: func(_ int, d InjectDetails) ([]any, error) {
			if d.File == "a.js" {
				return nil, NoFrame(8, 0)
			}
			return nil, nil
		}}
		i, err := New(host)
		require.NoError(t, err)

		err = i.ExecuteScript(ctx, InjectionBundle{TabID: 8, Files: []FileSource{File("a.js"), Code("x()")}}, Options{IgnoreTargetErrors: true})
		require.NoError(t, err)
		assert.Len(t, host.scriptCalls(), 2)
	})
}

// a.js, inline code, b.js: the code is submitted once a.js settles, b.js is
// submitted without waiting for the code to settle.
func TestExecuteScript_TabsSubmission(t *testing.T) {
	host := newQueueHost()
	i, err := New(host)
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() {
		errc <- i.ExecuteScript(context.Background(), InjectionBundle{
			TabID: 1,
			Files: []FileSource{File("a.js"), Code("x"), File("b.js")},
		}, Options{})
	}()

	require.Eventually(t, func() bool { return slices.Equal(host.submissions(), []string{"a.js"}) }, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return len(host.submissions()) > 1 }, 100*time.Millisecond, 5*time.Millisecond)

	host.finish("a.js", nil)
	require.Eventually(t, func() bool {
		return slices.Equal(host.submissions(), []string{"a.js", "x", "b.js"})
	}, time.Second, 5*time.Millisecond)

	select {
	case err := <-errc:
		t.Fatalf("returned before every call settled: %v", err)
	default:
	}

	host.finish("b.js", nil)
	host.finish("x", nil)
	require.NoError(t, <-errc)
	assert.Empty(t, host.scriptCalls(), "queued hosts are not called through ExecuteScript")
}

func TestExecuteScript_TabsSubmissionStopsOnFailure(t *testing.T) {
	boom := errors.New("Could not load file: 'a.js'.")
	host := newQueueHost()
	i, err := New(host)
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() {
		errc <- i.ExecuteScript(context.Background(), InjectionBundle{
			TabID: 1,
			Files: []FileSource{File("a.js"), Code("x"), File("b.js")},
		}, Options{})
	}()

	require.Eventually(t, func() bool { return len(host.submissions()) == 1 }, time.Second, 5*time.Millisecond)
	host.finish("a.js", boom)
	assert.ErrorIs(t, <-errc, boom)
	assert.Equal(t, []string{"a.js"}, host.submissions())
}

// A blocking host sees one tab's calls one at a time, in caller order.
func TestExecuteScript_TabsRunInCallerOrder(t *testing.T) {
	var (
		mu       sync.Mutex
		order    []string
		inFlight int
		overlap  bool
	)
	host := &tabsHost{scriptFn: func(_ int, d InjectDetails) ([]any, error) {
		mu.Lock()
		inFlight++
		if inFlight > 1 {
			overlap = true
		}
		order = append(order, d.File)
		mu.Unlock()

		time.Sleep(time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return []any{nil}, nil
	}}
	i, err := New(host)
	require.NoError(t, err)

	files := Files("a.js", "b.js", "c.js", "d.js")
	for run := 0; run < 20; run++ {
		mu.Lock()
		order = nil
		mu.Unlock()

		require.NoError(t, i.ExecuteScript(context.Background(), InjectionBundle{TabID: 4, Files: files}, Options{}))

		mu.Lock()
		assert.Equal(t, []string{"a.js", "b.js", "c.js", "d.js"}, order)
		mu.Unlock()
	}
	assert.False(t, overlap)
}

func TestExecuteScript_TabsSeparateTabsRunConcurrently(t *testing.T) {
	started := make(chan int, 2)
	release := make(chan struct{})
	host := &tabsHost{scriptFn: func(tabID int, _ InjectDetails) ([]any, error) {
		started <- tabID
		<-release
		return []any{nil}, nil
	}}
	i, err := New(host)
	require.NoError(t, err)

	errc := make(chan error, 2)
	for _, tabID := range []int{1, 2} {
		go func() {
			errc <- i.ExecuteScript(context.Background(), InjectionBundle{TabID: tabID, Files: Files("a.js")}, Options{})
		}()
	}

	got := []int{<-started, <-started}
	slices.Sort(got)
	assert.Equal(t, []int{1, 2}, got)

	close(release)
	require.NoError(t, <-errc)
	require.NoError(t, <-errc)
}
