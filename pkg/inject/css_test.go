package inject

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertCSS_Scripting(t *testing.T) {
	host := &scriptingHost{}
	i, err := New(host)
	require.NoError(t, err)

	err = i.InsertCSS(context.Background(), InjectionBundle{
		TabID:   2,
		FrameID: ptr(1),
		Files:   []FileSource{File("a.css"), Code("body{color:red}"), File("a.css")},
	}, Options{})
	require.NoError(t, err)

	calls := host.cssCalls()
	sort.Slice(calls, func(a, b int) bool { return len(calls[a].Files) > len(calls[b].Files) })
	want := []CSSInjection{
		{Target: InjectionTarget{TabID: 2, FrameIDs: []int{1}}, Files: []string{"a.css"}},
		{Target: InjectionTarget{TabID: 2, FrameIDs: []int{1}}, CSS: "body{color:red}"},
	}
	assert.Empty(t, cmp.Diff(want, calls))
}

func TestInsertCSS_Tabs(t *testing.T) {
	host := &tabsHost{}
	i, err := New(host)
	require.NoError(t, err)

	err = i.InsertCSS(context.Background(), InjectionBundle{TabID: 2, AllFrames: true, Files: Files("a.css")}, Options{})
	require.NoError(t, err)

	want := []tabsCall{{TabID: 2, Details: InjectDetails{File: "a.css", AllFrames: true, RunAt: RunAtDocumentStart}}}
	assert.Empty(t, cmp.Diff(want, host.cssCalls()))

	err = i.InsertCSS(context.Background(), InjectionBundle{TabID: 2, Files: Files("b.css"), RunAt: RunAtDocumentIdle}, Options{})
	require.NoError(t, err)
	calls := host.cssCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, RunAtDocumentIdle, calls[1].Details.RunAt)
}

func TestInsertCSS_InParallel(t *testing.T) {
	// Every call blocks until all three are in flight.
	started := make(chan struct{}, 3)
	all := make(chan struct{})
	host := &tabsHost{cssFn: func(int, InjectDetails) error {
		started <- struct{}{}
		<-all
		return nil
	}}
	i, err := New(host)
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() {
		errc <- i.InsertCSS(context.Background(), InjectionBundle{TabID: 1, Files: Files("a.css", "b.css", "c.css")}, Options{})
	}()
	for range 3 {
		<-started
	}
	close(all)
	require.NoError(t, <-errc)
}

func TestInsertCSS_TargetErrors(t *testing.T) {
	host := &tabsHost{cssFn: func(_ int, d InjectDetails) error {
		if d.File == "gone.css" {
			return errors.New("The frame was removed.")
		}
		return nil
	}}
	obs := newCountingObserver()
	i, err := New(host, WithObserver(obs))
	require.NoError(t, err)

	bundle := InjectionBundle{TabID: 1, Files: Files("ok.css", "gone.css")}

	err = i.InsertCSS(context.Background(), bundle, Options{})
	require.Error(t, err)
	assert.True(t, IsTargetLost(err))

	require.NoError(t, i.InsertCSS(context.Background(), bundle, Options{IgnoreTargetErrors: true}))
	assert.Equal(t, 4, obs.calls[KindCSS])
	assert.Equal(t, 2, obs.failed[KindCSS])
	assert.Equal(t, 1, obs.ignored[KindCSS])
}

func TestInsertCSS_Validation(t *testing.T) {
	host := &tabsHost{}
	i, err := New(host)
	require.NoError(t, err)

	err = i.InsertCSS(context.Background(), InjectionBundle{TabID: 1, FrameID: ptr(0), AllFrames: true, Files: Files("a.css")}, Options{})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, host.cssCalls())
}
