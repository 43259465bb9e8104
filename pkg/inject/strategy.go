package inject

import (
	"context"
	"fmt"
)

// strategy is one host capability. Each method performs the host calls for a
// single, already normalized request and passes every call's error through
// settle.
type strategy interface {
	insertCSS(ctx context.Context, b InjectionBundle, source FileSource, settle func(error) error) error
	executeScript(ctx context.Context, b InjectionBundle, settle func(error) error) error
	executeFunction(ctx context.Context, t Target, fn Function, args []any) (any, error)
}

type scriptingStrategy struct {
	host ScriptingAPI
}

func (s *scriptingStrategy) insertCSS(ctx context.Context, b InjectionBundle, source FileSource, settle func(error) error) error {
	injection := CSSInjection{Target: b.target().injectionTarget()}
	if source.IsCode() {
		injection.CSS = source.Code
	} else {
		injection.Files = []string{source.File}
	}
	return settle(s.host.InsertCSS(ctx, injection))
}

func (s *scriptingStrategy) executeScript(ctx context.Context, b InjectionBundle, settle func(error) error) error {
	files := make([]string, 0, len(b.Files))
	for _, f := range b.Files {
		if f.IsCode() {
			return fmt.Errorf("%w: the scripting capability cannot run inline code, only files", ErrUnsupportedOperation)
		}
		files = append(files, f.File)
	}
	if len(files) == 0 {
		return nil
	}
	_, err := s.host.ExecuteScript(ctx, ScriptInjection{
		Target: b.target().injectionTarget(),
		Files:  files,
	})
	return settle(err)
}

func (s *scriptingStrategy) executeFunction(ctx context.Context, t Target, fn Function, args []any) (any, error) {
	results, err := s.host.ExecuteScript(ctx, ScriptInjection{
		Target: InjectionTarget{TabID: t.TabID, FrameIDs: []int{t.FrameID}},
		Func:   fn,
		Args:   args,
	})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0].Result, nil
}

type tabsStrategy struct {
	host  TabsAPI
	queue ScriptQueue
}

func newTabsStrategy(host TabsAPI) *tabsStrategy {
	queue, ok := host.(ScriptQueue)
	if !ok {
		queue = newTabQueue(host)
	}
	return &tabsStrategy{host: host, queue: queue}
}

func details(b InjectionBundle, source FileSource) InjectDetails {
	t := b.target()
	return InjectDetails{
		FrameID:         t.FrameID,
		AllFrames:       t.AllFrames,
		Code:            source.Code,
		File:            source.File,
		RunAt:           b.RunAt,
		MatchAboutBlank: b.MatchAboutBlank,
	}
}

func (s *tabsStrategy) insertCSS(ctx context.Context, b InjectionBundle, source FileSource, settle func(error) error) error {
	d := details(b, source)
	if d.RunAt == "" {
		d.RunAt = RunAtDocumentStart
	}
	return settle(s.host.InsertCSS(ctx, b.TabID, d))
}

// pendingScript is one submitted call whose outcome is read at most once.
type pendingScript struct {
	out     <-chan ScriptOutcome
	settled bool
	err     error
}

func (p *pendingScript) wait(settle func(error) error) error {
	if !p.settled {
		p.err = settle((<-p.out).Err)
		p.settled = true
	}
	return p.err
}

// executeScript submits one call per source, in order. Files are submitted
// back to back without waiting; an inline code source is submitted only once
// the call right before it has settled, and a failure there stops the
// sequence. Every submitted call is awaited before returning, and the first
// error in submission order wins.
func (s *tabsStrategy) executeScript(ctx context.Context, b InjectionBundle, settle func(error) error) error {
	calls := make([]*pendingScript, 0, len(b.Files))

	for _, source := range b.Files {
		if source.IsCode() && len(calls) > 0 {
			if err := calls[len(calls)-1].wait(settle); err != nil {
				break
			}
		}
		calls = append(calls, &pendingScript{out: s.queue.SubmitScript(ctx, b.TabID, details(b, source))})
	}

	var first error
	for _, call := range calls {
		if err := call.wait(settle); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (s *tabsStrategy) executeFunction(ctx context.Context, t Target, fn Function, args []any) (any, error) {
	code, err := fn.Invocation(args)
	if err != nil {
		return nil, err
	}
	frameID := t.FrameID
	outcome := <-s.queue.SubmitScript(ctx, t.TabID, InjectDetails{
		FrameID:         &frameID,
		Code:            code,
		MatchAboutBlank: true,
	})
	if outcome.Err != nil {
		return nil, outcome.Err
	}
	results := outcome.Results
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}
