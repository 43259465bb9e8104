package vm

import (
	"context"

	"go.uber.org/zap"

	"github.com/entrhq/tabscript/pkg/inject"
)

// Scripting is the structured, batch capability of a Browser.
type Scripting struct {
	browser *Browser
}

func (s *Scripting) targets(t inject.InjectionTarget) ([]*frame, error) {
	if t.AllFrames {
		return s.browser.frames(t.TabID)
	}
	ids := t.FrameIDs
	if len(ids) == 0 {
		ids = []int{0}
	}
	out := make([]*frame, 0, len(ids))
	for _, id := range ids {
		f, err := s.browser.frame(t.TabID, id)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// ExecuteScript runs either the files, in order, or the function in every
// targeted frame. The result of a frame is the value of its last file or the
// function's return value.
func (s *Scripting) ExecuteScript(ctx context.Context, injection inject.ScriptInjection) ([]inject.InjectionResult, error) {
	frames, err := s.targets(injection.Target)
	if err != nil {
		return nil, err
	}

	sources := make([]string, 0, len(injection.Files))
	if injection.Func != "" {
		code, err := injection.Func.Invocation(injection.Args)
		if err != nil {
			return nil, err
		}
		sources = append(sources, code)
	}
	for _, path := range injection.Files {
		code, err := s.browser.readFile(path)
		if err != nil {
			return nil, err
		}
		sources = append(sources, code)
	}

	results := make([]inject.InjectionResult, 0, len(frames))
	for _, f := range frames {
		var value any
		for _, src := range sources {
			if value, err = f.run(ctx, src); err != nil {
				return nil, err
			}
		}
		results = append(results, inject.InjectionResult{FrameID: f.id, Result: value})
	}
	s.browser.logger.Debug("scripting.executeScript",
		zap.Int("tab_id", injection.Target.TabID),
		zap.Int("frames", len(frames)),
		zap.Strings("files", injection.Files))
	return results, nil
}

// InsertCSS adds a stylesheet to every targeted frame.
func (s *Scripting) InsertCSS(_ context.Context, injection inject.CSSInjection) error {
	frames, err := s.targets(injection.Target)
	if err != nil {
		return err
	}
	css := injection.CSS
	for _, path := range injection.Files {
		text, err := s.browser.readFile(path)
		if err != nil {
			return err
		}
		css += text
	}
	for _, f := range frames {
		if err := f.insertCSS(css); err != nil {
			return err
		}
	}
	return nil
}

// Query lists tabs matching the query.
func (s *Scripting) Query(ctx context.Context, q inject.TabQuery) ([]inject.Tab, error) {
	return s.browser.Query(ctx, q)
}
