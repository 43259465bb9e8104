package vm

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/entrhq/tabscript/pkg/inject"
)

// Tabs is the per-call capability of a Browser.
type Tabs struct {
	browser *Browser
}

// targets resolves the frames of one call. about:blank frames take part in
// an all-frames call only with MatchAboutBlank, and naming one explicitly
// without it is refused.
func (t *Tabs) targets(tabID int, d inject.InjectDetails) ([]*frame, error) {
	if d.AllFrames {
		all, err := t.browser.frames(tabID)
		if err != nil {
			return nil, err
		}
		out := all[:0:0]
		for _, f := range all {
			if f.isAboutBlank() && !d.MatchAboutBlank {
				continue
			}
			out = append(out, f)
		}
		return out, nil
	}
	frameID := 0
	if d.FrameID != nil {
		frameID = *d.FrameID
	}
	f, err := t.browser.frame(tabID, frameID)
	if err != nil {
		return nil, err
	}
	if f.isAboutBlank() && !d.MatchAboutBlank {
		return nil, fmt.Errorf("Cannot access contents of url %q.", f.url)
	}
	return []*frame{f}, nil
}

func (t *Tabs) source(d inject.InjectDetails) (string, error) {
	switch {
	case d.Code != "" && d.File != "":
		return "", errors.New("Code and file should not be specified at the same time in the second argument.")
	case d.File != "":
		return t.browser.readFile(d.File)
	case d.Code != "":
		return d.Code, nil
	default:
		return "", errors.New("No source code or file specified.")
	}
}

// ExecuteScript runs one source in the targeted frames and returns one result
// per frame.
func (t *Tabs) ExecuteScript(ctx context.Context, tabID int, d inject.InjectDetails) ([]any, error) {
	if err := d.RunAt.Validate(); err != nil {
		return nil, err
	}
	frames, err := t.targets(tabID, d)
	if err != nil {
		return nil, err
	}
	src, err := t.source(d)
	if err != nil {
		return nil, err
	}

	results := make([]any, 0, len(frames))
	for _, f := range frames {
		value, err := f.run(ctx, src)
		if err != nil {
			return nil, err
		}
		results = append(results, value)
	}
	t.browser.logger.Debug("tabs.executeScript",
		zap.Int("tab_id", tabID),
		zap.Int("frames", len(frames)),
		zap.String("file", d.File),
		zap.String("run_at", string(d.RunAt)))
	return results, nil
}

// InsertCSS adds one stylesheet to the targeted frames.
func (t *Tabs) InsertCSS(_ context.Context, tabID int, d inject.InjectDetails) error {
	if err := d.RunAt.Validate(); err != nil {
		return err
	}
	frames, err := t.targets(tabID, d)
	if err != nil {
		return err
	}
	css, err := t.source(d)
	if err != nil {
		return err
	}
	for _, f := range frames {
		if err := f.insertCSS(css); err != nil {
			return err
		}
	}
	return nil
}

// Query lists tabs matching the query.
func (t *Tabs) Query(ctx context.Context, q inject.TabQuery) ([]inject.Tab, error) {
	return t.browser.Query(ctx, q)
}
