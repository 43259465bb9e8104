package rod

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"

	"github.com/entrhq/tabscript/pkg/host"
	"github.com/entrhq/tabscript/pkg/inject"
)

// Evaluates inline code in the page's global scope and yields its completion
// value. Top-level let, const and class declarations stay local to the call.
const evalScript = `code => (0, eval)(code)`

type frame struct {
	id   int
	page *rod.Page
	url  string
}

// frames lists a tab's frames, the page first and then its iframes
// depth-first. Frames that detach while listing are left out.
func (h *Host) frames(ctx context.Context, tabID int) ([]frame, error) {
	page, err := h.page(tabID)
	if err != nil {
		return nil, err
	}

	var out []frame
	var visit func(p *rod.Page) error
	visit = func(p *rod.Page) error {
		href, err := evaluate(ctx, p, `() => location.href`)
		if err != nil {
			return err
		}
		url, _ := href.(string)
		out = append(out, frame{id: len(out), page: p, url: url})

		iframes, err := p.Context(ctx).Elements("iframe")
		if err != nil {
			return err
		}
		for _, el := range iframes {
			child, err := el.Frame()
			if err != nil {
				continue
			}
			if err := visit(child); err != nil && !isLost(err) {
				return err
			}
		}
		return nil
	}
	if err := visit(page); err != nil {
		return nil, lost(tabID, 0, err)
	}
	return out, nil
}

func isAboutBlank(url string) bool {
	return url == "about:blank" || url == "about:srcdoc" || url == ""
}

// targets applies the legacy frame rules: about:blank frames take part in an
// all-frames call only with MatchAboutBlank, and naming one without it is
// refused.
func (h *Host) targets(ctx context.Context, tabID int, d inject.InjectDetails) ([]frame, error) {
	all, err := h.frames(ctx, tabID)
	if err != nil {
		return nil, err
	}
	if d.AllFrames {
		out := all[:0:0]
		for _, f := range all {
			if isAboutBlank(f.url) && !d.MatchAboutBlank {
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
	if frameID < 0 || frameID >= len(all) {
		return nil, inject.NoFrame(tabID, frameID)
	}
	f := all[frameID]
	if isAboutBlank(f.url) && !d.MatchAboutBlank {
		return nil, fmt.Errorf("Cannot access contents of url %q.", f.url)
	}
	return []frame{f}, nil
}

func (h *Host) source(d inject.InjectDetails) (string, error) {
	switch {
	case d.Code != "" && d.File != "":
		return "", errors.New("Code and file should not be specified at the same time in the second argument.")
	case d.File != "":
		return h.readFile(d.File)
	case d.Code != "":
		return d.Code, nil
	default:
		return "", errors.New("No source code or file specified.")
	}
}

// ExecuteScript runs one source in the target frames and returns one result
// per frame. Files run as classic scripts sharing the frame's global scope and
// yield nil; inline code yields its completion value.
func (h *Host) ExecuteScript(ctx context.Context, tabID int, d inject.InjectDetails) ([]any, error) {
	src, err := h.source(d)
	if err != nil {
		return nil, err
	}
	frames, err := h.targets(ctx, tabID, d)
	if err != nil {
		return nil, err
	}

	runner := evalScript
	if d.File != "" {
		runner = host.ClassicScript
	}

	results := make([]any, 0, len(frames))
	for _, f := range frames {
		value, err := evaluate(ctx, f.page, runner, src)
		if err != nil {
			return nil, lost(tabID, f.id, err)
		}
		results = append(results, value)
	}
	return results, nil
}

// InsertCSS adds a style element with the source to the target frames.
func (h *Host) InsertCSS(ctx context.Context, tabID int, d inject.InjectDetails) error {
	css, err := h.source(d)
	if err != nil {
		return err
	}
	frames, err := h.targets(ctx, tabID, d)
	if err != nil {
		return err
	}
	for _, f := range frames {
		if err := f.page.Context(ctx).AddStyleTag("", css); err != nil {
			return lost(tabID, f.id, err)
		}
	}
	return nil
}

// evaluate calls a JS function with args and decodes its JSON result.
func evaluate(ctx context.Context, p *rod.Page, js string, args ...any) (any, error) {
	res, err := p.Context(ctx).Evaluate(rod.Eval(js, args...).ByPromise())
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// DevTools errors for a tab or frame that went away mid-call.
var lostErrors = []error{
	cdp.ErrCtxDestroyed,
	cdp.ErrCtxNotFound,
	cdp.ErrSessionNotFound,
}

func isLost(err error) bool {
	if inject.IsTargetLost(err) {
		return true
	}
	for _, target := range lostErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	msg := err.Error()
	return strings.Contains(msg, "No target with given id") || strings.Contains(msg, "Target closed")
}

// lost maps DevTools errors for a vanished target to a frame loss.
func lost(tabID, frameID int, err error) error {
	if inject.IsTargetLost(err) || !isLost(err) {
		return err
	}
	return fmt.Errorf("%w (%v)", inject.NoFrame(tabID, frameID), err)
}

var (
	_ inject.TabsAPI    = (*Host)(nil)
	_ inject.TabQuerier = (*Host)(nil)
)
