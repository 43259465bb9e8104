package playwright

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pw "github.com/playwright-community/playwright-go"

	"github.com/entrhq/tabscript/pkg/host"
	"github.com/entrhq/tabscript/pkg/inject"
)

// ExecuteScript runs a function or a list of files in every target frame.
// A function's frame result is its return value. Files run in order as
// classic scripts and leave no result.
func (h *Host) ExecuteScript(ctx context.Context, injection inject.ScriptInjection) ([]inject.InjectionResult, error) {
	targets, err := h.targets(injection.Target)
	if err != nil {
		return nil, err
	}

	var invocation string
	var sources []string
	if injection.Func != "" {
		invocation, err = injection.Func.Invocation(injection.Args)
		if err != nil {
			return nil, err
		}
	} else {
		for _, path := range injection.Files {
			code, err := h.readFile(path)
			if err != nil {
				return nil, err
			}
			sources = append(sources, code)
		}
	}

	results := make([]inject.InjectionResult, 0, len(targets))
	for _, t := range targets {
		var value any
		if invocation != "" {
			if value, err = t.frame.Evaluate(invocation); err != nil {
				return nil, lost(injection.Target.TabID, t.id, err)
			}
		}
		for _, src := range sources {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if _, err := t.frame.Evaluate(host.ClassicScript, src); err != nil {
				return nil, lost(injection.Target.TabID, t.id, err)
			}
		}
		results = append(results, inject.InjectionResult{FrameID: t.id, Result: value})
	}
	return results, nil
}

// InsertCSS adds a style element with the files or the inline CSS to every
// target frame.
func (h *Host) InsertCSS(ctx context.Context, injection inject.CSSInjection) error {
	targets, err := h.targets(injection.Target)
	if err != nil {
		return err
	}

	var sheets []string
	if injection.CSS != "" {
		sheets = []string{injection.CSS}
	}
	for _, path := range injection.Files {
		css, err := h.readFile(path)
		if err != nil {
			return err
		}
		sheets = append(sheets, css)
	}

	for _, t := range targets {
		for _, css := range sheets {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := t.frame.AddStyleTag(pw.FrameAddStyleTagOptions{Content: pw.String(css)}); err != nil {
				return lost(injection.Target.TabID, t.id, err)
			}
		}
	}
	return nil
}

// Playwright messages for a page or frame that went away mid-call.
var lostMessages = []string{
	"Target closed",
	"Target page, context or browser has been closed",
	"Frame was detached",
	"Execution context was destroyed",
}

// lost maps Playwright's closed-target errors to a frame loss and leaves
// everything else alone.
func lost(tabID, frameID int, err error) error {
	if errors.Is(err, pw.ErrTargetClosed) {
		return fmt.Errorf("%w (%v)", inject.NoFrame(tabID, frameID), err)
	}
	msg := err.Error()
	for _, m := range lostMessages {
		if strings.Contains(msg, m) {
			return fmt.Errorf("%w (%v)", inject.NoFrame(tabID, frameID), err)
		}
	}
	return err
}

var (
	_ inject.ScriptingAPI = (*Host)(nil)
	_ inject.TabQuerier   = (*Host)(nil)
)
