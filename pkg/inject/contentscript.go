package inject

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// ContentScriptSpec is one content script entry: stylesheets and scripts that
// go into the same targets together. The snake_case fields are the manifest
// spellings and are only used when the camelCase field is unset.
type ContentScriptSpec struct {
	CSS             []FileSource `json:"css,omitempty" yaml:"css,omitempty"`
	JS              []FileSource `json:"js,omitempty" yaml:"js,omitempty"`
	AllFrames       *bool        `json:"allFrames,omitempty" yaml:"allFrames,omitempty"`
	MatchAboutBlank *bool        `json:"matchAboutBlank,omitempty" yaml:"matchAboutBlank,omitempty"`
	RunAt           RunAt        `json:"runAt,omitempty" yaml:"runAt,omitempty"`

	AllFramesSnake       *bool `json:"all_frames,omitempty" yaml:"all_frames,omitempty"`
	MatchAboutBlankSnake *bool `json:"match_about_blank,omitempty" yaml:"match_about_blank,omitempty"`
	RunAtSnake           RunAt `json:"run_at,omitempty" yaml:"run_at,omitempty"`
}

// resolved is a spec with its aliases reconciled.
type resolved struct {
	allFrames       *bool
	matchAboutBlank bool
	runAt           RunAt
}

func (s ContentScriptSpec) resolve() resolved {
	r := resolved{allFrames: s.AllFrames, runAt: s.RunAt}
	if r.allFrames == nil {
		r.allFrames = s.AllFramesSnake
	}
	switch {
	case s.MatchAboutBlank != nil:
		r.matchAboutBlank = *s.MatchAboutBlank
	case s.MatchAboutBlankSnake != nil:
		r.matchAboutBlank = *s.MatchAboutBlankSnake
	}
	if r.runAt == "" {
		r.runAt = s.RunAtSnake
	}
	return r
}

// Validate checks the sources and the run_at value of the spec.
func (s ContentScriptSpec) Validate() error {
	if err := s.resolve().runAt.Validate(); err != nil {
		return err
	}
	if err := validateFiles(s.CSS); err != nil {
		return fmt.Errorf("css: %w", err)
	}
	if err := validateFiles(s.JS); err != nil {
		return fmt.Errorf("js: %w", err)
	}
	return nil
}

// InjectContentScript injects every spec into every target. Targets are
// handled in parallel and never cancel each other; the first error returned by
// any target is reported. Within a target a file path reaches each frame at
// most once: a spec narrowed to the top frame skips paths already sent to all
// frames, and a later all-frames spec still delivers a path the top frame
// already got.
func (i *Injector) InjectContentScript(ctx context.Context, targets []Where, specs []ContentScriptSpec, opts Options) error {
	for n, spec := range specs {
		if err := spec.Validate(); err != nil {
			return fmt.Errorf("content script %d: %w", n, err)
		}
	}
	for _, where := range targets {
		if where == nil {
			return fmt.Errorf("%w: nil target", ErrValidation)
		}
	}

	var g errgroup.Group
	for _, where := range targets {
		target := CastAllFramesTarget(where)
		g.Go(func() error {
			return i.injectContentScriptInTarget(ctx, target, specs, opts)
		})
	}
	return g.Wait()
}

func (i *Injector) injectContentScriptInTarget(ctx context.Context, target AllFramesTarget, specs []ContentScriptSpec, opts Options) error {
	if target.FrameID != nil && *target.FrameID < 0 {
		return fmt.Errorf("%w: frame id must not be negative, got %d", ErrValidation, *target.FrameID)
	}

	seen := frameSeen{}
	type job struct {
		css    bool
		bundle InjectionBundle
	}
	var jobs []job
	for _, spec := range specs {
		r := spec.resolve()
		t := target.narrow(r.allFrames)

		css, dropped := seen.normalize(t, spec.CSS)
		i.logDropped(t, dropped)
		js, dropped := seen.normalize(t, spec.JS)
		i.logDropped(t, dropped)

		if len(css) > 0 {
			jobs = append(jobs, job{css: true, bundle: bundleFor(t, css, r.matchAboutBlank, r.runAt)})
		}
		if len(js) > 0 {
			jobs = append(jobs, job{bundle: bundleFor(t, js, r.matchAboutBlank, r.runAt)})
		}
	}

	var g errgroup.Group
	for _, j := range jobs {
		g.Go(func() error {
			if j.css {
				return i.insertCSS(ctx, j.bundle, opts)
			}
			return i.executeScript(ctx, j.bundle, opts)
		})
	}
	return g.Wait()
}

// frameSeen holds one Seen set per resolved target of an orchestration call.
// Paths sent to all frames also count as sent to the top frame.
type frameSeen map[string]Seen

func (s frameSeen) set(t AllFramesTarget) Seen {
	key := t.String()
	if s[key] == nil {
		s[key] = Seen{}
	}
	return s[key]
}

func (s frameSeen) normalize(t AllFramesTarget, files []FileSource) (kept []FileSource, dropped []string) {
	kept, dropped = NormalizeFiles(files, s.set(t))
	if t.FrameID == nil {
		top := s.set(t.narrow(new(bool)))
		for _, f := range kept {
			if !f.IsCode() {
				top[f.File] = struct{}{}
			}
		}
	}
	return kept, dropped
}
