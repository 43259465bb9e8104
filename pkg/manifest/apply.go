package manifest

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/entrhq/tabscript/pkg/inject"
	"github.com/entrhq/tabscript/pkg/scriptable"
)

// Report says which tabs a manifest reached.
type Report struct {
	// Injected holds the ids of tabs that received at least one entry.
	Injected []int `json:"injected"`
	// Skipped holds matching tabs whose URL cannot be scripted.
	Skipped []int `json:"skipped"`
}

// Applier injects manifests through an injector.
type Applier struct {
	injector *inject.Injector
	checker  *scriptable.Checker
	logger   inject.Logger
}

// ApplierOption configures an Applier.
type ApplierOption func(*Applier)

// WithChecker replaces the default scriptability checker.
func WithChecker(c *scriptable.Checker) ApplierOption {
	return func(a *Applier) {
		if c != nil {
			a.checker = c
		}
	}
}

// WithLogger sets the logger for skipped tabs.
func WithLogger(l inject.Logger) ApplierOption {
	return func(a *Applier) {
		if l != nil {
			a.logger = l
		}
	}
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}

// NewApplier returns an Applier using injector.
func NewApplier(injector *inject.Injector, opts ...ApplierOption) *Applier {
	a := &Applier{injector: injector, checker: scriptable.Default, logger: nopLogger{}}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Apply injects every content script into the open tabs it matches. Tabs
// are injected in parallel; entries reach a tab in manifest order and a file
// is injected into a tab only once. Tabs that close meanwhile are ignored.
// Entries without all_frames only reach the top frame.
func (a *Applier) Apply(ctx context.Context, m *Manifest) (Report, error) {
	perTab := map[int][]inject.ContentScriptSpec{}
	skipped := map[int]bool{}

	for n, cs := range m.ContentScripts {
		tabs, err := a.injector.QueryTabs(ctx, cs.Matches, cs.ExcludeMatches...)
		if err != nil {
			return Report{}, fmt.Errorf("content_scripts[%d]: %w", n, err)
		}
		spec := topFrameByDefault(cs.ContentScriptSpec)
		for _, tab := range tabs {
			if !a.checker.IsScriptable(tab.URL) {
				if !skipped[tab.ID] {
					a.logger.Debugf("skipping tab %d: %s cannot be scripted", tab.ID, tab.URL)
				}
				skipped[tab.ID] = true
				continue
			}
			perTab[tab.ID] = append(perTab[tab.ID], spec)
		}
	}

	report := Report{Injected: []int{}, Skipped: []int{}}
	var mu sync.Mutex
	var g errgroup.Group
	for tabID, specs := range perTab {
		g.Go(func() error {
			err := a.injector.InjectContentScript(ctx, []inject.Where{inject.TabID(tabID)}, specs,
				inject.Options{IgnoreTargetErrors: true})
			if err != nil {
				return fmt.Errorf("tab %d: %w", tabID, err)
			}
			mu.Lock()
			report.Injected = append(report.Injected, tabID)
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()

	for id := range skipped {
		report.Skipped = append(report.Skipped, id)
	}
	slices.Sort(report.Injected)
	slices.Sort(report.Skipped)
	return report, err
}

func topFrameByDefault(spec inject.ContentScriptSpec) inject.ContentScriptSpec {
	if spec.AllFrames == nil && spec.AllFramesSnake == nil {
		top := false
		spec.AllFrames = &top
	}
	return spec
}
