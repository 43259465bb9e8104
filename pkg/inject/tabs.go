package inject

import (
	"context"
	"fmt"

	"github.com/entrhq/tabscript/pkg/matchpattern"
)

// GetTabsByURL returns the ids of open tabs whose URL matches one of matches
// and none of excludeMatches. Tabs the host withholds the id or URL of are
// skipped. An empty matches list returns no tabs without asking the host.
func (i *Injector) GetTabsByURL(ctx context.Context, matches []string, excludeMatches ...string) ([]int, error) {
	tabs, err := i.QueryTabs(ctx, matches, excludeMatches...)
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(tabs))
	for _, tab := range tabs {
		ids = append(ids, tab.ID)
	}
	return ids, nil
}

// QueryTabs is GetTabsByURL returning the tabs themselves.
func (i *Injector) QueryTabs(ctx context.Context, matches []string, excludeMatches ...string) ([]Tab, error) {
	if len(matches) == 0 {
		return []Tab{}, nil
	}
	if i.tabs == nil {
		return nil, fmt.Errorf("%w: host cannot query tabs", ErrUnsupportedOperation)
	}

	exclude, err := matchpattern.Compile(excludeMatches...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	tabs, err := i.tabs.Query(ctx, TabQuery{URL: matches})
	if err != nil {
		return nil, fmt.Errorf("query tabs: %w", err)
	}

	out := make([]Tab, 0, len(tabs))
	for _, tab := range tabs {
		if tab.ID == 0 || tab.URL == "" {
			continue
		}
		if exclude.Match(tab.URL) {
			continue
		}
		out = append(out, tab)
	}
	return out, nil
}
