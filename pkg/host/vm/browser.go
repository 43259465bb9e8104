package vm

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/entrhq/tabscript/pkg/inject"
	"github.com/entrhq/tabscript/pkg/matchpattern"
)

// Page describes a document to open. Frames become frames 1..n of the tab in
// order; nested frames are flattened depth first.
type Page struct {
	URL    string
	HTML   string
	Frames []Page
}

type tab struct {
	id     int
	url    string
	frames map[int]*frame
	order  []int
}

// Browser is a set of tabs living in this process.
type Browser struct {
	mu      sync.Mutex
	tabs    map[int]*tab
	nextTab int

	assets fs.FS
	logger *zap.Logger
}

// Option configures a Browser.
type Option func(*Browser)

// WithAssets sets the file system file sources are read from.
func WithAssets(assets fs.FS) Option {
	return func(b *Browser) { b.assets = assets }
}

// WithLogger sets the logger. Console output of every frame is logged at
// debug level.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Browser) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// New returns an empty browser.
func New(opts ...Option) *Browser {
	b := &Browser{
		tabs:    make(map[int]*tab),
		nextTab: 1,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.Named("vm")
	return b
}

// OpenTab loads page into a new tab and returns the tab id.
func (b *Browser) OpenTab(page Page) (int, error) {
	b.mu.Lock()
	id := b.nextTab
	b.nextTab++
	b.mu.Unlock()

	logger := b.logger.With(zap.Int("tab_id", id))
	t := &tab{id: id, url: page.URL, frames: make(map[int]*frame)}

	pages := append([]Page{{URL: page.URL, HTML: page.HTML}}, flatten(page.Frames)...)
	for frameID, p := range pages {
		url := p.URL
		if url == "" {
			url = "about:blank"
		}
		f, err := newFrame(frameID, url, p.HTML, logger)
		if err != nil {
			return 0, err
		}
		t.frames[frameID] = f
		t.order = append(t.order, frameID)
	}

	b.mu.Lock()
	b.tabs[id] = t
	b.mu.Unlock()
	logger.Debug("tab opened", zap.String("url", page.URL), zap.Int("frames", len(pages)))
	return id, nil
}

func flatten(pages []Page) []Page {
	var out []Page
	for _, p := range pages {
		out = append(out, Page{URL: p.URL, HTML: p.HTML})
		out = append(out, flatten(p.Frames)...)
	}
	return out
}

// CloseTab removes a tab. Later injections into it fail as target losses.
func (b *Browser) CloseTab(tabID int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.tabs[tabID]; !ok {
		return inject.NoTab(tabID)
	}
	delete(b.tabs, tabID)
	return nil
}

// RemoveFrame detaches a subframe from its tab.
func (b *Browser) RemoveFrame(tabID, frameID int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.tabs[tabID]
	if !ok {
		return inject.NoTab(tabID)
	}
	if _, ok := t.frames[frameID]; !ok || frameID == 0 {
		return inject.NoFrame(tabID, frameID)
	}
	delete(t.frames, frameID)
	for i, id := range t.order {
		if id == frameID {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return nil
}

// Styles returns the text of every stylesheet in the frame's document.
func (b *Browser) Styles(tabID, frameID int) ([]string, error) {
	f, err := b.frame(tabID, frameID)
	if err != nil {
		return nil, err
	}
	return f.styles(), nil
}

// Console returns what scripts in the frame printed to the console.
func (b *Browser) Console(tabID, frameID int) ([]string, error) {
	f, err := b.frame(tabID, frameID)
	if err != nil {
		return nil, err
	}
	return f.consoleLines(), nil
}

// HTML renders the frame's current document.
func (b *Browser) HTML(tabID, frameID int) (string, error) {
	f, err := b.frame(tabID, frameID)
	if err != nil {
		return "", err
	}
	return f.html()
}

// Query lists tabs whose URL matches any of the query patterns, ordered by id.
// An empty query lists every tab.
func (b *Browser) Query(_ context.Context, q inject.TabQuery) ([]inject.Tab, error) {
	patterns, err := matchpattern.Compile(q.URL...)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]inject.Tab, 0, len(b.tabs))
	for _, t := range b.tabs {
		if patterns.Len() > 0 && !patterns.Match(t.url) {
			continue
		}
		out = append(out, inject.Tab{ID: t.id, URL: t.url})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Scripting returns the structured, batch capability of the browser.
func (b *Browser) Scripting() *Scripting {
	return &Scripting{browser: b}
}

// Tabs returns the per-call capability of the browser.
func (b *Browser) Tabs() *Tabs {
	return &Tabs{browser: b}
}

func (b *Browser) frame(tabID, frameID int) (*frame, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.tabs[tabID]
	if !ok {
		return nil, inject.NoTab(tabID)
	}
	f, ok := t.frames[frameID]
	if !ok {
		return nil, inject.NoFrame(tabID, frameID)
	}
	return f, nil
}

// frames returns every frame of a tab, top frame first.
func (b *Browser) frames(tabID int) ([]*frame, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.tabs[tabID]
	if !ok {
		return nil, inject.NoTab(tabID)
	}
	out := make([]*frame, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.frames[id])
	}
	return out, nil
}

func (b *Browser) readFile(path string) (string, error) {
	if b.assets == nil {
		return "", fmt.Errorf("Could not load file: '%s'.", path)
	}
	data, err := fs.ReadFile(b.assets, strings.TrimPrefix(path, "/"))
	if err != nil {
		b.logger.Debug("file source unavailable", zap.String("path", path), zap.Error(err))
		return "", fmt.Errorf("Could not load file: '%s'.", path)
	}
	return string(data), nil
}
