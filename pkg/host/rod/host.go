// Package rod hosts the per-call tabs capability on Chrome over the DevTools
// protocol. Every target tab known to the browser is a tab; ids are handed
// out in the order tabs are first seen. Frame 0 is the page itself and
// iframes are numbered depth-first in document order. run_at is not
// honoured since addressed tabs have already loaded.
package rod

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/entrhq/tabscript/pkg/inject"
	"github.com/entrhq/tabscript/pkg/matchpattern"
)

// DefaultTimeout bounds navigation in OpenTab.
const DefaultTimeout = 30 * time.Second

// Options configure Connect.
type Options struct {
	// DebuggerURL connects to a running Chrome. When empty a browser is
	// launched.
	DebuggerURL string
	// Bin is the browser binary to launch. Empty means the launcher's lookup.
	Bin      string
	Headless bool
	Timeout  time.Duration
	// Assets serves the files named by injections.
	Assets fs.FS
	// Logger receives debug notes. *logging.Logger satisfies it.
	Logger inject.Logger
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}

// Host is a Chrome instance exposing the tabs capability.
type Host struct {
	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
	ids      map[proto.TargetTargetID]int
	pages    map[int]*rod.Page
	nextID   int
	assets   fs.FS
	logger   inject.Logger
	timeout  time.Duration
}

// Connect attaches to opts.DebuggerURL or launches a browser.
func Connect(ctx context.Context, opts Options) (*Host, error) {
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}

	h := &Host{
		ids:     make(map[proto.TargetTargetID]int),
		pages:   make(map[int]*rod.Page),
		nextID:  1,
		assets:  opts.Assets,
		logger:  opts.Logger,
		timeout: opts.Timeout,
	}

	controlURL := opts.DebuggerURL
	if controlURL == "" {
		l := launcher.New().Headless(opts.Headless)
		if opts.Bin != "" {
			l = l.Bin(opts.Bin)
		}
		url, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		h.launcher = l
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		h.cleanup()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	h.browser = browser
	h.logger.Debugf("connected to chrome at %s", controlURL)
	return h, nil
}

func (h *Host) cleanup() {
	if h.launcher != nil {
		h.launcher.Kill()
		h.launcher.Cleanup()
	}
}

// Close disconnects and, when the browser was launched here, kills it.
func (h *Host) Close() error {
	var err error
	if h.launcher != nil {
		err = h.browser.Close()
	}
	h.cleanup()
	return err
}

// OpenTab opens url in a new tab, waits for it to load and returns its id.
func (h *Host) OpenTab(ctx context.Context, url string) (int, error) {
	page, err := h.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return 0, fmt.Errorf("create tab: %w", err)
	}
	if err := page.Context(ctx).Timeout(h.timeout).WaitLoad(); err != nil {
		_ = page.Close()
		return 0, fmt.Errorf("navigation failed: %w", err)
	}
	return h.track(page), nil
}

// CloseTab closes a tab. Later injections into it fail as target losses.
func (h *Host) CloseTab(tabID int) error {
	h.mu.Lock()
	page, ok := h.pages[tabID]
	if ok {
		delete(h.pages, tabID)
		delete(h.ids, page.TargetID)
	}
	h.mu.Unlock()
	if !ok {
		return inject.NoTab(tabID)
	}
	return page.Close()
}

func (h *Host) track(page *rod.Page) int {
	h.mu.Lock()
	if id, ok := h.ids[page.TargetID]; ok {
		h.mu.Unlock()
		return id
	}
	id := h.nextID
	h.nextID++
	h.ids[page.TargetID] = id
	h.pages[id] = page
	h.mu.Unlock()

	// Injected classic scripts are inline script elements
	if err := (proto.PageSetBypassCSP{Enabled: true}).Call(page); err != nil {
		h.logger.Debugf("tab %d keeps its content security policy: %v", id, err)
	}
	return id
}

// sync picks up tabs opened outside this host and forgets closed ones.
func (h *Host) sync(ctx context.Context) error {
	pages, err := h.browser.Context(ctx).Pages()
	if err != nil {
		return fmt.Errorf("list tabs: %w", err)
	}
	alive := make(map[proto.TargetTargetID]bool, len(pages))
	for _, page := range pages {
		alive[page.TargetID] = true
		h.track(page)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for target, id := range h.ids {
		if !alive[target] {
			delete(h.ids, target)
			delete(h.pages, id)
		}
	}
	return nil
}

// Query lists tabs whose URL matches one of q.URL, sorted by id.
func (h *Host) Query(ctx context.Context, q inject.TabQuery) ([]inject.Tab, error) {
	set, err := matchpattern.Compile(q.URL...)
	if err != nil {
		return nil, err
	}
	if err := h.sync(ctx); err != nil {
		return nil, err
	}

	h.mu.Lock()
	pages := make(map[int]*rod.Page, len(h.pages))
	for id, page := range h.pages {
		pages[id] = page
	}
	h.mu.Unlock()

	tabs := make([]inject.Tab, 0, len(pages))
	for id, page := range pages {
		info, err := page.Context(ctx).Info()
		if err != nil {
			// Closed between listing and lookup
			continue
		}
		if set.Len() > 0 && !set.Match(info.URL) {
			continue
		}
		tabs = append(tabs, inject.Tab{ID: id, URL: info.URL})
	}
	sort.Slice(tabs, func(a, b int) bool { return tabs[a].ID < tabs[b].ID })
	return tabs, nil
}

func (h *Host) page(tabID int) (*rod.Page, error) {
	h.mu.Lock()
	page, ok := h.pages[tabID]
	h.mu.Unlock()
	if !ok {
		return nil, inject.NoTab(tabID)
	}
	return page, nil
}

func (h *Host) readFile(path string) (string, error) {
	if h.assets == nil {
		return "", fmt.Errorf("Could not load file: '%s'.", path)
	}
	data, err := fs.ReadFile(h.assets, strings.TrimPrefix(path, "/"))
	if err != nil {
		return "", fmt.Errorf("Could not load file: '%s'.", path)
	}
	return string(data), nil
}
