// Package playwright hosts the scripting capability on Chromium driven by
// Playwright. Tabs are pages of one browser context; frame 0 is the main
// frame and subframes are numbered depth-first in document order. When
// attached to a running browser the host adopts its default context, so tabs
// the user already had open are queryable.
package playwright

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"strings"
	"sync"
	"time"

	pw "github.com/playwright-community/playwright-go"

	"github.com/entrhq/tabscript/pkg/inject"
	"github.com/entrhq/tabscript/pkg/matchpattern"
)

// Default settings
const (
	DefaultTimeout        = 30 * time.Second
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720
)

// Options configure Launch.
type Options struct {
	// Headless runs Chromium without a window.
	Headless bool
	// DebuggerURL connects to a running Chromium over CDP instead of
	// launching one.
	DebuggerURL string
	// Timeout bounds every Playwright call. Zero means DefaultTimeout.
	Timeout time.Duration
	// Assets serves the files named by injections.
	Assets fs.FS
	// Install downloads the Playwright driver and browsers first.
	Install bool
	// Logger receives debug notes. *logging.Logger satisfies it.
	Logger inject.Logger
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}

// Host is a Chromium instance exposing the scripting capability.
type Host struct {
	mu      sync.RWMutex
	pw      *pw.Playwright
	browser pw.Browser
	context pw.BrowserContext
	// attached is set when the browser and context belong to someone else
	attached bool
	pages    map[int]pw.Page
	ids      map[pw.Page]int
	nextID   int
	assets   fs.FS
	logger   inject.Logger
	timeout  float64
}

// Launch starts Playwright and a Chromium browser context.
func Launch(opts Options) (*Host, error) {
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}

	// Keep driver output off our stdout
	runOpts := &pw.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if opts.Install {
		if err := pw.Install(runOpts); err != nil {
			return nil, fmt.Errorf("failed to install playwright: %w", err)
		}
	}
	driver, err := pw.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	var browser pw.Browser
	if opts.DebuggerURL != "" {
		browser, err = driver.Chromium.ConnectOverCDP(opts.DebuggerURL)
	} else {
		browser, err = driver.Chromium.Launch(pw.BrowserTypeLaunchOptions{
			Headless: pw.Bool(opts.Headless),
		})
	}
	if err != nil {
		_ = driver.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	var bctx pw.BrowserContext
	attached := false
	if contexts := browser.Contexts(); opts.DebuggerURL != "" && len(contexts) > 0 {
		bctx = contexts[0]
		attached = true
	} else {
		bctx, err = browser.NewContext(pw.BrowserNewContextOptions{
			Viewport:  &pw.Size{Width: DefaultViewportWidth, Height: DefaultViewportHeight},
			BypassCSP: pw.Bool(true),
		})
		if err != nil {
			_ = browser.Close()
			_ = driver.Stop()
			return nil, fmt.Errorf("failed to create context: %w", err)
		}
	}

	h := &Host{
		pw:       driver,
		browser:  browser,
		context:  bctx,
		attached: attached,
		pages:    make(map[int]pw.Page),
		ids:      make(map[pw.Page]int),
		nextID:   1,
		assets:   opts.Assets,
		logger:   opts.Logger,
		timeout:  float64(opts.Timeout.Milliseconds()),
	}
	h.sync()
	return h, nil
}

// track returns the tab id of page, handing out the next one on first sight.
// Callers hold mu.
func (h *Host) track(page pw.Page) int {
	if id, ok := h.ids[page]; ok {
		return id
	}
	id := h.nextID
	h.nextID++
	h.pages[id] = page
	h.ids[page] = id
	return id
}

// sync adopts pages opened outside this host and forgets closed ones.
func (h *Host) sync() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, page := range h.context.Pages() {
		if !page.IsClosed() {
			h.track(page)
		}
	}
	for id, page := range h.pages {
		if page.IsClosed() {
			delete(h.pages, id)
			delete(h.ids, page)
		}
	}
}

// OpenTab opens url in a new page and returns its tab id.
func (h *Host) OpenTab(ctx context.Context, url string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	page, err := h.context.NewPage()
	if err != nil {
		return 0, fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(h.timeout)

	if _, err := page.Goto(url, pw.PageGotoOptions{Timeout: pw.Float(h.timeout)}); err != nil {
		_ = page.Close()
		return 0, fmt.Errorf("navigation failed: %w", err)
	}

	h.mu.Lock()
	id := h.track(page)
	h.mu.Unlock()

	h.logger.Debugf("opened tab %d at %s", id, page.URL())
	return id, nil
}

// CloseTab closes a page. Later injections into it fail as target losses.
func (h *Host) CloseTab(tabID int) error {
	h.mu.Lock()
	page, ok := h.pages[tabID]
	delete(h.pages, tabID)
	delete(h.ids, page)
	h.mu.Unlock()
	if !ok {
		return inject.NoTab(tabID)
	}
	return page.Close()
}

// Close shuts the browser and Playwright down. An attached browser is only
// disconnected from; its tabs stay open.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Ignore errors, continue cleanup
	if !h.attached {
		for _, page := range h.pages {
			_ = page.Close()
		}
		_ = h.context.Close()
	}
	clear(h.pages)
	clear(h.ids)
	_ = h.browser.Close()
	if err := h.pw.Stop(); err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	return nil
}

// Query lists open pages whose URL matches one of q.URL, sorted by id.
func (h *Host) Query(ctx context.Context, q inject.TabQuery) ([]inject.Tab, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	set, err := matchpattern.Compile(q.URL...)
	if err != nil {
		return nil, err
	}
	h.sync()

	h.mu.RLock()
	defer h.mu.RUnlock()
	tabs := make([]inject.Tab, 0, len(h.pages))
	for id, page := range h.pages {
		if page.IsClosed() {
			continue
		}
		url := page.URL()
		if set.Len() > 0 && !set.Match(url) {
			continue
		}
		tabs = append(tabs, inject.Tab{ID: id, URL: url})
	}
	sort.Slice(tabs, func(a, b int) bool { return tabs[a].ID < tabs[b].ID })
	return tabs, nil
}

func (h *Host) page(tabID int) (pw.Page, error) {
	h.mu.RLock()
	page, ok := h.pages[tabID]
	h.mu.RUnlock()
	if !ok || page.IsClosed() {
		return nil, inject.NoTab(tabID)
	}
	return page, nil
}

// frames lists the attached frames of a page, main frame first.
func frames(page pw.Page) []pw.Frame {
	var out []pw.Frame
	var visit func(f pw.Frame)
	visit = func(f pw.Frame) {
		if f.IsDetached() {
			return
		}
		out = append(out, f)
		for _, child := range f.ChildFrames() {
			visit(child)
		}
	}
	visit(page.MainFrame())
	return out
}

type target struct {
	id    int
	frame pw.Frame
}

// targets resolves an injection target to frames.
func (h *Host) targets(t inject.InjectionTarget) ([]target, error) {
	page, err := h.page(t.TabID)
	if err != nil {
		return nil, err
	}
	all := frames(page)

	if t.AllFrames {
		out := make([]target, 0, len(all))
		for id, f := range all {
			out = append(out, target{id: id, frame: f})
		}
		return out, nil
	}

	ids := t.FrameIDs
	if len(ids) == 0 {
		ids = []int{0}
	}
	out := make([]target, 0, len(ids))
	for _, id := range ids {
		if id < 0 || id >= len(all) {
			return nil, inject.NoFrame(t.TabID, id)
		}
		out = append(out, target{id: id, frame: all[id]})
	}
	return out, nil
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
