package playwright

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	pw "github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/tabscript/pkg/inject"
)

func TestLost(t *testing.T) {
	tests := []struct {
		name string
		err  error
		lost bool
	}{
		{"target closed sentinel", fmt.Errorf("evaluate: %w", pw.ErrTargetClosed), true},
		{"page closed", errors.New("Target page, context or browser has been closed"), true},
		{"detached frame", errors.New("frame.evaluate: Frame was detached"), true},
		{"navigation", errors.New("Execution context was destroyed, most likely because of a navigation"), true},
		{"script error", errors.New("ReferenceError: nope is not defined"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := lost(3, 1, tt.err)
			assert.Equal(t, tt.lost, inject.IsTargetLost(err))
			if tt.lost {
				assert.Contains(t, err.Error(), "No frame with id 1 in tab 3.")
			} else {
				assert.Same(t, tt.err, err)
			}
		})
	}
}

func TestReadFile(t *testing.T) {
	h := &Host{assets: fstest.MapFS{"js/a.js": {Data: []byte("1")}}}

	code, err := h.readFile("/js/a.js")
	require.NoError(t, err)
	assert.Equal(t, "1", code)

	_, err = h.readFile("js/missing.js")
	assert.EqualError(t, err, "Could not load file: 'js/missing.js'.")

	_, err = (&Host{}).readFile("a.js")
	assert.Error(t, err)
}

func TestHost_UnknownTab(t *testing.T) {
	h := &Host{pages: map[int]pw.Page{}}
	_, err := h.ExecuteScript(context.Background(), inject.ScriptInjection{Target: inject.InjectionTarget{TabID: 9}})
	assert.True(t, inject.IsTargetLost(err))
	assert.True(t, inject.IsTargetLost(h.CloseTab(9)))
}

const page = `<html><head><title>Fixture</title></head>
<body><p>top</p><iframe srcdoc="<p>child</p>"></iframe></body></html>`

func launch(t *testing.T) (*Host, string) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping browser test in short mode")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(page))
	}))
	t.Cleanup(srv.Close)

	h, err := Launch(Options{
		Headless: true,
		Assets: fstest.MapFS{
			"a.js":          {Data: []byte(`window.order = ["a"];`)},
			"b.js":          {Data: []byte(`window.order.push("b"); window.order.join(",")`)},
			"site.css":      {Data: []byte(`p { color: rgb(255, 0, 0); }`)},
			"vendor.js":     {Data: []byte(`const lib = { n: 1 };`)},
			"content.js":    {Data: []byte("function init() { window.libN = lib.n + 1; }\ninit();")},
			"returns-fn.js": {Data: []byte(`window.called = false; (function () { window.called = true; })`)},
			"throws.js":     {Data: []byte(`throw new Error("broken content script");`)},
		},
	})
	if err != nil {
		t.Skipf("Chromium not available: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })
	return h, srv.URL + "/"
}

func TestHost_Injection(t *testing.T) {
	h, url := launch(t)
	ctx := context.Background()

	tabID, err := h.OpenTab(ctx, url)
	require.NoError(t, err)

	i, err := inject.New(h)
	require.NoError(t, err)
	assert.Equal(t, inject.CapabilityScripting, i.Capability())

	ids, err := i.GetTabsByURL(ctx, []string{"http://127.0.0.1/*"})
	require.NoError(t, err)
	assert.Equal(t, []int{tabID}, ids)

	err = i.InjectContentScript(ctx, []inject.Where{inject.TabID(tabID)}, []inject.ContentScriptSpec{{
		CSS: inject.Files("site.css"),
		JS:  inject.Files("a.js", "b.js"),
	}}, inject.Options{})
	require.NoError(t, err)

	for _, frameID := range []int{0, 1} {
		order, err := inject.ExecuteFunctionAs[string](ctx, i, inject.Target{TabID: tabID, FrameID: frameID},
			`function () { return window.order.join(","); }`)
		require.NoError(t, err)
		assert.Equal(t, "a,b", order, "frame %d", frameID)

		color, err := inject.ExecuteFunctionAs[string](ctx, i, inject.Target{TabID: tabID, FrameID: frameID},
			`function (sel) { return getComputedStyle(document.querySelector(sel)).color; }`, "p")
		require.NoError(t, err)
		assert.Equal(t, "rgb(255, 0, 0)", color)
	}
}

func TestHost_ClosedTab(t *testing.T) {
	h, url := launch(t)
	ctx := context.Background()

	tabID, err := h.OpenTab(ctx, url)
	require.NoError(t, err)
	require.NoError(t, h.CloseTab(tabID))

	i, err := inject.New(h)
	require.NoError(t, err)

	bundle := inject.InjectionBundle{TabID: tabID, Files: inject.Files("a.js")}
	err = i.ExecuteScript(ctx, bundle, inject.Options{})
	assert.True(t, inject.IsTargetLost(err))
	assert.NoError(t, i.ExecuteScript(ctx, bundle, inject.Options{IgnoreTargetErrors: true}))

	_, err = i.ExecuteFunction(ctx, inject.TabID(tabID), `function () { return 1; }`)
	assert.True(t, inject.IsTargetLost(err))
}

func TestHost_FilesRunAsClassicScripts(t *testing.T) {
	h, url := launch(t)
	ctx := context.Background()

	tabID, err := h.OpenTab(ctx, url)
	require.NoError(t, err)
	i, err := inject.New(h)
	require.NoError(t, err)

	bundle := inject.InjectionBundle{TabID: tabID, Files: inject.Files("vendor.js", "content.js", "returns-fn.js")}
	require.NoError(t, i.ExecuteScript(ctx, bundle, inject.Options{}))

	n, err := inject.ExecuteFunctionAs[int](ctx, i, inject.TabID(tabID), `() => window.libN`)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "top-level declarations are shared between files")

	called, err := inject.ExecuteFunctionAs[bool](ctx, i, inject.TabID(tabID), `() => window.called`)
	require.NoError(t, err)
	assert.False(t, called, "a file evaluating to a function must not call it")

	err = i.ExecuteScript(ctx, inject.InjectionBundle{TabID: tabID, Files: inject.Files("throws.js")}, inject.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken content script")
	assert.False(t, inject.IsTargetLost(err))
}

func TestHost_QueryAdoptsPages(t *testing.T) {
	h, url := launch(t)
	ctx := context.Background()

	page, err := h.context.NewPage()
	require.NoError(t, err)
	_, err = page.Goto(url)
	require.NoError(t, err)

	i, err := inject.New(h)
	require.NoError(t, err)

	tabs, err := i.QueryTabs(ctx, []string{"<all_urls>"})
	require.NoError(t, err)
	require.Len(t, tabs, 1)
	assert.Equal(t, url, tabs[0].URL)

	title, err := i.ExecuteFunction(ctx, inject.TabID(tabs[0].ID), `() => document.title`)
	require.NoError(t, err)
	assert.Equal(t, "Fixture", title)

	require.NoError(t, page.Close())
	ids, err := i.GetTabsByURL(ctx, []string{"<all_urls>"})
	require.NoError(t, err)
	assert.Empty(t, ids)
}
