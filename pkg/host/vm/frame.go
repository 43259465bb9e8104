package vm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/dop251/goja"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const blankDocument = "<html><head><title></title></head><body></body></html>"

// frame is one document with its JavaScript realm. The runtime is not safe
// for concurrent use, so every access goes through mu.
type frame struct {
	mu      sync.Mutex
	id      int
	url     string
	doc     *html.Node
	rt      *goja.Runtime
	console []string
	logger  *zap.Logger
}

func newFrame(id int, url, source string, logger *zap.Logger) (*frame, error) {
	if source == "" {
		source = blankDocument
	}
	doc, err := html.Parse(strings.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("parse document for %s: %w", url, err)
	}
	f := &frame{
		id:     id,
		url:    url,
		doc:    doc,
		rt:     goja.New(),
		logger: logger.With(zap.Int("frame_id", id), zap.String("url", url)),
	}
	if err := f.setupGlobals(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *frame) setupGlobals() error {
	rt := f.rt
	rt.Set("require", goja.Undefined())
	rt.Set("process", goja.Undefined())

	console := rt.NewObject()
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		console.Set(level, f.consoleFunc(level))
	}

	location := rt.NewObject()
	location.Set("href", f.url)

	document := rt.NewObject()
	document.Set("URL", f.url)
	document.Set("title", textOf(findFirst(f.doc, atom.Title)))
	document.Set("readyState", "complete")
	document.Set("styleSheets", rt.NewArray())

	if err := rt.Set("console", console); err != nil {
		return err
	}
	if err := rt.Set("location", location); err != nil {
		return err
	}
	if err := rt.Set("document", document); err != nil {
		return err
	}
	return rt.Set("window", rt.GlobalObject())
}

func (f *frame) consoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, arg.String())
		}
		msg := strings.Join(parts, " ")
		f.console = append(f.console, msg)
		f.logger.Debug("console", zap.String("level", level), zap.String("message", msg))
		return goja.Undefined()
	}
}

// run evaluates src and returns its completion value as plain JSON data.
// Values that have no JSON form come back as nil.
func (f *frame) run(ctx context.Context, src string) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// finished keeps a late cancellation from interrupting a later run
	var (
		imu      sync.Mutex
		finished bool
	)
	stop := context.AfterFunc(ctx, func() {
		imu.Lock()
		defer imu.Unlock()
		if !finished {
			f.rt.Interrupt(ctx.Err())
		}
	})
	defer func() {
		imu.Lock()
		finished = true
		imu.Unlock()
		stop()
		f.rt.ClearInterrupt()
	}()

	v, err := f.rt.RunString(src)
	if err != nil {
		return nil, scriptError(err)
	}
	return export(v), nil
}

func scriptError(err error) error {
	if ierr, ok := err.(*goja.InterruptedError); ok {
		if cause, ok := ierr.Value().(error); ok {
			return cause
		}
	}
	if exc, ok := err.(*goja.Exception); ok {
		return fmt.Errorf("script threw: %s", exc.Value().String())
	}
	return err
}

func export(v goja.Value) any {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	raw, err := json.Marshal(v.Export())
	if err != nil {
		return nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// insertCSS appends a <style> element to the document head and exposes the
// text through document.styleSheets.
func (f *frame) insertCSS(css string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	head := findFirst(f.doc, atom.Head)
	if head == nil {
		return fmt.Errorf("document %s has no head", f.url)
	}
	style := &html.Node{Type: html.ElementNode, Data: "style", DataAtom: atom.Style}
	style.AppendChild(&html.Node{Type: html.TextNode, Data: css})
	head.AppendChild(style)

	sheets := f.stylesLocked()
	values := make([]any, 0, len(sheets))
	for _, s := range sheets {
		values = append(values, s)
	}
	document := f.rt.Get("document").ToObject(f.rt)
	return document.Set("styleSheets", f.rt.NewArray(values...))
}

func (f *frame) styles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stylesLocked()
}

func (f *frame) stylesLocked() []string {
	var out []string
	walk(f.doc, func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Style {
			out = append(out, textOf(n))
		}
	})
	return out
}

func (f *frame) html() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var buf bytes.Buffer
	if err := html.Render(&buf, f.doc); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (f *frame) consoleLines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.console...)
}

func (f *frame) isAboutBlank() bool {
	return f.url == "about:blank"
}

func walk(n *html.Node, fn func(*html.Node)) {
	if n == nil {
		return
	}
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func findFirst(n *html.Node, a atom.Atom) *html.Node {
	var found *html.Node
	walk(n, func(c *html.Node) {
		if found == nil && c.Type == html.ElementNode && c.DataAtom == a {
			found = c
		}
	})
	return found
}

func textOf(n *html.Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	})
	return sb.String()
}
