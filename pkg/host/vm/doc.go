// Package vm is an in-process browser host. Every frame is an HTML document
// parsed with golang.org/x/net/html plus its own goja JavaScript runtime, so
// injections can be exercised without launching a real browser.
//
// The Browser exposes both injection capabilities: Scripting() returns the
// structured, batch capability and Tabs() the per-call one. Both adapters also
// answer tab queries.
//
// Frames report failures with the same wording Chrome uses ("No tab with id:
// 3.", "No frame with id 1 in tab 3."), so callers can classify them the same
// way they would for a real browser.
package vm
