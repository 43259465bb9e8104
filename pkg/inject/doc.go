// Package inject injects stylesheets and scripts into browser tabs and frames,
// and runs caller-supplied functions inside them.
//
// Two host capabilities are supported and hidden behind one contract:
//
//  1. Scripting: structured, batch injection. One call can address several
//     frames and returns one result per frame. Literal JavaScript text is not
//     accepted, only file paths or a function with arguments.
//  2. Tabs: the per-call capability. Every source is its own call addressing a
//     single frame (or all frames), and literal code is accepted.
//
// The capability is probed once when an Injector is built (see Detect) and the
// matching strategy is used for every call afterwards.
//
// # Targets
//
// A bare TabID means "every frame of this tab". A Target names exactly one
// frame, frame 0 being the top frame:
//
//	injector.InjectContentScript(ctx,
//	    []inject.Where{inject.TabID(12), inject.Target{TabID: 14, FrameID: 3}},
//	    []inject.ContentScriptSpec{{
//	        CSS: inject.Files("content.css"),
//	        JS:  inject.Files("vendor.js", "content.js"),
//	    }},
//	    inject.Options{IgnoreTargetErrors: true},
//	)
//
// # Ordering
//
// Stylesheets for one target are inserted in parallel. Scripts are submitted as
// one ordered batch on the scripting capability. On the tabs capability file
// sources are submitted back to back, while an inline code source waits for the
// injection right before it to settle.
//
// # Transient failures
//
// Tabs get closed and frames navigate away while an injection is in flight.
// Hosts report those as ErrTargetLost (or with the browser's own wording), and
// Options.IgnoreTargetErrors turns them into successes.
package inject
