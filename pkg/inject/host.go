package inject

import (
	"context"
	"fmt"
)

// InjectionTarget addresses frames on the scripting capability.
// FrameIDs and AllFrames are never both set.
type InjectionTarget struct {
	TabID     int   `json:"tabId"`
	FrameIDs  []int `json:"frameIds,omitempty"`
	AllFrames bool  `json:"allFrames,omitempty"`
}

// ScriptInjection is one scripting call: either Files or Func is set.
type ScriptInjection struct {
	Target InjectionTarget
	Files  []string
	Func   Function
	Args   []any
}

// CSSInjection is one stylesheet call: either Files or CSS is set.
type CSSInjection struct {
	Target InjectionTarget
	Files  []string
	CSS    string
}

// InjectionResult is the value one frame produced.
type InjectionResult struct {
	FrameID int `json:"frameId"`
	Result  any `json:"result"`
}

// InjectDetails is one call on the tabs capability. Exactly one of Code and
// File is set. A nil FrameID with AllFrames false means the top frame.
type InjectDetails struct {
	FrameID         *int
	Code            string
	File            string
	RunAt           RunAt
	AllFrames       bool
	MatchAboutBlank bool
}

// Tab is a tab record returned by a query. ID 0 and an empty URL mean the
// host withheld them.
type Tab struct {
	ID  int    `json:"id,omitempty"`
	URL string `json:"url,omitempty"`
}

// TabQuery selects tabs whose URL matches any of the match patterns.
type TabQuery struct {
	URL []string
}

// ScriptingAPI is the structured, batch injection capability.
type ScriptingAPI interface {
	ExecuteScript(ctx context.Context, injection ScriptInjection) ([]InjectionResult, error)
	InsertCSS(ctx context.Context, injection CSSInjection) error
}

// TabsAPI is the per-call injection capability.
type TabsAPI interface {
	ExecuteScript(ctx context.Context, tabID int, details InjectDetails) ([]any, error)
	InsertCSS(ctx context.Context, tabID int, details InjectDetails) error
}

// TabQuerier lists open tabs.
type TabQuerier interface {
	Query(ctx context.Context, query TabQuery) ([]Tab, error)
}

// Capability names the injection capability a host exposes.
type Capability int

const (
	// CapabilityAuto probes the host.
	CapabilityAuto Capability = iota
	// CapabilityScripting is the structured, batch capability.
	CapabilityScripting
	// CapabilityTabs is the per-call capability.
	CapabilityTabs
)

func (c Capability) String() string {
	switch c {
	case CapabilityScripting:
		return "scripting"
	case CapabilityTabs:
		return "tabs"
	default:
		return "auto"
	}
}

// ParseCapability parses "auto", "scripting" or "tabs".
func ParseCapability(s string) (Capability, error) {
	switch s {
	case "", "auto":
		return CapabilityAuto, nil
	case "scripting":
		return CapabilityScripting, nil
	case "tabs":
		return CapabilityTabs, nil
	default:
		return CapabilityAuto, fmt.Errorf("%w: unknown capability %q", ErrValidation, s)
	}
}

// Detect probes host for the scripting capability first and falls back to the
// tabs capability.
func Detect(host any) (Capability, error) {
	if _, ok := host.(ScriptingAPI); ok {
		return CapabilityScripting, nil
	}
	if _, ok := host.(TabsAPI); ok {
		return CapabilityTabs, nil
	}
	return CapabilityAuto, fmt.Errorf("%w: host %T exposes no injection capability", ErrUnsupportedOperation, host)
}
