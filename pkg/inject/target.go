package inject

import "fmt"

// Where is either a TabID (all frames of that tab) or a Target (one frame).
type Where interface {
	where()
}

// TabID identifies a tab. Used as a Where it addresses every frame of the tab.
type TabID int

func (TabID) where() {}

// Target identifies exactly one frame of a tab. FrameID 0 is the top frame.
type Target struct {
	TabID   int `json:"tabId" yaml:"tabId"`
	FrameID int `json:"frameId" yaml:"frameId"`
}

func (Target) where() {}

// Validate reports a negative frame identifier.
func (t Target) Validate() error {
	if t.FrameID < 0 {
		return fmt.Errorf("%w: frame id must not be negative, got %d", ErrValidation, t.FrameID)
	}
	return nil
}

// AllFramesTarget is the normalized shape used by the injectors.
// AllFrames is true if and only if FrameID is nil.
type AllFramesTarget struct {
	TabID     int  `json:"tabId"`
	FrameID   *int `json:"frameId,omitempty"`
	AllFrames bool `json:"allFrames"`
}

// CastTarget turns a bare tab into its top frame and passes targets through.
func CastTarget(w Where) Target {
	switch v := w.(type) {
	case TabID:
		return Target{TabID: int(v)}
	case Target:
		return v
	default:
		return Target{}
	}
}

// CastAllFramesTarget turns a bare tab into an all-frames target. An explicit
// frame opts out of all-frames delivery.
func CastAllFramesTarget(w Where) AllFramesTarget {
	switch v := w.(type) {
	case TabID:
		return AllFramesTarget{TabID: int(v), AllFrames: true}
	case Target:
		frameID := v.FrameID
		return AllFramesTarget{TabID: v.TabID, FrameID: &frameID}
	default:
		return AllFramesTarget{}
	}
}

// narrow applies a bundle's all-frames preference to a broadcast target.
// Explicit frames are never widened.
func (t AllFramesTarget) narrow(allFrames *bool) AllFramesTarget {
	if t.FrameID != nil || allFrames == nil || *allFrames {
		return t
	}
	top := 0
	return AllFramesTarget{TabID: t.TabID, FrameID: &top}
}

// injectionTarget is the scripting capability's target descriptor.
func (t AllFramesTarget) injectionTarget() InjectionTarget {
	target := InjectionTarget{TabID: t.TabID, AllFrames: t.AllFrames}
	if t.FrameID != nil {
		target.FrameIDs = []int{*t.FrameID}
	}
	return target
}

func (t AllFramesTarget) String() string {
	if t.FrameID == nil {
		return fmt.Sprintf("tab %d (all frames)", t.TabID)
	}
	return fmt.Sprintf("tab %d frame %d", t.TabID, *t.FrameID)
}
