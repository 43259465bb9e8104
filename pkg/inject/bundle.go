package inject

import "fmt"

// InjectionBundle asks for a list of CSS or JS sources to be injected into one
// target. A nil FrameID addresses every frame when AllFrames is set and the
// top frame otherwise.
type InjectionBundle struct {
	TabID           int          `json:"tabId" yaml:"tabId"`
	FrameID         *int         `json:"frameId,omitempty" yaml:"frameId,omitempty"`
	Files           []FileSource `json:"files" yaml:"files"`
	AllFrames       bool         `json:"allFrames,omitempty" yaml:"allFrames,omitempty"`
	MatchAboutBlank bool         `json:"matchAboutBlank,omitempty" yaml:"matchAboutBlank,omitempty"`
	RunAt           RunAt        `json:"runAt,omitempty" yaml:"runAt,omitempty"`
}

// Validate rejects bundles that can never be injected. Naming a frame and
// asking for all frames at once is ambiguous and rejected.
func (b InjectionBundle) Validate() error {
	if b.FrameID != nil {
		if b.AllFrames {
			return fmt.Errorf("%w: allFrames cannot be combined with frame %d", ErrValidation, *b.FrameID)
		}
		if *b.FrameID < 0 {
			return fmt.Errorf("%w: frame id must not be negative, got %d", ErrValidation, *b.FrameID)
		}
	}
	if err := b.RunAt.Validate(); err != nil {
		return err
	}
	return validateFiles(b.Files)
}

func (b InjectionBundle) target() AllFramesTarget {
	switch {
	case b.FrameID != nil:
		frameID := *b.FrameID
		return AllFramesTarget{TabID: b.TabID, FrameID: &frameID}
	case b.AllFrames:
		return AllFramesTarget{TabID: b.TabID, AllFrames: true}
	default:
		top := 0
		return AllFramesTarget{TabID: b.TabID, FrameID: &top}
	}
}

// bundleFor builds the bundle a target receives for one content script entry.
func bundleFor(t AllFramesTarget, files []FileSource, matchAboutBlank bool, runAt RunAt) InjectionBundle {
	return InjectionBundle{
		TabID:           t.TabID,
		FrameID:         t.FrameID,
		Files:           files,
		AllFrames:       t.AllFrames,
		MatchAboutBlank: matchAboutBlank,
		RunAt:           runAt,
	}
}
