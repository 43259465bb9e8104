package inject

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTargetLost(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"no frame", errors.New("No frame with id 3 in tab 12."), true},
		{"no tab", errors.New("No tab with id: 12."), true},
		{"tab closed", errors.New("The tab was closed."), true},
		{"frame removed", errors.New("The frame was removed."), true},
		{"constructor", NoFrame(12, 3), true},
		{"wrapped", fmt.Errorf("insert css into tab 12 frame 3: %w", NoTab(12)), true},
		{"wrapped message", fmt.Errorf("host: %w", errors.New("The tab was closed.")), true},
		{"sentinel", fmt.Errorf("%w: page detached", ErrTargetLost), true},
		{"permission", errors.New("Cannot access contents of the page."), false},
		{"partial message", errors.New("Error: No tab with id: 12. Retry later"), false},
		{"joined all lost", errors.Join(NoTab(1), NoTab(2)), true},
		{"joined mixed", errors.Join(NoTab(1), errors.New("boom")), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTargetLost(tt.err))
		})
	}
}

func TestIgnoreTargetErrors(t *testing.T) {
	assert.NoError(t, IgnoreTargetErrors(nil))
	assert.NoError(t, IgnoreTargetErrors(NoFrame(1, 2)))

	other := errors.New("Cannot access a chrome:// URL")
	assert.Same(t, other, IgnoreTargetErrors(other))
}

func TestTargetLostMessages(t *testing.T) {
	assert.EqualError(t, NoTab(4), "No tab with id: 4.")
	assert.EqualError(t, NoFrame(4, 1), "No frame with id 1 in tab 4.")
	assert.ErrorIs(t, TargetLost("The tab was closed."), ErrTargetLost)
}
