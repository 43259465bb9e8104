package inject

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	c, err := Detect(&scriptingHost{})
	require.NoError(t, err)
	assert.Equal(t, CapabilityScripting, c)

	c, err = Detect(&tabsHost{})
	require.NoError(t, err)
	assert.Equal(t, CapabilityTabs, c)

	_, err = Detect(struct{}{})
	assert.ErrorIs(t, err, ErrUnsupportedOperation)
}

func TestNew(t *testing.T) {
	t.Run("probes once", func(t *testing.T) {
		i, err := New(&tabsHost{})
		require.NoError(t, err)
		assert.Equal(t, CapabilityTabs, i.Capability())
	})

	t.Run("forced capability must exist", func(t *testing.T) {
		_, err := New(&scriptingHost{}, WithCapability(CapabilityTabs))
		assert.ErrorIs(t, err, ErrUnsupportedOperation)
	})

	t.Run("forced capability", func(t *testing.T) {
		i, err := New(&scriptingHost{}, WithCapability(CapabilityScripting))
		require.NoError(t, err)
		assert.Equal(t, CapabilityScripting, i.Capability())
	})

	t.Run("tab querier from host", func(t *testing.T) {
		i, err := New(&tabList{})
		require.NoError(t, err)
		assert.NotNil(t, i.tabs)
	})
}

func TestParseCapability(t *testing.T) {
	for in, want := range map[string]Capability{
		"":          CapabilityAuto,
		"auto":      CapabilityAuto,
		"scripting": CapabilityScripting,
		"tabs":      CapabilityTabs,
	} {
		got, err := ParseCapability(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		if in != "" {
			assert.Equal(t, in, got.String())
		}
	}

	_, err := ParseCapability("mv4")
	assert.ErrorIs(t, err, ErrValidation)
}
