package inject

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/tabscript/pkg/matchpattern"
)

func exampleTabs() *tabList {
	return &tabList{
		tabs: []Tab{
			{ID: 1, URL: "https://example.com/index.html"},
			{ID: 2, URL: "http://no-way.example.com/other/index.html"},
		},
		matchFn: func(patterns []string, url string) bool {
			return matchpattern.MustParse(patterns[0]).Match(url)
		},
	}
}

func TestGetTabsByURL(t *testing.T) {
	tests := []struct {
		name    string
		matches []string
		exclude []string
		want    []int
	}{
		{"single host", []string{"https://example.com/*"}, nil, []int{1}},
		{"everything", []string{"*://*/*"}, nil, []int{1, 2}},
		{"exclude http", []string{"*://*/*"}, []string{"http://*/*"}, []int{1}},
		{"exclusion removes the only match", []string{"http://no-way.example.com/*"}, []string{"http://*/*"}, []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i, err := New(exampleTabs())
			require.NoError(t, err)

			got, err := i.GetTabsByURL(context.Background(), tt.matches, tt.exclude...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			again, err := i.GetTabsByURL(context.Background(), tt.matches, tt.exclude...)
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}
}

func TestGetTabsByURL_EmptyMatches(t *testing.T) {
	host := exampleTabs()
	i, err := New(host)
	require.NoError(t, err)

	for _, matches := range [][]string{nil, {}} {
		got, err := i.GetTabsByURL(context.Background(), matches)
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.NotNil(t, got)
	}
	assert.Zero(t, host.queries)
}

func TestGetTabsByURL_SkipsRestrictedTabs(t *testing.T) {
	host := &tabList{tabs: []Tab{
		{ID: 0, URL: "https://example.com/"},
		{ID: 7},
		{ID: 8, URL: "https://example.com/"},
	}}
	i, err := New(host)
	require.NoError(t, err)

	got, err := i.GetTabsByURL(context.Background(), []string{"<all_urls>"})
	require.NoError(t, err)
	assert.Equal(t, []int{8}, got)
}

func TestGetTabsByURL_Errors(t *testing.T) {
	i, err := New(exampleTabs())
	require.NoError(t, err)
	_, err = i.GetTabsByURL(context.Background(), []string{"*://*/*"}, "not a pattern")
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, matchpattern.ErrInvalidPattern)

	noTabs, err := New(&tabsHost{})
	require.NoError(t, err)
	_, err = noTabs.GetTabsByURL(context.Background(), []string{"*://*/*"})
	assert.ErrorIs(t, err, ErrUnsupportedOperation)
}

func TestQueryTabs_KeepsURLs(t *testing.T) {
	i, err := New(exampleTabs())
	require.NoError(t, err)

	tabs, err := i.QueryTabs(context.Background(), []string{"*://*/*"}, "http://*/*")
	require.NoError(t, err)
	assert.Equal(t, []Tab{{ID: 1, URL: "https://example.com/index.html"}}, tabs)
}
