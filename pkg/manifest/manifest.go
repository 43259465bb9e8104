// Package manifest loads the content_scripts section of an extension
// manifest and injects it into tabs that are already open.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/entrhq/tabscript/pkg/inject"
	"github.com/entrhq/tabscript/pkg/matchpattern"
)

// ErrInvalid is returned for manifests that fail validation.
var ErrInvalid = errors.New("invalid manifest")

// ContentScript is one content_scripts entry.
type ContentScript struct {
	Matches        []string `json:"matches" yaml:"matches"`
	ExcludeMatches []string `json:"exclude_matches,omitempty" yaml:"exclude_matches,omitempty"`

	inject.ContentScriptSpec `yaml:",inline"`
}

// Manifest is the subset of an extension manifest tabscript acts on.
type Manifest struct {
	Name           string          `json:"name,omitempty" yaml:"name,omitempty"`
	Version        string          `json:"version,omitempty" yaml:"version,omitempty"`
	ContentScripts []ContentScript `json:"content_scripts" yaml:"content_scripts"`
}

// Parse decodes and validates a YAML manifest.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// ParseJSON decodes and validates a manifest.json document.
func ParseJSON(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Load reads a manifest file. Files ending in .json are decoded as JSON,
// anything else as YAML.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return ParseJSON(data)
	}
	return Parse(data)
}

// Validate checks every entry: at least one match pattern, well-formed
// patterns, at least one file, and valid sources and run_at values.
func (m *Manifest) Validate() error {
	for n, cs := range m.ContentScripts {
		if err := cs.validate(); err != nil {
			return fmt.Errorf("%w: content_scripts[%d]: %w", ErrInvalid, n, err)
		}
	}
	return nil
}

func (cs ContentScript) validate() error {
	if len(cs.Matches) == 0 {
		return errors.New("matches is required")
	}
	if _, err := matchpattern.Compile(cs.Matches...); err != nil {
		return err
	}
	if _, err := matchpattern.Compile(cs.ExcludeMatches...); err != nil {
		return err
	}
	if len(cs.CSS) == 0 && len(cs.JS) == 0 {
		return errors.New("css or js is required")
	}
	return cs.ContentScriptSpec.Validate()
}

// Globber expands a file pattern relative to the extension root.
// *assets.Guard satisfies it.
type Globber interface {
	Glob(pattern string) ([]string, error)
}

// Expand returns a copy of m with glob file entries replaced by the files
// they match, in lexical order. A pattern matching nothing is an error.
func (m *Manifest) Expand(g Globber) (*Manifest, error) {
	out := *m
	out.ContentScripts = make([]ContentScript, len(m.ContentScripts))
	for n, cs := range m.ContentScripts {
		css, err := expand(g, cs.CSS)
		if err != nil {
			return nil, fmt.Errorf("content_scripts[%d].css: %w", n, err)
		}
		js, err := expand(g, cs.JS)
		if err != nil {
			return nil, fmt.Errorf("content_scripts[%d].js: %w", n, err)
		}
		cs.CSS, cs.JS = css, js
		out.ContentScripts[n] = cs
	}
	return &out, nil
}

func expand(g Globber, files []inject.FileSource) ([]inject.FileSource, error) {
	if len(files) == 0 {
		return files, nil
	}
	out := make([]inject.FileSource, 0, len(files))
	for _, f := range files {
		if f.IsCode() || !strings.ContainsAny(f.File, "*?[{") {
			out = append(out, f)
			continue
		}
		matches, err := g.Glob(f.File)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %q", f.File)
		}
		out = append(out, inject.Files(matches...)...)
	}
	return out, nil
}
