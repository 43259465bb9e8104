package inject

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// RunAt is the point in the document lifecycle an injection runs at.
type RunAt string

const (
	RunAtDocumentStart RunAt = "document_start"
	RunAtDocumentEnd   RunAt = "document_end"
	RunAtDocumentIdle  RunAt = "document_idle"
)

// Validate accepts the three known values and the empty (host default) value.
func (r RunAt) Validate() error {
	switch r {
	case "", RunAtDocumentStart, RunAtDocumentEnd, RunAtDocumentIdle:
		return nil
	default:
		return fmt.Errorf("%w: unknown run_at %q", ErrValidation, string(r))
	}
}

// FileSource is either a file path or inline code.
type FileSource struct {
	File string `json:"file,omitempty" yaml:"file,omitempty"`
	Code string `json:"code,omitempty" yaml:"code,omitempty"`
}

// File returns a file-backed source.
func File(path string) FileSource { return FileSource{File: path} }

// Code returns an inline source.
func Code(src string) FileSource { return FileSource{Code: src} }

// Files promotes paths to file sources.
func Files(paths ...string) []FileSource {
	out := make([]FileSource, 0, len(paths))
	for _, p := range paths {
		out = append(out, File(p))
	}
	return out
}

// IsCode reports whether the source is inline code.
func (f FileSource) IsCode() bool { return f.File == "" }

// Validate requires exactly one of File and Code.
func (f FileSource) Validate() error {
	if (f.File == "") == (f.Code == "") {
		return fmt.Errorf("%w: file source needs exactly one of file or code", ErrValidation)
	}
	return nil
}

func (f FileSource) String() string {
	if f.IsCode() {
		return fmt.Sprintf("code(%d bytes)", len(f.Code))
	}
	return f.File
}

// UnmarshalYAML accepts a bare path or a {file} / {code} mapping.
func (f *FileSource) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*f = File(node.Value)
		return f.Validate()
	}
	type plain FileSource
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*f = FileSource(p)
	return f.Validate()
}

// UnmarshalJSON accepts a bare path or a {file} / {code} object.
func (f *FileSource) UnmarshalJSON(data []byte) error {
	if trimmed := strings.TrimSpace(string(data)); strings.HasPrefix(trimmed, `"`) {
		var path string
		if err := json.Unmarshal(data, &path); err != nil {
			return err
		}
		*f = File(path)
		return f.Validate()
	}
	type plain FileSource
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*f = FileSource(p)
	return f.Validate()
}

// ToFileSource converts a string, a FileSource or a map with a "file" or
// "code" key.
func ToFileSource(v any) (FileSource, error) {
	var f FileSource
	switch src := v.(type) {
	case string:
		f = File(src)
	case FileSource:
		f = src
	case map[string]any:
		file, _ := src["file"].(string)
		code, _ := src["code"].(string)
		f = FileSource{File: file, Code: code}
	case map[string]string:
		f = FileSource{File: src["file"], Code: src["code"]}
	default:
		return FileSource{}, fmt.Errorf("%w: cannot use %T as a file source", ErrValidation, v)
	}
	return f, f.Validate()
}

// Seen tracks file paths already scheduled during one orchestration call.
type Seen map[string]struct{}

// NormalizeFiles drops file entries whose path is already in seen and records
// the rest. Inline code is always kept. A nil seen still removes duplicates
// within files. The dropped paths are returned for logging.
func NormalizeFiles(files []FileSource, seen Seen) (kept []FileSource, dropped []string) {
	if seen == nil {
		seen = Seen{}
	}
	kept = make([]FileSource, 0, len(files))
	for _, f := range files {
		if f.IsCode() {
			kept = append(kept, f)
			continue
		}
		if _, dup := seen[f.File]; dup {
			dropped = append(dropped, f.File)
			continue
		}
		seen[f.File] = struct{}{}
		kept = append(kept, f)
	}
	return kept, dropped
}

func validateFiles(files []FileSource) error {
	for i, f := range files {
		if err := f.Validate(); err != nil {
			return fmt.Errorf("files[%d]: %w", i, err)
		}
	}
	return nil
}
