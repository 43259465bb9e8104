package config

import (
	"fmt"
	"sync"
	"time"
)

const (
	// SectionIDBrowser is the identifier for the browser settings section
	SectionIDBrowser = "browser"

	BackendPlaywright = "playwright"
	BackendRod        = "rod"
	BackendVM         = "vm"

	defaultBackend  = BackendPlaywright
	defaultHeadless = true
	defaultTimeout  = 30 * time.Second
)

// BrowserSection selects and tunes the browser backend.
type BrowserSection struct {
	Backend     string        `json:"backend"`
	Headless    bool          `json:"headless"`
	DebuggerURL string        `json:"debugger_url"`
	Timeout     time.Duration `json:"timeout"`
	mu          sync.RWMutex
}

// NewBrowserSection creates a new browser section with default settings.
func NewBrowserSection() *BrowserSection {
	return &BrowserSection{
		Backend:  defaultBackend,
		Headless: defaultHeadless,
		Timeout:  defaultTimeout,
	}
}

// ID returns the section identifier.
func (s *BrowserSection) ID() string {
	return SectionIDBrowser
}

// Title returns the section title.
func (s *BrowserSection) Title() string {
	return "Browser"
}

// Description returns the section description.
func (s *BrowserSection) Description() string {
	return "Pick the browser backend (playwright, rod or the in-process vm) and how it is launched."
}

// Data returns the current configuration data.
func (s *BrowserSection) Data() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]any{
		"backend":      s.Backend,
		"headless":     s.Headless,
		"debugger_url": s.DebuggerURL,
		"timeout":      s.Timeout.String(),
	}
}

// SetData updates the configuration from the provided data.
func (s *BrowserSection) SetData(data map[string]any) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, value := range data {
		switch key {
		case "backend":
			v, ok := value.(string)
			if !ok {
				return fmt.Errorf("invalid value type for backend: expected string, got %T", value)
			}
			s.Backend = v

		case "headless":
			v, ok := value.(bool)
			if !ok {
				return fmt.Errorf("invalid value type for headless: expected bool, got %T", value)
			}
			s.Headless = v

		case "debugger_url":
			v, ok := value.(string)
			if !ok {
				return fmt.Errorf("invalid value type for debugger_url: expected string, got %T", value)
			}
			s.DebuggerURL = v

		case "timeout":
			// Handle both string and numeric duration values
			switch v := value.(type) {
			case string:
				d, err := time.ParseDuration(v)
				if err != nil {
					return fmt.Errorf("invalid duration string for timeout: %w", err)
				}
				s.Timeout = d
			case float64:
				// JSON numbers come as float64
				s.Timeout = time.Duration(v)
			case int64:
				s.Timeout = time.Duration(v)
			default:
				return fmt.Errorf("invalid value type for timeout: expected string or number, got %T", value)
			}

		default:
			// Ignore unknown keys for forward compatibility
			continue
		}
	}
	return nil
}

// Validate validates the current configuration.
func (s *BrowserSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch s.Backend {
	case BackendPlaywright, BackendRod, BackendVM:
	default:
		return fmt.Errorf("unknown browser backend %q", s.Backend)
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", s.Timeout)
	}
	return nil
}

// Reset resets the section to default configuration.
func (s *BrowserSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Backend = defaultBackend
	s.Headless = defaultHeadless
	s.DebuggerURL = ""
	s.Timeout = defaultTimeout
}

// Settings returns a consistent snapshot of the section.
func (s *BrowserSection) Settings() (backend string, headless bool, debuggerURL string, timeout time.Duration) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Backend, s.Headless, s.DebuggerURL, s.Timeout
}
