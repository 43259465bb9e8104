package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/entrhq/tabscript/pkg/inject"
)

const (
	// SectionIDInjection is the identifier for the injection settings section
	SectionIDInjection = "injection"

	defaultCapability         = "auto"
	defaultIgnoreTargetErrors = false
)

// InjectionSection configures how scripts and stylesheets are injected.
type InjectionSection struct {
	Capability           string   `json:"capability"`
	IgnoreTargetErrors   bool     `json:"ignore_target_errors"`
	ExtensionRoot        string   `json:"extension_root"`
	ExtraBlockedPrefixes []string `json:"extra_blocked_prefixes"`
	mu                   sync.RWMutex
}

// NewInjectionSection creates a new injection section with default settings.
func NewInjectionSection() *InjectionSection {
	return &InjectionSection{
		Capability:         defaultCapability,
		IgnoreTargetErrors: defaultIgnoreTargetErrors,
	}
}

// ID returns the section identifier.
func (s *InjectionSection) ID() string {
	return SectionIDInjection
}

// Title returns the section title.
func (s *InjectionSection) Title() string {
	return "Injection"
}

// Description returns the section description.
func (s *InjectionSection) Description() string {
	return "Choose the injection capability, where extension files live, and how lost tabs are treated."
}

// Data returns the current configuration data.
func (s *InjectionSection) Data() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefixes := make([]any, 0, len(s.ExtraBlockedPrefixes))
	for _, p := range s.ExtraBlockedPrefixes {
		prefixes = append(prefixes, p)
	}
	return map[string]any{
		"capability":             s.Capability,
		"ignore_target_errors":   s.IgnoreTargetErrors,
		"extension_root":         s.ExtensionRoot,
		"extra_blocked_prefixes": prefixes,
	}
}

// SetData updates the configuration from the provided data.
func (s *InjectionSection) SetData(data map[string]any) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, value := range data {
		switch key {
		case "capability":
			v, ok := value.(string)
			if !ok {
				return fmt.Errorf("invalid value type for capability: expected string, got %T", value)
			}
			s.Capability = v

		case "ignore_target_errors":
			v, ok := value.(bool)
			if !ok {
				return fmt.Errorf("invalid value type for ignore_target_errors: expected bool, got %T", value)
			}
			s.IgnoreTargetErrors = v

		case "extension_root":
			v, ok := value.(string)
			if !ok {
				return fmt.Errorf("invalid value type for extension_root: expected string, got %T", value)
			}
			s.ExtensionRoot = v

		case "extra_blocked_prefixes":
			prefixes, err := toStrings(value)
			if err != nil {
				return fmt.Errorf("invalid value for extra_blocked_prefixes: %w", err)
			}
			s.ExtraBlockedPrefixes = prefixes

		default:
			// Ignore unknown keys for forward compatibility
			continue
		}
	}
	return nil
}

// Validate validates the current configuration.
func (s *InjectionSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := inject.ParseCapability(s.Capability); err != nil {
		return err
	}
	for _, p := range s.ExtraBlockedPrefixes {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("extra_blocked_prefixes must not contain empty entries")
		}
	}
	return nil
}

// Reset resets the section to default configuration.
func (s *InjectionSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Capability = defaultCapability
	s.IgnoreTargetErrors = defaultIgnoreTargetErrors
	s.ExtensionRoot = ""
	s.ExtraBlockedPrefixes = nil
}

// InjectorCapability returns the configured capability. Invalid values fall
// back to probing.
func (s *InjectionSection) InjectorCapability() inject.Capability {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := inject.ParseCapability(s.Capability)
	if err != nil {
		return inject.CapabilityAuto
	}
	return c
}

// Options returns the injection options implied by the section.
func (s *InjectionSection) Options() inject.Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return inject.Options{IgnoreTargetErrors: s.IgnoreTargetErrors}
}

func toStrings(value any) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return append([]string(nil), v...), nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string entries, got %T", item)
			}
			out = append(out, str)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected list of strings, got %T", value)
	}
}
