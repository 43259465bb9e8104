package inject

import (
	"fmt"
)

// Logger is the logging surface the injector needs. *logging.Logger satisfies it.
type Logger interface {
	Debugf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}

// Kind labels an injection for observers.
type Kind string

const (
	KindCSS      Kind = "css"
	KindScript   Kind = "script"
	KindFunction Kind = "function"
)

// Observer is notified once per host call.
type Observer interface {
	// Injected reports the outcome of one host call. err is the raw host error.
	Injected(kind Kind, capability Capability, err error)
	// TargetLostIgnored reports a target loss swallowed by IgnoreTargetErrors.
	TargetLostIgnored(kind Kind, capability Capability)
}

type nopObserver struct{}

func (nopObserver) Injected(Kind, Capability, error)   {}
func (nopObserver) TargetLostIgnored(Kind, Capability) {}

// Options tune one injection call.
type Options struct {
	// IgnoreTargetErrors swallows failures caused by the tab or frame
	// disappearing during the injection.
	IgnoreTargetErrors bool `json:"ignoreTargetErrors,omitempty" yaml:"ignoreTargetErrors,omitempty"`
}

// Option configures an Injector.
type Option func(*Injector)

// WithCapability forces a capability instead of probing the host.
func WithCapability(c Capability) Option {
	return func(i *Injector) { i.capability = c }
}

// WithLogger sets the logger used for observability notes such as dropped
// duplicate files.
func WithLogger(l Logger) Option {
	return func(i *Injector) {
		if l != nil {
			i.logger = l
		}
	}
}

// WithObserver registers an observer for host calls.
func WithObserver(o Observer) Option {
	return func(i *Injector) {
		if o != nil {
			i.observer = o
		}
	}
}

// WithTabQuerier sets the tab query capability when the host value itself
// does not provide one.
func WithTabQuerier(q TabQuerier) Option {
	return func(i *Injector) { i.tabs = q }
}

// Injector injects stylesheets and scripts through one host capability. It is
// safe for concurrent use. On the tabs capability, script calls for one tab
// are queued across all calls on the same Injector.
type Injector struct {
	capability Capability
	strategy   strategy
	tabs       TabQuerier
	logger     Logger
	observer   Observer
}

// New builds an Injector for host. Unless WithCapability forces one, the
// capability is probed once here with Detect.
func New(host any, opts ...Option) (*Injector, error) {
	i := &Injector{
		logger:   nopLogger{},
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(i)
	}

	if i.capability == CapabilityAuto {
		c, err := Detect(host)
		if err != nil {
			return nil, err
		}
		i.capability = c
	}

	switch i.capability {
	case CapabilityScripting:
		api, ok := host.(ScriptingAPI)
		if !ok {
			return nil, fmt.Errorf("%w: host %T does not provide the scripting capability", ErrUnsupportedOperation, host)
		}
		i.strategy = &scriptingStrategy{host: api}
	case CapabilityTabs:
		api, ok := host.(TabsAPI)
		if !ok {
			return nil, fmt.Errorf("%w: host %T does not provide the tabs capability", ErrUnsupportedOperation, host)
		}
		i.strategy = newTabsStrategy(api)
	default:
		return nil, fmt.Errorf("%w: unknown capability %d", ErrValidation, int(i.capability))
	}

	if i.tabs == nil {
		if q, ok := host.(TabQuerier); ok {
			i.tabs = q
		}
	}
	return i, nil
}

// Capability returns the capability chosen when the injector was built.
func (i *Injector) Capability() Capability {
	return i.capability
}

// settle records the outcome of one host call and applies IgnoreTargetErrors.
func (i *Injector) settle(kind Kind, err error, opts Options) error {
	i.observer.Injected(kind, i.capability, err)
	if err != nil && opts.IgnoreTargetErrors && IsTargetLost(err) {
		i.observer.TargetLostIgnored(kind, i.capability)
		i.logger.Debugf("ignoring lost target during %s injection: %v", kind, err)
		return nil
	}
	return err
}

func (i *Injector) logDropped(target AllFramesTarget, dropped []string) {
	for _, path := range dropped {
		i.logger.Debugf("skipping duplicate file %s for %s", path, target)
	}
}
