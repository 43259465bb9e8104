package main

import (
	"context"
	"fmt"
	"io/fs"
	"time"

	appconfig "github.com/entrhq/tabscript/pkg/config"
	pwhost "github.com/entrhq/tabscript/pkg/host/playwright"
	rodhost "github.com/entrhq/tabscript/pkg/host/rod"
	"github.com/entrhq/tabscript/pkg/host/vm"
	"github.com/entrhq/tabscript/pkg/inject"
	"github.com/entrhq/tabscript/pkg/logging"
)

// backend is a running browser the injector can drive.
type backend interface {
	// host returns the value handed to inject.New for capability c.
	host(c inject.Capability) any
	OpenTab(ctx context.Context, url string) (int, error)
	Close() error
}

type backendSettings struct {
	name        string
	headless    bool
	debuggerURL string
	timeout     time.Duration
	assets      fs.FS
	logger      *logging.Logger
}

func startBackend(ctx context.Context, s backendSettings) (backend, error) {
	switch s.name {
	case appconfig.BackendPlaywright:
		h, err := pwhost.Launch(pwhost.Options{
			Headless:    s.headless,
			DebuggerURL: s.debuggerURL,
			Timeout:     s.timeout,
			Assets:      s.assets,
			Install:     true,
			Logger:      s.logger,
		})
		if err != nil {
			return nil, err
		}
		return playwrightBackend{h}, nil
	case appconfig.BackendRod:
		h, err := rodhost.Connect(ctx, rodhost.Options{
			DebuggerURL: s.debuggerURL,
			Headless:    s.headless,
			Timeout:     s.timeout,
			Assets:      s.assets,
			Logger:      s.logger,
		})
		if err != nil {
			return nil, err
		}
		return rodBackend{h}, nil
	case appconfig.BackendVM:
		opts := []vm.Option{vm.WithLogger(s.logger.Zap())}
		if s.assets != nil {
			opts = append(opts, vm.WithAssets(s.assets))
		}
		return vmBackend{browser: vm.New(opts...)}, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", s.name)
	}
}

type playwrightBackend struct{ *pwhost.Host }

func (b playwrightBackend) host(inject.Capability) any { return b.Host }

type rodBackend struct{ *rodhost.Host }

func (b rodBackend) host(inject.Capability) any { return b.Host }

// vmBackend offers both capabilities; auto picks scripting.
type vmBackend struct{ browser *vm.Browser }

func (b vmBackend) host(c inject.Capability) any {
	if c == inject.CapabilityTabs {
		return b.browser.Tabs()
	}
	return b.browser.Scripting()
}

func (b vmBackend) OpenTab(_ context.Context, url string) (int, error) {
	return b.browser.OpenTab(vm.Page{URL: url})
}

func (b vmBackend) Close() error { return nil }
