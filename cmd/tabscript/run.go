package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	appconfig "github.com/entrhq/tabscript/pkg/config"
	"github.com/entrhq/tabscript/pkg/inject"
	"github.com/entrhq/tabscript/pkg/logging"
	"github.com/entrhq/tabscript/pkg/manifest"
	"github.com/entrhq/tabscript/pkg/metrics"
	"github.com/entrhq/tabscript/pkg/scriptable"
	"github.com/entrhq/tabscript/pkg/security/assets"
)

// output is printed as JSON when run succeeds.
type output struct {
	Capability string           `json:"capability"`
	Opened     []int            `json:"opened,omitempty"`
	Manifest   *manifest.Report `json:"manifest,omitempty"`
	Result     any              `json:"result,omitempty"`
}

// run executes the main application logic
func run(ctx context.Context, config *Config, logger *logging.Logger, stdout io.Writer) error {
	if err := appconfig.Initialize(config.ConfigPath); err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}
	injection := appconfig.GetInjection()
	backendName, headless, debuggerURL, timeout := appconfig.GetBrowser().Settings()

	// Command line flags override the configuration file
	if config.Backend != "" {
		backendName = config.Backend
	}
	if config.Headful {
		headless = false
	}
	capability := injection.InjectorCapability()
	if config.Capability != "" {
		c, err := inject.ParseCapability(config.Capability)
		if err != nil {
			return err
		}
		capability = c
	}

	root := config.Extension
	if root == "" {
		root = injection.ExtensionRoot
	}
	if root == "" && config.Manifest != "" {
		root = filepath.Dir(config.Manifest)
	}
	var files fs.FS
	var guard *assets.Guard
	if root != "" {
		g, err := assets.NewGuard(root)
		if err != nil {
			return fmt.Errorf("failed to open extension root: %w", err)
		}
		guard, files = g, g
	}

	b, err := startBackend(ctx, backendSettings{
		name:        backendName,
		headless:    headless,
		debuggerURL: debuggerURL,
		timeout:     timeout,
		assets:      files,
		logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("failed to start %s backend: %w", backendName, err)
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Warnf("closing backend: %v", err)
		}
	}()

	registry := prometheus.NewRegistry()
	injector, err := inject.New(b.host(capability),
		inject.WithCapability(capability),
		inject.WithLogger(logger),
		inject.WithObserver(metrics.New(registry)),
	)
	if err != nil {
		return err
	}
	logger.Infof("using %s backend with the %s capability", backendName, injector.Capability())

	out := output{Capability: injector.Capability().String()}
	for _, url := range config.Open {
		id, err := b.OpenTab(ctx, url)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", url, err)
		}
		out.Opened = append(out.Opened, id)
	}

	if config.Manifest != "" {
		report, err := applyManifest(ctx, injector, guard, config.Manifest,
			scriptable.NewChecker(injection.ExtraBlockedPrefixes...), logger)
		if err != nil {
			return err
		}
		out.Manifest = &report
	}

	tabID := config.Tab
	if tabID == 0 && len(out.Opened) > 0 {
		tabID = out.Opened[0]
	}
	bundle := inject.InjectionBundle{TabID: tabID, AllFrames: config.AllFrames}
	if !config.AllFrames {
		frame := config.Frame
		bundle.FrameID = &frame
	}
	opts := injection.Options()

	if len(config.CSS) > 0 {
		bundle.Files = inject.Files(config.CSS...)
		if err := injector.InsertCSS(ctx, bundle, opts); err != nil {
			return err
		}
	}
	if len(config.JS) > 0 {
		bundle.Files = inject.Files(config.JS...)
		if err := injector.ExecuteScript(ctx, bundle, opts); err != nil {
			return err
		}
	}

	if config.Func != "" {
		var args []any
		if config.Args != "" {
			if err := json.Unmarshal([]byte(config.Args), &args); err != nil {
				return fmt.Errorf("-args must be a JSON array: %w", err)
			}
		}
		out.Result, err = injector.ExecuteFunction(ctx,
			inject.Target{TabID: tabID, FrameID: config.Frame}, inject.Function(config.Func), args...)
		if err != nil {
			return err
		}
	}

	if config.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(config.MetricsFile, registry); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}

	encoder := json.NewEncoder(stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func applyManifest(ctx context.Context, injector *inject.Injector, guard *assets.Guard, path string, checker *scriptable.Checker, logger *logging.Logger) (manifest.Report, error) {
	m, err := manifest.Load(path)
	if err != nil {
		return manifest.Report{}, err
	}
	if guard != nil {
		if m, err = m.Expand(guard); err != nil {
			return manifest.Report{}, err
		}
	}
	report, err := manifest.NewApplier(injector, manifest.WithChecker(checker), manifest.WithLogger(logger)).Apply(ctx, m)
	if err != nil {
		return report, fmt.Errorf("failed to apply manifest: %w", err)
	}
	logger.Infof("manifest injected into %d tabs, skipped %d", len(report.Injected), len(report.Skipped))
	return report, nil
}
