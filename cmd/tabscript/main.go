// Package main provides the tabscript command. It starts a browser backend,
// opens tabs, injects an extension's content scripts into the tabs they
// match, and runs ad-hoc stylesheets, scripts and functions in a tab.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	appconfig "github.com/entrhq/tabscript/pkg/config"
	"github.com/entrhq/tabscript/pkg/inject"
	"github.com/entrhq/tabscript/pkg/logging"
)

const version = "0.1.0"

// Config holds the command line configuration. Unset values fall back to
// the configuration file.
type Config struct {
	ConfigPath  string
	Backend     string
	Capability  string
	Extension   string
	Manifest    string
	Open        []string
	CSS         []string
	JS          []string
	Func        string
	Args        string
	Tab         int
	Frame       int
	AllFrames   bool
	Headful     bool
	MetricsFile string
	ShowVersion bool
}

func main() {
	config, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		os.Exit(2)
	}

	if config.ShowVersion {
		fmt.Printf("tabscript v%s\n", version)
		return
	}

	if err := config.validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// Create context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nShutting down...")
		cancel()
	}()

	logger, logErr := logging.NewLogger("tabscript")
	if logErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging to stderr: %v\n", logErr)
	}
	defer logger.Close()

	if runErr := run(ctx, config, logger, os.Stdout); runErr != nil {
		cancel()
		logger.Errorf("run failed: %v", runErr)
		log.Fatalf("Application error: %v", runErr)
	}
	cancel()
}

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// parseFlags parses command line flags
func parseFlags(args []string, stderr io.Writer) (*Config, error) {
	config := &Config{}
	fs := flag.NewFlagSet("tabscript", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&config.ConfigPath, "config", "", "Configuration file (default: ~/.tabscript/config.json)")
	fs.StringVar(&config.Backend, "backend", "", "Browser backend: playwright, rod or vm")
	fs.StringVar(&config.Capability, "capability", "", "Injection capability: auto, scripting or tabs")
	fs.StringVar(&config.Extension, "extension", "", "Extension root that file paths are relative to")
	fs.StringVar(&config.Manifest, "manifest", "", "Manifest whose content_scripts are injected into matching tabs")
	fs.Var((*stringList)(&config.Open), "open", "URL to open in a new tab (repeatable)")
	fs.Var((*stringList)(&config.CSS), "css", "Stylesheet file to insert into the target tab (repeatable)")
	fs.Var((*stringList)(&config.JS), "js", "Script file to run in the target tab (repeatable)")
	fs.StringVar(&config.Func, "func", "", "Function source to run in the target frame")
	fs.StringVar(&config.Args, "args", "", "JSON array of arguments for -func")
	fs.IntVar(&config.Tab, "tab", 0, "Target tab id (default: the first tab opened with -open)")
	fs.IntVar(&config.Frame, "frame", 0, "Target frame id")
	fs.BoolVar(&config.AllFrames, "all-frames", false, "Inject -css and -js into every frame of the target tab")
	fs.BoolVar(&config.Headful, "headful", false, "Show the browser window")
	fs.StringVar(&config.MetricsFile, "metrics-file", "", "Write injection metrics in Prometheus text format to this file")
	fs.BoolVar(&config.ShowVersion, "version", false, "Show version and exit")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "tabscript - inject content scripts into browser tabs\n\n")
		fmt.Fprintf(stderr, "Usage: tabscript [options]\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  tabscript -open https://example.com/ -manifest ext/manifest.yaml\n")
		fmt.Fprintf(stderr, "  tabscript -backend rod -tab 3 -js content.js -extension ./ext\n")
		fmt.Fprintf(stderr, "  tabscript -open https://example.com/ -func 'function (s) { return document.querySelectorAll(s).length; }' -args '[\"a\"]'\n")
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return config, nil
}

// validate checks that the configuration is valid
func (c *Config) validate() error {
	if c.ShowVersion {
		return nil
	}
	if c.Capability != "" {
		if _, err := inject.ParseCapability(c.Capability); err != nil {
			return err
		}
	}
	switch c.Backend {
	case "", appconfig.BackendPlaywright, appconfig.BackendRod, appconfig.BackendVM:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.Args != "" {
		var args []any
		if err := json.Unmarshal([]byte(c.Args), &args); err != nil {
			return fmt.Errorf("-args must be a JSON array: %w", err)
		}
	}
	if c.Frame < 0 || c.Tab < 0 {
		return fmt.Errorf("tab and frame ids must not be negative")
	}
	if c.AllFrames && c.Frame != 0 {
		return fmt.Errorf("-all-frames cannot be combined with -frame")
	}
	if len(c.Open) == 0 && c.Manifest == "" && c.Func == "" && len(c.CSS) == 0 && len(c.JS) == 0 {
		return fmt.Errorf("nothing to do: use -open, -manifest, -css, -js or -func")
	}
	if (c.Func != "" || len(c.CSS) > 0 || len(c.JS) > 0) && c.Tab == 0 && len(c.Open) == 0 {
		return fmt.Errorf("-func, -css and -js need a target: use -tab or -open")
	}
	return nil
}
