// Package main is the entry point of feedwatch.
//
// feedwatch follows a JSON file, projects the array it contains as a list
// feed and prints every granular change of the list until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/term"

	"github.com/dshills/feedcore/internal/collection/bindable"
	"github.com/dshills/feedcore/internal/config"
	"github.com/dshills/feedcore/internal/dispatch"
	"github.com/dshills/feedcore/internal/feed"
	"github.com/dshills/feedcore/internal/feed/watch"
	"github.com/dshills/feedcore/internal/logging"
	"github.com/dshills/feedcore/internal/metrics"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

type options struct {
	ConfigPath  string
	File        string
	Path        string
	Key         string
	Fold        bool
	LogLevel    string
	MetricsAddr string
}

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	if opts.MetricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = opts.MetricsAddr
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	log := logging.New(logging.Config{
		Level:  cfg.LogLevel(),
		Output: os.Stderr,
		Prefix: "feedwatch",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m, shutdownMetrics, err := startMetrics(cfg.Metrics, log)
	if err != nil {
		log.Error("starting metrics: %v", err)
		return 1
	}
	defer shutdownMetrics()

	sc := feed.NewSourceContext(ctx,
		feed.WithLogger(log),
		feed.WithMetrics(m),
		feed.WithTransientYieldTurns(cfg.Engine.TransientYieldTurns),
		feed.WithResetThreshold(cfg.Engine.ResetThreshold),
		feed.WithMaxDiffItems(cfg.Engine.MaxDiffItems),
	)
	defer sc.Dispose()

	extract := extractor{Path: opts.Path, Key: opts.Key, Fold: opts.Fold}
	watchOpts := watch.Options{Debounce: cfg.Watch.Debounce.Std()}
	source := feed.List(func(exec *feed.Execution) ([]string, error) {
		if err := watch.FilesWithOptions(exec, watchOpts, opts.File); err != nil {
			return nil, err
		}
		items, err := extract.read(opts.File)
		if err != nil {
			log.Warn("%v", err)
		}
		return items, err
	}, extract.comparer())

	collection, err := bindable.New(sc, source)
	if err != nil {
		log.Error("following %s: %v", opts.File, err)
		return 1
	}
	defer collection.Close()

	queue := dispatch.NewQueue(
		dispatch.WithQueueSize(cfg.Dispatcher.QueueSize),
		dispatch.WithName("printer"),
		dispatch.WithPanicHandler(func(r any, stack []byte) {
			log.Error("printer panicked: %v\n%s", r, stack)
		}),
	)
	if err := queue.Start(); err != nil {
		log.Error("starting printer: %v", err)
		return 1
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := queue.Stop(stopCtx); err != nil {
			log.Warn("stopping printer: %v", err)
		}
	}()

	p := newPrinter(os.Stdout, term.IsTerminal(int(os.Stdout.Fd())))
	unsubscribe, err := p.follow(ctx, queue, collection.View(queue))
	if err != nil {
		log.Error("listing %s: %v", opts.File, err)
		return 1
	}
	defer unsubscribe()

	log.Info("watching %s", opts.File)
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case <-collection.Done():
		if err := collection.Err(); err != nil {
			log.Error("%v", err)
			return 1
		}
	}
	return 0
}

// startMetrics creates the metrics engine and serves it on cfg.Addr. It
// returns a nil engine when metrics are disabled.
func startMetrics(cfg config.MetricsConfig, log *logging.Logger) (*metrics.Engine, func(), error) {
	if !cfg.Enabled {
		return nil, func() {}, nil
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m, err := metrics.New(cfg.Namespace, reg)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Addr == "" {
		return m, func() {}, nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server: %v", err)
		}
	}()
	log.Info("serving metrics on %s", cfg.Addr)

	return m, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func parseFlags() options {
	var opts options
	var showVersion bool

	flag.StringVar(&opts.ConfigPath, "config", "", "Path to configuration file (TOML or YAML)")
	flag.StringVar(&opts.File, "file", "", "JSON file to watch (required)")
	flag.StringVar(&opts.Path, "path", "@this", "gjson path of the array inside the file")
	flag.StringVar(&opts.Key, "key", "", "gjson path of the identity of each element (default: whole element)")
	flag.BoolVar(&opts.Fold, "fold", false, "Identify string elements case-insensitively")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&opts.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "feedwatch - print the granular changes of a JSON list\n\n")
		fmt.Fprintf(os.Stderr, "Usage: feedwatch -file items.json [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  feedwatch -file todo.json -path items -key id\n")
		fmt.Fprintf(os.Stderr, "  feedwatch -file tags.json -fold\n")
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("feedwatch %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	if opts.File == "" {
		fmt.Fprintf(os.Stderr, "Error: -file is required\n\n")
		flag.Usage()
		os.Exit(2)
	}
	if opts.Fold && opts.Key != "" {
		fmt.Fprintf(os.Stderr, "Error: -fold and -key are mutually exclusive\n")
		os.Exit(2)
	}

	return opts
}
