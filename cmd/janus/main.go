// Package main provides the Janus harness CLI: cross-implementation
// matrix validation and stress testing of datagram socket listeners.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jowharshamshiri/Janus/config"
	"github.com/jowharshamshiri/Janus/dgram"
	"github.com/jowharshamshiri/Janus/matrix"
	"github.com/jowharshamshiri/Janus/metric"
	"github.com/jowharshamshiri/Janus/outcome"
	"github.com/jowharshamshiri/Janus/process"
	"github.com/jowharshamshiri/Janus/registry"
	"github.com/jowharshamshiri/Janus/report"
	"github.com/jowharshamshiri/Janus/stress"
)

var (
	// Version information (set by build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	flags := parseCommandLineFlags()

	if handleVersionCommand(flags.showVersion) {
		return
	}

	logger := setupLogger(flags.verbose)

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		logger.Error("configuration load failed", "path", flags.configPath, "error", err)
		os.Exit(2)
	}
	reg, err := cfg.Registry()
	if err != nil {
		logger.Error("implementation registry invalid", "error", err)
		os.Exit(2)
	}

	if handleListCommand(flags.listImpls, reg) {
		return
	}

	os.Exit(run(logger, cfg, reg, flags))
}

// cliFlags holds parsed command-line flags
type cliFlags struct {
	configPath  string
	mode        string
	duration    time.Duration
	parallel    int
	workers     int
	reportDir   string
	metricsAddr string
	verbose     bool
	showVersion bool
	listImpls   bool
}

// parseCommandLineFlags parses and returns command-line flags
func parseCommandLineFlags() *cliFlags {
	flags := &cliFlags{}

	flag.StringVar(&flags.configPath, "config", "janus.json",
		"Implementation configuration file (JSON or YAML)")
	flag.StringVar(&flags.mode, "mode", "matrix",
		"Run mode: matrix, stress, both, or build")
	flag.DurationVar(&flags.duration, "duration", 30*time.Second,
		"Stress run duration per server")
	flag.IntVar(&flags.parallel, "parallel", 1,
		"Concurrent matrix pairs (pairs sharing a listener still serialize)")
	flag.IntVar(&flags.workers, "workers", 1,
		"Concurrent stress client workers (1 = sequential dispatch, 0 = use config value)")
	flag.StringVar(&flags.reportDir, "report-dir", "",
		"Write JSON and Markdown reports into this directory")
	flag.StringVar(&flags.metricsAddr, "metrics-addr", "",
		"Serve Prometheus metrics on this address (e.g. :9090)")
	flag.BoolVar(&flags.verbose, "verbose", false, "Enable verbose logging")
	flag.BoolVar(&flags.showVersion, "version", false, "Show version information")
	flag.BoolVar(&flags.listImpls, "list", false, "List configured implementations")

	if envConfig := os.Getenv("JANUS_CONFIG"); envConfig != "" {
		flags.configPath = envConfig
	}

	flag.Parse()
	return flags
}

// handleVersionCommand shows version information and returns true if version flag is set
func handleVersionCommand(showVersion bool) bool {
	if !showVersion {
		return false
	}

	fmt.Printf("Janus SOCK_DGRAM Test Harness\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Commit:  %s\n", commit)
	fmt.Printf("Date:    %s\n", date)
	return true
}

// handleListCommand shows configured implementations and returns true if list flag is set
func handleListCommand(listImpls bool, reg *registry.Registry) bool {
	if !listImpls {
		return false
	}

	fmt.Println("Configured implementations:")
	for _, desc := range reg.All() {
		sender := "in-harness client"
		if desc.HasSender() {
			sender = "external sender"
		}
		build := ""
		if desc.HasBuildStep() {
			build = ", build step"
		}
		fmt.Printf("  %-16s %s (%s%s)\n", desc.Name, desc.Language, sender, build)
	}
	return true
}

// setupLogger creates and configures the logger
func setupLogger(verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, opts))
	slog.SetDefault(logger)
	return logger
}

// setupSignalHandling cancels the context and tears down tracked
// processes on interrupt.
func setupSignalHandling(logger *slog.Logger, tracker *process.Tracker) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Received interrupt signal, shutting down...")
		cancel()
		tracker.CleanupAll()
	}()

	return ctx, cancel
}

// serveMetrics exposes the Prometheus endpoint when an address is
// configured. Metrics are observability only; a failed endpoint never
// fails the run.
func serveMetrics(logger *slog.Logger, addr string, registry *metric.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", registry.Handler())
	go func() {
		logger.Info("metrics endpoint listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Warn("metrics endpoint failed", "addr", addr, "error", err)
		}
	}()
}

func run(logger *slog.Logger, cfg *config.Config, reg *registry.Registry, flags *cliFlags) int {
	var metrics *metric.Metrics
	if flags.metricsAddr != "" {
		metricRegistry := metric.NewRegistry()
		metrics = metricRegistry.Metrics
		serveMetrics(logger, flags.metricsAddr, metricRegistry)
	}

	mgr := process.NewManager(process.ManagerConfig{
		ReadyTimeout: cfg.ReadyTimeout(),
		PollInterval: config.DefaultPollInterval,
		SettleDelay:  config.DefaultSettleDelay,
		StopGrace:    cfg.StopGrace(),
		BuildTimeout: cfg.BuildTimeout(),
		Logger:       logger,
		Metrics:      metrics,
	})
	tracker := process.NewTracker(mgr)
	defer tracker.CleanupAll()

	ctx, cancel := setupSignalHandling(logger, tracker)
	defer cancel()

	client, err := dgram.NewClient(cfg.SocketDir, dgram.WithLogger(logger))
	if err != nil {
		logger.Error("client setup failed", "error", err)
		return 2
	}

	collector := outcome.NewCollector()
	var stressStats []*stress.Statistics

	switch flags.mode {
	case "build":
		runBuild(ctx, logger, mgr, reg, collector)
	case "matrix":
		runMatrix(ctx, logger, cfg, mgr, tracker, client, reg, flags, collector)
	case "stress":
		stressStats = runStress(ctx, logger, cfg, mgr, tracker, client, reg, flags, collector, metrics)
	case "both":
		runMatrix(ctx, logger, cfg, mgr, tracker, client, reg, flags, collector)
		stressStats = runStress(ctx, logger, cfg, mgr, tracker, client, reg, flags, collector, metrics)
	default:
		logger.Error("unknown mode", "mode", flags.mode)
		return 2
	}

	rep := report.New(flags.mode, reg.Names(), collector, stressStats)
	if flags.reportDir != "" {
		jsonPath := filepath.Join(flags.reportDir, "janus_report.json")
		mdPath := filepath.Join(flags.reportDir, "janus_report.md")
		if err := rep.WriteJSON(jsonPath); err != nil {
			logger.Error("report write failed", "path", jsonPath, "error", err)
		}
		if err := rep.WriteMarkdown(mdPath); err != nil {
			logger.Error("report write failed", "path", mdPath, "error", err)
		}
		logger.Info("reports written", "dir", flags.reportDir)
	}

	if crashed := mgr.Monitor().Crashed(); len(crashed) > 0 {
		logger.Warn("listeners crashed during run", "implementations", crashed)
	}
	for name, status := range mgr.Monitor().Snapshot() {
		logger.Debug("listener final state",
			"implementation", name, "state", status.State, "message", status.Message)
	}

	logger.Info("run finished",
		"mode", flags.mode,
		"total", rep.Summary.Total,
		"passed", rep.Summary.Passed,
		"success", rep.Success())
	return rep.ExitCode()
}

// runBuild builds every implementation and records one outcome each.
func runBuild(ctx context.Context, logger *slog.Logger, mgr *process.Manager, reg *registry.Registry, collector *outcome.Collector) {
	for _, desc := range reg.All() {
		start := time.Now()
		o := outcome.Outcome{Name: "build: " + desc.Name, Listener: desc.Name}
		if !desc.HasBuildStep() {
			o.Status = outcome.StatusSkip
			o.Message = "no build step"
		} else if err := mgr.Build(ctx, desc); err != nil {
			o.Status = outcome.StatusError
			o.Message = err.Error()
		} else {
			o.Status = outcome.StatusPass
			logger.Info("build succeeded", "implementation", desc.Name,
				"duration", time.Since(start).Round(time.Millisecond))
		}
		o.Duration = time.Since(start)
		collector.Add(o)
	}
}

func runMatrix(ctx context.Context, logger *slog.Logger, cfg *config.Config, mgr *process.Manager, tracker *process.Tracker, client *dgram.Client, reg *registry.Registry, flags *cliFlags, collector *outcome.Collector) {
	runner := matrix.NewRunner(mgr, tracker, client, matrix.Config{
		RequestTimeout: cfg.RequestTimeout(),
		Parallel:       flags.parallel,
		Logger:         logger,
	})
	runner.Run(ctx, reg, collector)
}

// runStress stress-tests every implementation in the listener role and
// records one outcome per run alongside the detailed statistics.
func runStress(ctx context.Context, logger *slog.Logger, cfg *config.Config, mgr *process.Manager, tracker *process.Tracker, client *dgram.Client, reg *registry.Registry, flags *cliFlags, collector *outcome.Collector, metrics *metric.Metrics) []*stress.Statistics {
	workers := flags.workers
	if workers == 0 {
		workers = cfg.Workers
	}
	orchestrator := stress.NewOrchestrator(mgr, tracker, client, stress.Config{
		RequestTimeout:   cfg.RequestTimeout(),
		SuccessThreshold: cfg.SuccessThreshold,
		ProgressInterval: config.DefaultProgressInterval,
		Workers:          workers,
		Logger:           logger,
		Metrics:          metrics,
	})

	clients := reg.All()
	var results []*stress.Statistics
	for _, server := range reg.All() {
		if ctx.Err() != nil {
			break
		}
		stats := orchestrator.Run(ctx, server, clients, flags.duration)
		results = append(results, stats)

		o := outcome.Outcome{
			Name:     "stress: " + server.Name,
			Listener: server.Name,
			Duration: stats.Duration,
			Message:  stats.Message,
		}
		switch stats.Verdict {
		case stress.VerdictPass:
			o.Status = outcome.StatusPass
		case stress.VerdictError:
			o.Status = outcome.StatusError
		default:
			o.Status = outcome.StatusFail
			o.Message = fmt.Sprintf("success rate %.1f%% below threshold %.1f%%",
				stats.SuccessRate(), cfg.SuccessThreshold)
		}
		collector.Add(o)
	}
	return results
}
