package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/veritaslab/tribunal/internal/adapters/judge"
	"github.com/veritaslab/tribunal/internal/adapters/limiter"
	service "github.com/veritaslab/tribunal/internal/app"
	"github.com/veritaslab/tribunal/internal/config"
	"github.com/veritaslab/tribunal/internal/domain/anchors"
	"github.com/veritaslab/tribunal/internal/domain/model"
	"github.com/veritaslab/tribunal/pkg/logger"
	"github.com/veritaslab/tribunal/pkg/metrics"
)

const (
	readHeaderTimeout = 5 * time.Second
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(); err != nil {
		logger.Get().Error(context.Background(), "run failed", logger.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run() error {
	log := logger.Get()

	outPath := flag.String("out", "", "write per-item results as CSV to this path")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-out results.csv] <items.csv|items.jsonl>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		return errors.New("exactly one input file is required")
	}
	inputPath := flag.Arg(0)

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel))
		_ = logger.SetLevelString("info")
	}

	if cfg.MetricsAddr != "" {
		startMetricsServer(ctx, log, cfg.MetricsAddr)
	}

	panel, err := buildPanel(ctx, log, cfg)
	if err != nil {
		return err
	}

	svc := service.New(
		service.WithLogger(log),
		service.WithPanel(panel),
		service.WithAnchorMatcher(anchors.New(anchors.WithLexiconFile(cfg.LexiconPath))),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithChunkSize(cfg.ChunkSize),
		service.WithRubric(cfg.Rubric),
		service.WithManualMetrics(cfg.ManualMetrics),
	)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	items, err := service.LoadItems(inputPath)
	if err != nil {
		return fmt.Errorf("load items: %w", err)
	}
	log.Info(ctx, "items loaded",
		logger.String("path", inputPath),
		logger.Int("items", len(items)),
		logger.Int("judges", len(panel)))

	runID, summary, err := svc.Evaluate(ctx, items)
	if err != nil {
		return fmt.Errorf("run %s: %w", runID, err)
	}

	printSummary(runID, summary)

	if *outPath != "" {
		if err := exportResults(ctx, svc, runID, *outPath); err != nil {
			return err
		}
		log.Info(ctx, "results exported", logger.String("path", *outPath))
	}
	return nil
}

// buildPanel turns the configured roster into judge clients. Optional judges
// with missing credentials are skipped with a warning; required ones abort.
func buildPanel(ctx context.Context, log logger.Logger, cfg *config.Config) ([]judge.Client, error) {
	buckets := make([]limiter.RegistryOption, 0, len(cfg.Judges))
	gates := make([]limiter.GateOption, 0, len(cfg.Judges))
	for _, j := range cfg.Judges {
		key := limiter.Key(j.Provider, j.Model)
		if j.TPM > 0 {
			buckets = append(buckets, limiter.WithCapacity(key, j.TPM))
		}
		if j.MaxInFlight > 0 {
			gates = append(gates, limiter.WithGateLimit(key, j.MaxInFlight))
		}
	}
	bucketRegistry := limiter.NewRegistry(buckets...)
	gateRegistry := limiter.NewGateRegistry(gates...)
	policy := judge.NewPolicy(judge.WithMaxAttempts(cfg.MaxAttempts))
	timeout := time.Duration(cfg.RequestTimeoutMS) * time.Millisecond

	panel := make([]judge.Client, 0, len(cfg.Judges))
	for _, j := range cfg.Judges {
		client, err := judge.NewChat(judge.Spec{
			ID:        j.ID,
			Name:      j.Name,
			Provider:  j.Provider,
			Model:     j.Model,
			BaseURL:   j.BaseURL,
			APIKeyEnv: j.APIKeyEnv,
			Optional:  j.Optional,
		}, timeout,
			judge.WithPolicy(policy),
			judge.WithBuckets(bucketRegistry),
			judge.WithGates(gateRegistry),
			judge.WithTemperature(cfg.Temperature),
			judge.WithMaxOutputTokens(cfg.MaxOutputTokens),
			judge.WithStructuredOutput(cfg.StructuredOutput),
			judge.WithChatLogger(log),
		)
		if err != nil {
			if j.Optional {
				log.Warn(ctx, "skipping optional judge",
					logger.JudgeID(j.ID),
					logger.String("reason", err.Error()))
				continue
			}
			return nil, fmt.Errorf("judge %s: %w", j.ID, err)
		}
		panel = append(panel, client)
	}
	if len(panel) == 0 {
		return nil, errors.New("no judges available: check API key environment variables")
	}
	return panel, nil
}

// startMetricsServer exposes the Prometheus registry for the lifetime of the
// run. Errors are logged, never fatal.
func startMetricsServer(ctx context.Context, log logger.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	go func() {
		log.Info(ctx, "serving metrics", logger.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn(ctx, "metrics server failed", logger.String("error", err.Error()))
		}
	}()
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
}

func printSummary(runID string, s model.RunSummary) {
	fmt.Printf("run %s: %d items, %d judges, %.0f ms\n", runID, s.Items, len(s.Judges), s.ElapsedMS)

	keys := make([]string, 0, len(s.PassRate))
	for k := range s.PassRate {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  pass %-14s %.3f\n", k, s.PassRate[k])
	}

	fmt.Printf("  agreement rate       %.3f\n", s.AgreementRate)
	if s.GoldAccuracy != nil {
		fmt.Printf("  gold accuracy        %.3f\n", *s.GoldAccuracy)
	}
	if s.FleissKappa != nil {
		fmt.Printf("  fleiss kappa         %.3f\n", *s.FleissKappa)
	}
	pairs := make([]string, 0, len(s.CohenPairs))
	for k := range s.CohenPairs {
		pairs = append(pairs, k)
	}
	sort.Strings(pairs)
	for _, k := range pairs {
		fmt.Printf("  cohen kappa %s       %.3f\n", k, s.CohenPairs[k])
	}
	if s.DSDiffRate != nil {
		fmt.Printf("  dawid-skene diff     %.3f\n", *s.DSDiffRate)
	}
	fmt.Printf("  anchors              ambiguous=%d unambiguous=%d none=%d\n",
		s.Anchors.AmbiguousSeed, s.Anchors.UnambiguousSeed, s.Anchors.None)
}

func exportResults(ctx context.Context, svc *service.Service, runID, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := svc.ExportCSV(ctx, runID, f); err != nil {
		_ = f.Close()
		return fmt.Errorf("export run %s: %w", runID, err)
	}
	return f.Close()
}
