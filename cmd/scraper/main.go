package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mferrazlima/go-scrape-reviews/browser"
	"github.com/mferrazlima/go-scrape-reviews/config"
	"github.com/mferrazlima/go-scrape-reviews/models"
	"github.com/mferrazlima/go-scrape-reviews/scraper"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	exitFatal     = 1
	exitInterrupt = 130
	exitTerminate = 143
)

func main() {
	defaultCfg := config.DefaultConfig()
	urlDefault := defaultCfg.TargetURL
	if value, ok := config.EnvString("SCRAPER_URL"); ok {
		urlDefault = value
	}
	pagesDefault := defaultCfg.MaxPages
	if value, ok, err := config.EnvInt("SCRAPER_PAGES"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid SCRAPER_PAGES: %v\n", err)
		os.Exit(exitFatal)
	} else if ok {
		pagesDefault = value
	}
	outputDefault := defaultCfg.OutputFile
	if value, ok := config.EnvString("SCRAPER_OUTPUT"); ok {
		outputDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("SCRAPER_METRICS_ADDR"); ok {
		metricsDefault = value
	}

	targetURL := flag.String("url", urlDefault, "Review listing URL to scrape")
	maxPages := flag.Int("pages", pagesDefault, "Maximum pages to scrape")
	delayMs := flag.Int("delay", int(defaultCfg.Delay/time.Millisecond), "Minimum delay between page requests (milliseconds)")
	timeoutMs := flag.Int("timeout", int(defaultCfg.Timeout/time.Millisecond), "Page operation timeout (milliseconds)")
	maxRetries := flag.Int("max-retries", defaultCfg.MaxRetries, "Maximum retry attempts per operation")
	retryBackoffMs := flag.Int("retry-backoff", int(defaultCfg.RetryBackoff/time.Millisecond), "Initial retry backoff (milliseconds)")
	retryBackoffMaxMs := flag.Int("retry-backoff-max", int(defaultCfg.RetryBackoffMax/time.Millisecond), "Maximum retry backoff (milliseconds)")
	outputFile := flag.String("output", outputDefault, "Output file path")
	outputFormat := flag.String("format", defaultCfg.OutputFormat, "Output format: csv, json, or dual")
	headless := flag.Bool("headless", defaultCfg.Headless, "Run the browser headless")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	setLogLoggerLevel(level.Level())

	cfg := buildConfigFromFlags(*targetURL, *maxPages, *delayMs, *timeoutMs, *maxRetries, *retryBackoffMs, *retryBackoffMaxMs, *outputFile, *outputFormat, *headless, *verbose, *metricsAddr)
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(exitFatal)
	}

	slog.Info("starting scrape",
		slog.String("url", cfg.TargetURL),
		slog.Int("pages", cfg.MaxPages),
		slog.String("output", cfg.OutputFile),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Interrupts terminate immediately with the conventional exit
	// status; in-flight page waits are abandoned, not unwound.
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-signals
		slog.Warn("shutdown signal received", slog.String("signal", sig.String()))
		if sig == syscall.SIGTERM {
			os.Exit(exitTerminate)
		}
		os.Exit(exitInterrupt)
	}()

	page, err := browser.NewChrome(ctx, browser.Options{
		Headless:  cfg.Headless,
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.Timeout,
	})
	if err != nil {
		slog.Error("launching browser", slog.Any("error", scraper.ErrBrowserStart{Err: err}))
		os.Exit(exitFatal)
	}
	defer page.Close()

	o, err := scraper.NewOrchestrator(cfg, page)
	if err != nil {
		slog.Error("initialising scraper", slog.Any("error", err))
		os.Exit(exitFatal)
	}

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" && o.Metrics != nil {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(o.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	result, runErr := o.Run(ctx)

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	if result != nil {
		printSummary(result, cfg.OutputFile)
	}

	if runErr != nil {
		if scraper.IsAntiBot(runErr) {
			slog.Error("target is serving a bot challenge; partial results were exported",
				slog.Any("error", runErr))
		} else {
			slog.Error("scraping failed", slog.Any("error", runErr))
		}
		os.Exit(exitFatal)
	}
}

func buildConfigFromFlags(targetURL string, maxPages, delayMs, timeoutMs, maxRetries, retryBackoffMs, retryBackoffMaxMs int, outputFile, outputFormat string, headless, verbose bool, metricsAddr string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.TargetURL = targetURL
	cfg.MaxPages = maxPages
	cfg.Delay = time.Duration(delayMs) * time.Millisecond
	cfg.Timeout = time.Duration(timeoutMs) * time.Millisecond
	cfg.MaxRetries = maxRetries
	cfg.RetryBackoff = time.Duration(retryBackoffMs) * time.Millisecond
	cfg.RetryBackoffMax = time.Duration(retryBackoffMaxMs) * time.Millisecond
	cfg.OutputFile = outputFile
	cfg.OutputFormat = strings.ToLower(outputFormat)
	cfg.Headless = headless
	cfg.Verbose = verbose
	cfg.MetricsAddr = metricsAddr
	return cfg
}

func printSummary(result *models.ScrapeResult, outputFile string) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Scrape complete")

	duration := result.EndTime.Sub(result.StartTime)
	fmt.Printf("  Reviews:       %d\n", len(result.Reviews))
	fmt.Printf("  Pages:         %d\n", result.PagesProcessed)
	fmt.Printf("  Duplicates:    %d\n", result.DuplicateCount)
	fmt.Printf("  Skipped:       %d\n", result.SkippedRecords)
	fmt.Printf("  Retries:       %d\n", result.RetryCount)
	if len(result.ErrorsByType) > 0 {
		fmt.Printf("  Error types:   %v\n", result.ErrorsByType)
	}
	if len(result.Warnings) > 0 {
		fmt.Printf("  Warnings:      %d\n", len(result.Warnings))
	}
	fmt.Printf("  Duration:      %v\n", duration)
	fmt.Printf("  Output file:   %s\n", outputFile)
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
