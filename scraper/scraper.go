// Package scraper contains the orchestration core: the pagination
// state machine, the error taxonomy, the rate scheduler, and the page
// navigator.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mferrazlima/go-scrape-reviews/browser"
	"github.com/mferrazlima/go-scrape-reviews/config"
	"github.com/mferrazlima/go-scrape-reviews/extractor"
	"github.com/mferrazlima/go-scrape-reviews/models"
	"github.com/mferrazlima/go-scrape-reviews/normalize"
	"github.com/mferrazlima/go-scrape-reviews/pipeline"
)

// state is one node of the run's state machine. Every page moves
// through the full chain; any state can fall to stateAborted.
type state int

const (
	stateNavigating state = iota
	stateSettling
	stateExtracting
	stateDeduping
	stateCheckpointing
	stateAdvanceCheck
	stateDelaying
	stateDone
	stateAborted
)

// Orchestrator owns the run: the accumulator, the identity set, and
// the single page handle. Collaborators receive these by reference
// for the duration of one call only.
type Orchestrator struct {
	cfg       *config.Config
	page      browser.Page
	navigator *Navigator
	extractor *extractor.Extractor
	scheduler *RateScheduler
	exporter  *pipeline.Exporter
	preflight *Preflight
	Metrics   *Metrics

	seen           map[models.IdentityKey]struct{}
	records        []*models.Review
	warnings       []string
	errorsByType   map[string]int
	skippedRecords int
	duplicateCount int
	pagesProcessed int

	now func() time.Time
}

// NewOrchestrator builds the run pipeline over one page handle.
func NewOrchestrator(cfg *config.Config, page browser.Page) (*Orchestrator, error) {
	ext, err := extractor.New()
	if err != nil {
		return nil, fmt.Errorf("build extractor: %w", err)
	}

	metrics := NewMetrics()
	return &Orchestrator{
		cfg:          cfg,
		page:         page,
		navigator:    NewNavigator(page, cfg),
		extractor:    ext,
		scheduler:    NewRateScheduler(metrics),
		exporter:     pipeline.NewExporter(cfg.OutputFile, cfg.OutputFormat),
		preflight:    NewPreflight(cfg.Timeout, cfg.UserAgent),
		Metrics:      metrics,
		seen:         make(map[models.IdentityKey]struct{}),
		errorsByType: make(map[string]int),
		now:          time.Now,
	}, nil
}

// Run walks the state machine until Done or Aborted. Both paths export
// whatever accumulated; Aborted additionally returns the originating
// error after the export attempt.
func (o *Orchestrator) Run(ctx context.Context) (*models.ScrapeResult, error) {
	start := o.now()
	pagination := models.PaginationState{CurrentPage: 1, HasMore: true}
	policy := BackoffPolicy{
		MaxRetries: o.cfg.MaxRetries,
		BaseDelay:  o.cfg.RetryBackoff,
		MaxDelay:   o.cfg.RetryBackoffMax,
	}

	var fatal error
	var pageRecords []*models.Review
	pageStart := o.now()
	current := stateNavigating

	if o.preflight != nil {
		if err := o.scheduler.RetryWithBackoff(func() error {
			return o.preflight.Check(ctx, o.cfg.TargetURL)
		}, policy); err != nil {
			o.recordError(err)
			fatal = err
			current = stateAborted
		}
	}

loop:
	for {
		switch current {
		case stateNavigating:
			pageStart = o.now()
			if pagination.CurrentPage == 1 {
				err := o.scheduler.RetryWithBackoff(func() error {
					o.scheduler.Delay(o.cfg.Delay)
					if !o.navigator.Navigate(ctx, o.cfg.TargetURL) {
						return ErrConnection{Err: fmt.Errorf("navigate %s", o.cfg.TargetURL)}
					}
					return nil
				}, policy)
				if err != nil {
					o.recordError(err)
					fatal = fmt.Errorf("reach seed url: %w", err)
					current = stateAborted
					continue
				}
			}
			current = stateSettling

		case stateSettling:
			o.navigator.Settle(ctx)
			current = stateExtracting

		case stateExtracting:
			raws, err := o.extractPage(ctx, pagination.CurrentPage)
			if err != nil {
				o.recordError(err)
				// Abort only when nothing has been collected yet and
				// the cause is structural. A transient failure, even
				// on the first page, stops pagination gracefully.
				if len(o.records) == 0 && Classify(err) != SeverityTransient {
					fatal = fmt.Errorf("extract page %d: %w", pagination.CurrentPage, err)
					current = stateAborted
					continue
				}
				o.warn(fmt.Sprintf("page %d: extraction failed, stopping with partial data: %v",
					pagination.CurrentPage, err))
				pagination.HasMore = false
				pageRecords = nil
				current = stateAdvanceCheck
				continue
			}
			if len(raws) == 0 {
				slog.Warn("no review containers on page",
					slog.Int("page", pagination.CurrentPage),
				)
				o.warn(fmt.Sprintf("page %d: no review containers found", pagination.CurrentPage))
				pagination.HasMore = false
			}
			pageRecords = o.normalizePage(raws, pagination.CurrentPage)
			current = stateDeduping

		case stateDeduping:
			kept := 0
			for _, record := range pageRecords {
				key := record.Key()
				if _, dup := o.seen[key]; dup {
					o.duplicateCount++
					o.Metrics.IncDuplicate()
					continue
				}
				// Mark before insert so a re-extracted page cannot
				// double-append.
				o.seen[key] = struct{}{}
				o.records = append(o.records, record)
				o.Metrics.IncKept()
				kept++
			}
			slog.Info("page processed",
				slog.Int("page", pagination.CurrentPage),
				slog.Int("extracted", len(pageRecords)),
				slog.Int("kept", kept),
				slog.Int("total", len(o.records)),
			)
			pageRecords = nil
			current = stateCheckpointing

		case stateCheckpointing:
			o.pagesProcessed++
			o.Metrics.IncPage()
			o.Metrics.ObservePageDuration(o.now().Sub(pageStart))
			if o.pagesProcessed%o.cfg.CheckpointEvery == 0 {
				path, err := o.exporter.WriteCheckpoint(o.records, o.pagesProcessed)
				if err != nil {
					slog.Error("checkpoint failed",
						slog.Int("pages", o.pagesProcessed),
						slog.Any("error", err),
					)
					o.warn(fmt.Sprintf("checkpoint at page %d failed: %v", o.pagesProcessed, err))
				} else {
					slog.Info("checkpoint written",
						slog.Int("pages", o.pagesProcessed),
						slog.String("path", path),
					)
				}
			}
			current = stateAdvanceCheck

		case stateAdvanceCheck:
			if pagination.CurrentPage >= o.cfg.MaxPages {
				slog.Info("page cap reached", slog.Int("pages", pagination.CurrentPage))
				current = stateDone
				continue
			}
			if !pagination.HasMore || !o.navigator.HasNextPage(ctx) {
				slog.Info("no further pages", slog.Int("pages", pagination.CurrentPage))
				current = stateDone
				continue
			}
			current = stateDelaying

		case stateDelaying:
			o.scheduler.Delay(o.cfg.Delay)
			result := o.navigator.Advance(ctx)
			if !result.Success {
				// A failed advance stops pagination with the data
				// gathered so far rather than aborting the run.
				slog.Warn("pagination advance failed",
					slog.Int("page", pagination.CurrentPage),
					slog.Any("error", result.Err),
				)
				o.warn(fmt.Sprintf("advance from page %d failed: %v", pagination.CurrentPage, result.Err))
				current = stateDone
				continue
			}
			pagination.CurrentPage++
			pagination.HasMore = result.HasNext
			current = stateNavigating

		case stateDone, stateAborted:
			break loop
		}
	}

	result := &models.ScrapeResult{
		Reviews:        o.records,
		PagesProcessed: o.pagesProcessed,
		Warnings:       o.warnings,
		StartTime:      start,
		EndTime:        o.now(),
		RetryCount:     o.scheduler.TotalRetries(),
		ErrorsByType:   o.snapshotErrors(),
		SkippedRecords: o.skippedRecords,
		DuplicateCount: o.duplicateCount,
	}

	path, exportErr := o.exporter.Export(o.records)
	if exportErr != nil {
		slog.Error("export failed", slog.Any("error", exportErr))
		if fatal == nil {
			fatal = fmt.Errorf("export results: %w", exportErr)
		}
	} else {
		slog.Info("results exported",
			slog.String("path", path),
			slog.Int("records", len(o.records)),
		)
	}

	if fatal != nil {
		return result, fatal
	}
	return result, nil
}

// extractPage snapshots the rendered document and runs the extractor.
// Per-record failures are counted and logged here; only structural
// failures propagate.
func (o *Orchestrator) extractPage(ctx context.Context, page int) ([]models.RawReview, error) {
	html, err := o.page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot page html: %w", err)
	}

	raws, skipped, err := o.extractor.ExtractAll(html)
	if err != nil {
		return nil, err
	}
	for _, skip := range skipped {
		o.skippedRecords++
		slog.Warn("skipping record",
			slog.Int("page", page),
			slog.Any("error", skip),
		)
		o.warn(fmt.Sprintf("page %d: %v", page, skip))
	}
	for range raws {
		o.Metrics.IncExtracted()
	}
	return raws, nil
}

// normalizePage turns raw records into canonical ones, dropping any
// that fail validation.
func (o *Orchestrator) normalizePage(raws []models.RawReview, page int) []*models.Review {
	records := make([]*models.Review, 0, len(raws))
	now := o.now()
	for i := range raws {
		if err := normalize.Validate(&raws[i]); err != nil {
			o.skippedRecords++
			o.warn(fmt.Sprintf("page %d: %v", page, err))
			continue
		}
		records = append(records, normalize.Review(&raws[i], page, now))
	}
	return records
}

func (o *Orchestrator) recordError(err error) {
	label := errorTypeLabel(err)
	o.errorsByType[label]++
	o.Metrics.IncError(label)
}

func (o *Orchestrator) warn(message string) {
	o.warnings = append(o.warnings, message)
}

func (o *Orchestrator) snapshotErrors() map[string]int {
	out := make(map[string]int, len(o.errorsByType))
	for k, v := range o.errorsByType {
		out[k] = v
	}
	return out
}
