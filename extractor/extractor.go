// Package extractor locates review containers in a rendered-page
// snapshot and pulls raw field values out of each, tolerating unstable
// markup through ordered selector-candidate fallback.
package extractor

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mferrazlima/go-scrape-reviews/models"
)

// minTextFallbackLen is the shortest paragraph accepted by the
// last-resort review-body scan.
const minTextFallbackLen = 20

const containerCacheKey = "container"

// Extractor pulls raw review records from page snapshots. It caches the
// last-successful selector per field and tries it before the candidate
// list; the fallback order is otherwise unchanged.
type Extractor struct {
	cache *lru.Cache[string, FieldStrategy]
}

// New builds an extractor with its selector cache.
func New() (*Extractor, error) {
	cache, err := lru.New[string, FieldStrategy](32)
	if err != nil {
		return nil, fmt.Errorf("selector cache: %w", err)
	}
	return &Extractor{cache: cache}, nil
}

// ExtractAll parses the snapshot and returns raw records in document
// order. The error slice carries per-record failures (those records are
// skipped, the rest of the page survives); the final error is
// structural and means the snapshot could not be parsed at all. Zero
// containers is not an error: the caller logs the absence and treats
// the page as empty.
func (e *Extractor) ExtractAll(html string) ([]models.RawReview, []error, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, nil, fmt.Errorf("parse snapshot: %w", err)
	}

	containers := e.findContainers(doc)
	if containers == nil || containers.Length() == 0 {
		return nil, nil, nil
	}

	records := make([]models.RawReview, 0, containers.Length())
	var skipped []error
	containers.Each(func(i int, s *goquery.Selection) {
		record, err := e.extractOne(s)
		if err != nil {
			skipped = append(skipped, fmt.Errorf("record %d: %w", i, err))
			return
		}
		records = append(records, record)
	})
	return records, skipped, nil
}

func (e *Extractor) findContainers(doc *goquery.Document) *goquery.Selection {
	if cached, ok := e.cache.Get(containerCacheKey); ok {
		if sel := doc.Find(cached.Selector); sel.Length() > 0 {
			return sel
		}
	}
	for _, candidate := range ContainerSelectors {
		if sel := doc.Find(candidate); sel.Length() > 0 {
			e.cache.Add(containerCacheKey, FieldStrategy{Selector: candidate})
			slog.Debug("container selector matched",
				slog.String("selector", candidate),
				slog.Int("count", sel.Length()),
			)
			return sel
		}
	}
	return nil
}

func (e *Extractor) extractOne(s *goquery.Selection) (models.RawReview, error) {
	record := models.RawReview{
		Rating:       e.field(s, "rating", ratingStrategies),
		Date:         e.field(s, "date", dateStrategies),
		ReviewerName: e.field(s, "reviewer", reviewerStrategies),
		Title:        e.field(s, "title", titleStrategies),
		Verified:     e.field(s, "verified", verifiedStrategies),
	}

	record.Text = e.field(s, "text", textStrategies)
	if record.Text == "" {
		// The review body is the field most likely to drift across
		// site versions; fall back to the longest paragraph block.
		record.Text = longestParagraph(s)
	}

	switch {
	case record.Rating == "":
		return models.RawReview{}, &MissingFieldError{Field: "rating"}
	case record.Text == "":
		return models.RawReview{}, &MissingFieldError{Field: "text"}
	case record.Date == "":
		return models.RawReview{}, &MissingFieldError{Field: "date"}
	case record.ReviewerName == "":
		return models.RawReview{}, &MissingFieldError{Field: "reviewerName"}
	}
	return record, nil
}

func (e *Extractor) field(s *goquery.Selection, name string, candidates []FieldStrategy) string {
	if cached, ok := e.cache.Get(name); ok {
		if value := applyStrategy(s, cached); value != "" {
			return value
		}
	}
	for _, candidate := range candidates {
		if value := applyStrategy(s, candidate); value != "" {
			e.cache.Add(name, candidate)
			return value
		}
	}
	return ""
}

func applyStrategy(s *goquery.Selection, strategy FieldStrategy) string {
	match := s.Find(strategy.Selector).First()
	if match.Length() == 0 {
		return ""
	}
	if strategy.Attr != "" {
		value, _ := match.Attr(strategy.Attr)
		return strings.TrimSpace(value)
	}
	return strings.TrimSpace(match.Text())
}

func longestParagraph(s *goquery.Selection) string {
	longest := ""
	s.Find("p").Each(func(_ int, p *goquery.Selection) {
		text := strings.TrimSpace(p.Text())
		if len(text) > minTextFallbackLen && len(text) > len(longest) {
			longest = text
		}
	})
	return longest
}

// MissingFieldError reports a required field that no candidate selector
// could locate. The caller skips just that record.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field %q", e.Field)
}
