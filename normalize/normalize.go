// Package normalize converts raw extracted review fields into their
// canonical typed forms.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mferrazlima/go-scrape-reviews/models"
)

var (
	numericTokenRe = regexp.MustCompile(`\d+(?:\.\d+)?`)
	multiNewlineRe = regexp.MustCompile(`\n{3,}`)
	relativeDateRe = regexp.MustCompile(`(?i)^(\d+)\s+(day|week|month|year)s?\s+ago$`)
)

// isoLayouts cover machine-readable date and date-time forms; all are
// truncated to the date on output.
var isoLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// humanLayouts is the fixed list of human-readable patterns, tried in
// order: month-name-first, day-first, then numeric slash forms, with
// both full and abbreviated month names and one- and two-digit days.
var humanLayouts = []string{
	"January 2, 2006",
	"Jan 2, 2006",
	"January 2 2006",
	"Jan 2 2006",
	"January 02, 2006",
	"Jan 02, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"02 January 2006",
	"02 Jan 2006",
	"01/02/2006",
	"1/2/2006",
	"2006/01/02",
}

const canonicalDate = "2006-01-02"

// Rating extracts the first numeric token from raw and accepts it only
// when it falls within [1,5]. Anything else yields 0. No rounding.
func Rating(raw string) float64 {
	token := numericTokenRe.FindString(raw)
	if token == "" {
		return 0
	}
	value, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0
	}
	if value < 1 || value > 5 {
		return 0
	}
	return value
}

// Text trims the input, normalizes CRLF/CR to LF, and collapses runs of
// three or more newlines to exactly two.
func Text(raw string) string {
	out := strings.TrimSpace(raw)
	if out == "" {
		return ""
	}
	out = strings.ReplaceAll(out, "\r\n", "\n")
	out = strings.ReplaceAll(out, "\r", "\n")
	return multiNewlineRe.ReplaceAllString(out, "\n\n")
}

// Date canonicalizes a date string to YYYY-MM-DD. Unparseable input is
// returned trimmed but otherwise unchanged; that is an explicit
// fallback, not an error.
func Date(raw string) string {
	return DateAt(raw, time.Now())
}

// DateAt is Date with an injectable reference time for relative forms.
func DateAt(raw string, now time.Time) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.Format(canonicalDate)
		}
	}

	for _, layout := range humanLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.Format(canonicalDate)
		}
	}

	if m := relativeDateRe.FindStringSubmatch(trimmed); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			switch strings.ToLower(m[2]) {
			case "day":
				return now.AddDate(0, 0, -n).Format(canonicalDate)
			case "week":
				return now.AddDate(0, 0, -7*n).Format(canonicalDate)
			case "month":
				return now.AddDate(0, -n, 0).Format(canonicalDate)
			case "year":
				return now.AddDate(-n, 0, 0).Format(canonicalDate)
			}
		}
	}

	switch strings.ToLower(trimmed) {
	case "today":
		return now.Format(canonicalDate)
	case "yesterday":
		return now.AddDate(0, 0, -1).Format(canonicalDate)
	}

	return trimmed
}

// Verified reports whether the optional verified-field extraction
// produced any non-empty text.
func Verified(raw string) bool {
	return strings.TrimSpace(raw) != ""
}

// Validate ensures the extractor captured all required raw fields.
func Validate(r *models.RawReview) error {
	if r == nil {
		return fmt.Errorf("review is nil")
	}
	if strings.TrimSpace(r.Rating) == "" {
		return fmt.Errorf("review missing rating")
	}
	if strings.TrimSpace(r.Text) == "" {
		return fmt.Errorf("review missing text")
	}
	if strings.TrimSpace(r.Date) == "" {
		return fmt.Errorf("review missing date")
	}
	if strings.TrimSpace(r.ReviewerName) == "" {
		return fmt.Errorf("review missing reviewer name")
	}
	return nil
}

// Review produces the canonical record for one raw review.
func Review(raw *models.RawReview, page int, now time.Time) *models.Review {
	return &models.Review{
		Rating:       Rating(raw.Rating),
		Text:         Text(raw.Text),
		Date:         DateAt(raw.Date, now),
		ReviewerName: strings.TrimSpace(raw.ReviewerName),
		Title:        strings.TrimSpace(raw.Title),
		Verified:     Verified(raw.Verified),
		Page:         page,
		ScrapedAt:    now,
	}
}
