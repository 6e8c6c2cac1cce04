// Package models defines data structures for the review scraper.
package models

import "time"

// RawReview is one scraped review before normalization. All fields are
// extractor output; Rating, Text, Date, and ReviewerName are required.
type RawReview struct {
	Rating       string
	Text         string
	Date         string
	ReviewerName string
	Title        string
	Verified     string
}

// Review is a normalized review ready for export.
type Review struct {
	Rating       float64   `csv:"rating" json:"rating"`
	Text         string    `csv:"text" json:"text"`
	Date         string    `csv:"date" json:"date"`
	ReviewerName string    `csv:"reviewerName" json:"reviewerName"`
	Title        string    `csv:"title" json:"title"`
	Verified     bool      `csv:"verified" json:"verified"`
	Page         int       `json:"page"`
	ScrapedAt    time.Time `json:"scraped_at"`
}

// IdentityKey identifies a review across pages. Listing sites repeat
// entries across pages when lazy loading races with pagination, so the
// key is derived from content rather than position.
type IdentityKey struct {
	Text         string
	ReviewerName string
	Date         string
}

// Key returns the dedup key for a review.
func (r *Review) Key() IdentityKey {
	return IdentityKey{
		Text:         r.Text,
		ReviewerName: r.ReviewerName,
		Date:         r.Date,
	}
}

// PaginationState tracks the forward-only position of the pagination
// loop. Terminal when HasMore is false or the page cap is exceeded.
type PaginationState struct {
	CurrentPage int
	HasMore     bool
}

// ScrapeResult holds the overall result of a scraping run. Reviews keep
// their discovery order: page order first, then in-page order.
type ScrapeResult struct {
	Reviews        []*Review
	PagesProcessed int
	Warnings       []string
	StartTime      time.Time
	EndTime        time.Time
	RetryCount     int
	ErrorsByType   map[string]int
	SkippedRecords int
	DuplicateCount int
}
