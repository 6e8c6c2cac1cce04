package extractor

// FieldStrategy locates one field inside a review container. When Attr
// is set the attribute value is taken, otherwise the element text.
type FieldStrategy struct {
	Selector string
	Attr     string
}

// ContainerSelectors are the ordered review-container candidates. The
// first selector yielding at least one match wins for the whole page.
// The target's markup is not contractually stable, so new site variants
// are handled by appending here rather than branching in code.
var ContainerSelectors = []string{
	`[data-hook="review"]`,
	`[itemprop="review"]`,
	`article.review`,
	`li.review`,
	`div.review-card`,
	`div.review`,
	`[class*="review-item"]`,
	`.a-section.review`,
}

// Rating prefers attribute-embedded numeric signals over visible text.
var ratingStrategies = []FieldStrategy{
	{Selector: `[itemprop="ratingValue"]`, Attr: "content"},
	{Selector: `[data-rating]`, Attr: "data-rating"},
	{Selector: `.star-rating`, Attr: "aria-label"},
	{Selector: `[class*="star"]`, Attr: "aria-label"},
	{Selector: `.rating`},
	{Selector: `[class*="rating"]`},
}

// Date prefers machine-readable attributes over visible text.
var dateStrategies = []FieldStrategy{
	{Selector: `time`, Attr: "datetime"},
	{Selector: `[itemprop="datePublished"]`, Attr: "content"},
	{Selector: `[data-date]`, Attr: "data-date"},
	{Selector: `.review-date`},
	{Selector: `.date`},
	{Selector: `time`},
}

var textStrategies = []FieldStrategy{
	{Selector: `[data-hook="review-body"]`},
	{Selector: `[itemprop="reviewBody"]`},
	{Selector: `.review-text`},
	{Selector: `.review-body`},
	{Selector: `.review-content`},
	{Selector: `p.review`},
}

var reviewerStrategies = []FieldStrategy{
	{Selector: `[itemprop="author"]`},
	{Selector: `.reviewer-name`},
	{Selector: `.a-profile-name`},
	{Selector: `.author`},
	{Selector: `[class*="reviewer"]`},
	{Selector: `[class*="author"]`},
}

var titleStrategies = []FieldStrategy{
	{Selector: `[data-hook="review-title"]`},
	{Selector: `[itemprop="name"]`},
	{Selector: `.review-title`},
	{Selector: `h3`},
	{Selector: `h4`},
}

var verifiedStrategies = []FieldStrategy{
	{Selector: `[data-hook="avp-badge"]`},
	{Selector: `.verified-purchase`},
	{Selector: `.verified`},
	{Selector: `[class*="verified"]`},
}
