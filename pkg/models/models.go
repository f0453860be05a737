package models

import "time"

// CrawlRequest represents a URL waiting in the frontier, with the page it was discovered on
type CrawlRequest struct {
	URL      string
	Referrer string // Empty for seed URLs
	Depth    int    // Distance from the seeds, used as queue priority
}

// MirrorItem is one fetched-and-processed resource ready to be written to disk
type MirrorItem struct {
	Path    string // Local path relative to the mirror root, always starting with "/"
	Content []byte
	Kind    MirrorKind
}

// CrawlOutcome is the single terminal result recorded for each completed request
type CrawlOutcome struct {
	Kind       OutcomeKind
	URL        string
	Referrer   string
	StatusCode int    // Set for OutcomeHTTPError
	MIME       string // Set for OutcomeForbiddenMime and OutcomeSaved
	Message    string // Set for OutcomeInternalError
	Path       string // Local path for OutcomeSaved
}

// ExternalLinkEvent is emitted the first time a link outside the domain allow-list is seen in a run
type ExternalLinkEvent struct {
	Source string // Page that carried the link
	Target string
}

// Statification is a named, dated snapshot of the mirrored site.
// An empty Commit identifies the statification currently in progress.
type Statification struct {
	Commit      string              `json:"commit"`
	Designation string              `json:"designation"`
	Description string              `json:"description,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	Status      StatificationStatus `json:"status"`
	ItemCount   int                 `json:"item_count"`

	HTMLErrors    []HTMLError     `json:"html_errors,omitempty"`
	MimeErrors    []MimeError     `json:"mime_errors,omitempty"`
	ExternalLinks []ExternalLink  `json:"external_links,omitempty"`
	CrawlErrors   []CrawlError    `json:"crawl_errors,omitempty"`
	ScannedFiles  []ScannedFile   `json:"scanned_files,omitempty"`
	Historic      []HistoricEntry `json:"historic,omitempty"`
}

// HTMLError records a response whose status was outside the accepted range
type HTMLError struct {
	Code   int    `json:"code"`
	URL    string `json:"url"`
	Source string `json:"source"`
}

// MimeError records a response with a content type outside the dispatch table
type MimeError struct {
	MIME string `json:"mime"`
	URL  string `json:"url"`
}

// ExternalLink records a link pointing outside the domain allow-list
type ExternalLink struct {
	URL    string `json:"url"`
	Source string `json:"source"`
}

// CrawlError records an internal crawler error message (possibly multi-line)
type CrawlError struct {
	Message string `json:"message"`
}

// ScannedFile holds the count of mirrored files of a given extension
type ScannedFile struct {
	Extension string `json:"extension"`
	Count     int    `json:"count"`
}

// HistoricEntry is one audit entry of an action done to a statification
type HistoricEntry struct {
	Date   time.Time      `json:"date"`
	User   string         `json:"user"`
	Action HistoricAction `json:"action"`
}

// CrawlStats summarizes a crawl run
type CrawlStats struct {
	ResponsesReceived int64 `json:"response_received_count"`
	Saved             int64 `json:"saved_count"`
	HTTPErrors        int64 `json:"http_error_count"`
	ForbiddenMimes    int64 `json:"forbidden_mime_count"`
	InternalErrors    int64 `json:"internal_error_count"`
	ExternalLinks     int64 `json:"external_link_count"`
	Enqueued          int64 `json:"enqueued_count"`
}
