package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

type SortBy string

const (
	SortPriceAsc   SortBy = "price_asc"
	SortPriceDesc  SortBy = "price_desc"
	SortRatingDesc SortBy = "rating_desc"
	SortNameAsc    SortBy = "name_asc"
)

const (
	MaxKeywordLength  = 100
	MaxSearchResults  = 50
	DefaultMaxResults = 30
)

var (
	ErrEmptyKeyword       = errors.New("keyword is required")
	ErrKeywordTooLong     = fmt.Errorf("keyword exceeds %d characters", MaxKeywordLength)
	ErrNegativePrice      = errors.New("price bounds must be non-negative")
	ErrInvalidSortBy      = errors.New("unsupported sort order")
	ErrInvertedPriceRange = errors.New("minPrice exceeds maxPrice")
)

type SearchFilters struct {
	Keyword    string `json:"keyword"`
	MaxResults int    `json:"maxResults,omitempty"`
	MinPrice   int    `json:"minPrice,omitempty"`
	MaxPrice   int    `json:"maxPrice,omitempty"`
	SortBy     SortBy `json:"sortBy,omitempty"`
}

// Normalize trims the keyword, applies defaults and caps, and validates
// the filter set. Invalid filters are the only input the pipeline rejects.
func (f *SearchFilters) Normalize() error {
	f.Keyword = strings.TrimSpace(f.Keyword)
	if f.Keyword == "" {
		return ErrEmptyKeyword
	}
	if utf8.RuneCountInString(f.Keyword) > MaxKeywordLength {
		return ErrKeywordTooLong
	}
	if f.MinPrice < 0 || f.MaxPrice < 0 {
		return ErrNegativePrice
	}
	if f.MaxPrice > 0 && f.MinPrice > f.MaxPrice {
		return ErrInvertedPriceRange
	}
	if f.MaxResults <= 0 {
		f.MaxResults = DefaultMaxResults
	}
	if f.MaxResults > MaxSearchResults {
		f.MaxResults = MaxSearchResults
	}
	if f.SortBy == "" {
		f.SortBy = SortPriceAsc
	}
	switch f.SortBy {
	case SortPriceAsc, SortPriceDesc, SortRatingDesc, SortNameAsc:
	default:
		return ErrInvalidSortBy
	}
	return nil
}

// Performance buckets derived from elapsed wall-clock time of a search.
const (
	PerformanceFast   = "fast"
	PerformanceNormal = "normal"
	PerformanceSlow   = "slow"
)

type SearchInfo struct {
	Keyword          string  `json:"keyword"`
	TotalFound       int     `json:"totalFound"`
	SearchTimeMs     int64   `json:"searchTimeMs"`
	Source           Source  `json:"source"`
	ImageSuccessRate float64 `json:"imageSuccessRate"`
	Performance      string  `json:"performance"`
}

// SearchResult is the assembler's external contract: always well-formed,
// degraded to fallback data (with diagnostics) when extraction fails.
type SearchResult struct {
	Products   []Product       `json:"products"`
	Errors     []ScrapingError `json:"errors,omitempty"`
	Warnings   []string        `json:"warnings,omitempty"`
	SearchInfo SearchInfo      `json:"searchInfo"`
}

type ScrapingError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Retryable bool      `json:"retryable"`
}

func (e ScrapingError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for the scraping taxonomy.
const (
	CodeTimeout = "TIMEOUT_ERROR"
	CodeNetwork = "NETWORK_ERROR"
	CodeBrowser = "BROWSER_ERROR"
	CodeAccess  = "ACCESS_ERROR"
	CodeParsing = "PARSING_ERROR"
	CodeUnknown = "UNKNOWN_ERROR"
)

func NewScrapingError(code, message string, retryable bool) ScrapingError {
	return ScrapingError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Retryable: retryable,
	}
}
