package model

import (
	"strconv"

	"github.com/dustin/go-humanize"
)

// placeholder is rendered for optional listing fields that are absent.
const placeholder = "—"

// ListingRecord is a single vehicle listing as reported by the remote service.
// Records are immutable once received.
type ListingRecord struct {
	ID    int64
	Brand string
	Model string
	Year  *int   // nil when the upstream listing carries no year.
	Price *int64 // Whole yen; nil when the listing carries no price.
	Color *string
	URL   string // Deep link to the source listing.
}

// DisplayYear returns the year or a placeholder when absent.
func (l ListingRecord) DisplayYear() string {
	if l.Year == nil || *l.Year == 0 {
		return placeholder
	}
	return strconv.Itoa(*l.Year)
}

// DisplayPrice formats the price as yen with thousands separators.
// A missing or zero price renders as a placeholder.
func (l ListingRecord) DisplayPrice() string {
	if l.Price == nil || *l.Price == 0 {
		return placeholder
	}
	return "¥" + humanize.Comma(*l.Price)
}

// DisplayColor returns the color or a placeholder when absent.
func (l ListingRecord) DisplayColor() string {
	if l.Color == nil || *l.Color == "" {
		return placeholder
	}
	return *l.Color
}

// Filter narrows the listings returned by the remote service. Zero values are
// omitted from the request. String fields match as case-insensitive substrings.
type Filter struct {
	Brand    string
	Model    string
	Color    string
	MinPrice *int64
	MaxPrice *int64
	MinYear  *int
	MaxYear  *int
}

// IsZero reports whether no filter field is set.
func (f Filter) IsZero() bool {
	return f.Brand == "" && f.Model == "" && f.Color == "" &&
		f.MinPrice == nil && f.MaxPrice == nil &&
		f.MinYear == nil && f.MaxYear == nil
}
