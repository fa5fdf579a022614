package model

// PageRequest identifies one page of listings. Page is 1-indexed.
type PageRequest struct {
	Page    int
	PerPage int
	Filter  Filter
}

// PageResult is one page of listings together with the server-reported total.
// Total is authoritative at fetch time only; it may change between fetches.
type PageResult struct {
	Items   []ListingRecord
	Total   int
	Page    int
	PerPage int
}

// TotalPages returns ceil(Total / PerPage), or 0 for an empty result set.
func (p PageResult) TotalPages() int {
	if p.PerPage <= 0 || p.Total <= 0 {
		return 0
	}
	return (p.Total + p.PerPage - 1) / p.PerPage
}

// HasPrevious reports whether a page before this one exists.
func (p PageResult) HasPrevious() bool {
	return p.Page > 1
}

// HasNext reports whether a page after this one exists.
func (p PageResult) HasNext() bool {
	return p.Page < p.TotalPages()
}

// ClampPage limits page to the navigable range [1, max(totalPages, 1)].
// Callers clamp before asking the retriever for a page.
func ClampPage(page, totalPages int) int {
	upper := max(totalPages, 1)
	return min(max(page, 1), upper)
}
