package query

import "github.com/IvanBrykalov/dexcache/model"

// DefaultPageSize is used for non-positive page sizes.
const DefaultPageSize = 20

// PageWindow describes the current page of a filtered set.
// Page is always in [1, TotalPages] and TotalPages is at least 1.
type PageWindow struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalPages int `json:"totalPages"`
	Total      int `json:"total"`
}

// HasPrev reports whether a previous page exists.
func (w PageWindow) HasPrev() bool { return w.Page > 1 }

// HasNext reports whether a following page exists.
func (w PageWindow) HasNext() bool { return w.Page < w.TotalPages }

// Bounds returns the 1-based positions of the first and last record on the
// page, or (0, 0) for an empty set.
func (w PageWindow) Bounds() (first, last int) {
	if w.Total == 0 {
		return 0, 0
	}
	first = (w.Page-1)*w.PageSize + 1
	last = min(w.Page*w.PageSize, w.Total)
	return first, last
}

// Paginate returns records[(page-1)*size : page*size] clamped to the set,
// and the window it came from. TotalPages is ceil(n/size), or 1 for an
// empty set; page is clamped into [1, TotalPages]. The page shares the
// backing array of records.
func Paginate(records []model.Record, page, pageSize int) ([]model.Record, PageWindow) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	n := len(records)
	total := max((n+pageSize-1)/pageSize, 1)
	page = min(max(page, 1), total)

	lo := min((page-1)*pageSize, n)
	hi := min(lo+pageSize, n)
	return records[lo:hi:hi], PageWindow{
		Page:       page,
		PageSize:   pageSize,
		TotalPages: total,
		Total:      n,
	}
}
