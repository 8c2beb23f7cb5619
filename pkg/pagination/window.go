package pagination

import (
	"errors"
	"math"
	"strconv"
)

const (
	// UpstreamPageSize is the fixed number of items NASA returns per page.
	UpstreamPageSize = 100

	// DefaultPage and DefaultPageSize apply when the caller sends nothing usable.
	DefaultPage     = 1
	DefaultPageSize = 25

	// MaxPageSize is the largest window a caller may request.
	MaxPageSize = 100

	// MaxPage keeps (page-1)*pageSize+pageSize within int. Windows this far
	// out lie past any real collection and come back empty.
	MaxPage = math.MaxInt / MaxPageSize
)

// CallerWindow is the pagination contract a caller asks for.
// Page is 1-based; PageSize is in [1, MaxPageSize].
type CallerWindow struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

// NewCallerWindow clamps page and pageSize into range. Out-of-range values
// are never rejected.
func NewCallerWindow(page, pageSize int) CallerWindow {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return CallerWindow{Page: page, PageSize: pageSize}
}

// ParseCallerWindow reads page and pageSize from query-string values.
// Missing or unparsable values fall back to DefaultPage and DefaultPageSize
// before clamping; numbers too large for int clamp like any other.
func ParseCallerWindow(page, pageSize string) CallerWindow {
	p, err := strconv.Atoi(page)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		p = DefaultPage
	}
	s, err := strconv.Atoi(pageSize)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		s = DefaultPageSize
	}
	return NewCallerWindow(p, s)
}

// Window is a caller window expressed in upstream pages.
type Window struct {
	CallerWindow

	// UpstreamPageSize is the page size the upstream range was computed for
	UpstreamPageSize int

	// StartIndex and EndIndex bound the caller's items in the global
	// 0-based item sequence: [StartIndex, EndIndex)
	StartIndex int
	EndIndex   int

	// FirstPage and LastPage are the inclusive 1-based upstream page range
	FirstPage int
	LastPage  int

	// LocalOffset is where the window starts inside the concatenated
	// items of FirstPage..LastPage
	LocalOffset int
}

// Translate computes the minimal contiguous upstream page range covering
// the caller's window. page and pageSize are clamped first;
// upstreamPageSize <= 0 selects UpstreamPageSize.
//
//	Translate(1, 25, 100) -> pages 1..1, offset 0
//	Translate(5, 25, 100) -> pages 2..2, offset 0
//	Translate(2, 60, 100) -> pages 1..2, offset 60
func Translate(page, pageSize, upstreamPageSize int) Window {
	if upstreamPageSize <= 0 {
		upstreamPageSize = UpstreamPageSize
	}
	cw := NewCallerWindow(page, pageSize)

	start := (cw.Page - 1) * cw.PageSize
	end := start + cw.PageSize
	first := start/upstreamPageSize + 1
	last := (end-1)/upstreamPageSize + 1

	return Window{
		CallerWindow:     cw,
		UpstreamPageSize: upstreamPageSize,
		StartIndex:       start,
		EndIndex:         end,
		FirstPage:        first,
		LastPage:         last,
		LocalOffset:      start - (first-1)*upstreamPageSize,
	}
}

// Pages lists the upstream pages in increasing order.
func (w Window) Pages() []int {
	pages := make([]int, 0, w.LastPage-w.FirstPage+1)
	for p := w.FirstPage; p <= w.LastPage; p++ {
		pages = append(pages, p)
	}
	return pages
}

// Slice cuts the caller's window out of the items concatenated from
// FirstPage..LastPage. Bounds are clamped to len(items), so a short tail
// yields fewer items and a window past the end yields an empty, non-nil slice.
func Slice[T any](w Window, items []T) []T {
	lo := min(w.LocalOffset, len(items))
	hi := min(w.LocalOffset+w.PageSize, len(items))
	out := make([]T, hi-lo)
	copy(out, items[lo:hi])
	return out
}
