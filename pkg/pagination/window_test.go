package pagination

import (
	"math"
	"reflect"
	"testing"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name       string
		page, size int
		wantFirst  int
		wantLast   int
		wantOffset int
	}{
		{"first page", 1, 25, 1, 1, 0},
		{"fifth page of 25 starts upstream page 2", 5, 25, 2, 2, 0},
		{"window straddles two upstream pages", 2, 60, 1, 2, 60},
		{"full upstream page", 1, 100, 1, 1, 0},
		{"second full upstream page", 2, 100, 2, 2, 0},
		{"last slot of upstream page", 100, 1, 1, 1, 99},
		{"first slot of next upstream page", 101, 1, 2, 2, 0},
		{"uneven size", 3, 30, 1, 1, 60},
		{"uneven size crossing", 4, 30, 1, 2, 90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := Translate(tt.page, tt.size, UpstreamPageSize)
			if w.FirstPage != tt.wantFirst || w.LastPage != tt.wantLast || w.LocalOffset != tt.wantOffset {
				t.Errorf("Translate(%d, %d) = pages %d..%d offset %d, want %d..%d offset %d",
					tt.page, tt.size, w.FirstPage, w.LastPage, w.LocalOffset,
					tt.wantFirst, tt.wantLast, tt.wantOffset)
			}
		})
	}
}

func TestTranslate_Clamps(t *testing.T) {
	tests := []struct {
		name         string
		page, size   int
		wantPage     int
		wantPageSize int
	}{
		{"zero page", 0, 25, 1, 25},
		{"negative page", -3, 25, 1, 25},
		{"zero size", 1, 0, 1, 1},
		{"oversized", 1, 500, 1, 100},
		{"max int page", math.MaxInt, 100, MaxPage, 100},
		{"max int page small size", math.MaxInt, 1, MaxPage, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := Translate(tt.page, tt.size, 0)
			if w.Page != tt.wantPage || w.PageSize != tt.wantPageSize {
				t.Errorf("window = (%d, %d), want (%d, %d)", w.Page, w.PageSize, tt.wantPage, tt.wantPageSize)
			}
			if w.UpstreamPageSize != UpstreamPageSize {
				t.Errorf("UpstreamPageSize = %d, want %d", w.UpstreamPageSize, UpstreamPageSize)
			}
		})
	}
}

func TestTranslate_HugePageStaysInRange(t *testing.T) {
	for _, size := range []int{1, 25, 60, MaxPageSize} {
		w := Translate(math.MaxInt, size, UpstreamPageSize)

		if w.StartIndex < 0 || w.EndIndex < w.StartIndex {
			t.Fatalf("size %d: indexes = [%d, %d), want non-negative and ordered", size, w.StartIndex, w.EndIndex)
		}
		if w.FirstPage < 1 || w.LastPage < w.FirstPage {
			t.Fatalf("size %d: pages = %d..%d, want positive and ordered", size, w.FirstPage, w.LastPage)
		}
		if w.LocalOffset < 0 || w.LocalOffset >= UpstreamPageSize {
			t.Errorf("size %d: LocalOffset = %d, want within one upstream page", size, w.LocalOffset)
		}
		if got := len(w.Pages()); got < 1 || got > 2 {
			t.Errorf("size %d: len(Pages()) = %d, want 1 or 2", size, got)
		}

		// Upstream pages that far out are empty.
		items := Slice(w, []int{})
		if items == nil || len(items) != 0 {
			t.Errorf("size %d: Slice() = %v, want empty non-nil", size, items)
		}
	}
}

// The page range must be the minimal one covering [start, end).
func TestTranslate_MinimalCover(t *testing.T) {
	for page := 1; page <= 30; page++ {
		for size := 1; size <= MaxPageSize; size++ {
			w := Translate(page, size, UpstreamPageSize)

			if got := (w.FirstPage - 1) * UpstreamPageSize; got > w.StartIndex {
				t.Fatalf("(%d,%d): first page starts at %d, after start %d", page, size, got, w.StartIndex)
			}
			if got := w.FirstPage * UpstreamPageSize; got <= w.StartIndex {
				t.Fatalf("(%d,%d): first page %d not minimal", page, size, w.FirstPage)
			}
			if got := w.LastPage * UpstreamPageSize; got < w.EndIndex {
				t.Fatalf("(%d,%d): last page ends at %d, before end %d", page, size, got, w.EndIndex)
			}
			if got := (w.LastPage - 1) * UpstreamPageSize; got >= w.EndIndex {
				t.Fatalf("(%d,%d): last page %d not minimal", page, size, w.LastPage)
			}
			if w.LastPage-w.FirstPage > 1 {
				t.Fatalf("(%d,%d): spans %d pages", page, size, w.LastPage-w.FirstPage+1)
			}
		}
	}
}

func TestWindow_Pages(t *testing.T) {
	w := Translate(2, 60, UpstreamPageSize)
	if got, want := w.Pages(), []int{1, 2}; !reflect.DeepEqual(got, want) {
		t.Errorf("Pages() = %v, want %v", got, want)
	}
}

func TestParseCallerWindow(t *testing.T) {
	tests := []struct {
		page, size string
		want       CallerWindow
	}{
		{"", "", CallerWindow{Page: 1, PageSize: 25}},
		{"abc", "x", CallerWindow{Page: 1, PageSize: 25}},
		{"153722867280912930", "100", CallerWindow{Page: MaxPage, PageSize: 100}},
		{"99999999999999999999999", "99999999999999999999999", CallerWindow{Page: MaxPage, PageSize: MaxPageSize}},
		{"-99999999999999999999999", "10", CallerWindow{Page: 1, PageSize: 10}},
		{"3", "10", CallerWindow{Page: 3, PageSize: 10}},
		{"0", "0", CallerWindow{Page: 1, PageSize: 1}},
		{"-2", "1000", CallerWindow{Page: 1, PageSize: 100}},
	}

	for _, tt := range tests {
		if got := ParseCallerWindow(tt.page, tt.size); got != tt.want {
			t.Errorf("ParseCallerWindow(%q, %q) = %+v, want %+v", tt.page, tt.size, got, tt.want)
		}
	}
}

func TestSlice(t *testing.T) {
	items := make([]int, 150)
	for i := range items {
		items[i] = i
	}

	tests := []struct {
		name    string
		window  Window
		items   []int
		wantLen int
		wantAt0 int
	}{
		{"straddling window", Translate(2, 60, UpstreamPageSize), items, 60, 60},
		{"short tail", Translate(3, 60, UpstreamPageSize), items[100:], 30, 120},
		{"past the end", Translate(2, 25, UpstreamPageSize), items[:10], 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Slice(tt.window, tt.items)
			if got == nil {
				t.Fatal("Slice() returned nil")
			}
			if len(got) != tt.wantLen {
				t.Fatalf("len = %d, want %d", len(got), tt.wantLen)
			}
			if tt.wantLen > 0 && got[0] != tt.wantAt0 {
				t.Errorf("got[0] = %d, want %d", got[0], tt.wantAt0)
			}
		})
	}
}
