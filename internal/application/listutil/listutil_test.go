package listutil

import (
	"net/url"
	"testing"
)

// TestParsePageParams verifies defaults, valid values and rejected per_page sizes.
func TestParsePageParams(t *testing.T) {
	tests := []struct {
		name        string
		q           url.Values
		wantPage    int
		wantPerPage int
	}{
		{"defaults", url.Values{}, 1, DefaultPerPage},
		{"valid", url.Values{"page": {"3"}, "per_page": {"50"}}, 3, 50},
		{"per_page not offered", url.Values{"per_page": {"25"}}, 1, DefaultPerPage},
		{"negative page", url.Values{"page": {"-1"}}, 1, DefaultPerPage},
		{"garbage", url.Values{"page": {"two"}, "per_page": {"lots"}}, 1, DefaultPerPage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ParsePageParams(tt.q)
			if p.Page != tt.wantPage || p.PerPage != tt.wantPerPage {
				t.Errorf("got %+v, want page %d per_page %d", p, tt.wantPage, tt.wantPerPage)
			}
		})
	}
}

// TestParseLimit verifies the default and clamp.
func TestParseLimit(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"", 10},
		{"0", 10},
		{"-4", 10},
		{"abc", 10},
		{"5", 5},
		{"500", 50},
	}
	for _, tt := range tests {
		if got := ParseLimit(url.Values{"limit": {tt.raw}}, 10, 50); got != tt.want {
			t.Errorf("ParseLimit(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

// TestNewPageInfo verifies total pages and page clamping.
func TestNewPageInfo(t *testing.T) {
	tests := []struct {
		name                 string
		page, perPage, total int
		wantPage, wantPages  int
	}{
		{"empty", 1, 20, 0, 1, 1},
		{"exact", 2, 10, 20, 2, 2},
		{"partial last page", 3, 10, 21, 3, 3},
		{"past the end", 9, 10, 15, 2, 2},
		{"zero per page", 1, 0, 5, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := NewPageInfo(tt.page, tt.perPage, tt.total)
			if info.Page != tt.wantPage || info.TotalPages != tt.wantPages {
				t.Errorf("got %+v, want page %d of %d", info, tt.wantPage, tt.wantPages)
			}
		})
	}
}

// TestPageInfo_Offset verifies offset and next-page reporting.
func TestPageInfo_Offset(t *testing.T) {
	info := NewPageInfo(3, 20, 100)
	if info.Offset() != 40 {
		t.Errorf("Offset = %d, want 40", info.Offset())
	}
	if !info.HasNext() {
		t.Error("page 3 of 5 should have a next page")
	}
	if NewPageInfo(5, 20, 100).HasNext() {
		t.Error("last page should not have a next page")
	}
}
