package paging

import (
	"net/http/httptest"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		target string
		want   Page
	}{
		{"/", Page{Limit: 50}},
		{"/?limit=10&offset=20", Page{Limit: 10, Offset: 20}},
		{"/?limit=0", Page{Limit: 50}},
		{"/?limit=-3&offset=-1", Page{Limit: 50}},
		{"/?limit=abc&offset=xyz", Page{Limit: 50}},
		{"/?limit=5000", Page{Limit: 200}},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			got := Parse(httptest.NewRequest("GET", tt.target, nil), PageSize, 200)
			if got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.target, got, tt.want)
			}
		})
	}
}

func TestParse_NoMax(t *testing.T) {
	got := Parse(httptest.NewRequest("GET", "/?limit=5000", nil), PageSize, 0)
	if got.Limit != 5000 {
		t.Errorf("limit = %d, want 5000", got.Limit)
	}
}

func TestHasMore(t *testing.T) {
	p := Page{Limit: 10, Offset: 20}
	if !p.HasMore(31) {
		t.Error("31 rows: expected more after 20+10")
	}
	if p.HasMore(30) {
		t.Error("30 rows: expected no more after 20+10")
	}
}
