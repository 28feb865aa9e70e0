package request

import (
	"strings"
	"testing"
)

func TestNormalizeDefaults(t *testing.T) {
	req := Request{Query: "text generation"}
	if err := req.Normalize(20, 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Pagination.PageSize != 20 {
		t.Errorf("expected default page size 20, got %d", req.Pagination.PageSize)
	}
	if req.From() != 0 {
		t.Errorf("expected from=0, got %d", req.From())
	}
}

func TestNormalizeClampsPageSize(t *testing.T) {
	req := Request{Pagination: Pagination{Page: 2, PageSize: 500}}
	if err := req.Normalize(20, 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Pagination.PageSize != 100 {
		t.Errorf("expected page size clamped to 100, got %d", req.Pagination.PageSize)
	}
	if req.From() != 200 {
		t.Errorf("expected from=200, got %d", req.From())
	}
}

func TestNormalizeRejectsNegativePage(t *testing.T) {
	req := Request{Pagination: Pagination{Page: -1}}
	if err := req.Normalize(20, 100); err == nil {
		t.Fatal("expected error for negative page")
	}
}

func TestNormalizeRejectsLongQuery(t *testing.T) {
	req := Request{Query: strings.Repeat("x", MaxQueryLength+1)}
	if err := req.Normalize(20, 100); err == nil {
		t.Fatal("expected error for oversized query")
	}
}

func TestNormalizeRejectsUnknownStatus(t *testing.T) {
	req := Request{}
	req.Filters.Status = "archived"
	if err := req.Normalize(20, 100); err == nil {
		t.Fatal("expected error for unknown status filter")
	}
}
