package calendar

import (
	"strings"
	"testing"
	"time"
)

//
// PageRequest / NewPage
//

func TestPageRequest_Defaults(t *testing.T) {
	req := PageRequest{}.Normalize()
	if req.Page != 1 || req.PageSize != 10 {
		t.Fatalf("unexpected defaults: %+v", req)
	}
	if off := (PageRequest{Page: 3, PageSize: 5}).Offset(); off != 10 {
		t.Fatalf("expected offset 10, got %d", off)
	}
	if off := (PageRequest{Page: -2, PageSize: 5}).Offset(); off != 0 {
		t.Fatalf("expected offset 0 for bad page, got %d", off)
	}
}

func TestNewPage_First(t *testing.T) {
	page := NewPage([]int{1, 2, 3, 4, 5}, PageRequest{Page: 1, PageSize: 5}, 11)

	if len(page.Items) != 5 {
		t.Fatalf("expected 5 items on page 1, got %d", len(page.Items))
	}
	if page.HasPrev {
		t.Fatalf("expected HasPrev=false on first page")
	}
	if !page.HasNext {
		t.Fatalf("expected HasNext=true on first page")
	}
	if page.Total != 11 {
		t.Fatalf("expected Total=11, got %d", page.Total)
	}
}

func TestNewPage_Last(t *testing.T) {
	page := NewPage([]int{5, 6}, PageRequest{Page: 2, PageSize: 4}, 6)

	if !page.HasPrev || page.HasNext {
		t.Fatalf("expected HasPrev=true HasNext=false, got %+v", page)
	}
}

func TestNewPage_Empty(t *testing.T) {
	page := NewPage[int](nil, PageRequest{}, 0)

	if page.Items == nil || len(page.Items) != 0 {
		t.Fatalf("expected empty non-nil items, got %#v", page.Items)
	}
	if page.HasNext || page.HasPrev {
		t.Fatalf("expected no prev/next for empty list")
	}
	if page.Page != 1 || page.PageSize != 10 {
		t.Fatalf("unexpected defaults: %+v", page)
	}
}

//
// FormatSlotForUser
//

func TestFormatSlotForUser(t *testing.T) {
	tr := TimeRange{Start: mustTime(t, 2025, 1, 1, 10, 0), End: mustTime(t, 2025, 1, 1, 11, 0)}

	if got := FormatSlotForUser(tr, time.UTC, ""); got != "Среда, 01.01.2025, 10:00–11:00" {
		t.Fatalf("unexpected format: %q", got)
	}

	got := FormatSlotForUser(tr, time.FixedZone("MSK", 3*3600), "slot-123")
	if !strings.Contains(got, "13:00–14:00") || !strings.HasSuffix(got, "(ID: slot-123)") {
		t.Fatalf("expected zone shift and ID, got %q", got)
	}
}
