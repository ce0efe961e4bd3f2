package daterange

import (
	"errors"
	"testing"
	"time"
)

func TestParseAndNights(t *testing.T) {
	cases := []struct {
		in, out string
		nights  int
	}{
		{"2025-06-01", "2025-06-04", 3},
		{"2025-06-01", "2025-06-02", 1},
		{"2025-06-01T15:00:00+03:00", "2025-06-03T11:00:00+03:00", 2},
		{"2025-02-27", "2025-03-02", 3},
	}
	for _, tc := range cases {
		dr, err := Parse(tc.in, tc.out)
		if err != nil {
			t.Fatalf("%s..%s: %v", tc.in, tc.out, err)
		}
		if got := dr.Nights(); got != tc.nights {
			t.Fatalf("%s..%s nights = %d, want %d", tc.in, tc.out, got, tc.nights)
		}
		if dr.CheckIn.Hour() != 0 || dr.CheckIn.Location() != time.UTC {
			t.Fatalf("check-in not normalized: %v", dr.CheckIn)
		}
	}
}

func TestParseRejects(t *testing.T) {
	cases := []struct {
		in, out string
		want    error
	}{
		{"2025-06-04", "2025-06-01", ErrInvalidRange},
		{"2025-06-01", "2025-06-01", ErrInvalidRange},
		{"", "2025-06-01", ErrInvalidDate},
		{"06/01/2025", "2025-06-03", ErrInvalidDate},
	}
	for _, tc := range cases {
		if _, err := Parse(tc.in, tc.out); !errors.Is(err, tc.want) {
			t.Fatalf("%q..%q err = %v, want %v", tc.in, tc.out, err, tc.want)
		}
	}
}

func TestOverlapsBackToBack(t *testing.T) {
	a, _ := Parse("2025-06-01", "2025-06-04")
	b, _ := Parse("2025-06-04", "2025-06-06")
	c, _ := Parse("2025-06-03", "2025-06-05")
	if a.Overlaps(b) || b.Overlaps(a) {
		t.Fatal("back-to-back ranges must not overlap")
	}
	if !a.Overlaps(c) || !c.Overlaps(a) {
		t.Fatal("expected overlap")
	}
}
