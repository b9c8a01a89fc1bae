package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	got := ParseTimeDefault("", def)
	if !got.Equal(def) {
		t.Fatalf("expected default")
	}
}

func TestDayFloor(t *testing.T) {
	in := time.Date(2024, 10, 10, 23, 59, 59, 0, time.FixedZone("UTC+7", 7*3600))
	got := DayFloor(in)
	want := time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2024, 10, 1, 15, 0, 0, 0, time.UTC)
	b := time.Date(2024, 10, 10, 3, 0, 0, 0, time.UTC)
	if got := DaysBetween(a, b); got != 10 {
		t.Fatalf("expected 10 days, got %d", got)
	}
	if got := DaysBetween(a, a); got != 1 {
		t.Fatalf("expected 1 day, got %d", got)
	}
	if got := DaysBetween(b, a); got != 0 {
		t.Fatalf("expected 0 for inverted range, got %d", got)
	}
}
