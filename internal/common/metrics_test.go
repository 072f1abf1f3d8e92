package common

import (
	"strings"
	"testing"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.Start()
	m.AddBytes(28)
	m.AddBytes(9)
	m.AddBlock(48, false)
	m.AddBlock(48, false)
	m.AddBlock(1, true)
	m.AddRecord(false)
	m.AddRecord(false)
	m.AddRecord(true)
	m.IncUnknownCategory()
	m.Stop()

	s := m.Snapshot()
	if s.Bytes != 37 {
		t.Fatalf("bytes = %d, want 37", s.Bytes)
	}
	if s.Blocks != 3 || s.TruncatedBlocks != 1 {
		t.Fatalf("blocks = %d/%d truncated, want 3/1", s.Blocks, s.TruncatedBlocks)
	}
	if s.Records != 3 || s.TruncatedRecords != 1 {
		t.Fatalf("records = %d/%d truncated, want 3/1", s.Records, s.TruncatedRecords)
	}
	if s.UnknownCategory != 1 {
		t.Fatalf("unknown category = %d, want 1", s.UnknownCategory)
	}
	if s.PerCategory[48] != 2 || s.PerCategory[1] != 1 {
		t.Fatalf("per category = %v", s.PerCategory)
	}
	if s.Duration < 0 {
		t.Fatalf("duration = %v, want >= 0", s.Duration)
	}
}

func TestMetricsSummary(t *testing.T) {
	m := NewMetrics()
	m.AddBytes(512)
	m.AddBlock(48, false)
	m.AddRecord(false)
	m.AddRecord(true)
	m.IncUnknownCategory()

	got := m.Snapshot().Summary()
	for _, want := range []string{"512 B", "1 blocks", "2 records", "1 truncated records", "1 unknown-category blocks skipped", "cat048=1"} {
		if !strings.Contains(got, want) {
			t.Fatalf("summary %q missing %q", got, want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{2048, "2.00 KiB"},
		{5 << 20, "5.00 MiB"},
	}
	for _, tc := range cases {
		if got := FormatBytes(tc.in); got != tc.want {
			t.Fatalf("FormatBytes(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
