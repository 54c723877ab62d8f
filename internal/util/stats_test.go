package util

import (
	"strings"
	"testing"
	"time"
)

func TestFormatBytesFixedWidth(t *testing.T) {
	testCases := []struct {
		in   float64
		want string
	}{
		{0, " 0.0   B"},
		{99, "99.0   B"},
		{1536, " 1.5 KiB"},
		{100 * 1024, " 0.1 MiB"},
		{98.9 * 1024 * 1024 * 1024, "98.9 GiB"},
	}

	for _, tc := range testCases {
		got := FormatBytes(tc.in)
		if got != tc.want {
			t.Errorf("FormatBytes(%v) = %q, want %q", tc.in, got, tc.want)
		}
		if len(got) != 8 {
			t.Errorf("FormatBytes(%v) has width %d", tc.in, len(got))
		}
	}
}

func TestSnapshotDelta(t *testing.T) {
	prev := snapshot{conns: 1, framesIn: 10, bytesIn: 100}
	cur := snapshot{conns: 3, closed: 1, framesIn: 15, bytesIn: 600, framesOut: 2, bytesOut: 20}

	d := cur.delta(prev)
	want := snapshot{conns: 2, closed: 1, framesIn: 5, bytesIn: 500, framesOut: 2, bytesOut: 20}
	if d != want {
		t.Errorf("delta = %+v, want %+v", d, want)
	}

	line := formatStats(d, 10*time.Second)
	if !strings.Contains(line, "50.0   B/s") || !strings.Contains(line, " 2↑  1↓") {
		t.Errorf("unexpected stats line: %q", line)
	}
}
