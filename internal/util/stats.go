package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Stats is the process-wide frame/connection counter.
var Stats = &stats{}

type stats struct {
	TotalConns  atomic.Int64 // cumulative count of connections since process start
	ClosedConns atomic.Int64 // cumulative count of closed connections since process start
	FramesSent  atomic.Int64 // cumulative frames written to any transport
	FramesRecv  atomic.Int64 // cumulative frames decoded from any transport
	BytesSent   atomic.Int64 // cumulative encoded bytes written
	BytesRecv   atomic.Int64 // cumulative encoded bytes read
}

func (s *stats) AddConn()    { s.TotalConns.Add(1) }
func (s *stats) RemoveConn() { s.ClosedConns.Add(1) }

// AddSent records one outgoing frame of n encoded bytes.
func (s *stats) AddSent(n int) {
	s.FramesSent.Add(1)
	s.BytesSent.Add(int64(n))
}

// AddRecv records one incoming frame of n encoded bytes.
func (s *stats) AddRecv(n int) {
	s.FramesRecv.Add(1)
	s.BytesRecv.Add(int64(n))
}

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

const reportInterval = 10 * time.Second

// StartStatsReporter launches a goroutine that logs traffic statistics
// every 10 seconds. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(reportInterval)
		defer ticker.Stop()

		var prev snapshot
		for {
			select {
			case <-ticker.C:
				cur := takeSnapshot()
				if cur != prev {
					pterm.DefaultLogger.Info(formatStats(cur.delta(prev), reportInterval))
				}
				prev = cur

			case <-ctx.Done():
				return
			}
		}
	}()
}

type snapshot struct {
	conns, closed       int64
	framesOut, framesIn int64
	bytesOut, bytesIn   int64
}

func takeSnapshot() snapshot {
	return snapshot{
		conns:     Stats.TotalConns.Load(),
		closed:    Stats.ClosedConns.Load(),
		framesOut: Stats.FramesSent.Load(),
		framesIn:  Stats.FramesRecv.Load(),
		bytesOut:  Stats.BytesSent.Load(),
		bytesIn:   Stats.BytesRecv.Load(),
	}
}

func (s snapshot) delta(prev snapshot) snapshot {
	return snapshot{
		conns:     s.conns - prev.conns,
		closed:    s.closed - prev.closed,
		framesOut: s.framesOut - prev.framesOut,
		framesIn:  s.framesIn - prev.framesIn,
		bytesOut:  s.bytesOut - prev.bytesOut,
		bytesIn:   s.bytesIn - prev.bytesIn,
	}
}

// byteUnits defines the units for formatting byte counts in a human-readable way.
var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// FormatBytes formats a byte count into a human-readable string with fixed width (exactly 8 chars)
// for example: "99.0   B", " 1.5 KiB", " 0.1 MiB", "98.9 GiB", etc.
func FormatBytes(b float64) string {
	unitIdx := 0

	// to prevent "100.0 KiB", which is 9 chars
	for b > 99 && unitIdx < 5 {
		b /= 1024
		unitIdx++
	}

	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unitIdx])
}

// formatStats renders a per-interval delta for display in the logger.
func formatStats(d snapshot, interval time.Duration) string {
	secs := interval.Seconds()
	return fmt.Sprintf("In: %s/s %4d fr | Out: %s/s %4d fr | Conn: %2d↑ %2d↓",
		FormatBytes(float64(d.bytesIn)/secs), d.framesIn,
		FormatBytes(float64(d.bytesOut)/secs), d.framesOut,
		d.conns, d.closed,
	)
}
