package common

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Metrics accumulates counters across decode calls. All methods are safe for
// concurrent use.
type Metrics struct {
	mu               sync.Mutex
	start            time.Time
	end              time.Time
	bytes            int64
	blocks           int64
	records          int64
	truncatedRecords int64
	truncatedBlocks  int64
	unknownCategory  int64
	perCategory      map[int]int64
}

func NewMetrics() *Metrics {
	return &Metrics{perCategory: make(map[int]int64)}
}

func (m *Metrics) Start() {
	m.mu.Lock()
	if m.start.IsZero() {
		m.start = time.Now()
		m.end = time.Time{}
	}
	m.mu.Unlock()
}

func (m *Metrics) Stop() {
	m.mu.Lock()
	if !m.start.IsZero() && m.end.IsZero() {
		m.end = time.Now()
	}
	m.mu.Unlock()
}

func (m *Metrics) AddBytes(n int64) {
	if n <= 0 {
		return
	}
	m.mu.Lock()
	m.bytes += n
	m.mu.Unlock()
}

func (m *Metrics) AddBlock(category int, truncated bool) {
	m.mu.Lock()
	m.blocks++
	if truncated {
		m.truncatedBlocks++
	}
	if m.perCategory == nil {
		m.perCategory = make(map[int]int64)
	}
	m.perCategory[category]++
	m.mu.Unlock()
}

func (m *Metrics) AddRecord(truncated bool) {
	m.mu.Lock()
	m.records++
	if truncated {
		m.truncatedRecords++
	}
	m.mu.Unlock()
}

func (m *Metrics) IncUnknownCategory() {
	m.mu.Lock()
	m.unknownCategory++
	m.mu.Unlock()
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	per := make(map[int]int64, len(m.perCategory))
	for k, v := range m.perCategory {
		per[k] = v
	}
	return MetricsSnapshot{
		Duration:         m.elapsedLocked(),
		Bytes:            m.bytes,
		Blocks:           m.blocks,
		Records:          m.records,
		TruncatedRecords: m.truncatedRecords,
		TruncatedBlocks:  m.truncatedBlocks,
		UnknownCategory:  m.unknownCategory,
		PerCategory:      per,
	}
}

func (m *Metrics) elapsedLocked() time.Duration {
	if m.start.IsZero() {
		return 0
	}
	if !m.end.IsZero() {
		return m.end.Sub(m.start)
	}
	return time.Since(m.start)
}

type MetricsSnapshot struct {
	Duration         time.Duration
	Bytes            int64
	Blocks           int64
	Records          int64
	TruncatedRecords int64
	TruncatedBlocks  int64
	UnknownCategory  int64
	PerCategory      map[int]int64
}

func (s MetricsSnapshot) ThroughputBytesPerSecond() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.Bytes) / s.Duration.Seconds()
}

// Summary renders the snapshot as a short human-readable line.
func (s MetricsSnapshot) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s, %d blocks, %d records", FormatBytes(s.Bytes), s.Blocks, s.Records)
	if s.TruncatedRecords > 0 || s.TruncatedBlocks > 0 {
		fmt.Fprintf(&b, " (%d truncated records, %d truncated blocks)", s.TruncatedRecords, s.TruncatedBlocks)
	}
	if s.UnknownCategory > 0 {
		fmt.Fprintf(&b, ", %d unknown-category blocks skipped", s.UnknownCategory)
	}
	cats := make([]int, 0, len(s.PerCategory))
	for cat := range s.PerCategory {
		cats = append(cats, cat)
	}
	sort.Ints(cats)
	for i, cat := range cats {
		if i == 0 {
			b.WriteString("; ")
		} else {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "cat%03d=%d", cat, s.PerCategory[cat])
	}
	return b.String()
}

func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div := float64(unit)
	exp := 0
	for n := float64(b) / div; n >= unit && exp < 6; n /= unit {
		div *= unit
		exp++
	}
	prefixes := []string{"KiB", "MiB", "GiB", "TiB", "PiB", "EiB"}
	return fmt.Sprintf("%.2f %s", float64(b)/div, prefixes[exp])
}
