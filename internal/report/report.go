// Package report builds decode session summaries and renders them as JSON
// or PDF documents.
package report

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"sort"
	"time"

	"example.com/astgate/internal/store"
)

// CategoryCount is one per-category row of a summary.
type CategoryCount struct {
	Category int `json:"category"`
	Records  int `json:"records"`
}

// Summary describes one decode session or one stored database.
type Summary struct {
	GeneratedAt  time.Time       `json:"generatedAt"`
	Source       string          `json:"source"`
	TotalRecords int             `json:"totalRecords"`
	TotalBytes   int64           `json:"totalBytes"`
	Truncated    int             `json:"truncated"`
	Categories   []CategoryCount `json:"categories"`
	FirstSeen    float64         `json:"firstSeen,omitempty"`
	LastSeen     float64         `json:"lastSeen,omitempty"`
}

// FromStats builds a summary from stored record statistics. Categories are
// sorted ascending for stable output.
func FromStats(stats *store.Stats, source string) Summary {
	sum := Summary{
		GeneratedAt:  time.Now().UTC(),
		Source:       source,
		TotalRecords: stats.TotalRecords,
		TotalBytes:   stats.TotalBytes,
		Truncated:    stats.Truncated,
		FirstSeen:    stats.FirstSeen,
		LastSeen:     stats.LastSeen,
	}
	for cat, n := range stats.ByCategory {
		sum.Categories = append(sum.Categories, CategoryCount{Category: cat, Records: n})
	}
	sort.Slice(sum.Categories, func(i, j int) bool {
		return sum.Categories[i].Category < sum.Categories[j].Category
	})
	return sum
}

// Digest returns the SHA-256 hex digest of the summary's canonical JSON
// form. The digest is embedded in the PDF as a QR code so a printed report
// can be matched to its JSON counterpart.
func (s Summary) Digest() string {
	b, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

// SaveJSON writes the summary as indented JSON.
func SaveJSON(sum Summary, out string) error {
	b, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0644)
}

// LoadJSON reads a summary previously written by SaveJSON.
func LoadJSON(path string) (Summary, error) {
	var sum Summary
	b, err := os.ReadFile(path)
	if err != nil {
		return sum, err
	}
	err = json.Unmarshal(b, &sum)
	return sum, err
}
