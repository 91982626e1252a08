package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// Paths resolves artifact locations under a single data root.
type Paths struct {
	DataDir string
}

// NewPaths creates a Paths rooted at dataDir.
func NewPaths(dataDir string) Paths {
	if dataDir == "" {
		dataDir = "data"
	}
	return Paths{DataDir: dataDir}
}

// ContentDir is where generated content artifacts live.
func (p Paths) ContentDir() string {
	return filepath.Join(p.DataDir, "generated_content")
}

// CampaignsDir is where campaign log artifacts live.
func (p Paths) CampaignsDir() string {
	return filepath.Join(p.DataDir, "campaigns")
}

// AnalyticsDir is where performance, summary and improvement artifacts live.
func (p Paths) AnalyticsDir() string {
	return filepath.Join(p.DataDir, "analytics")
}

// EnsureDirs creates the three artifact directories if they don't exist.
func (p Paths) EnsureDirs() error {
	for _, dir := range []string{p.ContentDir(), p.CampaignsDir(), p.AnalyticsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory %s: %w", dir, err)
		}
	}
	return nil
}

// ContentPath returns the content artifact path for a campaign. The blog
// title is sanitized so the file name stays filesystem-safe.
func (p Paths) ContentPath(blogTitle, campaignID string) string {
	return filepath.Join(p.ContentDir(), SanitizeFilename(blogTitle)+"_"+campaignID+".json")
}

// CampaignLogPath returns the campaign log artifact path.
func (p Paths) CampaignLogPath(campaignID string) string {
	return filepath.Join(p.CampaignsDir(), campaignID+"_log.json")
}

// PerformancePath returns the performance artifact path.
func (p Paths) PerformancePath(campaignID string) string {
	return filepath.Join(p.AnalyticsDir(), campaignID+"_performance.json")
}

// SummaryPath returns the summary artifact path.
func (p Paths) SummaryPath(campaignID string) string {
	return filepath.Join(p.AnalyticsDir(), campaignID+"_summary.json")
}

// ImprovementsPath returns the improvement-suggestions artifact path.
func (p Paths) ImprovementsPath(campaignID string) string {
	return filepath.Join(p.AnalyticsDir(), campaignID+"_improvements.json")
}

// CampaignLogFiles lists every campaign log artifact, sorted by file name.
func (p Paths) CampaignLogFiles() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(p.CampaignsDir(), "*_log.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list campaign logs: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// CountCampaigns reports how many campaign log artifacts exist. It feeds
// the stored-campaigns gauge in the metrics collector.
func (p Paths) CountCampaigns(ctx context.Context) (int, error) {
	files, err := p.CampaignLogFiles()
	if err != nil {
		return 0, err
	}
	return len(files), nil
}

// PerformanceIDs lists the campaign ids that have a stored performance
// artifact, sorted ascending (ids embed the run timestamp).
func (p Paths) PerformanceIDs() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(p.AnalyticsDir(), "*_performance.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list performance artifacts: %w", err)
	}
	ids := make([]string, 0, len(files))
	for _, f := range files {
		base := filepath.Base(f)
		ids = append(ids, strings.TrimSuffix(base, "_performance.json"))
	}
	sort.Strings(ids)
	return ids, nil
}

// SaveJSON writes v as indented UTF-8 JSON to path, creating parent
// directories as needed. The file is written in a single call so readers
// never observe a partial artifact.
func SaveJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// LoadJSON reads the JSON document at path into v. A missing file keeps
// os.ErrNotExist in the error chain so callers can map it to a not-found
// response.
func LoadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// SanitizeFilename keeps only letters, digits, spaces, hyphens and
// underscores, truncates to 50 characters and strips trailing spaces.
// The result is stable under repeated application.
func SanitizeFilename(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	runes := []rune(b.String())
	if len(runes) > 50 {
		runes = runes[:50]
	}
	return strings.TrimRight(string(runes), " ")
}

// NewCampaignID mints a run identifier. The prefix carries the start time at
// second resolution; the random suffix keeps ids from two runs started in the
// same second distinct.
func NewCampaignID() string {
	return newCampaignIDAt(time.Now())
}

func newCampaignIDAt(t time.Time) string {
	return fmt.Sprintf("campaign_%s_%s", t.Format("20060102_150405"), uuid.New().String()[:8])
}

// FormatTimestamp returns the timestamp format used inside artifacts.
func FormatTimestamp() string {
	return time.Now().Format(time.RFC3339)
}
