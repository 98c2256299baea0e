package ingest

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"chanlens/pkg/model"
)

const (
	millisThreshold  = 1_000_000_000_000
	secondsThreshold = 1_000_000_000
)

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
}

// normalizeEpoch converts a seconds or milliseconds epoch into milliseconds
func normalizeEpoch(v float64) (int64, bool) {
	switch {
	case v > millisThreshold:
		return int64(v), true
	case v > secondsThreshold:
		return int64(v * 1000), true
	default:
		return 0, false
	}
}

// parseDate accepts the common textual layouts, interpreted as UTC
func parseDate(s string) (int64, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UnixMilli(), true
		}
	}
	return 0, false
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func sortBars(bars []model.Bar) {
	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Timestamp < bars[j].Timestamp
	})
}

// Validate checks the collaborator contract: finite fields and
// non-decreasing timestamps.
func Validate(bars []model.Bar) error {
	for i, b := range bars {
		for _, f := range []struct {
			name string
			v    float64
		}{{"open", b.Open}, {"high", b.High}, {"low", b.Low}, {"close", b.Close}, {"volume", b.Volume}} {
			if !finite(f.v) {
				return &IngestError{Source: "bars", Line: i + 1, Field: f.name, Err: ErrBadNumber}
			}
		}
		if i > 0 && b.Timestamp < bars[i-1].Timestamp {
			return &IngestError{Source: "bars", Line: i + 1, Err: ErrUnordered}
		}
	}
	return nil
}

// ReadFile parses a .csv or .json file by extension
func ReadFile(path string) ([]model.Bar, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return ReadFileAs("csv", path)
	case ".json":
		return ReadFileAs("json", path)
	default:
		return nil, &IngestError{Source: "file", Field: filepath.Base(path), Err: ErrUnknownFormat}
	}
}

// ReadFileAs parses path as the named format, "csv" or "json"
func ReadFileAs(format, path string) ([]model.Bar, error) {
	if format != "csv" && format != "json" {
		return nil, &IngestError{Source: "file", Field: format, Err: ErrUnknownFormat}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	if format == "csv" {
		return ParseCSV(f)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return ParseJSON(data)
}
