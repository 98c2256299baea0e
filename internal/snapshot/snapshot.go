// Package snapshot keeps a bounded, most-recent-first history of bar
// series so an analysis can be replayed without refetching.
package snapshot

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"chanlens/pkg/model"
)

// Source names where a snapshot's bars came from
type Source string

const (
	SourceBinance Source = "binance"
	SourceYahoo   Source = "yahoo"
	SourceJSON    Source = "json"
	SourceCSV     Source = "csv"
	SourceManual  Source = "manual"
)

// Context records the request that produced the bars
type Context struct {
	Symbol   string `json:"symbol,omitempty"`
	Interval string `json:"interval,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	FileName string `json:"file_name,omitempty"`
}

type Snapshot struct {
	ID      string      `json:"id"`
	Source  Source      `json:"source"`
	Label   string      `json:"label"`
	SavedAt time.Time   `json:"saved_at"`
	Context Context     `json:"context"`
	Bars    []model.Bar `json:"bars"`
}

// Meta is a snapshot without its bars
type Meta struct {
	ID      string    `json:"id"`
	Source  Source    `json:"source"`
	Label   string    `json:"label"`
	SavedAt time.Time `json:"saved_at"`
	Count   int       `json:"count"`
	Context Context   `json:"context"`
}

// Meta summarizes the snapshot
func (s Snapshot) Meta() Meta {
	return Meta{
		ID:      s.ID,
		Source:  s.Source,
		Label:   s.Label,
		SavedAt: s.SavedAt,
		Count:   len(s.Bars),
		Context: s.Context,
	}
}

// RemoteID keys a fetched window, e.g. binance:BTCUSDT:1h:500
func RemoteID(source Source, symbol, interval string, limit int) string {
	return fmt.Sprintf("%s:%s:%s:%d", source, strings.ToUpper(symbol), interval, limit)
}

// FileID keys an uploaded file, e.g. json:btc.json
func FileID(source Source, fileName string) string {
	return fmt.Sprintf("%s:%s", source, strings.ToLower(strings.TrimSpace(fileName)))
}

// NewRemote builds a snapshot of a provider fetch
func NewRemote(source Source, symbol, interval string, limit int, bars []model.Bar) Snapshot {
	symbol = strings.ToUpper(symbol)
	return Snapshot{
		ID:     RemoteID(source, symbol, interval, limit),
		Source: source,
		Label:  fmt.Sprintf("%s %s (%d)", symbol, interval, limit),
		Context: Context{
			Symbol:   symbol,
			Interval: interval,
			Limit:    limit,
		},
		Bars: bars,
	}
}

// NewFile builds a snapshot of an uploaded csv or json file
func NewFile(source Source, fileName string, bars []model.Bar) Snapshot {
	return Snapshot{
		ID:      FileID(source, fileName),
		Source:  source,
		Label:   fmt.Sprintf("%s %s", strings.ToUpper(string(source)), fileName),
		Context: Context{FileName: fileName},
		Bars:    bars,
	}
}

// NewManual builds a snapshot under a fresh manual-<uuid> id
func NewManual(label string, ctx Context, bars []model.Bar) Snapshot {
	id := "manual-" + uuid.NewString()
	if label == "" {
		label = id
	}
	return Snapshot{
		ID:      id,
		Source:  SourceManual,
		Label:   label,
		Context: ctx,
		Bars:    bars,
	}
}
