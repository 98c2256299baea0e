package ingest

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"

	"chanlens/pkg/model"
)

var (
	timeKeys   = []string{"time", "timestamp", "date", "datetime"}
	openKeys   = []string{"open", "o"}
	highKeys   = []string{"high", "h"}
	lowKeys    = []string{"low", "l"}
	closeKeys  = []string{"close", "c"}
	volumeKeys = []string{"volume", "vol", "v"}
)

func findColumn(headers []string, candidates []string) int {
	for _, c := range candidates {
		for i, h := range headers {
			if strings.ToLower(strings.TrimSpace(h)) == c {
				return i
			}
		}
	}
	return -1
}

func parseCSVTimestamp(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, ErrBadTimestamp
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil && finite(v) {
		if ms, ok := normalizeEpoch(v); ok {
			return ms, nil
		}
		return 0, ErrBadTimestamp
	}
	if ms, ok := parseDate(s); ok {
		return ms, nil
	}
	return 0, ErrBadTimestamp
}

func parseCSVNumber(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || !finite(v) {
		return 0, ErrBadNumber
	}
	return v, nil
}

// ParseCSV reads a header row followed by OHLCV rows. Header names are
// matched case-insensitively against common aliases; rows with fewer
// fields than the header are skipped. The result is sorted by timestamp.
func ParseCSV(r io.Reader) ([]model.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	headers, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &IngestError{Source: "csv", Err: ErrNotEnoughRows}
	}
	if err != nil {
		return nil, &IngestError{Source: "csv", Line: 1, Err: errors.Join(ErrBadDocument, err)}
	}

	cols := []int{
		findColumn(headers, timeKeys),
		findColumn(headers, openKeys),
		findColumn(headers, highKeys),
		findColumn(headers, lowKeys),
		findColumn(headers, closeKeys),
		findColumn(headers, volumeKeys),
	}
	for _, c := range cols {
		if c < 0 {
			return nil, &IngestError{Source: "csv", Line: 1, Err: ErrMissingColumns}
		}
	}

	var (
		bars []model.Bar
		rows int
	)
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var line int
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				line = pe.Line
			}
			return nil, &IngestError{Source: "csv", Line: line, Err: errors.Join(ErrBadDocument, err)}
		}
		line, _ := cr.FieldPos(0)
		rows++
		if len(record) < len(headers) {
			continue
		}

		ts, err := parseCSVTimestamp(record[cols[0]])
		if err != nil {
			return nil, &IngestError{Source: "csv", Line: line, Field: headers[cols[0]], Err: err}
		}

		var nums [5]float64
		for i, c := range cols[1:] {
			v, err := parseCSVNumber(record[c])
			if err != nil {
				return nil, &IngestError{Source: "csv", Line: line, Field: headers[c], Err: err}
			}
			nums[i] = v
		}

		bars = append(bars, model.Bar{
			Timestamp: ts,
			Open:      nums[0],
			High:      nums[1],
			Low:       nums[2],
			Close:     nums[3],
			Volume:    nums[4],
		})
	}

	if rows == 0 {
		return nil, &IngestError{Source: "csv", Err: ErrNotEnoughRows}
	}

	if bars == nil {
		bars = []model.Bar{}
	}
	sortBars(bars)
	return bars, nil
}
