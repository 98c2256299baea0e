package ingest

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"chanlens/pkg/model"
)

// jsonNumber accepts JSON numbers and numeric strings
func jsonNumber(v gjson.Result) (float64, bool) {
	switch v.Type {
	case gjson.Number:
		return v.Num, finite(v.Num)
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil || !finite(f) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// ParseJSON reads an array of objects carrying timestamp (or time), open,
// high, low, close and an optional volume. Timestamps are epoch seconds or
// milliseconds. The result is sorted by timestamp.
func ParseJSON(data []byte) ([]model.Bar, error) {
	if !gjson.ValidBytes(data) {
		return nil, &IngestError{Source: "json", Err: ErrBadDocument}
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsArray() {
		return nil, &IngestError{Source: "json", Field: "root", Err: ErrBadDocument}
	}

	items := doc.Array()
	bars := make([]model.Bar, 0, len(items))
	for i, item := range items {
		n := i + 1
		if !item.IsObject() {
			return nil, &IngestError{Source: "json", Line: n, Err: ErrBadDocument}
		}

		rawTS := item.Get("timestamp")
		if !rawTS.Exists() || rawTS.Type == gjson.Null {
			rawTS = item.Get("time")
		}
		tsVal, ok := jsonNumber(rawTS)
		if !ok {
			return nil, &IngestError{Source: "json", Line: n, Field: "timestamp", Err: ErrBadTimestamp}
		}
		ts, ok := normalizeEpoch(tsVal)
		if !ok {
			return nil, &IngestError{Source: "json", Line: n, Field: "timestamp", Err: ErrBadTimestamp}
		}

		var nums [4]float64
		for j, key := range []string{"open", "high", "low", "close"} {
			v, ok := jsonNumber(item.Get(key))
			if !ok {
				return nil, &IngestError{Source: "json", Line: n, Field: key, Err: ErrBadNumber}
			}
			nums[j] = v
		}

		var volume float64
		if raw := item.Get("volume"); raw.Exists() && raw.Type != gjson.Null {
			v, ok := jsonNumber(raw)
			if !ok {
				return nil, &IngestError{Source: "json", Line: n, Field: "volume", Err: ErrBadNumber}
			}
			volume = v
		}

		bars = append(bars, model.Bar{
			Timestamp: ts,
			Open:      nums[0],
			High:      nums[1],
			Low:       nums[2],
			Close:     nums[3],
			Volume:    volume,
		})
	}

	sortBars(bars)
	return bars, nil
}
