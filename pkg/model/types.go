package model

import "time"

// Bar represents a single candlestick (OHLCV data).
// Timestamp is in milliseconds since the Unix epoch.
type Bar struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// Time returns the bar timestamp as a time.Time in UTC
func (b Bar) Time() time.Time {
	return time.UnixMilli(b.Timestamp).UTC()
}

// FractalKind is either a top or a bottom
type FractalKind string

const (
	FractalTop    FractalKind = "top"
	FractalBottom FractalKind = "bottom"
)

// Direction of a stroke, segment or structure event
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Opposite returns the reverse direction
func (d Direction) Opposite() Direction {
	if d == DirectionUp {
		return DirectionDown
	}
	return DirectionUp
}

// Fractal is a local 3-bar extremum. Bar is the middle bar of the window.
type Fractal struct {
	Kind  FractalKind `json:"kind"`
	Index int         `json:"index"` // position in the bar sequence
	Bar   Bar         `json:"bar"`
}

// Stroke ("bi") connects two alternating fractals
type Stroke struct {
	Direction Direction `json:"direction"`
	From      Fractal   `json:"from"`
	To        Fractal   `json:"to"`
}

// High returns the highest endpoint price of the stroke
func (s Stroke) High() float64 {
	return max(s.From.Bar.High, s.To.Bar.High)
}

// Low returns the lowest endpoint price of the stroke
func (s Stroke) Low() float64 {
	return min(s.From.Bar.Low, s.To.Bar.Low)
}

// Segment groups a contiguous range of strokes into a higher-order move
type Segment struct {
	Direction         Direction `json:"direction"`
	From              Fractal   `json:"from"`
	To                Fractal   `json:"to"`
	High              float64   `json:"high"`
	Low               float64   `json:"low"`
	StartFractalIndex int       `json:"start_fractal_index"`
	EndFractalIndex   int       `json:"end_fractal_index"`
	StartStroke       int       `json:"start_bi_index"`
	EndStroke         int       `json:"end_bi_index"`
	IsSure            bool      `json:"is_sure"` // false for the provisional tail segment
}

// PivotZone ("zhongshu") is a consolidation band [Low, High] formed by
// overlapping counter-trend strokes.
type PivotZone struct {
	ID           string  `json:"id"`
	StartSegment int     `json:"start_segment_index"`
	EndSegment   int     `json:"end_segment_index"`
	StartStroke  int     `json:"start_bi_index"`
	EndStroke    int     `json:"end_bi_index"`
	Start        Fractal `json:"start"`
	End          Fractal `json:"end"`
	High         float64 `json:"high"`
	Low          float64 `json:"low"`
}

// EventKind classifies a swing breakout
type EventKind string

const (
	EventBOS   EventKind = "bos"   // break of structure, continuation
	EventCHOCH EventKind = "choch" // change of character, reversal
)

// StructureEvent is a point-in-time swing breakout
type StructureEvent struct {
	ID          string    `json:"id"`
	Kind        EventKind `json:"kind"`
	Direction   Direction `json:"direction"`
	BrokenFrom  Fractal   `json:"broken_from"`
	ConfirmedBy Fractal   `json:"confirmed_by"`
	BrokenPrice float64   `json:"broken_price"`
}

// TaggedStroke labels a stroke of the shared stroke slice by index
type TaggedStroke struct {
	Index int    `json:"index"`
	Label string `json:"label"`
}

// StructuralResult is the layered Chan decomposition of a bar series
type StructuralResult struct {
	Fractals []Fractal   `json:"fractals"`
	Strokes  []Stroke    `json:"bis"`
	Segments []Segment   `json:"segments"`
	Zones    []PivotZone `json:"zhongshus"`
}

// BreakoutResult is the ICT view: shared fractals/strokes plus structure events
type BreakoutResult struct {
	Fractals []Fractal        `json:"fractals"`
	Strokes  []Stroke         `json:"bis"`
	Tags     []TaggedStroke   `json:"tags"`
	Events   []StructureEvent `json:"events"`
}

// BOS returns the break-of-structure events in order
func (r BreakoutResult) BOS() []StructureEvent {
	return r.filter(EventBOS)
}

// CHOCH returns the change-of-character events in order
func (r BreakoutResult) CHOCH() []StructureEvent {
	return r.filter(EventCHOCH)
}

func (r BreakoutResult) filter(kind EventKind) []StructureEvent {
	out := make([]StructureEvent, 0, len(r.Events))
	for _, e := range r.Events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Summary condenses both analyses of one symbol (used by scan output)
type Summary struct {
	Symbol        string          `json:"symbol"`
	Bars          int             `json:"bars"`
	Fractals      int             `json:"fractals"`
	Strokes       int             `json:"strokes"`
	Segments      int             `json:"segments"`
	Zones         int             `json:"zones"`
	LastSegment   *Segment        `json:"last_segment,omitempty"`
	LastZone      *PivotZone      `json:"last_zone,omitempty"`
	LastEvent     *StructureEvent `json:"last_event,omitempty"`
	LastClose     float64         `json:"last_close"`
	LastTimestamp int64           `json:"last_timestamp"`
}

// ScanResult represents the final scan output
type ScanResult struct {
	TotalScanned int               `json:"total_scanned"`
	Analyzed     int               `json:"analyzed"`
	Failed       map[string]string `json:"failed,omitempty"`
	Summaries    []Summary         `json:"summaries"`
	ScanTime     time.Duration     `json:"scan_time"`
}
