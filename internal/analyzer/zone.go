package analyzer

import (
	"fmt"
	"math"

	"chanlens/pkg/model"
)

// band is a closed price range
type band struct {
	high float64
	low  float64
}

// zoneItem is a counter-trend stroke with its price envelope
type zoneItem struct {
	index  int
	stroke model.Stroke
	band
}

func newZoneItem(s model.Stroke, index int) zoneItem {
	return zoneItem{index: index, stroke: s, band: band{high: s.High(), low: s.Low()}}
}

// overlap intersects the bands. It reports false unless min(highs) is
// strictly above max(lows); touching bands do not overlap.
func overlap(bands ...band) (band, bool) {
	if len(bands) == 0 {
		return band{}, false
	}
	out := band{high: math.Inf(1), low: math.Inf(-1)}
	for _, b := range bands {
		out.high = min(out.high, b.high)
		out.low = max(out.low, b.low)
	}
	if out.high <= out.low {
		return band{}, false
	}
	return out, true
}

// zoneBuilder holds the pending buffer and emitted zones for one call
type zoneBuilder struct {
	segments []model.Segment
	zones    []model.PivotZone
	free     []zoneItem
}

// segmentOf returns the segment containing the stroke index, falling back
// to the last segment.
func (b *zoneBuilder) segmentOf(strokeIndex int) int {
	for i, seg := range b.segments {
		if strokeIndex >= seg.StartStroke && strokeIndex <= seg.EndStroke {
			return i
		}
	}
	return len(b.segments) - 1
}

// extend tries to grow the most recent zone with item. The zone is replaced
// by a recomputed value; its band can only shrink.
func (b *zoneBuilder) extend(item zoneItem) bool {
	if len(b.zones) == 0 {
		return false
	}
	last := b.zones[len(b.zones)-1]
	ov, ok := overlap(band{high: last.High, low: last.Low}, item.band)
	if !ok {
		return false
	}

	last.EndStroke = item.index
	last.EndSegment = b.segmentOf(item.index)
	last.End = item.stroke.To
	last.High = ov.high
	last.Low = ov.low
	b.zones[len(b.zones)-1] = last
	return true
}

// open starts a zone from the last two buffered strokes when they overlap
func (b *zoneBuilder) open() {
	if len(b.free) < 2 {
		return
	}
	first, second := b.free[len(b.free)-2], b.free[len(b.free)-1]
	ov, ok := overlap(first.band, second.band)
	if !ok {
		return
	}

	b.zones = append(b.zones, model.PivotZone{
		ID:           fmt.Sprintf("zs-%d-%d", first.index, second.index),
		StartSegment: b.segmentOf(first.index),
		EndSegment:   b.segmentOf(second.index),
		StartStroke:  first.index,
		EndStroke:    second.index,
		Start:        first.stroke.From,
		End:          second.stroke.To,
		High:         ov.high,
		Low:          ov.low,
	})
	b.free = b.free[:0]
}

// BuildZones finds pivot zones among the strokes that run against their
// enclosing segment's direction.
func BuildZones(segments []model.Segment, strokes []model.Stroke) []model.PivotZone {
	if len(segments) == 0 || len(strokes) < 2 {
		return []model.PivotZone{}
	}

	b := &zoneBuilder{segments: segments, zones: []model.PivotZone{}}
	for _, seg := range segments {
		for i := seg.StartStroke; i <= seg.EndStroke && i < len(strokes); i++ {
			if strokes[i].Direction == seg.Direction {
				continue
			}
			item := newZoneItem(strokes[i], i)
			if b.extend(item) {
				continue
			}
			b.free = append(b.free, item)
			b.open()
		}
	}
	return b.zones
}
