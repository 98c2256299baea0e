package analyzer

import (
	"math"

	"chanlens/pkg/model"
)

// minSegmentGap is the number of strokes that must separate a candidate peak
// from an opposite breakout before the candidate is confirmed.
const minSegmentGap = 2

// isBreakout reports whether stroke i makes a new extreme over stroke i-2
func isBreakout(strokes []model.Stroke, i int) bool {
	if i < 2 {
		return false
	}
	cur, prev2 := strokes[i], strokes[i-2]
	switch cur.Direction {
	case model.DirectionUp:
		return cur.To.Bar.High > prev2.To.Bar.High
	case model.DirectionDown:
		return cur.To.Bar.Low < prev2.To.Bar.Low
	}
	return false
}

// atLeastAsExtreme compares the endpoints of two same-direction strokes
func atLeastAsExtreme(candidate, peak model.Stroke) bool {
	if candidate.Direction == model.DirectionUp {
		return candidate.To.Bar.High >= peak.To.Bar.High
	}
	return candidate.To.Bar.Low <= peak.To.Bar.Low
}

// envelope returns the max high and min low of every stroke endpoint in [start, end]
func envelope(strokes []model.Stroke, start, end int) (high, low float64) {
	high, low = math.Inf(-1), math.Inf(1)
	for _, s := range strokes[start : end+1] {
		high = max(high, s.From.Bar.High, s.To.Bar.High)
		low = min(low, s.From.Bar.Low, s.To.Bar.Low)
	}
	return high, low
}

func newSegment(strokes []model.Stroke, start, end int, sure bool) model.Segment {
	first, last := strokes[start], strokes[end]
	high, low := envelope(strokes, start, end)
	return model.Segment{
		Direction:         first.Direction,
		From:              first.From,
		To:                last.To,
		High:              high,
		Low:               low,
		StartFractalIndex: first.From.Index,
		EndFractalIndex:   last.To.Index,
		StartStroke:       start,
		EndStroke:         end,
		IsSure:            sure,
	}
}

// nextStart is the first stroke index not yet covered by a segment
func nextStart(segments []model.Segment) int {
	if len(segments) == 0 {
		return 0
	}
	return segments[len(segments)-1].EndStroke + 1
}

// BuildSegments groups strokes into segments.
//
// A stroke is a breakout when it exceeds the endpoint of the stroke two
// positions earlier in its own direction. The first usable breakout becomes
// the candidate peak; same-direction breakouts move the candidate forward
// when at least as extreme; an opposite breakout more than two strokes
// later confirms a segment ending at the candidate and becomes the new
// candidate. Whatever candidate survives the scan closes a provisional
// segment, and the last segment is then pushed forward over any later
// stroke that extends its extreme.
func BuildSegments(strokes []model.Stroke) []model.Segment {
	segments := []model.Segment{}
	if len(strokes) < 3 {
		return segments
	}

	peak := -1
	for i := 2; i < len(strokes); i++ {
		if !isBreakout(strokes, i) {
			continue
		}
		cur := strokes[i]

		if peak < 0 {
			if len(segments) == 0 || cur.Direction != segments[len(segments)-1].Direction {
				peak = i
			}
			continue
		}

		if strokes[peak].Direction == cur.Direction {
			if atLeastAsExtreme(cur, strokes[peak]) {
				peak = i
			}
			continue
		}

		if i-peak <= minSegmentGap {
			continue
		}

		if start := nextStart(segments); peak >= start {
			segments = append(segments, newSegment(strokes, start, peak, true))
		}
		peak = i
	}

	if peak >= 0 {
		if start := nextStart(segments); peak >= start {
			segments = append(segments, newSegment(strokes, start, peak, false))
		}
	}

	if len(segments) > 0 {
		segments[len(segments)-1] = extendSegment(strokes, segments[len(segments)-1])
	}
	return segments
}

// extendSegment recomputes seg through every later same-direction stroke
// whose endpoint strictly beats the running endpoint. IsSure is unchanged.
func extendSegment(strokes []model.Stroke, seg model.Segment) model.Segment {
	for i := seg.EndStroke + 1; i < len(strokes); i++ {
		s := strokes[i]
		if s.Direction != seg.Direction {
			continue
		}
		beats := s.To.Bar.High > seg.To.Bar.High
		if seg.Direction == model.DirectionDown {
			beats = s.To.Bar.Low < seg.To.Bar.Low
		}
		if beats {
			seg = newSegment(strokes, seg.StartStroke, i, seg.IsSure)
		}
	}
	return seg
}
