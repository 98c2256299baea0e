// Package analyzer derives the structural decomposition of a bar series:
// fractals, strokes, segments and pivot zones (Chan), and swing breakout
// events (ICT) built on the same strokes.
//
// Every function is pure. Input bars must already be ordered by timestamp;
// nothing here re-sorts or validates them. Short inputs produce empty
// results rather than errors.
package analyzer

import "chanlens/pkg/model"

// RunStructuralAnalysis computes fractals -> strokes -> segments -> zones
func RunStructuralAnalysis(bars []model.Bar) model.StructuralResult {
	fractals := DetectFractals(bars)
	strokes := BuildStrokes(fractals)
	segments := BuildSegments(strokes)
	zones := BuildZones(segments, strokes)

	return model.StructuralResult{
		Fractals: fractals,
		Strokes:  strokes,
		Segments: segments,
		Zones:    zones,
	}
}

// RunBreakoutAnalysis computes fractals -> strokes -> events with
// trend-aware classification
func RunBreakoutAnalysis(bars []model.Bar) model.BreakoutResult {
	return RunBreakoutAnalysisWith(bars, ClassifyTrend)
}

// RunBreakoutAnalysisWith is RunBreakoutAnalysis with an explicit classification
func RunBreakoutAnalysisWith(bars []model.Bar, mode Classification) model.BreakoutResult {
	fractals := DetectFractals(bars)
	strokes := BuildStrokes(fractals)

	tags := make([]model.TaggedStroke, len(strokes))
	for i := range strokes {
		tags[i] = model.TaggedStroke{Index: i, Label: StrokeLabel}
	}

	return model.BreakoutResult{
		Fractals: fractals,
		Strokes:  strokes,
		Tags:     tags,
		Events:   DetectEvents(strokes, mode),
	}
}

// Summarize runs both analyses and condenses them for listing
func Summarize(symbol string, bars []model.Bar, mode Classification) model.Summary {
	st := RunStructuralAnalysis(bars)
	events := DetectEvents(st.Strokes, mode)

	sum := model.Summary{
		Symbol:   symbol,
		Bars:     len(bars),
		Fractals: len(st.Fractals),
		Strokes:  len(st.Strokes),
		Segments: len(st.Segments),
		Zones:    len(st.Zones),
	}
	if n := len(bars); n > 0 {
		sum.LastClose = bars[n-1].Close
		sum.LastTimestamp = bars[n-1].Timestamp
	}
	if n := len(st.Segments); n > 0 {
		seg := st.Segments[n-1]
		sum.LastSegment = &seg
	}
	if n := len(st.Zones); n > 0 {
		zone := st.Zones[n-1]
		sum.LastZone = &zone
	}
	if n := len(events); n > 0 {
		ev := events[n-1]
		sum.LastEvent = &ev
	}
	return sum
}
