package analyzer

import (
	"fmt"

	"chanlens/pkg/model"
)

// Classification selects how breakout events are labelled
type Classification string

const (
	// ClassifyTrend labels a breakout against the running trend as choch
	ClassifyTrend Classification = "trend"
	// ClassifyBOSOnly labels every breakout as bos
	ClassifyBOSOnly Classification = "bos-only"
)

// ParseClassification maps a config string to a Classification
func ParseClassification(s string) (Classification, error) {
	switch Classification(s) {
	case "", ClassifyTrend:
		return ClassifyTrend, nil
	case ClassifyBOSOnly:
		return ClassifyBOSOnly, nil
	default:
		return "", fmt.Errorf("unknown classification %q (want %q or %q)", s, ClassifyTrend, ClassifyBOSOnly)
	}
}

// StrokeLabel tags strokes in the breakout view
const StrokeLabel = "ict-bi"

// Swings collapses strokes back into an alternating fractal sequence: the
// origin of the first stroke followed by the end of every stroke.
func Swings(strokes []model.Stroke) []model.Fractal {
	if len(strokes) == 0 {
		return []model.Fractal{}
	}
	out := make([]model.Fractal, 0, len(strokes)+1)
	out = append(out, strokes[0].From)
	for _, s := range strokes {
		out = append(out, s.To)
	}
	return out
}

func newEvent(kind model.EventKind, dir model.Direction, brokenFrom, confirmedBy model.Fractal) model.StructureEvent {
	price := brokenFrom.Bar.High
	if dir == model.DirectionDown {
		price = brokenFrom.Bar.Low
	}
	return model.StructureEvent{
		ID:          fmt.Sprintf("%s-%s-%d-%d", kind, dir, brokenFrom.Index, confirmedBy.Index),
		Kind:        kind,
		Direction:   dir,
		BrokenFrom:  brokenFrom,
		ConfirmedBy: confirmedBy,
		BrokenPrice: price,
	}
}

// eventTracker remembers the most extreme top and bottom seen so far and the
// direction of the last breakout.
type eventTracker struct {
	mode   Classification
	top    *model.Fractal
	bottom *model.Fractal
	trend  model.Direction // empty until the first breakout
	events []model.StructureEvent
}

func (t *eventTracker) kind(dir model.Direction) model.EventKind {
	if t.mode == ClassifyTrend && t.trend == dir.Opposite() {
		return model.EventCHOCH
	}
	return model.EventBOS
}

func (t *eventTracker) observe(swing model.Fractal) {
	if swing.Kind == model.FractalTop {
		if t.top != nil && swing.Bar.High > t.top.Bar.High {
			t.events = append(t.events, newEvent(t.kind(model.DirectionUp), model.DirectionUp, *t.top, swing))
			t.trend = model.DirectionUp
		}
		if t.top == nil || swing.Bar.High >= t.top.Bar.High {
			t.top = &swing
		}
		return
	}

	if t.bottom != nil && swing.Bar.Low < t.bottom.Bar.Low {
		t.events = append(t.events, newEvent(t.kind(model.DirectionDown), model.DirectionDown, *t.bottom, swing))
		t.trend = model.DirectionDown
	}
	if t.bottom == nil || swing.Bar.Low <= t.bottom.Bar.Low {
		t.bottom = &swing
	}
}

// DetectEvents emits a structure event each time a swing top breaks the
// highest top so far, or a swing bottom breaks the lowest bottom so far.
func DetectEvents(strokes []model.Stroke, mode Classification) []model.StructureEvent {
	swings := Swings(strokes)
	if len(swings) < 3 {
		return []model.StructureEvent{}
	}

	t := &eventTracker{mode: mode, events: []model.StructureEvent{}}
	for _, swing := range swings {
		t.observe(swing)
	}
	return t.events
}
