package analyzer

import "chanlens/pkg/model"

// moreExtreme reports whether candidate should replace current among
// consecutive same-kind fractals. Ties favour the later fractal.
func moreExtreme(candidate, current model.Fractal) bool {
	if candidate.Kind != current.Kind {
		return false
	}
	if candidate.Kind == model.FractalTop {
		return candidate.Bar.High >= current.Bar.High
	}
	return candidate.Bar.Low <= current.Bar.Low
}

// NormalizeFractals collapses runs of same-kind fractals into their extreme
// member so that kinds strictly alternate.
func NormalizeFractals(fractals []model.Fractal) []model.Fractal {
	if len(fractals) == 0 {
		return []model.Fractal{}
	}

	out := make([]model.Fractal, 0, len(fractals))
	prev := fractals[0]
	for _, f := range fractals[1:] {
		if f.Kind == prev.Kind {
			if moreExtreme(f, prev) {
				prev = f
			}
			continue
		}
		out = append(out, prev)
		prev = f
	}
	return append(out, prev)
}

// strokeDirection is decided by the origin fractal, never by price
func strokeDirection(from model.Fractal) model.Direction {
	if from.Kind == model.FractalBottom {
		return model.DirectionUp
	}
	return model.DirectionDown
}

// BuildStrokes normalizes the fractals and pairs each adjacent couple into a
// stroke. The result alternates direction.
func BuildStrokes(fractals []model.Fractal) []model.Stroke {
	normalized := NormalizeFractals(fractals)
	if len(normalized) < 2 {
		return []model.Stroke{}
	}

	out := make([]model.Stroke, 0, len(normalized)-1)
	for i := 1; i < len(normalized); i++ {
		from, to := normalized[i-1], normalized[i]
		if from.Kind == to.Kind {
			continue
		}
		out = append(out, model.Stroke{
			Direction: strokeDirection(from),
			From:      from,
			To:        to,
		})
	}
	return out
}
