package analyzer

import "chanlens/pkg/model"

// DetectFractals scans for 3-bar local extrema.
// Bar i is a top when its high is strictly above both neighbours' highs and a
// bottom when its low is strictly below both neighbours' lows. Top wins if a
// bar qualifies as both.
func DetectFractals(bars []model.Bar) []model.Fractal {
	if len(bars) < 3 {
		return []model.Fractal{}
	}

	out := make([]model.Fractal, 0, len(bars)/4)
	for i := 1; i < len(bars)-1; i++ {
		left, mid, right := bars[i-1], bars[i], bars[i+1]

		if mid.High > left.High && mid.High > right.High {
			out = append(out, model.Fractal{Kind: model.FractalTop, Index: i, Bar: mid})
			continue
		}
		if mid.Low < left.Low && mid.Low < right.Low {
			out = append(out, model.Fractal{Kind: model.FractalBottom, Index: i, Bar: mid})
		}
	}
	return out
}
