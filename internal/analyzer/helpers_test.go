package analyzer

import (
	"math/rand"

	"chanlens/pkg/model"
)

// bar builds a bar whose open/close sit inside [low, high]
func bar(i int, high, low float64) model.Bar {
	mid := (high + low) / 2
	return model.Bar{
		Timestamp: int64(i) * 60_000,
		Open:      mid,
		High:      high,
		Low:       low,
		Close:     mid,
		Volume:    1,
	}
}

// barsFromHighs builds bars with low = high - 1
func barsFromHighs(highs ...float64) []model.Bar {
	out := make([]model.Bar, len(highs))
	for i, h := range highs {
		out[i] = bar(i, h, h-1)
	}
	return out
}

// zigzag turns alternating turning points into fractals whose bar has
// high == low == price. Index is the position in prices.
func zigzag(prices ...float64) []model.Fractal {
	out := make([]model.Fractal, len(prices))
	for i, p := range prices {
		kind := model.FractalTop
		if (i+1 < len(prices) && p < prices[i+1]) || (i+1 == len(prices) && i > 0 && p < prices[i-1]) {
			kind = model.FractalBottom
		}
		out[i] = model.Fractal{
			Kind:  kind,
			Index: i,
			Bar:   model.Bar{Timestamp: int64(i) * 60_000, Open: p, High: p, Low: p, Close: p},
		}
	}
	return out
}

func strokesOf(prices ...float64) []model.Stroke {
	return BuildStrokes(zigzag(prices...))
}

// stroke builds a stroke directly, without alternation guarantees
func stroke(dir model.Direction, from, to float64) model.Stroke {
	fromKind, toKind := model.FractalBottom, model.FractalTop
	if dir == model.DirectionDown {
		fromKind, toKind = model.FractalTop, model.FractalBottom
	}
	return model.Stroke{
		Direction: dir,
		From:      model.Fractal{Kind: fromKind, Bar: model.Bar{High: from, Low: from}},
		To:        model.Fractal{Kind: toKind, Bar: model.Bar{High: to, Low: to}},
	}
}

func randomWalk(seed int64, n int) []model.Bar {
	r := rand.New(rand.NewSource(seed))
	out := make([]model.Bar, n)
	price := 100.0
	for i := range out {
		price += r.Float64()*4 - 2
		spread := r.Float64()*2 + 0.1
		out[i] = bar(i, price+spread, price-spread)
	}
	return out
}
