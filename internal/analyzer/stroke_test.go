package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chanlens/pkg/model"
)

func fractal(kind model.FractalKind, index int, high, low float64) model.Fractal {
	return model.Fractal{Kind: kind, Index: index, Bar: model.Bar{High: high, Low: low}}
}

func TestNormalizeFractals(t *testing.T) {
	tests := []struct {
		name   string
		input  []model.Fractal
		expect []int // surviving indices
	}{
		{
			name:   "empty",
			input:  nil,
			expect: []int{},
		},
		{
			name: "alternating passes through",
			input: []model.Fractal{
				fractal(model.FractalTop, 1, 10, 9),
				fractal(model.FractalBottom, 3, 6, 5),
				fractal(model.FractalTop, 5, 11, 10),
			},
			expect: []int{1, 3, 5},
		},
		{
			name: "higher top kept",
			input: []model.Fractal{
				fractal(model.FractalTop, 1, 10, 9),
				fractal(model.FractalTop, 3, 12, 9),
				fractal(model.FractalTop, 5, 11, 9),
				fractal(model.FractalBottom, 7, 6, 5),
			},
			expect: []int{3, 7},
		},
		{
			name: "equal tops keep the later one",
			input: []model.Fractal{
				fractal(model.FractalTop, 1, 10, 9),
				fractal(model.FractalTop, 3, 10, 8),
			},
			expect: []int{3},
		},
		{
			name: "lower bottom kept, ties favour later",
			input: []model.Fractal{
				fractal(model.FractalBottom, 2, 6, 5),
				fractal(model.FractalBottom, 4, 6, 4),
				fractal(model.FractalBottom, 6, 7, 4),
				fractal(model.FractalTop, 8, 12, 11),
			},
			expect: []int{6, 8},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeFractals(tt.input)
			indices := make([]int, len(got))
			for i, f := range got {
				indices[i] = f.Index
			}
			assert.Equal(t, tt.expect, indices)
		})
	}
}

func TestBuildStrokes_TooFewFractals(t *testing.T) {
	assert.Empty(t, BuildStrokes(nil))
	assert.Empty(t, BuildStrokes([]model.Fractal{fractal(model.FractalTop, 1, 10, 9)}))
	// two tops collapse into one
	assert.Empty(t, BuildStrokes([]model.Fractal{
		fractal(model.FractalTop, 1, 10, 9),
		fractal(model.FractalTop, 3, 11, 9),
	}))
}

func TestBuildStrokes_DirectionFromOrigin(t *testing.T) {
	// the bottom's close is above the top's close; direction must still be up
	bottom := model.Fractal{Kind: model.FractalBottom, Index: 1, Bar: model.Bar{High: 10, Low: 5, Close: 9.9}}
	top := model.Fractal{Kind: model.FractalTop, Index: 4, Bar: model.Bar{High: 11, Low: 6, Close: 6.1}}

	strokes := BuildStrokes([]model.Fractal{bottom, top})
	require.Len(t, strokes, 1)
	assert.Equal(t, model.DirectionUp, strokes[0].Direction)
	assert.Equal(t, bottom, strokes[0].From)
	assert.Equal(t, top, strokes[0].To)
}

func TestBuildStrokes_VShapeWithPeak(t *testing.T) {
	bars := barsFromHighs(10, 9, 8, 9, 10, 9)

	strokes := BuildStrokes(DetectFractals(bars))
	require.Len(t, strokes, 1)
	assert.Equal(t, model.DirectionUp, strokes[0].Direction)
	assert.Equal(t, 2, strokes[0].From.Index)
	assert.Equal(t, 4, strokes[0].To.Index)
}

func TestBuildStrokes_Alternate(t *testing.T) {
	strokes := BuildStrokes(DetectFractals(randomWalk(7, 400)))
	require.NotEmpty(t, strokes)

	for i, s := range strokes {
		assert.NotEqual(t, s.From.Kind, s.To.Kind, "stroke %d", i)
		assert.Less(t, s.From.Index, s.To.Index, "stroke %d", i)
		if i > 0 {
			assert.NotEqual(t, strokes[i-1].Direction, s.Direction, "strokes %d and %d", i-1, i)
			assert.Equal(t, strokes[i-1].To, s.From, "stroke %d must start where %d ended", i, i-1)
		}
	}
}
