package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chanlens/pkg/model"
)

func TestRunStructuralAnalysis_Empty(t *testing.T) {
	for _, bars := range [][]model.Bar{nil, barsFromHighs(1), barsFromHighs(1, 2)} {
		res := RunStructuralAnalysis(bars)
		assert.Empty(t, res.Fractals)
		assert.Empty(t, res.Strokes)
		assert.Empty(t, res.Segments)
		assert.Empty(t, res.Zones)
		assert.NotNil(t, res.Zones)
	}
}

func TestRunStructuralAnalysis_Monotonic(t *testing.T) {
	highs := make([]float64, 50)
	for i := range highs {
		highs[i] = 100 + float64(i)
	}

	res := RunStructuralAnalysis(barsFromHighs(highs...))
	assert.Empty(t, res.Fractals)
	assert.Empty(t, res.Strokes)
	assert.Empty(t, res.Segments)
	assert.Empty(t, res.Zones)
}

func TestRunStructuralAnalysis_Idempotent(t *testing.T) {
	bars := randomWalk(42, 1000)
	snapshot := append([]model.Bar(nil), bars...)

	first := RunStructuralAnalysis(bars)
	second := RunStructuralAnalysis(bars)

	assert.Equal(t, first, second)
	assert.Equal(t, snapshot, bars, "input must not be modified")
	require.NotEmpty(t, first.Segments)
}

func TestRunStructuralAnalysis_StagesCompose(t *testing.T) {
	bars := randomWalk(3, 500)
	res := RunStructuralAnalysis(bars)

	assert.Equal(t, DetectFractals(bars), res.Fractals)
	assert.Equal(t, BuildStrokes(res.Fractals), res.Strokes)
	assert.Equal(t, BuildSegments(res.Strokes), res.Segments)
	assert.Equal(t, BuildZones(res.Segments, res.Strokes), res.Zones)
}

func TestRunBreakoutAnalysis(t *testing.T) {
	bars := randomWalk(11, 500)

	res := RunBreakoutAnalysis(bars)
	st := RunStructuralAnalysis(bars)

	assert.Equal(t, st.Fractals, res.Fractals)
	assert.Equal(t, st.Strokes, res.Strokes)
	require.Len(t, res.Tags, len(res.Strokes))
	for i, tag := range res.Tags {
		assert.Equal(t, i, tag.Index)
		assert.Equal(t, StrokeLabel, tag.Label)
	}
	assert.Equal(t, len(res.Events), len(res.BOS())+len(res.CHOCH()))
	assert.Equal(t, res, RunBreakoutAnalysis(bars))

	bosOnly := RunBreakoutAnalysisWith(bars, ClassifyBOSOnly)
	assert.Len(t, bosOnly.Events, len(res.Events))
	assert.Empty(t, bosOnly.CHOCH())
}

func TestSummarize(t *testing.T) {
	bars := randomWalk(5, 400)

	sum := Summarize("BTCUSDT", bars, ClassifyTrend)
	st := RunStructuralAnalysis(bars)

	assert.Equal(t, "BTCUSDT", sum.Symbol)
	assert.Equal(t, len(bars), sum.Bars)
	assert.Equal(t, len(st.Segments), sum.Segments)
	assert.Equal(t, bars[len(bars)-1].Close, sum.LastClose)
	require.NotNil(t, sum.LastSegment)
	assert.Equal(t, st.Segments[len(st.Segments)-1], *sum.LastSegment)

	empty := Summarize("X", nil, ClassifyTrend)
	assert.Nil(t, empty.LastSegment)
	assert.Nil(t, empty.LastEvent)
	assert.Zero(t, empty.LastTimestamp)
}
