package stats

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tberrors "github.com/jj-shen99/testbench/internal/errors"
	"github.com/jj-shen99/testbench/internal/model"
)

func oneToHundred() []float64 {
	xs := make([]float64, 100)
	for i := range xs {
		xs[i] = float64(i + 1)
	}
	return xs
}

func TestPercentile_OneToHundred(t *testing.T) {
	xs := oneToHundred()
	rand.New(rand.NewSource(7)).Shuffle(len(xs), func(i, j int) { xs[i], xs[j] = xs[j], xs[i] })

	p50, err := Percentile(xs, 50)
	require.NoError(t, err)
	p95, err := Percentile(xs, 95)
	require.NoError(t, err)
	max, err := Max(xs)
	require.NoError(t, err)

	assert.Equal(t, 95.0, p95)
	assert.LessOrEqual(t, p50, p95)
	assert.LessOrEqual(t, p95, max)
}

func TestPercentile_DoesNotReorderInput(t *testing.T) {
	xs := []float64{3, 1, 2}
	_, err := Percentile(xs, 50)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 1, 2}, xs)
}

func TestPercentile_Bounds(t *testing.T) {
	xs := []float64{4, 8, 15}

	v, err := Percentile(xs, 0)
	require.NoError(t, err)
	assert.Equal(t, 4.0, v)

	v, err = Percentile(xs, 100)
	require.NoError(t, err)
	assert.Equal(t, 15.0, v)

	_, err = Percentile(xs, 101)
	require.Error(t, err)
	assert.True(t, tberrors.Is(err, tberrors.KindValidation))
}

func TestEmptyInput(t *testing.T) {
	funcs := map[string]func([]float64) (float64, error){
		"mean": Mean,
		"max":  Max,
		"min":  Min,
		"p95":  func(xs []float64) (float64, error) { return Percentile(xs, 95) },
	}

	for name, fn := range funcs {
		t.Run(name, func(t *testing.T) {
			_, err := fn(nil)
			require.Error(t, err)
			assert.True(t, tberrors.IsEmptyInput(err), "want EmptyInput error, got %v", err)
		})
	}
}

func TestMeanMaxMin(t *testing.T) {
	xs := []float64{0.2, 0.4, 0.6}

	mean, err := Mean(xs)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, mean, 1e-9)

	max, err := Max(xs)
	require.NoError(t, err)
	assert.Equal(t, 0.6, max)

	min, err := Min(xs)
	require.NoError(t, err)
	assert.Equal(t, 0.2, min)
}

func TestAnalyze(t *testing.T) {
	result := model.LoadTestResult{
		Successful:    3,
		Failed:        1,
		ResponseTimes: []float64{0.1, 0.2, 0.3},
		Errors:        []string{"db: connection reset"},
	}

	a := Analyze(result)

	assert.Equal(t, 4, a.TotalRequests)
	assert.InDelta(t, 75.0, a.SuccessRatePercent, 1e-9)
	assert.InDelta(t, 0.2, a.AvgResponseTime, 1e-9)
	assert.Equal(t, 0.3, a.P95ResponseTime)
	assert.Equal(t, 0.3, a.MaxResponseTime)
	assert.Equal(t, 0.1, a.MinResponseTime)
	assert.Equal(t, 1, a.ErrorCount)
}

func TestAnalyze_NoRequests(t *testing.T) {
	a := Analyze(model.LoadTestResult{})

	assert.Equal(t, model.LoadAnalysis{}, a)
}

func TestAnalyze_AllFailed(t *testing.T) {
	a := Analyze(model.LoadTestResult{Failed: 2, Errors: []string{"a", "b"}})

	assert.Equal(t, 2, a.TotalRequests)
	assert.Zero(t, a.SuccessRatePercent)
	assert.Zero(t, a.AvgResponseTime)
	assert.Equal(t, 2, a.ErrorCount)
}
