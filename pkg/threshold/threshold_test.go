package threshold

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"
)

func TestRate(t *testing.T) {
	testCases := []struct {
		target     int
		confidence float64
		msg        string
	}{
		{1, 0.5, "median of a small rate"},
		{10, 0.5, "median of the default rate"},
		{10, 0.2, "lower tail bound"},
		{5, 0.7, "upper tail bound"},
	}

	for _, testCase := range testCases {
		mu, converged := Rate(testCase.target, testCase.confidence)
		require.True(t, converged, testCase.msg)
		tail := 1 - distuv.Poisson{Lambda: mu}.CDF(float64(testCase.target))
		assert.InDelta(t, testCase.confidence, tail, 1e-8, testCase.msg)
	}
}

func TestRateKnownValue(t *testing.T) {
	// 1 - e^-mu (1 + mu) = 0.5
	mu, converged := Rate(1, 0.5)
	assert.True(t, converged)
	assert.InDelta(t, 1.678347, mu, 1e-5)
	assert.Equal(t, 1, Rank(mu))
}

func TestRateZeroTarget(t *testing.T) {
	mu, converged := Rate(0, 0.5)
	assert.True(t, converged)
	assert.InDelta(t, math.Ln2, mu, 1e-12)
	assert.Equal(t, 0, Rank(mu))
}

func TestRateNonConvergence(t *testing.T) {
	// P(X > 1) never reaches 0.99 while mu stays below 2
	mu, converged := Rate(1, 0.99)
	assert.False(t, converged, "non convergence is reported but not fatal")
	assert.InDelta(t, 2.0, mu, 1e-6)
}

func TestComputeConcrete(t *testing.T) {
	samples := [][]float64{{0.9, 0.8, 0.3}, {0.95, 0.4}}

	first := Compute(samples, 1, 0.5)
	assert.InDelta(t, 0.6, first, 1e-12)

	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Compute(samples, 1, 0.5), "repeated runs are identical")
	}
}

func TestComputeEmpty(t *testing.T) {
	assert.Equal(t, 0.0, Compute(nil, 10, 0.99))
	assert.Equal(t, 0.0, Compute([][]float64{}, 1, 0.5))
}

func TestSelect(t *testing.T) {
	testCases := []struct {
		samples [][]float64
		rank    int
		value   float64
		msg     string
	}{
		{[][]float64{{0.3, 0.9, 0.8}}, 0, 0.9, "days are sorted descending"},
		{[][]float64{{0.3, 0.9, 0.8}}, 2, 0.3, "last element"},
		{[][]float64{{0.9, 0.8}, {0.5}}, 1, 0.4, "short days still count towards the average"},
		{[][]float64{{0.9}, {}}, 1, 0.0, "no day has enough samples"},
		{[][]float64{{}, {}, {0.6, 0.3}}, 0, 0.2, "empty days dilute the average"},
	}

	for _, testCase := range testCases {
		value, contributions := Select(testCase.samples, testCase.rank)
		assert.InDelta(t, testCase.value, value, 1e-12, testCase.msg)
		assert.Len(t, contributions, len(testCase.samples), testCase.msg)
	}
}

func TestSelectDoesNotMutate(t *testing.T) {
	day := []float64{0.3, 0.9, 0.8}
	_, contributions := Select([][]float64{day}, 1)
	assert.Equal(t, []float64{0.3, 0.9, 0.8}, day)
	assert.Equal(t, Contribution{Samples: 3, Score: 0.8, Counted: true}, contributions[0])
}

func TestComputeNonIncreasingInTarget(t *testing.T) {
	samples := [][]float64{
		{0.99, 0.95, 0.9, 0.85, 0.8, 0.7, 0.6, 0.5, 0.4, 0.3},
		{0.97, 0.9, 0.88, 0.7, 0.65, 0.6, 0.5, 0.45},
		{0.92, 0.91, 0.75, 0.74, 0.5, 0.2},
	}

	previous := math.Inf(1)
	previousRank := -1
	for target := 0; target <= 8; target++ {
		mu, _ := Rate(target, 0.5)
		rank := Rank(mu)
		assert.True(t, rank >= previousRank, "rank grows with the alert budget")

		value := Compute(samples, target, 0.5)
		assert.True(t, value <= previous, "a larger alert budget never raises the cutoff")
		previous, previousRank = value, rank
	}
}
