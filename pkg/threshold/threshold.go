package threshold

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// MaxIterations bounds the rate bisection
	MaxIterations = 100

	// Tolerance is the largest accepted distance between the Poisson tail
	// probability and the requested confidence
	Tolerance = 1e-9
)

// Rate searches for the Poisson rate mu at which P(X > target) equals
// confidence. The search starts at mu = target and halves its step every
// iteration. When it does not converge within MaxIterations the last mu is
// returned with converged set to false.
func Rate(target int, confidence float64) (mu float64, converged bool) {
	if target <= 0 {
		// P(X > 0) = 1 - e^-mu has a closed form and a zero step would never move
		return -math.Log1p(-confidence), true
	}

	mu = float64(target)
	step := float64(target)

	for i := 0; i < MaxIterations; i++ {
		step /= 2
		tail := 1 - distuv.Poisson{Lambda: mu}.CDF(float64(target))
		if math.Abs(confidence-tail) <= Tolerance {
			return mu, true
		}
		if tail > confidence {
			mu -= step
		} else {
			mu += step
		}
	}
	return mu, false
}

// Rank is the zero based position of the score used from each day
func Rank(mu float64) int {
	return int(math.Floor(mu))
}

// Contribution describes how one day of samples fed the threshold
type Contribution struct {
	Samples int
	Score   float64
	Counted bool
}

// Select averages the rank-th highest score of every day. Days with rank or
// fewer samples add nothing to the sum but still count as a day. Samples are
// not modified.
func Select(samples [][]float64, rank int) (float64, []Contribution) {
	contributions := make([]Contribution, len(samples))
	if len(samples) == 0 {
		return 0.0, contributions
	}

	sum := 0.0
	for i, day := range samples {
		contributions[i].Samples = len(day)
		if len(day) <= rank || rank < 0 {
			continue
		}
		sorted := make([]float64, len(day))
		copy(sorted, day)
		sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

		contributions[i].Score = sorted[rank]
		contributions[i].Counted = true
		sum += sorted[rank]
	}
	return sum / float64(len(samples)), contributions
}

// Compute converts per day alert samples into a score cutoff. The daily
// alert count is modelled as Poisson(mu) with mu chosen by Rate, and the
// cutoff is the mean of each day's floor(mu)-th highest score.
func Compute(samples [][]float64, target int, confidence float64) float64 {
	mu, _ := Rate(target, confidence)
	value, _ := Select(samples, Rank(mu))
	return value
}
