package threshold

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
)

type (
	// Calculator runs one threshold calculation cycle
	Calculator struct {
		Samples    *SampleBuilder
		Target     int
		Confidence float64
		Days       int
		Log        *log.Logger
	}

	// Result is the outcome of a calculation cycle
	Result struct {
		Value         float64
		Date          time.Time
		Mu            float64
		Converged     bool
		Rank          int
		Days          []time.Time
		Contributions []Contribution
	}
)

// Run gathers samples for the Days days ending at today and computes the
// threshold over them
func (c *Calculator) Run(ctx context.Context, today time.Time) (Result, error) {
	if c.Days < 1 {
		return Result{}, errors.New("at least one day must be analyzed")
	}
	days := DateList(today, c.Days)

	samples, err := c.Samples.Build(ctx, days)
	if err != nil {
		return Result{}, err
	}

	mu, converged := Rate(c.Target, c.Confidence)
	if !converged {
		c.Log.WithFields(log.Fields{
			"target":     c.Target,
			"confidence": c.Confidence,
			"mu":         mu,
		}).Debug("Poisson rate search did not converge")
	}

	rank := Rank(mu)
	value, contributions := Select(samples, rank)

	c.Log.WithFields(log.Fields{
		"threshold": value,
		"mu":        mu,
		"rank":      rank,
		"days":      len(days),
	}).Info("Computed threshold")

	return Result{
		Value:         value,
		Date:          days[0],
		Mu:            mu,
		Converged:     converged,
		Rank:          rank,
		Days:          days,
		Contributions: contributions,
	}, nil
}
