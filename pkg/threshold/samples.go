package threshold

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Ames-Laboratory-Cyber-Group/Cydime/pkg/alert"
	"github.com/Ames-Laboratory-Cyber-Group/Cydime/pkg/score"
	"github.com/Ames-Laboratory-Cyber-Group/Cydime/util"
	log "github.com/sirupsen/logrus"
)

// SampleBuilder gathers the scores of alerted addresses, one slice per day
type SampleBuilder struct {
	Alerts          alert.Source
	Scores          score.Store
	IncludeUnscored bool
	Log             *log.Logger

	// OnDay is called after each day is gathered, if set
	OnDay func(day time.Time, alerted int)
}

// DateList returns today and the days-1 days before it, newest first,
// truncated to midnight
func DateList(today time.Time, days int) []time.Time {
	start := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	dates := make([]time.Time, 0, days)
	for i := 0; i < days; i++ {
		dates = append(dates, start.AddDate(0, 0, -i))
	}
	return dates
}

// Build returns the samples for each day in days, in the same order.
// Alerted addresses which are not valid IPv4 are logged and skipped.
// Addresses without a score count as 0.0 only if IncludeUnscored is set.
func (b *SampleBuilder) Build(ctx context.Context, days []time.Time) ([][]float64, error) {
	samples := make([][]float64, 0, len(days))

	for _, day := range days {
		addrs, err := b.Alerts.Alerted(ctx, day)
		if err != nil {
			return nil, fmt.Errorf("could not read alerts for %s: %w", day.Format(util.DayFormat), err)
		}

		sample := make([]float64, 0, len(addrs))
		seen := make(map[uint32]bool, len(addrs))
		for _, addr := range addrs {
			key, ok := util.ParseIPv4(strings.TrimSpace(addr))
			if !ok {
				b.Log.WithFields(log.Fields{
					"address": addr,
					"day":     day.Format(util.DayFormat),
				}).Error("Invalid IP returned by the alert store")
				continue
			}
			if seen[key] {
				continue
			}
			seen[key] = true

			s, found, err := b.Scores.Score(ctx, key)
			if err != nil {
				return nil, fmt.Errorf("could not read score for %s: %w", addr, err)
			}
			if found {
				sample = append(sample, s)
			} else if b.IncludeUnscored {
				sample = append(sample, 0.0)
			}
		}

		b.Log.WithFields(log.Fields{
			"day":     day.Format(util.DayFormat),
			"alerted": len(addrs),
			"scored":  len(sample),
		}).Debug("Gathered alert samples")

		if b.OnDay != nil {
			b.OnDay(day, len(addrs))
		}
		samples = append(samples, sample)
	}
	return samples, nil
}
