package funding

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrEmptySeries is returned when an operation requires at least one observation.
var ErrEmptySeries = errors.New("empty funding series")

// Observation represents a single funding settlement for one instrument.
// Rate is expressed in percent per settlement interval (raw fractional
// rate multiplied by 100).
type Observation struct {
	Time       time.Time `json:"time"`
	Rate       float64   `json:"rate"`
	Instrument string    `json:"instrument"`
}

// Series is a time-ordered sequence of observations.
type Series []Observation

// Rates extracts the rate column.
func (s Series) Rates() []float64 {
	rates := make([]float64, len(s))
	for i, obs := range s {
		rates[i] = obs.Rate
	}
	return rates
}

// SortByTime orders the series chronologically in place.
func (s Series) SortByTime() {
	sort.SliceStable(s, func(i, j int) bool {
		return s[i].Time.Before(s[j].Time)
	})
}

// Between returns the contiguous subsequence with time in [start, end],
// bounds inclusive.
func (s Series) Between(start, end time.Time) Series {
	out := make(Series, 0, len(s))
	for _, obs := range s {
		if obs.Time.Before(start) || obs.Time.After(end) {
			continue
		}
		out = append(out, obs)
	}
	return out
}

// Validate rejects series the engine cannot process: empty input,
// out-of-order timestamps, duplicate (instrument, time) pairs, and
// observations with no instrument.
func (s Series) Validate() error {
	if len(s) == 0 {
		return ErrEmptySeries
	}

	seen := make(map[string]struct{}, len(s))
	for i, obs := range s {
		if obs.Instrument == "" {
			return fmt.Errorf("observation %d has no instrument", i)
		}
		if obs.Time.IsZero() {
			return fmt.Errorf("observation %d has no timestamp", i)
		}
		if i > 0 && obs.Time.Before(s[i-1].Time) {
			return fmt.Errorf("observation %d out of order: %s before %s",
				i, obs.Time.Format(time.RFC3339), s[i-1].Time.Format(time.RFC3339))
		}

		key := obs.Instrument + "@" + obs.Time.UTC().Format(time.RFC3339Nano)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate observation for %s at %s",
				obs.Instrument, obs.Time.Format(time.RFC3339))
		}
		seen[key] = struct{}{}
	}

	return nil
}
