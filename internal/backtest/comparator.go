package backtest

import (
	"math"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/fundrun/internal/domain/funding"
	"github.com/sawpanic/fundrun/internal/domain/strategy"
)

// comparatorWorkers bounds the goroutines racing strategies over the series.
const comparatorWorkers = 4

// StrategySummary is one comparison row: how often a strategy fired over the
// shared series and with what average conviction. Percentages are of total
// ticks for frequency and of non-HOLD signals for the long/short split.
type StrategySummary struct {
	Strategy      string  `json:"strategy"`
	TotalSignals  int     `json:"total_signals"`
	LongSignals   int     `json:"long_signals"`
	ShortSignals  int     `json:"short_signals"`
	AvgConfidence float64 `json:"avg_confidence"`
	SignalFreqPct float64 `json:"signal_frequency_pct"`
	LongPct       float64 `json:"long_pct"`
	ShortPct      float64 `json:"short_pct"`
}

// Comparison holds one summary row per strategy that ran cleanly, in
// canonical strategy order, plus the names of any that were dropped.
type Comparison struct {
	Rows   []StrategySummary `json:"rows"`
	Failed []string          `json:"failed,omitempty"`
	Ticks  int               `json:"ticks"`
}

// Compare runs every registered strategy over the same series and tallies
// signal statistics side by side. No positions are simulated. Each strategy
// run is independent, so they are fanned out across a small worker pool; a
// strategy that fails to construct is logged and omitted without disturbing
// the others.
func Compare(series funding.Series, params map[string]strategy.Params) (*Comparison, error) {
	if err := series.Validate(); err != nil {
		return nil, err
	}

	names := strategy.Names()
	rows := make([]*StrategySummary, len(names))
	failures := make([]string, len(names))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < comparatorWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				name := names[idx]
				s, err := strategy.New(name, params[name])
				if err != nil {
					log.Warn().Err(err).Str("strategy", name).Msg("strategy skipped in comparison")
					failures[idx] = name
					continue
				}
				summary := Summarize(s.Name(), strategy.Annotate(series, s))
				rows[idx] = &summary
			}
		}()
	}
	for idx := range names {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	cmp := &Comparison{Ticks: len(series)}
	for idx := range names {
		if rows[idx] != nil {
			cmp.Rows = append(cmp.Rows, *rows[idx])
		} else if failures[idx] != "" {
			cmp.Failed = append(cmp.Failed, failures[idx])
		}
	}
	return cmp, nil
}

// Summarize tallies one strategy's signal stream.
func Summarize(name string, signals []strategy.Signal) StrategySummary {
	row := StrategySummary{Strategy: name}

	confidenceSum := 0.0
	for _, sig := range signals {
		switch sig.Kind {
		case strategy.KindLong:
			row.LongSignals++
		case strategy.KindShort:
			row.ShortSignals++
		default:
			continue
		}
		row.TotalSignals++
		confidenceSum += sig.Confidence
	}

	if row.TotalSignals > 0 {
		row.AvgConfidence = round(confidenceSum/float64(row.TotalSignals), 3)
		row.LongPct = round(float64(row.LongSignals)/float64(row.TotalSignals)*100, 2)
		row.ShortPct = round(float64(row.ShortSignals)/float64(row.TotalSignals)*100, 2)
	}
	if len(signals) > 0 {
		row.SignalFreqPct = round(float64(row.TotalSignals)/float64(len(signals))*100, 2)
	}
	return row
}

func round(x float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(x*scale) / scale
}
