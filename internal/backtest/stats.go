package backtest

import "math"

// ComputeStats reduces closed trades to summary statistics. No trades means
// every field is zero, including the returns, so a signal-free run reads as
// flat rather than as an error.
func ComputeStats(trades []Trade, initialCapital, finalCapital float64) Stats {
	if len(trades) == 0 {
		return Stats{}
	}

	s := Stats{
		TotalReturn:    finalCapital - initialCapital,
		TotalReturnPct: (finalCapital - initialCapital) / initialCapital * 100,
		TotalTrades:    len(trades),
	}

	pnls := make([]float64, len(trades))
	for i, t := range trades {
		pnls[i] = t.TotalPnL
		if t.TotalPnL > 0 {
			s.WinningTrades++
		} else if t.TotalPnL < 0 {
			s.LosingTrades++
		}
	}
	s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades) * 100
	s.AvgTradePnL = mean(pnls)
	s.MaxDrawdown = maxDrawdown(pnls)

	if std := sampleStd(pnls); std > 0 {
		s.SharpeRatio = s.AvgTradePnL / std
	}

	return s
}

// maxDrawdown is the largest peak-to-trough decline of the cumulative
// trade-PnL curve, reported as a positive magnitude.
func maxDrawdown(pnls []float64) float64 {
	var cum, peak, worst float64
	peak = math.Inf(-1)
	for _, pnl := range pnls {
		cum += pnl
		if cum > peak {
			peak = cum
		}
		if dd := peak - cum; dd > worst {
			worst = dd
		}
	}
	return worst
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func sampleStd(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	sumSq := 0.0
	for _, x := range xs {
		d := x - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)-1))
}
