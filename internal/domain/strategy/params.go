package strategy

// Params carries every tunable used across the strategy family. Each
// strategy reads the subset it understands; zero-valued fields fall back to
// that strategy's defaults at construction.
type Params struct {
	WindowHours      int     `json:"window_hours,omitempty" yaml:"window_hours,omitempty"`
	ShortWindowHours int     `json:"short_window_hours,omitempty" yaml:"short_window_hours,omitempty"`
	LongWindowHours  int     `json:"long_window_hours,omitempty" yaml:"long_window_hours,omitempty"`
	Threshold        float64 `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	UpperPercentile  float64 `json:"upper_percentile,omitempty" yaml:"upper_percentile,omitempty"`
	LowerPercentile  float64 `json:"lower_percentile,omitempty" yaml:"lower_percentile,omitempty"`
	TickHours        int     `json:"tick_hours,omitempty" yaml:"tick_hours,omitempty"`
}

func (p Params) mergeDefaults(d Params) Params {
	if p.WindowHours == 0 {
		p.WindowHours = d.WindowHours
	}
	if p.ShortWindowHours == 0 {
		p.ShortWindowHours = d.ShortWindowHours
	}
	if p.LongWindowHours == 0 {
		p.LongWindowHours = d.LongWindowHours
	}
	if p.Threshold == 0 {
		p.Threshold = d.Threshold
	}
	if p.UpperPercentile == 0 {
		p.UpperPercentile = d.UpperPercentile
	}
	if p.LowerPercentile == 0 {
		p.LowerPercentile = d.LowerPercentile
	}
	if p.TickHours == 0 {
		p.TickHours = d.TickHours
	}
	return p
}
