package strategy

import "time"

// Kind is the ternary trading signal.
type Kind string

const (
	KindLong  Kind = "LONG"
	KindShort Kind = "SHORT"
	KindHold  Kind = "HOLD"
)

// Active reports whether the signal calls for a position.
func (k Kind) Active() bool {
	return k == KindLong || k == KindShort
}

// Signal is one strategy verdict for one observation. Confidence is
// non-negative and comparable within a single strategy only; the scale is
// deliberately not normalized across strategies.
type Signal struct {
	Time       time.Time `json:"time"`
	Instrument string    `json:"instrument"`
	Kind       Kind      `json:"kind"`
	Confidence float64   `json:"confidence"`
	Strategy   string    `json:"strategy"`
}
