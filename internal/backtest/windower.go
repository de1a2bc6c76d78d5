package backtest

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/fundrun/internal/domain/funding"
)

// Event window bounds around a reference timestamp: one day of lead-in to
// establish the rolling baseline, three days of aftermath.
const (
	WindowLookback  = 24 * time.Hour
	WindowLookahead = 72 * time.Hour
)

// EventWindow is the slice of a series that falls inside the event bounds.
// EventIndex is the offset of the observation stamped exactly at the event
// time, or -1 when no settlement landed on it.
type EventWindow struct {
	Series     funding.Series
	EventTime  time.Time
	Start      time.Time
	End        time.Time
	EventIndex int
}

// Empty reports whether no observations fell inside the window. An empty
// window is a recoverable condition for the caller to act on, never a panic.
func (w EventWindow) Empty() bool {
	return len(w.Series) == 0
}

// WindowAround clips the series to [event-24h, event+72h], bounds inclusive.
func WindowAround(series funding.Series, eventTime time.Time) EventWindow {
	w := EventWindow{
		EventTime:  eventTime,
		Start:      eventTime.Add(-WindowLookback),
		End:        eventTime.Add(WindowLookahead),
		EventIndex: -1,
	}
	w.Series = series.Between(w.Start, w.End)

	for i, obs := range w.Series {
		if obs.Time.Equal(eventTime) {
			w.EventIndex = i
			break
		}
	}

	if w.Empty() {
		log.Warn().
			Time("event_time", eventTime).
			Time("start", w.Start).
			Time("end", w.End).
			Int("series_len", len(series)).
			Msg("no observations inside event window")
	}
	return w
}
