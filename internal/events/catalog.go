// Package events loads the catalog of market catalysts that backtests can be
// anchored to. The catalog is a JSON file of named events; each one carries
// the instrument it concerns and the timestamp the windower centers on.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

// Impact grades how hard an event is expected to hit the funding market.
type Impact string

const (
	ImpactLow      Impact = "low"
	ImpactMedium   Impact = "medium"
	ImpactHigh     Impact = "high"
	ImpactVeryHigh Impact = "very_high"
)

// Valid reports whether the impact is one of the known grades.
func (i Impact) Valid() bool {
	switch i {
	case ImpactLow, ImpactMedium, ImpactHigh, ImpactVeryHigh:
		return true
	}
	return false
}

// Event is one catalog entry. Time is Timestamp parsed during Load; the raw
// string is kept so entries round-trip through the HTTP API unchanged.
type Event struct {
	Name        string `json:"name"`
	Instrument  string `json:"coin"`
	Timestamp   string `json:"timestamp"`
	Description string `json:"description,omitempty"`
	Impact      Impact `json:"impact,omitempty"`
	Category    string `json:"category,omitempty"`

	Time time.Time `json:"-"`
}

// Catalog is the validated set of events, in file order.
type Catalog struct {
	events []Event
}

// Load reads and validates a catalog file. A missing file is not an error:
// it yields an empty catalog and a warning, so offline setups still run.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn().Str("path", path).Msg("event catalog not found, starting empty")
		return &Catalog{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read event catalog: %w", err)
	}

	var events []Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("failed to parse event catalog %s: %w", path, err)
	}

	seen := make(map[string]struct{}, len(events))
	for i := range events {
		e := &events[i]
		if e.Name == "" {
			return nil, fmt.Errorf("event %d has no name", i)
		}
		if _, dup := seen[e.Name]; dup {
			return nil, fmt.Errorf("duplicate event name %q", e.Name)
		}
		seen[e.Name] = struct{}{}

		if e.Instrument == "" {
			return nil, fmt.Errorf("event %q has no coin", e.Name)
		}
		e.Time, err = time.Parse(time.RFC3339, e.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("event %q: invalid timestamp %q: %w", e.Name, e.Timestamp, err)
		}

		if e.Impact == "" {
			e.Impact = ImpactMedium
		}
		if !e.Impact.Valid() {
			return nil, fmt.Errorf("event %q: unknown impact %q (valid: %s, %s, %s, %s)",
				e.Name, e.Impact, ImpactLow, ImpactMedium, ImpactHigh, ImpactVeryHigh)
		}
	}

	log.Info().Str("path", path).Int("events", len(events)).Msg("event catalog loaded")
	return &Catalog{events: events}, nil
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int {
	return len(c.events)
}

// All returns every event in file order.
func (c *Catalog) All() []Event {
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// Names lists event names in file order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.events))
	for i, e := range c.events {
		names[i] = e.Name
	}
	return names
}

// Get looks an event up by name.
func (c *Catalog) Get(name string) (Event, bool) {
	for _, e := range c.events {
		if e.Name == name {
			return e, true
		}
	}
	return Event{}, false
}

// ForInstrument filters the catalog to one instrument's events.
func (c *Catalog) ForInstrument(instrument string) []Event {
	var out []Event
	for _, e := range c.events {
		if e.Instrument == instrument {
			out = append(out, e)
		}
	}
	return out
}
