// Package config holds the strategy parameter profiles: named bundles of
// per-strategy tuning that the CLI and HTTP layers resolve by name.
package config

import (
	"fmt"
	"io/ioutil"
	"path/filepath"

	"gopkg.in/yaml.v2"

	"github.com/sawpanic/fundrun/internal/domain/strategy"
)

// ProfilesConfig represents the strategy profiles configuration structure
type ProfilesConfig struct {
	Active   string                     `yaml:"active_profile"`
	Profiles map[string]StrategyProfile `yaml:"profiles"`
}

// StrategyProfile is one named bundle of per-strategy parameters
type StrategyProfile struct {
	Name        string                     `yaml:"name"`
	Description string                     `yaml:"description"`
	Strategies  map[string]strategy.Params `yaml:"strategies"`
}

// LoadProfiles loads strategy profiles from file
func LoadProfiles(configPath string) (*ProfilesConfig, error) {
	data, err := ioutil.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles config: %w", err)
	}

	var config ProfilesConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse profiles YAML: %w", err)
	}

	return &config, nil
}

// SaveProfiles saves strategy profiles to file
func SaveProfiles(config *ProfilesConfig, configPath string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal profiles config: %w", err)
	}

	if err := ioutil.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write profiles config: %w", err)
	}

	return nil
}

// ActiveProfile returns the currently active strategy profile
func (pc *ProfilesConfig) ActiveProfile() (*StrategyProfile, error) {
	if pc.Active == "" {
		return nil, fmt.Errorf("no active profile set")
	}

	profile, exists := pc.Profiles[pc.Active]
	if !exists {
		return nil, fmt.Errorf("active profile '%s' not found", pc.Active)
	}

	return &profile, nil
}

// ParamsFor returns the profile's parameters for one strategy. A strategy
// absent from the profile gets zero params, which resolve to the strategy's
// own defaults at construction.
func (sp *StrategyProfile) ParamsFor(name string) strategy.Params {
	return sp.Strategies[name]
}

// ValidateProfile validates every parameter bundle in the profile against
// its strategy's constructor
func (sp *StrategyProfile) ValidateProfile() []string {
	var errors []string

	known := make(map[string]bool, len(strategy.Names()))
	for _, name := range strategy.Names() {
		known[name] = true
	}

	for name, params := range sp.Strategies {
		if !known[name] {
			errors = append(errors, fmt.Sprintf("Unknown strategy: %s", name))
			continue
		}
		if _, err := strategy.New(name, params); err != nil {
			errors = append(errors, fmt.Sprintf("Strategy %s: %v", name, err))
		}
	}

	return errors
}

// GetDefaultProfiles returns the stock profile set: the documented defaults
// plus a faster, lower-threshold variant.
func GetDefaultProfiles() *ProfilesConfig {
	defaults := make(map[string]strategy.Params, len(strategy.Names()))
	for _, name := range strategy.Names() {
		p, err := strategy.DefaultParams(name)
		if err != nil {
			// Names() and DefaultParams() cover the same set.
			panic(err)
		}
		defaults[name] = p
	}

	return &ProfilesConfig{
		Active: "default",
		Profiles: map[string]StrategyProfile{
			"default": {
				Name:        "Default",
				Description: "Stock windows and thresholds for all strategies",
				Strategies:  defaults,
			},
			"aggressive": {
				Name:        "Aggressive",
				Description: "Shorter windows and lower thresholds, fires more often",
				Strategies: map[string]strategy.Params{
					strategy.ZScoreName:         {WindowHours: 16, Threshold: 1.5},
					strategy.PercentileName:     {WindowHours: 16, UpperPercentile: 90, LowerPercentile: 10},
					strategy.MADeviationName:    {ShortWindowHours: 8, LongWindowHours: 16, Threshold: 0.3},
					strategy.VolBreakoutName:    {WindowHours: 16, Threshold: 1.5},
					strategy.ReversalName:       {WindowHours: 8, Threshold: 0.2},
					strategy.MultiTimeframeName: {ShortWindowHours: 8, LongWindowHours: 24},
					strategy.MeanReversionName:  {WindowHours: 16, Threshold: 1.0},
					strategy.MomentumName:       {WindowHours: 8, Threshold: 0.15},
				},
			},
		},
	}
}

// GetProfilesConfigPath returns the default path for strategy profiles
func GetProfilesConfigPath() string {
	return filepath.Join("config", "strategies.yaml")
}
