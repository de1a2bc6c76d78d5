package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/fundrun/internal/domain/strategy"
)

func TestGetDefaultProfiles(t *testing.T) {
	cfg := GetDefaultProfiles()

	profile, err := cfg.ActiveProfile()
	require.NoError(t, err)
	assert.Equal(t, "Default", profile.Name)

	// Every registered strategy has its documented defaults.
	for _, name := range strategy.Names() {
		want, err := strategy.DefaultParams(name)
		require.NoError(t, err)
		assert.Equalf(t, want, profile.ParamsFor(name), "defaults for %s", name)
	}

	assert.Empty(t, profile.ValidateProfile())

	aggressive := cfg.Profiles["aggressive"]
	assert.Empty(t, aggressive.ValidateProfile())
	assert.Equal(t, 1.5, aggressive.ParamsFor(strategy.ZScoreName).Threshold)
}

func TestProfiles_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strategies.yaml")
	require.NoError(t, SaveProfiles(GetDefaultProfiles(), path))

	loaded, err := LoadProfiles(path)
	require.NoError(t, err)
	assert.Equal(t, "default", loaded.Active)

	profile, err := loaded.ActiveProfile()
	require.NoError(t, err)
	params := profile.ParamsFor(strategy.ZScoreName)
	assert.Equal(t, 24, params.WindowHours)
	assert.Equal(t, 2.0, params.Threshold)
}

func TestLoadProfiles_MissingFile(t *testing.T) {
	_, err := LoadProfiles(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read")
}

func TestLoadProfiles_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profiles: ["), 0644))

	_, err := LoadProfiles(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

func TestActiveProfile_Errors(t *testing.T) {
	cfg := &ProfilesConfig{}
	_, err := cfg.ActiveProfile()
	assert.ErrorContains(t, err, "no active profile")

	cfg = &ProfilesConfig{Active: "ghost"}
	_, err = cfg.ActiveProfile()
	assert.ErrorContains(t, err, "not found")
}

func TestValidateProfile_ReportsIssues(t *testing.T) {
	profile := StrategyProfile{
		Name: "Broken",
		Strategies: map[string]strategy.Params{
			strategy.ZScoreName: {Threshold: -1},
			"astrology":         {WindowHours: 24},
		},
	}

	issues := profile.ValidateProfile()
	require.Len(t, issues, 2)
	joined := issues[0] + "\n" + issues[1]
	assert.Contains(t, joined, "Unknown strategy: astrology")
	assert.Contains(t, joined, "zscore")
}

func TestParamsFor_AbsentStrategyIsZero(t *testing.T) {
	profile := StrategyProfile{Name: "Sparse"}
	assert.Equal(t, strategy.Params{}, profile.ParamsFor(strategy.MomentumName))
}
