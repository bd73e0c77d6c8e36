package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	t.Parallel()

	cfg := &ObservationConfig{}
	assert.Equal(t, 256, cfg.GetNPxX())
	assert.Equal(t, 256, cfg.GetNPxY())
	assert.Equal(t, 64, cfg.GetNChannels())
	assert.Equal(t, 15.0, cfg.GetPxSizeArcsec())
	assert.Equal(t, 4.0, cfg.GetChannelKms())
	assert.Equal(t, 0.0, cfg.GetCentreKms())
	assert.False(t, cfg.GetFreqMode())
	assert.Equal(t, 3.0, cfg.GetDistanceMpc())
	assert.Equal(t, 0.7, cfg.GetHubble())
	assert.Equal(t, 270.0, cfg.GetPADeg())
	assert.Empty(t, cfg.GetRotationFile())
}

func TestLoadPartial(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "obs.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "npx_x": 128,
  "n_channels": 32,
  "ra_deg": 30.5,
  "dec_deg": -15.25,
  "distance_mpc": 10,
  "incl_deg": 60,
  "freq_mode": true
}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	// Named fields override.
	assert.Equal(t, 128, cfg.GetNPxX())
	assert.Equal(t, 32, cfg.GetNChannels())
	assert.Equal(t, 30.5, cfg.GetRADeg())
	assert.Equal(t, -15.25, cfg.GetDecDeg())
	assert.Equal(t, 10.0, cfg.GetDistanceMpc())
	assert.Equal(t, 60.0, cfg.GetInclDeg())
	assert.True(t, cfg.GetFreqMode())

	// Omitted fields keep defaults.
	assert.Equal(t, 256, cfg.GetNPxY())
	assert.Equal(t, 4.0, cfg.GetChannelKms())
	assert.Equal(t, 0.7, cfg.GetHubble())
}

func TestLoadRejectsBadFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "obs.yaml"))
	assert.ErrorContains(t, err, ".json extension")

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.ErrorContains(t, err, "stat")

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"npx_x": `), 0o644))
	_, err = Load(bad)
	assert.ErrorContains(t, err, "parse")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	ptrInt := func(v int) *int { return &v }
	ptrFloat := func(v float64) *float64 { return &v }

	cases := []struct {
		name string
		cfg  ObservationConfig
		want string
	}{
		{"zero pixels", ObservationConfig{NPxX: ptrInt(0)}, "npx_x"},
		{"zero channels", ObservationConfig{NChannels: ptrInt(0)}, "n_channels"},
		{"negative pixel size", ObservationConfig{PxSizeArcsec: ptrFloat(-1)}, "px_size_arcsec"},
		{"zero channel width", ObservationConfig{ChannelKms: ptrFloat(0)}, "channel_width_kms"},
		{"negative pad", ObservationConfig{PadX: ptrInt(-1)}, "pad_x"},
		{"dec out of range", ObservationConfig{DecDeg: ptrFloat(91)}, "dec_deg"},
		{"negative distance", ObservationConfig{DistanceMpc: ptrFloat(-1)}, "distance_mpc"},
		{"zero hubble", ObservationConfig{Hubble: ptrFloat(0)}, "hubble"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.cfg.Validate()
			assert.ErrorContains(t, err, tc.want)
		})
	}
}
