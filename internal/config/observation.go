// Package config loads observation parameters from JSON files. Pointer
// fields distinguish "not set" from an explicit zero, so a partial config
// overrides only what it names and everything else keeps the instrument
// defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ObservationConfig is the root configuration for a synthesis run. The
// schema mirrors the cube and source parameter structs so one JSON file can
// drive a whole observation.
type ObservationConfig struct {
	// Datacube grid
	NPxX         *int     `json:"npx_x,omitempty"`
	NPxY         *int     `json:"npx_y,omitempty"`
	NChannels    *int     `json:"n_channels,omitempty"`
	PxSizeArcsec *float64 `json:"px_size_arcsec,omitempty"`
	ChannelKms   *float64 `json:"channel_width_kms,omitempty"`
	CentreKms    *float64 `json:"spectral_centre_kms,omitempty"`
	FreqMode     *bool    `json:"freq_mode,omitempty"`
	PadX         *int     `json:"pad_x,omitempty"`
	PadY         *int     `json:"pad_y,omitempty"`

	// Pointing and source placement
	RADeg       *float64 `json:"ra_deg,omitempty"`
	DecDeg      *float64 `json:"dec_deg,omitempty"`
	DistanceMpc *float64 `json:"distance_mpc,omitempty"`
	VPeculiar   *float64 `json:"vpec_kms,omitempty"`
	Hubble      *float64 `json:"hubble,omitempty"`

	// Disc orientation
	InclDeg    *float64 `json:"incl_deg,omitempty"`
	AzimuthDeg *float64 `json:"azimuth_deg,omitempty"`
	PADeg      *float64 `json:"pa_deg,omitempty"`

	// RotationFile, when set, loads a saved 3x3 orientation matrix instead
	// of computing one from the angular momentum.
	RotationFile *string `json:"rotation_file,omitempty"`
}

// Load reads an ObservationConfig from a JSON file. The path must end in
// .json and the file must stay under 1 MB. Omitted fields keep their
// defaults, so partial configs are safe.
func Load(path string) (*ObservationConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &ObservationConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration values that have been set.
func (c *ObservationConfig) Validate() error {
	if c.NPxX != nil && *c.NPxX < 1 {
		return fmt.Errorf("npx_x must be positive, got %d", *c.NPxX)
	}
	if c.NPxY != nil && *c.NPxY < 1 {
		return fmt.Errorf("npx_y must be positive, got %d", *c.NPxY)
	}
	if c.NChannels != nil && *c.NChannels < 1 {
		return fmt.Errorf("n_channels must be positive, got %d", *c.NChannels)
	}
	if c.PxSizeArcsec != nil && *c.PxSizeArcsec <= 0 {
		return fmt.Errorf("px_size_arcsec must be positive, got %f", *c.PxSizeArcsec)
	}
	if c.ChannelKms != nil && *c.ChannelKms <= 0 {
		return fmt.Errorf("channel_width_kms must be positive, got %f", *c.ChannelKms)
	}
	if c.PadX != nil && *c.PadX < 0 {
		return fmt.Errorf("pad_x must be non-negative, got %d", *c.PadX)
	}
	if c.PadY != nil && *c.PadY < 0 {
		return fmt.Errorf("pad_y must be non-negative, got %d", *c.PadY)
	}
	if c.DecDeg != nil && (*c.DecDeg < -90 || *c.DecDeg > 90) {
		return fmt.Errorf("dec_deg must be between -90 and 90, got %f", *c.DecDeg)
	}
	if c.DistanceMpc != nil && *c.DistanceMpc < 0 {
		return fmt.Errorf("distance_mpc must be non-negative, got %f", *c.DistanceMpc)
	}
	if c.Hubble != nil && *c.Hubble <= 0 {
		return fmt.Errorf("hubble must be positive, got %f", *c.Hubble)
	}
	return nil
}

// GetNPxX returns the RA grid extent or the default.
func (c *ObservationConfig) GetNPxX() int {
	if c.NPxX == nil {
		return 256
	}
	return *c.NPxX
}

// GetNPxY returns the Dec grid extent or the default.
func (c *ObservationConfig) GetNPxY() int {
	if c.NPxY == nil {
		return 256
	}
	return *c.NPxY
}

// GetNChannels returns the spectral channel count or the default.
func (c *ObservationConfig) GetNChannels() int {
	if c.NChannels == nil {
		return 64
	}
	return *c.NChannels
}

// GetPxSizeArcsec returns the angular pixel size or the default.
func (c *ObservationConfig) GetPxSizeArcsec() float64 {
	if c.PxSizeArcsec == nil {
		return 15
	}
	return *c.PxSizeArcsec
}

// GetChannelKms returns the channel width or the default.
func (c *ObservationConfig) GetChannelKms() float64 {
	if c.ChannelKms == nil {
		return 4
	}
	return *c.ChannelKms
}

// GetCentreKms returns the spectral-centre velocity or the default.
func (c *ObservationConfig) GetCentreKms() float64 {
	if c.CentreKms == nil {
		return 0
	}
	return *c.CentreKms
}

// GetFreqMode reports whether the cube should be written with a
// frequency-calibrated spectral axis.
func (c *ObservationConfig) GetFreqMode() bool {
	if c.FreqMode == nil {
		return false
	}
	return *c.FreqMode
}

// GetPadX returns the RA-side convolution pad or the default.
func (c *ObservationConfig) GetPadX() int {
	if c.PadX == nil {
		return 0
	}
	return *c.PadX
}

// GetPadY returns the Dec-side convolution pad or the default.
func (c *ObservationConfig) GetPadY() int {
	if c.PadY == nil {
		return 0
	}
	return *c.PadY
}

// GetRADeg returns the pointing right ascension or the default.
func (c *ObservationConfig) GetRADeg() float64 {
	if c.RADeg == nil {
		return 0
	}
	return *c.RADeg
}

// GetDecDeg returns the pointing declination or the default.
func (c *ObservationConfig) GetDecDeg() float64 {
	if c.DecDeg == nil {
		return 0
	}
	return *c.DecDeg
}

// GetDistanceMpc returns the source distance or the default.
func (c *ObservationConfig) GetDistanceMpc() float64 {
	if c.DistanceMpc == nil {
		return 3
	}
	return *c.DistanceMpc
}

// GetVPeculiar returns the peculiar velocity or the default.
func (c *ObservationConfig) GetVPeculiar() float64 {
	if c.VPeculiar == nil {
		return 0
	}
	return *c.VPeculiar
}

// GetHubble returns the dimensionless Hubble constant or the default.
func (c *ObservationConfig) GetHubble() float64 {
	if c.Hubble == nil {
		return 0.7
	}
	return *c.Hubble
}

// GetInclDeg returns the disc inclination or the default.
func (c *ObservationConfig) GetInclDeg() float64 {
	if c.InclDeg == nil {
		return 0
	}
	return *c.InclDeg
}

// GetAzimuthDeg returns the disc azimuthal rotation or the default.
func (c *ObservationConfig) GetAzimuthDeg() float64 {
	if c.AzimuthDeg == nil {
		return 0
	}
	return *c.AzimuthDeg
}

// GetPADeg returns the sky position angle or the default of 270 degrees.
func (c *ObservationConfig) GetPADeg() float64 {
	if c.PADeg == nil {
		return 270
	}
	return *c.PADeg
}

// GetRotationFile returns the saved-orientation path, empty when unset.
func (c *ObservationConfig) GetRotationFile() string {
	if c.RotationFile == nil {
		return ""
	}
	return *c.RotationFile
}
