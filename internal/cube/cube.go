// Package cube implements the spectral datacube: a regular grid of
// flux-density samples over two sky axes and one spectral axis, with a
// linear axis calibration (WCS) mapping pixel and channel indices to
// physical sky positions and frequencies or velocities.
//
// The spectral axis can be calibrated in radio velocity or in frequency;
// the two modes are related by the radio-Doppler convention referenced to
// the 21 cm hydrogen line and convert into each other without loss of
// precision. The spatial extent can be padded with a zero border to give
// finite convolution kernels room to operate, and unpadded again exactly.
package cube

import (
	"math"

	"github.com/redshift-labs/hicube/internal/units"
)

// HIRestFrequencyHz is the rest frequency of the 21 cm hydrogen line.
const HIRestFrequencyHz = 1.420405751e9

// speedOfLightMS is the speed of light in m/s.
const speedOfLightMS = 299792458.0

// Axis type tags recorded in the calibration, following FITS conventions.
const (
	ctypeRA       = "RA---TAN"
	ctypeDec      = "DEC--TAN"
	ctypeVelocity = "VELO-OBS"
	ctypeFreq     = "FREQ-OBS"
	ctypeStokes   = "STOKES"
)

// VelocityToFrequency converts a radio velocity in m/s to the observed
// frequency in Hz of 21 cm emission under the radio-Doppler convention.
func VelocityToFrequency(vms float64) float64 {
	return HIRestFrequencyHz * (1 - vms/speedOfLightMS)
}

// FrequencyToVelocity converts an observed frequency in Hz of 21 cm
// emission to a radio velocity in m/s. Exact inverse of
// VelocityToFrequency.
func FrequencyToVelocity(fhz float64) float64 {
	return speedOfLightMS * (1 - fhz/HIRestFrequencyHz)
}

// Params configures a new DataCube. Zero values take the instrument
// defaults noted on each field.
type Params struct {
	NPxX      int // pixels along RA (default 256)
	NPxY      int // pixels along Dec (default 256)
	NChannels int // spectral channels (default 64)

	PxSize         units.Quantity // angular pixel size (default 15 arcsec)
	ChannelWidth   units.Quantity // channel width, velocity (default 4 km/s)
	SpectralCentre units.Quantity // velocity or frequency at the reference channel (default 0 km/s)
	RA             units.Quantity // right ascension of the cube centre (default 0 deg)
	Dec            units.Quantity // declination of the cube centre (default 0 deg)
}

func (p Params) withDefaults() Params {
	if p.NPxX == 0 {
		p.NPxX = 256
	}
	if p.NPxY == 0 {
		p.NPxY = 256
	}
	if p.NChannels == 0 {
		p.NChannels = 64
	}
	if p.PxSize == (units.Quantity{}) {
		p.PxSize = units.New(15, units.Arcsec)
	}
	if p.ChannelWidth == (units.Quantity{}) {
		p.ChannelWidth = units.New(4, units.KmPerSecond)
	}
	if p.SpectralCentre == (units.Quantity{}) {
		p.SpectralCentre = units.New(0, units.KmPerSecond)
	}
	if p.RA == (units.Quantity{}) {
		p.RA = units.New(0, units.Degree)
	}
	if p.Dec == (units.Quantity{}) {
		p.Dec = units.New(0, units.Degree)
	}
	return p
}

// DataCube is a spectral datacube of logical shape
// (NPxX + 2*padX, NPxY + 2*padY, NChannels, 1) with samples in Jy/pix^2.
// The trailing stokes axis has length one and is carried in the calibration
// record but not materialized in storage.
type DataCube struct {
	NPxX      int // logical (unpadded) extent along RA
	NPxY      int // logical (unpadded) extent along Dec
	NChannels int

	PxSize       units.Quantity
	ChannelWidth units.Quantity
	RA           units.Quantity
	Dec          units.Quantity

	wcs      WCS
	arr      []float64
	padX     int
	padY     int
	freqMode bool

	// Per-channel caches, recomputed lazily after any calibration change.
	channelMids  []units.Quantity
	channelEdges []units.Quantity
}

// New allocates a zero-filled datacube with the given instrument
// parameters. The spectral axis starts in velocity mode; a SpectralCentre
// given as a frequency is converted through the radio-Doppler relation.
func New(p Params) *DataCube {
	p = p.withDefaults()

	centre := p.SpectralCentre
	if centre.Unit.Dim == units.Hz.Dim {
		centre = units.New(FrequencyToVelocity(centre.In(units.Hz)), units.MetrePerSecond)
	}

	c := &DataCube{
		NPxX:         p.NPxX,
		NPxY:         p.NPxY,
		NChannels:    p.NChannels,
		PxSize:       p.PxSize,
		ChannelWidth: p.ChannelWidth,
		RA:           p.RA,
		Dec:          p.Dec,
		arr:          make([]float64, p.NPxX*p.NPxY*p.NChannels),
	}
	c.wcs = WCS{
		CRPix: [4]float64{
			float64(p.NPxX)/2 + 0.5,
			float64(p.NPxY)/2 + 0.5,
			float64(p.NChannels / 2),
			1,
		},
		CRVal: [4]float64{
			p.RA.In(units.Degree),
			p.Dec.In(units.Degree),
			centre.In(units.MetrePerSecond),
			1,
		},
		CDelt: [4]float64{
			-p.PxSize.In(units.Degree),
			p.PxSize.In(units.Degree),
			p.ChannelWidth.In(units.MetrePerSecond),
			1,
		},
		CType: [4]string{ctypeRA, ctypeDec, ctypeVelocity, ctypeStokes},
		CUnit: [4]units.Unit{units.Degree, units.Degree, units.MetrePerSecond, units.Dimensionless},
	}
	return c
}

// SizeX returns the current (padded) extent along RA.
func (c *DataCube) SizeX() int { return c.NPxX + 2*c.padX }

// SizeY returns the current (padded) extent along Dec.
func (c *DataCube) SizeY() int { return c.NPxY + 2*c.padY }

// Pad returns the currently applied padding on each spatial side.
func (c *DataCube) Pad() (px, py int) { return c.padX, c.padY }

// FreqMode reports whether the spectral axis is calibrated in frequency.
func (c *DataCube) FreqMode() bool { return c.freqMode }

// WCS returns a copy of the axis-calibration record. Mutating the copy has
// no effect on the cube.
func (c *DataCube) WCS() WCS { return c.wcs }

func (c *DataCube) index(x, y, ch int) int {
	return (x*c.SizeY()+y)*c.NChannels + ch
}

// At returns the sample at padded-array pixel (x, y), channel ch.
func (c *DataCube) At(x, y, ch int) float64 {
	return c.arr[c.index(x, y, ch)]
}

// Set stores a sample at padded-array pixel (x, y), channel ch.
func (c *DataCube) Set(x, y, ch int, v float64) {
	c.arr[c.index(x, y, ch)] = v
}

// Add accumulates v into the sample at padded-array pixel (x, y), channel
// ch. This is the deposition entry point.
func (c *DataCube) Add(x, y, ch int, v float64) {
	c.arr[c.index(x, y, ch)] += v
}

func (c *DataCube) invalidateChannels() {
	c.channelMids = nil
	c.channelEdges = nil
}

// ChannelMids returns the physical spectral value at the centre of every
// channel, in the current spectral unit. The result is cached until the
// calibration changes; callers must not mutate it.
func (c *DataCube) ChannelMids() []units.Quantity {
	if c.channelMids == nil {
		mids := make([]units.Quantity, c.NChannels)
		for ch := 0; ch < c.NChannels; ch++ {
			mids[ch] = units.New(c.wcs.PixToWorld(2, float64(ch)), c.wcs.CUnit[2])
		}
		c.channelMids = mids
	}
	return c.channelMids
}

// ChannelEdges returns the physical spectral value at every channel
// boundary (half-channel pixel offsets), length NChannels+1. Cached like
// ChannelMids.
func (c *DataCube) ChannelEdges() []units.Quantity {
	if c.channelEdges == nil {
		edges := make([]units.Quantity, c.NChannels+1)
		for ch := 0; ch <= c.NChannels; ch++ {
			edges[ch] = units.New(c.wcs.PixToWorld(2, float64(ch)-0.5), c.wcs.CUnit[2])
		}
		c.channelEdges = edges
	}
	return c.channelEdges
}

// FreqChannels converts the spectral axis calibration from radio velocity
// to frequency, referenced to the 21 cm line: f = f0 * (1 - v/c). The new
// per-channel width is the absolute difference between the converted
// reference increment and the converted zero point, which keeps the width
// independent of the zero point. A no-op if already in frequency mode.
func (c *DataCube) FreqChannels() {
	if c.freqMode {
		return
	}
	c.wcs.CDelt[2] = math.Abs(VelocityToFrequency(c.wcs.CDelt[2]) - VelocityToFrequency(0))
	c.wcs.CRVal[2] = VelocityToFrequency(c.wcs.CRVal[2])
	c.wcs.CType[2] = ctypeFreq
	c.wcs.CUnit[2] = units.Hz
	c.invalidateChannels()
	c.freqMode = true
}

// VelocityChannels converts the spectral axis calibration from frequency
// back to radio velocity: v = c * (1 - f/f0). Exactly inverts FreqChannels
// up to floating-point precision. A no-op if already in velocity mode.
func (c *DataCube) VelocityChannels() {
	if !c.freqMode {
		return
	}
	c.wcs.CDelt[2] = math.Abs(FrequencyToVelocity(c.wcs.CDelt[2]) - FrequencyToVelocity(0))
	c.wcs.CRVal[2] = FrequencyToVelocity(c.wcs.CRVal[2])
	c.wcs.CType[2] = ctypeVelocity
	c.wcs.CUnit[2] = units.MetrePerSecond
	c.invalidateChannels()
	c.freqMode = false
}

// AddPad reallocates the sample array with the current data centred inside
// a zero border of px pixels along RA and py along Dec on each side, and
// shifts the reference pixel so the sky positions of the original pixels
// are unchanged. Padding accumulates if applied more than once.
func (c *DataCube) AddPad(px, py int) {
	if px == 0 && py == 0 {
		return
	}
	oldSX, oldSY := c.SizeX(), c.SizeY()
	old := c.arr

	c.padX += px
	c.padY += py
	c.arr = make([]float64, c.SizeX()*c.SizeY()*c.NChannels)
	for x := 0; x < oldSX; x++ {
		for y := 0; y < oldSY; y++ {
			src := (x*oldSY + y) * c.NChannels
			dst := c.index(x+px, y+py, 0)
			copy(c.arr[dst:dst+c.NChannels], old[src:src+c.NChannels])
		}
	}
	c.wcs.CRPix[0] += float64(px)
	c.wcs.CRPix[1] += float64(py)
}

// DropPad removes any applied padding, restoring the exact pre-pad array
// contents and reference pixel. A no-op when no pad is applied.
func (c *DataCube) DropPad() {
	if c.padX == 0 && c.padY == 0 {
		return
	}
	px, py := c.padX, c.padY
	oldSY := c.SizeY()
	old := c.arr

	c.padX, c.padY = 0, 0
	c.arr = make([]float64, c.NPxX*c.NPxY*c.NChannels)
	for x := 0; x < c.NPxX; x++ {
		for y := 0; y < c.NPxY; y++ {
			src := ((x+px)*oldSY + (y + py)) * c.NChannels
			dst := c.index(x, y, 0)
			copy(c.arr[dst:dst+c.NChannels], old[src:src+c.NChannels])
		}
	}
	c.wcs.CRPix[0] -= float64(px)
	c.wcs.CRPix[1] -= float64(py)
}

// Copy returns a fully independent cube: the sample array and calibration
// are deep-copied, so mutating either cube never affects the other.
func (c *DataCube) Copy() *DataCube {
	dup := *c
	dup.arr = make([]float64, len(c.arr))
	copy(dup.arr, c.arr)
	if c.channelMids != nil {
		dup.channelMids = append([]units.Quantity(nil), c.channelMids...)
	}
	if c.channelEdges != nil {
		dup.channelEdges = append([]units.Quantity(nil), c.channelEdges...)
	}
	return &dup
}
