package cube

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redshift-labs/hicube/internal/units"
)

func smallCube() *DataCube {
	return New(Params{
		NPxX:           16,
		NPxY:           12,
		NChannels:      8,
		PxSize:         units.New(15, units.Arcsec),
		ChannelWidth:   units.New(4, units.KmPerSecond),
		SpectralCentre: units.New(0, units.KmPerSecond),
		RA:             units.New(30, units.Degree),
		Dec:            units.New(-15, units.Degree),
	})
}

func TestNewDefaults(t *testing.T) {
	t.Parallel()

	c := New(Params{})
	assert.Equal(t, 256, c.NPxX)
	assert.Equal(t, 256, c.NPxY)
	assert.Equal(t, 64, c.NChannels)
	assert.False(t, c.FreqMode())

	w := c.WCS()
	assert.Equal(t, "RA---TAN", w.CType[0])
	assert.Equal(t, "VELO-OBS", w.CType[2])
	assert.Equal(t, "STOKES", w.CType[3])
	// RA increases to the east: pixel delta is negative on the sky.
	assert.Negative(t, w.CDelt[0])
	assert.Positive(t, w.CDelt[1])
	// Channel width 4 km/s in m/s.
	assert.InDelta(t, 4000.0, w.CDelt[2], 1e-9)
}

func TestFrequencyCentreConstruction(t *testing.T) {
	t.Parallel()

	c := New(Params{NPxX: 4, NPxY: 4, NChannels: 4,
		SpectralCentre: units.New(HIRestFrequencyHz, units.Hz)})
	// The rest frequency corresponds to zero radio velocity.
	assert.InDelta(t, 0.0, c.WCS().CRVal[2], 1e-6)
	assert.False(t, c.FreqMode())
}

func TestChannelMidsAndEdges(t *testing.T) {
	t.Parallel()

	c := smallCube()
	mids := c.ChannelMids()
	edges := c.ChannelEdges()
	require.Len(t, mids, 8)
	require.Len(t, edges, 9)

	// The reference channel (one-indexed nc/2, zero-indexed nc/2-1) sits at
	// the spectral centre.
	assert.InDelta(t, 0.0, mids[3].Value, 1e-9)
	assert.Equal(t, units.MetrePerSecond, mids[3].Unit)

	// Uniform spacing equal to the channel width.
	for i := 1; i < len(mids); i++ {
		assert.InDelta(t, 4000.0, mids[i].Value-mids[i-1].Value, 1e-9)
	}
	// Edges bracket mids at half-channel offsets.
	for i := range mids {
		assert.InDelta(t, mids[i].Value-2000.0, edges[i].Value, 1e-9)
		assert.InDelta(t, mids[i].Value+2000.0, edges[i+1].Value, 1e-9)
	}
}

func TestFreqVelocityRoundTrip(t *testing.T) {
	t.Parallel()

	c := smallCube()
	origWCS := c.WCS()
	origEdges := append([]units.Quantity(nil), c.ChannelEdges()...)

	c.FreqChannels()
	require.True(t, c.FreqMode())
	w := c.WCS()
	assert.Equal(t, "FREQ-OBS", w.CType[2])
	assert.Equal(t, units.Hz, w.CUnit[2])
	// 4 km/s at the 21 cm line is about 18.95 kHz.
	assert.InDelta(t, HIRestFrequencyHz*4000.0/299792458.0, w.CDelt[2], 1e-6)

	// Converting again in the same direction is a no-op.
	before := c.WCS()
	c.FreqChannels()
	assert.True(t, cmp.Equal(before, c.WCS()))

	c.VelocityChannels()
	require.False(t, c.FreqMode())
	back := c.WCS()
	assert.InDelta(t, origWCS.CRVal[2], back.CRVal[2], 1e-6)
	assert.InDelta(t, origWCS.CDelt[2], back.CDelt[2], 1e-9)
	assert.Equal(t, origWCS.CType[2], back.CType[2])

	edges := c.ChannelEdges()
	require.Len(t, edges, len(origEdges))
	for i := range edges {
		assert.InDelta(t, origEdges[i].Value, edges[i].Value, 1e-6)
	}

	// No-op again in velocity mode.
	c.VelocityChannels()
	assert.True(t, cmp.Equal(back, c.WCS()))
}

func TestPadRoundTrip(t *testing.T) {
	t.Parallel()

	c := smallCube()
	// Fill with a position-dependent pattern.
	for x := 0; x < c.SizeX(); x++ {
		for y := 0; y < c.SizeY(); y++ {
			for ch := 0; ch < c.NChannels; ch++ {
				c.Set(x, y, ch, float64(1000*x+10*y)+float64(ch)/10)
			}
		}
	}
	orig := c.Copy()
	origWCS := c.WCS()

	c.AddPad(3, 2)
	px, py := c.Pad()
	assert.Equal(t, 3, px)
	assert.Equal(t, 2, py)
	assert.Equal(t, 16+6, c.SizeX())
	assert.Equal(t, 12+4, c.SizeY())

	// Reference pixel shifted with the pad: world coordinates of original
	// pixels are unchanged.
	w := c.WCS()
	assert.InDelta(t, origWCS.CRPix[0]+3, w.CRPix[0], 0)
	assert.InDelta(t, origWCS.PixToWorld(0, 5), w.PixToWorld(0, 5+3), 1e-12)
	assert.InDelta(t, origWCS.PixToWorld(1, 7), w.PixToWorld(1, 7+2), 1e-12)

	// Original data centred in the zero border.
	assert.Equal(t, orig.At(0, 0, 0), c.At(3, 2, 0))
	assert.Equal(t, orig.At(15, 11, 7), c.At(18, 13, 7))
	assert.Zero(t, c.At(0, 0, 0))
	assert.Zero(t, c.At(c.SizeX()-1, c.SizeY()-1, 3))

	c.DropPad()
	px, py = c.Pad()
	assert.Zero(t, px)
	assert.Zero(t, py)
	assert.Equal(t, origWCS, c.WCS())
	for x := 0; x < c.SizeX(); x++ {
		for y := 0; y < c.SizeY(); y++ {
			for ch := 0; ch < c.NChannels; ch++ {
				assert.Equal(t, orig.At(x, y, ch), c.At(x, y, ch))
			}
		}
	}

	// DropPad with no pad applied is a no-op.
	c.DropPad()
	assert.Equal(t, origWCS, c.WCS())
}

func TestPadAccumulates(t *testing.T) {
	t.Parallel()

	c := smallCube()
	for x := 0; x < c.SizeX(); x++ {
		for y := 0; y < c.SizeY(); y++ {
			for ch := 0; ch < c.NChannels; ch++ {
				c.Set(x, y, ch, float64(1000*x+10*y)+float64(ch)/10)
			}
		}
	}
	orig := c.Copy()
	origWCS := c.WCS()

	c.AddPad(1, 1)
	c.AddPad(2, 0)
	px, py := c.Pad()
	assert.Equal(t, 3, px)
	assert.Equal(t, 1, py)
	assert.Equal(t, 16+6, c.SizeX())
	assert.Equal(t, 12+2, c.SizeY())

	// The reference pixel tracks the total pad, so sky positions of the
	// original pixels are stable across both applications.
	w := c.WCS()
	assert.InDelta(t, origWCS.CRPix[0]+3, w.CRPix[0], 0)
	assert.InDelta(t, origWCS.CRPix[1]+1, w.CRPix[1], 0)
	assert.InDelta(t, origWCS.PixToWorld(0, 4), w.PixToWorld(0, 4+3), 1e-12)

	// Data centred inside the accumulated border.
	assert.Equal(t, orig.At(0, 0, 0), c.At(3, 1, 0))
	assert.Equal(t, orig.At(15, 11, 7), c.At(18, 12, 7))
	assert.Zero(t, c.At(0, 0, 0))

	// One DropPad removes the whole accumulated pad.
	c.DropPad()
	assert.Equal(t, origWCS, c.WCS())
	for x := 0; x < c.SizeX(); x++ {
		for y := 0; y < c.SizeY(); y++ {
			for ch := 0; ch < c.NChannels; ch++ {
				assert.Equal(t, orig.At(x, y, ch), c.At(x, y, ch))
			}
		}
	}
}

func TestCopyIndependence(t *testing.T) {
	t.Parallel()

	c := smallCube()
	c.Set(1, 2, 3, 42)
	dup := c.Copy()

	dup.Set(1, 2, 3, -1)
	assert.Equal(t, 42.0, c.At(1, 2, 3), "mutating the copy must not affect the original")

	dup.FreqChannels()
	assert.False(t, c.FreqMode())
	assert.Equal(t, "VELO-OBS", c.WCS().CType[2])
}

func TestSpatialSlices(t *testing.T) {
	t.Parallel()

	c := smallCube()
	c.Set(4, 5, 6, 99)

	var planes []Plane
	for p := range c.SpatialSlices() {
		planes = append(planes, p)
	}
	require.Len(t, planes, c.NChannels)
	assert.Equal(t, 99.0, planes[6].At(4, 5))
	assert.Zero(t, planes[5].At(4, 5))

	// Views are live: a write through the plane is visible in the cube.
	planes[0].Set(1, 1, 7)
	assert.Equal(t, 7.0, c.At(1, 1, 0))

	// Restartable.
	count := 0
	for range c.SpatialSlices() {
		count++
	}
	assert.Equal(t, c.NChannels, count)
}

func TestSpectra(t *testing.T) {
	t.Parallel()

	c := smallCube()
	c.Set(0, 0, 2, 5)

	var first Spectrum
	count := 0
	for s := range c.Spectra() {
		if count == 0 {
			first = s
		}
		count++
		require.Len(t, []float64(s), c.NChannels)
	}
	assert.Equal(t, c.SizeX()*c.SizeY(), count)
	assert.Equal(t, 5.0, first[2])

	// Live view: writing through the spectrum mutates the cube.
	first[3] = 11
	assert.Equal(t, 11.0, c.At(0, 0, 3))
}

func TestViewsReflectPadding(t *testing.T) {
	t.Parallel()

	c := smallCube()
	c.AddPad(2, 2)
	for p := range c.SpatialSlices() {
		nx, ny := p.Dims()
		assert.Equal(t, c.SizeX(), nx)
		assert.Equal(t, c.SizeY(), ny)
		break
	}
	count := 0
	for range c.Spectra() {
		count++
	}
	assert.Equal(t, c.SizeX()*c.SizeY(), count)
}

func TestWorldPixInverse(t *testing.T) {
	t.Parallel()

	c := smallCube()
	w := c.WCS()
	for axis := 0; axis < 3; axis++ {
		for _, pix := range []float64{0, 1.5, 7, 11.25} {
			world := w.PixToWorld(axis, pix)
			back := w.WorldToPix(axis, world)
			assert.InDelta(t, pix, back, 1e-9, "axis %d", axis)
		}
	}
	// Reference pixel maps to the reference value exactly.
	assert.InDelta(t, 30.0, w.PixToWorld(0, w.CRPix[0]-1), 1e-12)
	assert.InDelta(t, -15.0, w.PixToWorld(1, w.CRPix[1]-1), 1e-12)
}

func TestAccumulate(t *testing.T) {
	t.Parallel()

	c := smallCube()
	c.Add(3, 3, 3, 1.5)
	c.Add(3, 3, 3, 2.5)
	assert.InDelta(t, 4.0, c.At(3, 3, 3), 1e-12)
	assert.False(t, math.Signbit(c.At(3, 3, 3)))
}
