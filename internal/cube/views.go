package cube

import "iter"

// Plane is a live 2-D view of one channel of the cube's sample array. It
// reflects the cube's current (possibly padded) extent; it is not a
// snapshot.
type Plane struct {
	cube    *DataCube
	Channel int
}

// Dims returns the current spatial extent of the plane.
func (p Plane) Dims() (nx, ny int) { return p.cube.SizeX(), p.cube.SizeY() }

// At returns the sample at padded-array pixel (x, y) in this channel.
func (p Plane) At(x, y int) float64 { return p.cube.At(x, y, p.Channel) }

// Set stores a sample at padded-array pixel (x, y) in this channel.
func (p Plane) Set(x, y int, v float64) { p.cube.Set(x, y, p.Channel, v) }

// SpatialSlices yields one spatial plane per channel, in channel order. The
// sequence is restartable and each plane is a live view over the cube's
// array at iteration time.
func (c *DataCube) SpatialSlices() iter.Seq[Plane] {
	return func(yield func(Plane) bool) {
		for ch := 0; ch < c.NChannels; ch++ {
			if !yield(Plane{cube: c, Channel: ch}) {
				return
			}
		}
	}
}

// Spectrum is a live per-pixel view over all channels. It aliases the
// cube's storage: writes through it mutate the cube.
type Spectrum []float64

// Spectra yields the spectrum of every spatial pixel in flattened order
// (x-major over the current, possibly padded, extent). Each spectrum is a
// live view over the cube's array at iteration time.
func (c *DataCube) Spectra() iter.Seq[Spectrum] {
	return func(yield func(Spectrum) bool) {
		sx, sy := c.SizeX(), c.SizeY()
		for x := 0; x < sx; x++ {
			for y := 0; y < sy; y++ {
				off := c.index(x, y, 0)
				if !yield(Spectrum(c.arr[off : off+c.NChannels : off+c.NChannels])) {
					return
				}
			}
		}
	}
}
