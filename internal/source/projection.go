package source

import (
	"errors"
	"fmt"
	"math"

	"github.com/redshift-labs/hicube/internal/cube"
	"github.com/redshift-labs/hicube/internal/units"
)

// ErrNotProjected is returned when sky-dependent data is requested before
// ProjectToSky has run.
var ErrNotProjected = errors.New("source: not yet projected to sky")

// SkyCoords holds the per-particle observer-frame coordinates produced by
// ProjectToSky: angular position and the line-of-sight radial velocity
// under the radio convention.
type SkyCoords struct {
	RADeg   []float64
	DecDeg  []float64
	VRadKms []float64
}

// skyUnitVector returns the Cartesian unit vector pointing at (ra, dec).
func skyUnitVector(ra, dec float64) (x, y, z float64) {
	sinRA, cosRA := math.Sincos(ra)
	sinDec, cosDec := math.Sincos(dec)
	return cosDec * cosRA, cosDec * sinRA, sinDec
}

// ProjectToSky places the ensemble in the observer's frame: it rotates the
// local +x axis onto the direction toward (RA, Dec), translates the
// particles by the source distance along that direction, and offsets the
// velocities by the Hubble flow plus the peculiar velocity. The applied
// rotations fold into the cumulative orientation matrix like any other
// rotation. Per-particle sky coordinates are computed and retained.
func (s *Source) ProjectToSky() error {
	// R_z(ra) * R_y(-dec) carries local +x onto the sky unit vector.
	if err := s.Rotate(RotationSpec{AxisAngle: &AxisAngleSpec{Axis: 'y', Angle: units.New(-s.dec, units.Radian)}}); err != nil {
		return err
	}
	if err := s.Rotate(RotationSpec{AxisAngle: &AxisAngleSpec{Axis: 'z', Angle: units.New(s.ra, units.Radian)}}); err != nil {
		return err
	}

	nx, ny, nz := skyUnitVector(s.ra, s.dec)
	distKpc := s.distance * 1e3
	if err := s.Translate(units.NewVec3(nx*distKpc, ny*distKpc, nz*distKpc, units.Kpc)); err != nil {
		return err
	}

	// Hubble flow is position-dependent: H0 * r for each particle. It must
	// be applied after the translation so that the systemic recession
	// velocity emerges from the particle positions themselves.
	h0 := s.h * 100 // km/s per Mpc
	for i := 0; i < s.n; i++ {
		s.vx[i] += h0 * s.x[i] * 1e-3
		s.vy[i] += h0 * s.y[i] * 1e-3
		s.vz[i] += h0 * s.z[i] * 1e-3
	}
	if err := s.Boost(units.NewVec3(nx*s.vpeculiar, ny*s.vpeculiar, nz*s.vpeculiar, units.KmPerSecond)); err != nil {
		return err
	}

	s.sky = s.computeSkyCoords()
	return nil
}

// computeSkyCoords derives per-particle angular positions and radial
// velocities from the current (observer-frame) coordinates. A particle at
// the observer's origin has no defined direction; it takes the source
// centre direction as the limit.
func (s *Source) computeSkyCoords() *SkyCoords {
	sky := &SkyCoords{
		RADeg:   make([]float64, s.n),
		DecDeg:  make([]float64, s.n),
		VRadKms: make([]float64, s.n),
	}
	const originEps = 1e-12
	for i := 0; i < s.n; i++ {
		px, py, pz := s.x[i], s.y[i], s.z[i]
		r := math.Sqrt(px*px + py*py + pz*pz)
		var ux, uy, uz float64
		if r < originEps {
			ux, uy, uz = skyUnitVector(s.ra, s.dec)
		} else {
			ux, uy, uz = px/r, py/r, pz/r
		}
		raDeg := math.Atan2(uy, ux) * 180 / math.Pi
		if raDeg < 0 {
			raDeg += 360
		}
		sky.RADeg[i] = raDeg
		sky.DecDeg[i] = math.Asin(math.Max(-1, math.Min(1, uz))) * 180 / math.Pi
		sky.VRadKms[i] = ux*s.vx[i] + uy*s.vy[i] + uz*s.vz[i]
	}
	return sky
}

// SkyCoordinates returns the per-particle sky coordinates computed by
// ProjectToSky.
func (s *Source) SkyCoordinates() (*SkyCoords, error) {
	if s.sky == nil {
		return nil, ErrNotProjected
	}
	return s.sky, nil
}

// PixelCoordinates maps every particle through the cube's axis calibration
// to fractional (x, y, channel) pixel coordinates, with the spectral
// component expressed in the cube's current channel mode. This, together
// with the smoothing-length field, is the hand-off to the deposition step.
//
// The pixel transform is linear, so the periodic RA coordinate is first
// wrapped into the half-turn around the cube's reference RA; a source
// straddling the 0/360 meridian lands on the grid instead of a full circle
// away.
func (s *Source) PixelCoordinates(c *cube.DataCube) ([][3]float64, error) {
	if s.sky == nil {
		return nil, ErrNotProjected
	}
	w := c.WCS()
	out := make([][3]float64, s.n)
	for i := 0; i < s.n; i++ {
		spectral := s.sky.VRadKms[i] * 1e3 // m/s
		if c.FreqMode() {
			spectral = cube.VelocityToFrequency(spectral)
		}
		out[i] = [3]float64{
			w.WorldToPix(0, wrapNear(s.sky.RADeg[i], w.CRVal[0])),
			w.WorldToPix(1, s.sky.DecDeg[i]),
			w.WorldToPix(2, spectral),
		}
	}
	return out, nil
}

// wrapNear returns the representation of the angle deg (degrees) lying in
// (centre-180, centre+180].
func wrapNear(deg, centre float64) float64 {
	delta := math.Mod(deg-centre+180, 360)
	if delta <= 0 {
		delta += 360
	}
	return centre + delta - 180
}

// String summarizes the ensemble for diagnostics.
func (s *Source) String() string {
	return fmt.Sprintf("source: %d particles at RA %.3f deg Dec %.3f deg, D = %.2f Mpc",
		s.n, s.ra*180/math.Pi, s.dec*180/math.Pi, s.distance)
}
