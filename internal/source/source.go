// Package source models an emission source as an ensemble of simulation
// particles: per-particle positions and velocities plus arbitrary
// index-aligned scalar fields (mass, temperature, smoothing length), a
// cumulative orientation matrix, and the observer-frame parameters (sky
// position, distance, peculiar velocity) used to project the ensemble onto
// the sky.
package source

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/redshift-labs/hicube/internal/geometry"
	"github.com/redshift-labs/hicube/internal/units"
)

var (
	// ErrAmbiguousShape is returned when the particle layout of a square
	// coordinate array cannot be inferred.
	ErrAmbiguousShape = errors.New("source: cannot guess coordinate layout")
	// ErrShapeMismatch is returned when position and velocity arrays
	// disagree in shape.
	ErrShapeMismatch = errors.New("source: coordinate arrays must have matching shapes")
	// ErrLengthMismatch is returned when a per-particle array has the wrong
	// length.
	ErrLengthMismatch = errors.New("source: length mismatch")
	// ErrEmptySelection is returned when a mask removes every particle.
	ErrEmptySelection = errors.New("source: no particles in target region")
	// ErrRotationSpec is returned for a RotationSpec with more than one
	// rotation type set.
	ErrRotationSpec = errors.New("source: multiple rotations in a single call")
)

// Layout describes which axis of a 2-D coordinate array indexes particles.
type Layout int

const (
	// LayoutAuto infers the layout from the array shape; a 3x3 array is
	// ambiguous and rejected.
	LayoutAuto Layout = iota
	// ParticlesFirst means shape (N, 3): each row is one particle.
	ParticlesFirst
	// ParticlesLast means shape (3, N): each row is one component.
	ParticlesLast
)

// Field is a named per-particle scalar field. Scalar fields hold a single
// value shared by all particles and pass through masking unchanged.
type Field struct {
	Name   string
	Values []float64
	Unit   units.Unit
	Scalar bool
}

// ScalarField returns a Field holding one value for all particles.
func ScalarField(name string, v float64, u units.Unit) Field {
	return Field{Name: name, Values: []float64{v}, Unit: u, Scalar: true}
}

// ArrayField returns a per-particle Field.
func ArrayField(name string, vals []float64, u units.Unit) Field {
	return Field{Name: name, Values: vals, Unit: u}
}

// At returns the field value for particle i, honouring scalar broadcast.
func (f Field) At(i int) float64 {
	if f.Scalar {
		return f.Values[0]
	}
	return f.Values[i]
}

// Params configures a new Source.
type Params struct {
	XYZ  [][]float64 // particle positions, (N, 3) or (3, N)
	VXYZ [][]float64 // particle velocities, same shape as XYZ

	Layout  Layout
	PosUnit units.Unit // default kpc
	VelUnit units.Unit // default km/s

	Mass            Field // per-particle or scalar; required for L alignment
	Temperature     Field
	SmoothingLength Field
	Extra           []Field

	RA        units.Quantity // default 0 deg
	Dec       units.Quantity // default 0 deg
	Distance  units.Quantity // default 3 Mpc; also sets the Hubble-law offset
	VPeculiar units.Quantity // default 0 km/s
	H         float64        // dimensionless Hubble constant, default 0.7

	Rotation RotationSpec // applied at construction; zero value is a no-op
}

// Source is a particle ensemble with cumulative orientation state. All
// per-particle slices are index-aligned at all times; masking never
// reorders particles.
type Source struct {
	n      int
	layout Layout

	x, y, z    []float64 // kpc
	vx, vy, vz []float64 // km/s

	mass        Field
	temperature Field
	smoothing   Field
	extra       []Field

	rot *mat.Dense // cumulative rotation from the raw input frame

	ra, dec   float64 // rad
	distance  float64 // Mpc
	vpeculiar float64 // km/s
	h         float64

	sky *SkyCoords
}

// New constructs a Source from raw simulation coordinates, canonicalizing
// to an index-by-particle representation and applying any requested
// construction-time rotation.
func New(p Params) (*Source, error) {
	if p.PosUnit == (units.Unit{}) {
		p.PosUnit = units.Kpc
	}
	if p.VelUnit == (units.Unit{}) {
		p.VelUnit = units.KmPerSecond
	}
	if p.RA == (units.Quantity{}) {
		p.RA = units.New(0, units.Degree)
	}
	if p.Dec == (units.Quantity{}) {
		p.Dec = units.New(0, units.Degree)
	}
	if p.Distance == (units.Quantity{}) {
		p.Distance = units.New(3, units.Mpc)
	}
	if p.VPeculiar == (units.Quantity{}) {
		p.VPeculiar = units.New(0, units.KmPerSecond)
	}
	if p.H == 0 {
		p.H = 0.7
	}

	layout, n, err := resolveLayout(p.XYZ, p.Layout)
	if err != nil {
		return nil, err
	}
	vlayout, vn, err := resolveLayout(p.VXYZ, p.Layout)
	if err != nil {
		return nil, err
	}
	if layout != vlayout || n != vn {
		return nil, fmt.Errorf("%w: positions (%s) vs velocities (%s)",
			ErrShapeMismatch, shapeString(p.XYZ), shapeString(p.VXYZ))
	}

	posScale, err := p.PosUnit.ConversionFactor(units.Kpc)
	if err != nil {
		return nil, fmt.Errorf("position unit: %w", err)
	}
	velScale, err := p.VelUnit.ConversionFactor(units.KmPerSecond)
	if err != nil {
		return nil, fmt.Errorf("velocity unit: %w", err)
	}

	s := &Source{
		n:           n,
		layout:      layout,
		x:           make([]float64, n),
		y:           make([]float64, n),
		z:           make([]float64, n),
		vx:          make([]float64, n),
		vy:          make([]float64, n),
		vz:          make([]float64, n),
		mass:        p.Mass,
		temperature: p.Temperature,
		smoothing:   p.SmoothingLength,
		extra:       append([]Field(nil), p.Extra...),
		rot:         geometry.Identity(),
		ra:          p.RA.In(units.Radian),
		dec:         p.Dec.In(units.Radian),
		distance:    p.Distance.In(units.Mpc),
		vpeculiar:   p.VPeculiar.In(units.KmPerSecond),
		h:           p.H,
	}
	for i := 0; i < n; i++ {
		px, py, pz := componentAt(p.XYZ, layout, i)
		wx, wy, wz := componentAt(p.VXYZ, layout, i)
		s.x[i], s.y[i], s.z[i] = px*posScale, py*posScale, pz*posScale
		s.vx[i], s.vy[i], s.vz[i] = wx*velScale, wy*velScale, wz*velScale
	}

	for _, f := range s.allFields() {
		if f.Name == "" || f.Values == nil {
			continue
		}
		if !f.Scalar && len(f.Values) != n {
			return nil, fmt.Errorf("%w: field %q has %d values for %d particles",
				ErrLengthMismatch, f.Name, len(f.Values), n)
		}
		// The ensemble owns its field storage; masking compacts in place
		// and must never reach the caller's arrays.
		f.Values = append([]float64(nil), f.Values...)
	}

	if err := s.Rotate(p.Rotation); err != nil {
		return nil, err
	}
	return s, nil
}

func resolveLayout(coords [][]float64, hint Layout) (Layout, int, error) {
	rows := len(coords)
	if rows == 0 {
		return 0, 0, fmt.Errorf("%w: empty coordinate array", ErrShapeMismatch)
	}
	cols := len(coords[0])
	for _, row := range coords {
		if len(row) != cols {
			return 0, 0, fmt.Errorf("%w: ragged coordinate array", ErrShapeMismatch)
		}
	}

	switch hint {
	case ParticlesFirst:
		if cols != 3 {
			return 0, 0, fmt.Errorf("%w: (%d, %d) is not (N, 3)", ErrShapeMismatch, rows, cols)
		}
		return ParticlesFirst, rows, nil
	case ParticlesLast:
		if rows != 3 {
			return 0, 0, fmt.Errorf("%w: (%d, %d) is not (3, N)", ErrShapeMismatch, rows, cols)
		}
		return ParticlesLast, cols, nil
	}

	switch {
	case rows == 3 && cols == 3:
		return 0, 0, fmt.Errorf("%w: shape (3, 3), provide Layout explicitly", ErrAmbiguousShape)
	case cols == 3:
		return ParticlesFirst, rows, nil
	case rows == 3:
		return ParticlesLast, cols, nil
	}
	return 0, 0, fmt.Errorf("%w: (%d, %d) is not (3, N) or (N, 3)", ErrShapeMismatch, rows, cols)
}

func componentAt(coords [][]float64, layout Layout, i int) (x, y, z float64) {
	if layout == ParticlesFirst {
		return coords[i][0], coords[i][1], coords[i][2]
	}
	return coords[0][i], coords[1][i], coords[2][i]
}

func shapeString(coords [][]float64) string {
	if len(coords) == 0 {
		return "(0, ?)"
	}
	return fmt.Sprintf("(%d, %d)", len(coords), len(coords[0]))
}

func (s *Source) allFields() []*Field {
	out := []*Field{&s.mass, &s.temperature, &s.smoothing}
	for i := range s.extra {
		out = append(out, &s.extra[i])
	}
	return out
}

// N returns the current particle count.
func (s *Source) N() int { return s.n }

// Layout returns the coordinate layout resolved at construction.
func (s *Source) Layout() Layout { return s.layout }

// H returns the dimensionless Hubble constant.
func (s *Source) H() float64 { return s.h }

// Distance returns the source distance.
func (s *Source) Distance() units.Quantity { return units.New(s.distance, units.Mpc) }

// VSys returns the systemic velocity: Hubble-law recession at the source
// distance plus the peculiar velocity.
func (s *Source) VSys() units.Quantity {
	return units.New(s.h*100*s.distance+s.vpeculiar, units.KmPerSecond)
}

// Positions returns copies of the particle position components in kpc.
func (s *Source) Positions() (x, y, z []float64) {
	return append([]float64(nil), s.x...),
		append([]float64(nil), s.y...),
		append([]float64(nil), s.z...)
}

// Velocities returns copies of the particle velocity components in km/s.
func (s *Source) Velocities() (vx, vy, vz []float64) {
	return append([]float64(nil), s.vx...),
		append([]float64(nil), s.vy...),
		append([]float64(nil), s.vz...)
}

// MassField returns the particle mass field.
func (s *Source) MassField() Field { return s.mass }

// TemperatureField returns the particle temperature field.
func (s *Source) TemperatureField() Field { return s.temperature }

// SmoothingField returns the particle smoothing-length field, carried as an
// opaque per-particle parameter for the deposition step.
func (s *Source) SmoothingField() Field { return s.smoothing }

// ExtraFields returns any additional per-particle fields.
func (s *Source) ExtraFields() []Field { return append([]Field(nil), s.extra...) }

// CurrentRotation returns a copy of the cumulative orientation matrix
// mapping the raw input frame to the current frame.
func (s *Source) CurrentRotation() *mat.Dense {
	out := mat.NewDense(3, 3, nil)
	out.Copy(s.rot)
	return out
}

// SaveCurrentRotation persists the cumulative orientation matrix to path as
// a plain-text 3x3 matrix. Reloading it via geometry.LoadMatrix and
// applying it with RotationSpec{Matrix: m} reproduces the orientation.
func (s *Source) SaveCurrentRotation(path string) error {
	return geometry.SaveMatrix(path, s.rot)
}

// RotationSpec selects exactly one way to rotate the ensemble. The zero
// value is a no-op.
type RotationSpec struct {
	// AxisAngle rotates about a canonical axis by an angle.
	AxisAngle *AxisAngleSpec
	// Matrix applies a validated rotation matrix directly.
	Matrix *mat.Dense
	// AlignL orients the disc plane using the angular momentum of the
	// central third of particles.
	AlignL *AlignLSpec
}

// AxisAngleSpec is a rotation of Angle about canonical axis Axis.
type AxisAngleSpec struct {
	Axis  byte // 'x', 'y' or 'z'
	Angle units.Quantity
}

// AlignLSpec aligns the angular-momentum pole of the inner ensemble with
// the x axis (the line of sight), then applies an azimuthal rotation about
// x, an inclination about y, and finally a position angle about x.
type AlignLSpec struct {
	Incl    units.Quantity
	Azimuth units.Quantity
	// PA is the position angle on the sky; zero value means the default of
	// 270 degrees.
	PA units.Quantity
}

// innerFraction is the fraction of particles, by radius about the
// mass-weighted centroid, used for angular-momentum alignment.
const innerFraction = 0.3

// Rotate applies the rotation selected by spec to every particle position
// and velocity and folds it into the cumulative orientation matrix. At
// most one rotation type may be set; a zero spec is a no-op.
func (s *Source) Rotate(spec RotationSpec) error {
	given := 0
	if spec.AxisAngle != nil {
		given++
	}
	if spec.Matrix != nil {
		given++
	}
	if spec.AlignL != nil {
		given++
	}
	if given == 0 {
		return nil
	}
	if given > 1 {
		return ErrRotationSpec
	}

	var doRot *mat.Dense
	switch {
	case spec.AxisAngle != nil:
		r, err := geometry.AboutAxis(spec.AxisAngle.Axis, spec.AxisAngle.Angle.In(units.Radian))
		if err != nil {
			return err
		}
		doRot = r
	case spec.Matrix != nil:
		if err := geometry.Validate(spec.Matrix); err != nil {
			return err
		}
		doRot = mat.NewDense(3, 3, nil)
		doRot.Copy(spec.Matrix)
	case spec.AlignL != nil:
		r, err := s.alignLRotation(*spec.AlignL)
		if err != nil {
			return err
		}
		doRot = r
	}

	geometry.RotateColumns(doRot, s.x, s.y, s.z)
	geometry.RotateColumns(doRot, s.vx, s.vy, s.vz)
	s.rot = geometry.Compose(doRot, s.rot)
	return nil
}

// alignLRotation builds the full L_coords rotation: align the inner disc's
// angular momentum with x, rotate by the azimuth about x, incline about y,
// then set the position angle about x.
func (s *Source) alignLRotation(spec AlignLSpec) (*mat.Dense, error) {
	inner, err := s.innerParticles(innerFraction)
	if err != nil {
		return nil, err
	}
	masses := s.mass.Values
	if len(masses) == 0 {
		masses = []float64{1}
	} else if !s.mass.Scalar {
		sub := make([]float64, len(inner))
		for i, idx := range inner {
			sub[i] = s.mass.Values[idx]
		}
		masses = sub
	}

	p := geometry.Coords{X: make([]float64, len(inner)), Y: make([]float64, len(inner)), Z: make([]float64, len(inner))}
	v := geometry.Coords{X: make([]float64, len(inner)), Y: make([]float64, len(inner)), Z: make([]float64, len(inner))}
	for i, idx := range inner {
		p.X[i], p.Y[i], p.Z[i] = s.x[idx], s.y[idx], s.z[idx]
		v.X[i], v.Y[i], v.Z[i] = s.vx[idx], s.vy[idx], s.vz[idx]
	}

	doRot, err := geometry.AlignFromComponents(p, v, masses, 'x')
	if err != nil {
		return nil, err
	}

	incl := spec.Incl.In(units.Radian)
	az := spec.Azimuth.In(units.Radian)
	pa := 270 * math.Pi / 180
	if spec.PA != (units.Quantity{}) {
		pa = spec.PA.In(units.Radian)
	}

	rAz, err := geometry.AboutAxis('x', az)
	if err != nil {
		return nil, err
	}
	doRot = geometry.Compose(rAz, doRot)
	rIncl, err := geometry.AboutAxis('y', incl)
	if err != nil {
		return nil, err
	}
	doRot = geometry.Compose(rIncl, doRot)

	paOffset := pa - math.Pi/2
	if incl < 0 {
		paOffset = pa - 3*math.Pi/2
	}
	rPA, err := geometry.AboutAxis('x', paOffset)
	if err != nil {
		return nil, err
	}
	return geometry.Compose(rPA, doRot), nil
}

// innerParticles returns the indices of the frac of particles closest, by
// radius, to the mass-weighted centroid.
func (s *Source) innerParticles(frac float64) ([]int, error) {
	var mtot, cx, cy, cz float64
	for i := 0; i < s.n; i++ {
		m := 1.0
		if len(s.mass.Values) > 0 {
			m = s.mass.At(i)
		}
		mtot += m
		cx += m * s.x[i]
		cy += m * s.y[i]
		cz += m * s.z[i]
	}
	if mtot == 0 {
		return nil, fmt.Errorf("%w: total mass is zero", geometry.ErrInvalidAxis)
	}
	cx, cy, cz = cx/mtot, cy/mtot, cz/mtot

	idx := make([]int, s.n)
	r2 := make([]float64, s.n)
	for i := 0; i < s.n; i++ {
		idx[i] = i
		dx, dy, dz := s.x[i]-cx, s.y[i]-cy, s.z[i]-cz
		r2[i] = dx*dx + dy*dy + dz*dz
	}
	sort.SliceStable(idx, func(a, b int) bool { return r2[idx[a]] < r2[idx[b]] })

	keep := int(math.Ceil(frac * float64(s.n)))
	if keep < 1 {
		keep = 1
	}
	return idx[:keep], nil
}

// Translate adds a physical-length offset to every particle position.
func (s *Source) Translate(offset units.Vec3) error {
	conv, err := offset.To(units.Kpc)
	if err != nil {
		return err
	}
	return geometry.TranslateComponents(s.x, s.y, s.z, []float64{conv.X, conv.Y, conv.Z})
}

// Boost adds a velocity offset to every particle velocity.
func (s *Source) Boost(offset units.Vec3) error {
	conv, err := offset.To(units.KmPerSecond)
	if err != nil {
		return err
	}
	return geometry.TranslateComponents(s.vx, s.vy, s.vz, []float64{conv.X, conv.Y, conv.Z})
}

// ApplyMask retains only the particles with true mask entries, preserving
// their relative order across positions, velocities, every per-particle
// field and any computed sky coordinates. Scalar fields pass through
// unchanged. Masking is validated before any mutation.
func (s *Source) ApplyMask(mask []bool) error {
	if len(mask) != s.n {
		return fmt.Errorf("%w: mask has %d entries for %d particles", ErrLengthMismatch, len(mask), s.n)
	}
	kept := 0
	for _, keep := range mask {
		if keep {
			kept++
		}
	}
	if kept == 0 {
		return ErrEmptySelection
	}

	filter := func(vals []float64) []float64 {
		out := vals[:0]
		for i, keep := range mask {
			if keep {
				out = append(out, vals[i])
			}
		}
		return out
	}

	s.x, s.y, s.z = filter(s.x), filter(s.y), filter(s.z)
	s.vx, s.vy, s.vz = filter(s.vx), filter(s.vy), filter(s.vz)
	for _, f := range s.allFields() {
		if f.Scalar || len(f.Values) == 0 {
			continue
		}
		f.Values = filter(f.Values)
	}
	if s.sky != nil {
		s.sky.RADeg = filter(s.sky.RADeg)
		s.sky.DecDeg = filter(s.sky.DecDeg)
		s.sky.VRadKms = filter(s.sky.VRadKms)
	}
	s.n = kept
	return nil
}
