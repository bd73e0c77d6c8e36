// Package units provides dimension-checked physical quantities.
//
// Every physical value that crosses a package boundary in this project is
// tagged with a Unit. Arithmetic between quantities checks dimensional
// compatibility and converts magnitudes explicitly; mixing incompatible
// dimensions returns ErrDimensionMismatch rather than silently
// reinterpreting values.
package units

import (
	"errors"
	"fmt"
)

// ErrDimensionMismatch is returned when two quantities with different
// physical dimensions are combined or converted.
var ErrDimensionMismatch = errors.New("units: dimension mismatch")

// Dim is a vector of base-dimension exponents: length, mass, time and angle.
// Angle is carried as an independent dimension so that degrees and radians
// convert into each other but never into dimensionless scalars by accident.
type Dim struct {
	Length int
	Mass   int
	Time   int
	Angle  int
}

// Unit couples a dimension vector with a scale factor to the SI base unit of
// that dimension (metres, kilograms, seconds, radians).
type Unit struct {
	Name  string
	Dim   Dim
	Scale float64
}

// Predefined units. Scales follow the IAU 2015 resolution values for the
// parsec-derived lengths and the nominal solar mass.
var (
	Dimensionless = Unit{Name: "", Dim: Dim{}, Scale: 1}

	Metre = Unit{Name: "m", Dim: Dim{Length: 1}, Scale: 1}
	Km    = Unit{Name: "km", Dim: Dim{Length: 1}, Scale: 1e3}
	Kpc   = Unit{Name: "kpc", Dim: Dim{Length: 1}, Scale: 3.0856775814913673e19}
	Mpc   = Unit{Name: "Mpc", Dim: Dim{Length: 1}, Scale: 3.0856775814913673e22}

	Second = Unit{Name: "s", Dim: Dim{Time: 1}, Scale: 1}

	MetrePerSecond = Unit{Name: "m/s", Dim: Dim{Length: 1, Time: -1}, Scale: 1}
	KmPerSecond    = Unit{Name: "km/s", Dim: Dim{Length: 1, Time: -1}, Scale: 1e3}

	Hz  = Unit{Name: "Hz", Dim: Dim{Time: -1}, Scale: 1}
	GHz = Unit{Name: "GHz", Dim: Dim{Time: -1}, Scale: 1e9}

	Radian = Unit{Name: "rad", Dim: Dim{Angle: 1}, Scale: 1}
	Degree = Unit{Name: "deg", Dim: Dim{Angle: 1}, Scale: 0.017453292519943295}
	Arcsec = Unit{Name: "arcsec", Dim: Dim{Angle: 1}, Scale: 4.84813681109536e-6}

	Kg   = Unit{Name: "kg", Dim: Dim{Mass: 1}, Scale: 1}
	Msun = Unit{Name: "Msun", Dim: Dim{Mass: 1}, Scale: 1.98841e30}

	// JyPerPix2 is the datacube sample unit: flux density per pixel area.
	// 1 Jy = 1e-26 W m^-2 Hz^-1, which reduces to kg s^-2.
	JyPerPix2 = Unit{Name: "Jy/pix^2", Dim: Dim{Mass: 1, Time: -2}, Scale: 1e-26}
)

// ConversionFactor returns the multiplier that converts a magnitude in u
// into a magnitude in to. It fails if the dimensions differ.
func (u Unit) ConversionFactor(to Unit) (float64, error) {
	if u.Dim != to.Dim {
		return 0, fmt.Errorf("%w: cannot convert %q to %q", ErrDimensionMismatch, u.Name, to.Name)
	}
	return u.Scale / to.Scale, nil
}

// Quantity is a scalar magnitude tagged with a unit.
type Quantity struct {
	Value float64
	Unit  Unit
}

// New returns a Quantity with the given magnitude and unit.
func New(v float64, u Unit) Quantity {
	return Quantity{Value: v, Unit: u}
}

// To converts the quantity to another unit of the same dimension.
func (q Quantity) To(u Unit) (Quantity, error) {
	f, err := q.Unit.ConversionFactor(u)
	if err != nil {
		return Quantity{}, err
	}
	return Quantity{Value: q.Value * f, Unit: u}, nil
}

// MustTo is To for conversions known to be dimensionally sound; it panics on
// mismatch. Use only with unit pairs fixed at compile time.
func (q Quantity) MustTo(u Unit) Quantity {
	out, err := q.To(u)
	if err != nil {
		panic(err)
	}
	return out
}

// In returns the magnitude of the quantity expressed in u. It panics on
// dimension mismatch, like MustTo.
func (q Quantity) In(u Unit) float64 {
	return q.MustTo(u).Value
}

// Add returns q + o expressed in q's unit.
func (q Quantity) Add(o Quantity) (Quantity, error) {
	conv, err := o.To(q.Unit)
	if err != nil {
		return Quantity{}, err
	}
	return Quantity{Value: q.Value + conv.Value, Unit: q.Unit}, nil
}

// Sub returns q - o expressed in q's unit.
func (q Quantity) Sub(o Quantity) (Quantity, error) {
	conv, err := o.To(q.Unit)
	if err != nil {
		return Quantity{}, err
	}
	return Quantity{Value: q.Value - conv.Value, Unit: q.Unit}, nil
}

// String formats the quantity as "<value> <unit>".
func (q Quantity) String() string {
	if q.Unit.Name == "" {
		return fmt.Sprintf("%g", q.Value)
	}
	return fmt.Sprintf("%g %s", q.Value, q.Unit.Name)
}

// Vec3 is a 3-component vector sharing a single unit.
type Vec3 struct {
	X, Y, Z float64
	Unit    Unit
}

// NewVec3 returns a Vec3 with the given components and unit.
func NewVec3(x, y, z float64, u Unit) Vec3 {
	return Vec3{X: x, Y: y, Z: z, Unit: u}
}

// To converts all three components to another unit of the same dimension.
func (v Vec3) To(u Unit) (Vec3, error) {
	f, err := v.Unit.ConversionFactor(u)
	if err != nil {
		return Vec3{}, err
	}
	return Vec3{X: v.X * f, Y: v.Y * f, Z: v.Z * f, Unit: u}, nil
}

// Scale returns the vector with all components multiplied by s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s, Unit: v.Unit}
}

// Add returns v + o expressed in v's unit.
func (v Vec3) Add(o Vec3) (Vec3, error) {
	conv, err := o.To(v.Unit)
	if err != nil {
		return Vec3{}, err
	}
	return Vec3{X: v.X + conv.X, Y: v.Y + conv.Y, Z: v.Z + conv.Z, Unit: v.Unit}, nil
}
