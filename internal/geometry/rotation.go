// Package geometry provides 3-D rotation and translation primitives for
// particle ensembles: axis-angle rotation matrices, angular-momentum
// alignment, translation broadcasting and plain-text matrix persistence.
//
// All rotations are active, right-handed rotations represented as 3x3
// gonum matrices. Composition order is new = R * old throughout.
package geometry

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrInvalidAxis is returned for a rotation axis with near-zero magnitude.
	ErrInvalidAxis = errors.New("geometry: invalid rotation axis")
	// ErrInvalidRotation is returned when a matrix is not a proper rotation.
	ErrInvalidRotation = errors.New("geometry: matrix is not a proper rotation")
	// ErrAmbiguousShape is returned when a coordinate array layout cannot be
	// inferred from its shape.
	ErrAmbiguousShape = errors.New("geometry: ambiguous coordinate shape")
	// ErrShapeMismatch is returned when coordinate arrays disagree in size.
	ErrShapeMismatch = errors.New("geometry: shape mismatch")
)

// Tolerances for axis magnitude and rotation-matrix validation.
const (
	axisEps     = 1e-12
	rotationEps = 1e-8
)

// AxisAngle builds the proper rotation matrix for a right-handed rotation of
// angle radians about the given axis, using the Rodrigues formula. The axis
// need not be normalized but must have non-zero magnitude.
func AxisAngle(axis [3]float64, angle float64) (*mat.Dense, error) {
	norm := math.Sqrt(axis[0]*axis[0] + axis[1]*axis[1] + axis[2]*axis[2])
	if norm < axisEps {
		return nil, fmt.Errorf("%w: |axis| = %g", ErrInvalidAxis, norm)
	}
	ux, uy, uz := axis[0]/norm, axis[1]/norm, axis[2]/norm
	s, c := math.Sincos(angle)
	omc := 1 - c
	return mat.NewDense(3, 3, []float64{
		c + ux*ux*omc, ux*uy*omc - uz*s, ux*uz*omc + uy*s,
		uy*ux*omc + uz*s, c + uy*uy*omc, uy*uz*omc - ux*s,
		uz*ux*omc - uy*s, uz*uy*omc + ux*s, c + uz*uz*omc,
	}), nil
}

// AboutAxis builds the rotation of angle radians about one of the canonical
// axes 'x', 'y' or 'z'.
func AboutAxis(axis byte, angle float64) (*mat.Dense, error) {
	switch axis {
	case 'x':
		return AxisAngle([3]float64{1, 0, 0}, angle)
	case 'y':
		return AxisAngle([3]float64{0, 1, 0}, angle)
	case 'z':
		return AxisAngle([3]float64{0, 0, 1}, angle)
	}
	return nil, fmt.Errorf("%w: unknown axis %q", ErrInvalidAxis, string(axis))
}

// Validate checks that m is a 3x3 proper rotation: orthonormal with
// determinant +1, within numeric tolerance.
func Validate(m mat.Matrix) error {
	r, c := m.Dims()
	if r != 3 || c != 3 {
		return fmt.Errorf("%w: dims (%d, %d)", ErrInvalidRotation, r, c)
	}
	var prod mat.Dense
	prod.Mul(m.T(), m)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			if math.Abs(prod.At(i, j)-want) > rotationEps {
				return fmt.Errorf("%w: not orthonormal", ErrInvalidRotation)
			}
		}
	}
	if d := mat.Det(m); math.Abs(d-1) > rotationEps {
		return fmt.Errorf("%w: det = %g", ErrInvalidRotation, d)
	}
	return nil
}

// Compose returns the product a * b as a new matrix. Applying the result is
// equivalent to applying b first, then a.
func Compose(a, b mat.Matrix) *mat.Dense {
	out := mat.NewDense(3, 3, nil)
	out.Mul(a, b)
	return out
}

// Identity returns a fresh 3x3 identity matrix.
func Identity() *mat.Dense {
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
}

// RotateColumns applies rotation r in place to each particle of the
// component slices x, y, z (index-aligned, one entry per particle).
func RotateColumns(r mat.Matrix, x, y, z []float64) {
	r00, r01, r02 := r.At(0, 0), r.At(0, 1), r.At(0, 2)
	r10, r11, r12 := r.At(1, 0), r.At(1, 1), r.At(1, 2)
	r20, r21, r22 := r.At(2, 0), r.At(2, 1), r.At(2, 2)
	for i := range x {
		px, py, pz := x[i], y[i], z[i]
		x[i] = r00*px + r01*py + r02*pz
		y[i] = r10*px + r11*py + r12*pz
		z[i] = r20*px + r21*py + r22*pz
	}
}
