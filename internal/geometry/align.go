package geometry

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Coords holds index-aligned particle component slices in a canonical
// particles-by-rows layout. It is the normalized form produced by
// NormalizeCoords and consumed by AlignAngularMomentum.
type Coords struct {
	X, Y, Z []float64
}

// N returns the particle count.
func (c Coords) N() int { return len(c.X) }

// NormalizeCoords converts a coordinate matrix in either (3, N) or (N, 3)
// layout into component slices. The layout is inferred from the shape: the
// axis of length 3 holds the components. A 3x3 matrix is ambiguous and is
// rejected with ErrAmbiguousShape unless forceRows is true, in which case
// rows are taken to index particles. Shapes with no axis of length 3 are
// rejected with ErrShapeMismatch.
func NormalizeCoords(m mat.Matrix, forceRows bool) (Coords, error) {
	r, c := m.Dims()
	var byRows bool
	switch {
	case r == 3 && c == 3:
		if !forceRows {
			return Coords{}, fmt.Errorf("%w: 3x3 coordinates, specify layout", ErrAmbiguousShape)
		}
		byRows = true
	case c == 3:
		byRows = true
	case r == 3:
		byRows = false
	default:
		return Coords{}, fmt.Errorf("%w: (%d, %d) is not (3, N) or (N, 3)", ErrShapeMismatch, r, c)
	}

	n := r
	if !byRows {
		n = c
	}
	out := Coords{X: make([]float64, n), Y: make([]float64, n), Z: make([]float64, n)}
	for i := 0; i < n; i++ {
		if byRows {
			out.X[i], out.Y[i], out.Z[i] = m.At(i, 0), m.At(i, 1), m.At(i, 2)
		} else {
			out.X[i], out.Y[i], out.Z[i] = m.At(0, i), m.At(1, i), m.At(2, i)
		}
	}
	return out, nil
}

// AlignAngularMomentum computes the net angular momentum
// L = sum m_i (r_i x v_i) of the ensemble about its mass-weighted centroid
// and returns the rotation matrix carrying the normalized L direction onto
// the requested canonical axis ('x', 'y' or 'z').
//
// Positions and velocities may be given in either (3, N) or (N, 3) layout;
// the two must agree in particle count. Masses must either match the
// particle count or have length 1 (uniform mass). Caller arrays are never
// mutated. The residual rotation about the target axis is fixed by a
// deterministic Gram-Schmidt completion of the canonical basis against L,
// so identical inputs always produce identical matrices.
//
// If savePath is non-empty the resulting matrix is also written there as a
// plain-text 3x3 matrix (see SaveMatrix).
func AlignAngularMomentum(pos, vel mat.Matrix, masses []float64, target byte, savePath string) (*mat.Dense, error) {
	p, err := NormalizeCoords(pos, false)
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}
	v, err := NormalizeCoords(vel, false)
	if err != nil {
		return nil, fmt.Errorf("velocities: %w", err)
	}
	if p.N() != v.N() {
		return nil, fmt.Errorf("%w: %d positions vs %d velocities", ErrShapeMismatch, p.N(), v.N())
	}
	if len(masses) != p.N() && len(masses) != 1 {
		return nil, fmt.Errorf("%w: %d masses for %d particles", ErrShapeMismatch, len(masses), p.N())
	}

	r, err := alignFromComponents(p, v, masses, target)
	if err != nil {
		return nil, err
	}
	if savePath != "" {
		if err := SaveMatrix(savePath, r); err != nil {
			return nil, fmt.Errorf("saving rotation: %w", err)
		}
	}
	return r, nil
}

// AlignFromComponents is AlignAngularMomentum for callers that already hold
// canonical component slices (no layout dispatch, no file side effect).
func AlignFromComponents(p, v Coords, masses []float64, target byte) (*mat.Dense, error) {
	if p.N() != v.N() {
		return nil, fmt.Errorf("%w: %d positions vs %d velocities", ErrShapeMismatch, p.N(), v.N())
	}
	if len(masses) != p.N() && len(masses) != 1 {
		return nil, fmt.Errorf("%w: %d masses for %d particles", ErrShapeMismatch, len(masses), p.N())
	}
	return alignFromComponents(p, v, masses, target)
}

func alignFromComponents(p, v Coords, masses []float64, target byte) (*mat.Dense, error) {
	n := p.N()
	massAt := func(i int) float64 {
		if len(masses) == 1 {
			return masses[0]
		}
		return masses[i]
	}

	// Mass-weighted centroid of positions and velocities.
	var mtot, cx, cy, cz, cvx, cvy, cvz float64
	for i := 0; i < n; i++ {
		m := massAt(i)
		mtot += m
		cx += m * p.X[i]
		cy += m * p.Y[i]
		cz += m * p.Z[i]
		cvx += m * v.X[i]
		cvy += m * v.Y[i]
		cvz += m * v.Z[i]
	}
	if mtot == 0 {
		return nil, fmt.Errorf("%w: total mass is zero", ErrInvalidAxis)
	}
	cx, cy, cz = cx/mtot, cy/mtot, cz/mtot
	cvx, cvy, cvz = cvx/mtot, cvy/mtot, cvz/mtot

	// L = sum m_i (r_i - r_bar) x (v_i - v_bar).
	var lx, ly, lz float64
	for i := 0; i < n; i++ {
		m := massAt(i)
		rx, ry, rz := p.X[i]-cx, p.Y[i]-cy, p.Z[i]-cz
		wx, wy, wz := v.X[i]-cvx, v.Y[i]-cvy, v.Z[i]-cvz
		lx += m * (ry*wz - rz*wy)
		ly += m * (rz*wx - rx*wz)
		lz += m * (rx*wy - ry*wx)
	}
	norm := math.Sqrt(lx*lx + ly*ly + lz*lz)
	if norm < axisEps {
		return nil, fmt.Errorf("%w: net angular momentum is zero", ErrInvalidAxis)
	}
	l := [3]float64{lx / norm, ly / norm, lz / norm}

	var ti int
	switch target {
	case 'x':
		ti = 0
	case 'y':
		ti = 1
	case 'z':
		ti = 2
	default:
		return nil, fmt.Errorf("%w: unknown target axis %q", ErrInvalidAxis, string(target))
	}

	// Build a right-handed orthonormal triad with L on the target row: the
	// rotation with these rows maps L onto the target axis. The row after
	// the target (cyclically) is the Gram-Schmidt rejection of the next
	// canonical basis vector from L, and the remaining row closes the triad.
	var rows [3][3]float64
	rows[ti] = l
	next := (ti + 1) % 3
	var seed [3]float64
	seed[next] = 1
	proj := seed[0]*l[0] + seed[1]*l[1] + seed[2]*l[2]
	u := [3]float64{seed[0] - proj*l[0], seed[1] - proj*l[1], seed[2] - proj*l[2]}
	un := math.Sqrt(u[0]*u[0] + u[1]*u[1] + u[2]*u[2])
	if un < axisEps {
		// L is parallel to the seed axis: use the following canonical axis.
		seed = [3]float64{}
		seed[(ti+2)%3] = 1
		proj = seed[0]*l[0] + seed[1]*l[1] + seed[2]*l[2]
		u = [3]float64{seed[0] - proj*l[0], seed[1] - proj*l[1], seed[2] - proj*l[2]}
		un = math.Sqrt(u[0]*u[0] + u[1]*u[1] + u[2]*u[2])
	}
	rows[next] = [3]float64{u[0] / un, u[1] / un, u[2] / un}
	last := (ti + 2) % 3
	a, b := rows[ti], rows[next]
	rows[last] = [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}

	return mat.NewDense(3, 3, []float64{
		rows[0][0], rows[0][1], rows[0][2],
		rows[1][0], rows[1][1], rows[1][2],
		rows[2][0], rows[2][1], rows[2][2],
	}), nil
}
