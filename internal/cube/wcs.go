package cube

import "github.com/redshift-labs/hicube/internal/units"

// WCS is the axis-calibration record of a datacube: for each of the four
// axes (RA, Dec, spectral, stokes) it stores the reference pixel (CRPix,
// one-indexed per the FITS convention), the physical value at the reference
// pixel (CRVal), the per-pixel increment (CDelt), an axis type tag (CType)
// and the axis unit (CUnit).
//
// The pixel/world mapping is linear and exactly invertible:
//
//	world = CRVal + (pix - (CRPix - 1)) * CDelt
//
// with pix zero-indexed (FITS files index from 1; in-memory arrays from 0).
type WCS struct {
	CRPix [4]float64
	CRVal [4]float64
	CDelt [4]float64
	CType [4]string
	CUnit [4]units.Unit
}

// PixToWorld maps a zero-indexed (possibly fractional) pixel coordinate on
// axis to the physical coordinate in the axis unit.
func (w *WCS) PixToWorld(axis int, pix float64) float64 {
	return w.CRVal[axis] + (pix-(w.CRPix[axis]-1))*w.CDelt[axis]
}

// WorldToPix maps a physical coordinate in the axis unit to the
// zero-indexed fractional pixel coordinate on axis.
func (w *WCS) WorldToPix(axis int, world float64) float64 {
	return (world-w.CRVal[axis])/w.CDelt[axis] + (w.CRPix[axis] - 1)
}
