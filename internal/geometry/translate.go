package geometry

import "fmt"

// TranslateComponents adds a 3-vector offset to index-aligned component
// slices in place. The offset must have exactly three elements; row or
// column orientation of the caller's data is irrelevant since components
// are already separated.
func TranslateComponents(x, y, z []float64, offset []float64) error {
	if len(offset) != 3 {
		return fmt.Errorf("%w: offset has %d components, want 3", ErrShapeMismatch, len(offset))
	}
	for i := range x {
		x[i] += offset[0]
		y[i] += offset[1]
		z[i] += offset[2]
	}
	return nil
}
