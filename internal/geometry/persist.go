package geometry

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// SaveMatrix writes a 3x3 matrix to path as plain text: three rows of three
// whitespace-separated values, no header. Values are formatted with %.17g so
// that a reload reproduces the matrix bit-for-bit.
func SaveMatrix(path string, m mat.Matrix) error {
	r, c := m.Dims()
	if r != 3 || c != 3 {
		return fmt.Errorf("%w: dims (%d, %d)", ErrShapeMismatch, r, c)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for i := 0; i < 3; i++ {
		if _, err := fmt.Fprintf(w, "%.17g %.17g %.17g\n", m.At(i, 0), m.At(i, 1), m.At(i, 2)); err != nil {
			return err
		}
	}
	return w.Flush()
}

// LoadMatrix reads a plain-text 3x3 matrix written by SaveMatrix (or any
// whitespace-separated three-by-three numeric text file).
func LoadMatrix(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	vals := make([]float64, 0, 9)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		for _, field := range strings.Fields(line) {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
			vals = append(vals, v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(vals) != 9 {
		return nil, fmt.Errorf("%w: %s holds %d values, want 9", ErrShapeMismatch, path, len(vals))
	}
	return mat.NewDense(3, 3, vals), nil
}
