package interp

import (
	"fmt"
	"math"
)

// Linear1D interpolates the points (xs, ys) at x. xs must be strictly
// increasing. Points outside [xs[0], xs[n-1]] are not extrapolated and
// report ok=false, as do brackets with a masked (NaN) end.
func Linear1D(xs, ys []float64, x float64) (float64, bool) {
	i, ok := bracket(xs, x)
	if !ok || len(ys) != len(xs) {
		return 0, false
	}
	x0, x1 := xs[i], xs[i+1]
	y0, y1 := ys[i], ys[i+1]
	if x == x0 {
		return y0, !math.IsNaN(y0)
	}
	if x == x1 {
		return y1, !math.IsNaN(y1)
	}
	v := y0 + (y1-y0)*(x-x0)/(x1-x0)
	return v, !math.IsNaN(v)
}

// ExtractLevels interpolates a profile onto target levels, skipping levels
// the source does not span.
func ExtractLevels(depths, values, levels []float64) (outLevels, outValues []float64, err error) {
	if len(depths) != len(values) {
		return nil, nil, fmt.Errorf("profile has %d depths but %d values", len(depths), len(values))
	}
	for i := 1; i < len(depths); i++ {
		if depths[i] <= depths[i-1] {
			return nil, nil, fmt.Errorf("profile depths must be strictly increasing")
		}
	}
	for _, z := range levels {
		if v, ok := Linear1D(depths, values, z); ok {
			outLevels = append(outLevels, z)
			outValues = append(outValues, v)
		}
	}
	return outLevels, outValues, nil
}
