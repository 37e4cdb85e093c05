package interp

import (
	"math"
	"testing"
)

// TestBilinearInterpolate_CenterPoint tests interpolation at the center of a grid cell
func TestBilinearInterpolate_CenterPoint(t *testing.T) {
	cell := GridCell{
		X0: 0.0, X1: 2.0,
		Y0: 0.0, Y1: 2.0,
		V00: 1.0, V10: 3.0,
		V01: 5.0, V11: 7.0,
	}

	// 0.25 * (1 + 3 + 5 + 7) = 4.0
	result, err := BilinearInterpolate(cell, 1.0, 1.0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if math.Abs(result-4.0) > 1e-9 {
		t.Errorf("Center point: expected 4.0, got %.10f", result)
	}
}

func TestBilinearInterpolate_MaskedCorner(t *testing.T) {
	cell := GridCell{
		X0: 0, X1: 1, Y0: 0, Y1: 1,
		V00: 1, V10: math.NaN(), V01: 1, V11: 1,
	}
	result, err := BilinearInterpolate(cell, 0.5, 0.5)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !math.IsNaN(result) {
		t.Errorf("expected NaN next to a masked corner, got %v", result)
	}
}

func TestNewGrid2D_FlipsDecreasingAxes(t *testing.T) {
	// Latitude stored north to south, as in most ocean model output.
	g, err := NewGrid2D(
		[]float64{0, 1},
		[]float64{10, 0},
		[][]float64{
			{3, 4}, // y=10
			{1, 2}, // y=0
		},
	)
	if err != nil {
		t.Fatalf("NewGrid2D: %v", err)
	}
	if g.Y[0] != 0 || g.Values[0][0] != 1 || g.Values[1][1] != 4 {
		t.Fatalf("axes not flipped: Y=%v values=%v", g.Y, g.Values)
	}

	v, err := g.InterpolateAt(0.5, 5)
	if err != nil {
		t.Fatalf("InterpolateAt: %v", err)
	}
	if math.Abs(v-2.5) > 1e-9 {
		t.Errorf("expected 2.5, got %v", v)
	}
}

func TestGrid2D_Regrid(t *testing.T) {
	g := &Grid2D{
		X: []float64{0.0, 1.0, 2.0},
		Y: []float64{0.0, 1.0, 2.0},
		Values: [][]float64{
			{1.0, 2.0, 3.0},
			{4.0, 5.0, 6.0},
			{7.0, 8.0, 9.0},
		},
	}

	out, err := g.Regrid([]float64{0.5, 3.0}, []float64{0.5, 2.0})
	if err != nil {
		t.Fatalf("Regrid: %v", err)
	}
	if math.Abs(out[0][0]-3.0) > 1e-9 {
		t.Errorf("(0.5, 0.5): expected 3.0, got %v", out[0][0])
	}
	if math.Abs(out[1][0]-7.5) > 1e-9 {
		t.Errorf("(0.5, 2.0): expected 7.5, got %v", out[1][0])
	}
	if !math.IsNaN(out[0][1]) {
		t.Errorf("outside target should be NaN, got %v", out[0][1])
	}
}

func TestGrid2D_Validate(t *testing.T) {
	tests := []struct {
		name    string
		grid    *Grid2D
		wantErr bool
	}{
		{
			name:    "valid",
			grid:    &Grid2D{X: []float64{0, 1}, Y: []float64{0, 1}, Values: [][]float64{{1, 2}, {3, 4}}},
			wantErr: false,
		},
		{
			name:    "too few x",
			grid:    &Grid2D{X: []float64{0}, Y: []float64{0, 1}, Values: [][]float64{{1}, {3}}},
			wantErr: true,
		},
		{
			name:    "ragged row",
			grid:    &Grid2D{X: []float64{0, 1}, Y: []float64{0, 1}, Values: [][]float64{{1, 2}, {3}}},
			wantErr: true,
		},
		{
			name:    "unsorted y",
			grid:    &Grid2D{X: []float64{0, 1}, Y: []float64{1, 0}, Values: [][]float64{{1, 2}, {3, 4}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		err := tt.grid.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: wantErr=%v, got %v", tt.name, tt.wantErr, err)
		}
	}
}

func TestLinear1D(t *testing.T) {
	xs := []float64{0, 10, 20}
	ys := []float64{1, 2, math.NaN()}

	tests := []struct {
		x      float64
		want   float64
		wantOK bool
	}{
		{0, 1, true},
		{5, 1.5, true},
		{10, 2, true},
		{15, 0, false}, // Masked upper end.
		{-1, 0, false},
		{25, 0, false},
	}

	for _, tt := range tests {
		got, ok := Linear1D(xs, ys, tt.x)
		if ok != tt.wantOK {
			t.Errorf("x=%v: ok=%v, want %v", tt.x, ok, tt.wantOK)
			continue
		}
		if ok && math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("x=%v: got %v, want %v", tt.x, got, tt.want)
		}
	}
}

func TestExtractLevels(t *testing.T) {
	levels, values, err := ExtractLevels(
		[]float64{1, 100, 1000},
		[]float64{20, 10, 4},
		[]float64{0.5, 1, 50.5, 1000, 5000},
	)
	if err != nil {
		t.Fatalf("ExtractLevels: %v", err)
	}
	if len(levels) != 3 {
		t.Fatalf("expected 3 levels inside the profile, got %v", levels)
	}
	if math.Abs(values[1]-15) > 1e-9 {
		t.Errorf("50.5 m: expected 15, got %v", values[1])
	}

	if _, _, err := ExtractLevels([]float64{10, 5}, []float64{1, 2}, []float64{7}); err == nil {
		t.Error("expected error for decreasing depths")
	}
}
