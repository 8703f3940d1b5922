package preprocessing

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestStandardScaler(t *testing.T) {
	tests := []struct {
		name      string
		X         *mat.Dense
		wantMean  []float64
		wantScale []float64
	}{
		{
			name:      "two features",
			X:         mat.NewDense(4, 2, []float64{1, 10, 2, 20, 3, 30, 4, 40}),
			wantMean:  []float64{2.5, 25},
			wantScale: []float64{math.Sqrt(1.25), math.Sqrt(125)},
		},
		{
			name:      "constant column gets unit scale",
			X:         mat.NewDense(3, 1, []float64{7, 7, 7}),
			wantMean:  []float64{7},
			wantScale: []float64{1},
		},
		{
			name:      "NaN is ignored",
			X:         mat.NewDense(3, 1, []float64{1, math.NaN(), 3}),
			wantMean:  []float64{2},
			wantScale: []float64{1},
		},
		{
			name:      "all missing column",
			X:         mat.NewDense(2, 1, []float64{math.NaN(), math.NaN()}),
			wantMean:  []float64{0},
			wantScale: []float64{1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStandardScalerDefault()
			if err := s.Fit(tt.X); err != nil {
				t.Fatalf("Fit() error = %v", err)
			}
			for j := range tt.wantMean {
				if math.Abs(s.Mean[j]-tt.wantMean[j]) > 1e-10 {
					t.Errorf("Mean[%d] = %v, want %v", j, s.Mean[j], tt.wantMean[j])
				}
				if math.Abs(s.Scale[j]-tt.wantScale[j]) > 1e-10 {
					t.Errorf("Scale[%d] = %v, want %v", j, s.Scale[j], tt.wantScale[j])
				}
			}

			scaled, err := s.Transform(tt.X)
			if err != nil {
				t.Fatalf("Transform() error = %v", err)
			}
			back, err := s.InverseTransform(scaled)
			if err != nil {
				t.Fatalf("InverseTransform() error = %v", err)
			}
			r, c := tt.X.Dims()
			for i := 0; i < r; i++ {
				for j := 0; j < c; j++ {
					want, got := tt.X.At(i, j), back.At(i, j)
					if math.IsNaN(want) {
						if !math.IsNaN(got) {
							t.Errorf("back[%d,%d] = %v, want NaN", i, j, got)
						}
						continue
					}
					if math.Abs(want-got) > 1e-10 {
						t.Errorf("back[%d,%d] = %v, want %v", i, j, got, want)
					}
				}
			}
		})
	}
}

func TestStandardScalerFromParams(t *testing.T) {
	s, err := NewStandardScalerFromParams([]float64{1, 2}, []float64{2, 4})
	if err != nil {
		t.Fatalf("NewStandardScalerFromParams() error = %v", err)
	}
	out, err := s.Transform(mat.NewDense(1, 2, []float64{5, 10}))
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if out.At(0, 0) != 2 || out.At(0, 1) != 2 {
		t.Errorf("Transform() = %v, want [2 2]", mat.Formatted(out))
	}

	if _, err := NewStandardScalerFromParams([]float64{1}, []float64{1, 2}); err == nil {
		t.Error("expected error for mismatched params")
	}
}

func TestStandardScalerErrors(t *testing.T) {
	s := NewStandardScalerDefault()
	if _, err := s.Transform(mat.NewDense(1, 1, []float64{1})); err == nil {
		t.Error("Transform before Fit should fail")
	}
	if err := s.Fit(&mat.Dense{}); err == nil {
		t.Error("Fit on empty data should fail")
	}
	if err := s.Fit(mat.NewDense(2, 2, []float64{1, 2, 3, 4})); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Transform(mat.NewDense(1, 3, []float64{1, 2, 3})); err == nil {
		t.Error("Transform with wrong width should fail")
	}
}

func TestMinMaxScaler(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{
		0, 5,
		5, 5,
		10, math.NaN(),
	})
	m := NewMinMaxScalerDefault()
	scaled, err := m.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform() error = %v", err)
	}

	want := [][]float64{{0, 0}, {0.5, 0}, {1, math.NaN()}}
	for i := range want {
		for j := range want[i] {
			got := scaled.At(i, j)
			if math.IsNaN(want[i][j]) {
				if !math.IsNaN(got) {
					t.Errorf("scaled[%d,%d] = %v, want NaN", i, j, got)
				}
				continue
			}
			if math.Abs(got-want[i][j]) > 1e-10 {
				t.Errorf("scaled[%d,%d] = %v, want %v", i, j, got, want[i][j])
			}
		}
	}

	back, err := m.InverseTransform(scaled)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(back.At(1, 0)-5) > 1e-10 {
		t.Errorf("InverseTransform()[1,0] = %v, want 5", back.At(1, 0))
	}

	bad := NewMinMaxScaler([2]float64{1, 0})
	if err := bad.Fit(X); err == nil {
		t.Error("inverted feature range should fail")
	}
}
