package metrics

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/venus-lab/venusml/pkg/errors"
)

func vec(v ...float64) *mat.VecDense { return mat.NewVecDense(len(v), v) }

func TestVectorMetrics(t *testing.T) {
	type metricFunc func(yTrue, yPred *mat.VecDense) (float64, error)

	tests := []struct {
		name    string
		metric  metricFunc
		yTrue   *mat.VecDense
		yPred   *mat.VecDense
		want    float64
		wantErr bool
	}{
		{name: "MSE perfect", metric: MSE, yTrue: vec(1, 2, 3), yPred: vec(1, 2, 3), want: 0},
		{name: "MSE half offsets", metric: MSE, yTrue: vec(1, 2, 3, 4), yPred: vec(1.5, 2.5, 2.5, 3.5), want: 0.25},
		{name: "MSE larger errors", metric: MSE, yTrue: vec(10, 20, 30), yPred: vec(12, 18, 33), want: 17.0 / 3.0},
		{name: "MSE length mismatch", metric: MSE, yTrue: vec(1, 2, 3), yPred: vec(1, 2), wantErr: true},
		{name: "MSE empty", metric: MSE, yTrue: &mat.VecDense{}, yPred: &mat.VecDense{}, wantErr: true},

		{name: "RMSE unit", metric: RMSE, yTrue: vec(0, 0, 0, 0), yPred: vec(1, 1, 1, 1), want: 1},

		{name: "MAE signed errors", metric: MAE, yTrue: vec(1, 2, 3, 4), yPred: vec(2, 1, 4, 3), want: 1},
		{name: "MAE length mismatch", metric: MAE, yTrue: vec(1), yPred: vec(1, 2), wantErr: true},

		// |1-1.1|/1 = 0.1, |2-1.8|/2 = 0.1 -> 10%
		{name: "MAPE percent", metric: MAPE, yTrue: vec(1, 2), yPred: vec(1.1, 1.8), want: 10},
		{name: "MAPE skips zero targets", metric: MAPE, yTrue: vec(0, 4), yPred: vec(5, 3), want: 25},
		{name: "MAPE all zero", metric: MAPE, yTrue: vec(0, 0), yPred: vec(1, 1), wantErr: true},

		{name: "R2 perfect", metric: R2Score, yTrue: vec(1, 2, 3, 4, 5), yPred: vec(1, 2, 3, 4, 5), want: 1},
		{name: "R2 worse than mean", metric: R2Score, yTrue: vec(1, 2, 3, 4), yPred: vec(4, 3, 2, 1), want: -3},
		{name: "R2 constant target", metric: R2Score, yTrue: vec(3, 3, 3), yPred: vec(2, 3, 4), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.metric(tt.yTrue, tt.yPred)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && math.Abs(got-tt.want) > 1e-10 {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   mat.Matrix
		yPred   mat.Matrix
		want    Scores
		wantErr bool
	}{
		{
			name:  "single output",
			yTrue: mat.NewDense(2, 1, []float64{1, 2}),
			yPred: mat.NewDense(2, 1, []float64{2, 2}),
			want:  Scores{MSE: 0.5, MAE: 0.5, MAPE: 50, N: 2},
		},
		{
			name:  "two outputs are averaged uniformly",
			yTrue: mat.NewDense(2, 2, []float64{1, 10, 2, 20}),
			yPred: mat.NewDense(2, 2, []float64{1, 12, 2, 20}),
			want:  Scores{MSE: 1, MAE: 0.5, MAPE: 5, N: 2},
		},
		{
			name:  "all zero targets leave MAPE undefined",
			yTrue: mat.NewDense(2, 1, []float64{0, 0}),
			yPred: mat.NewDense(2, 1, []float64{1, 3}),
			want:  Scores{MSE: 5, MAE: 2, MAPE: math.NaN(), N: 2},
		},
		{
			name:    "row mismatch",
			yTrue:   mat.NewDense(2, 1, []float64{1, 2}),
			yPred:   mat.NewDense(3, 1, []float64{1, 2, 3}),
			wantErr: true,
		},
		{
			name:    "column mismatch",
			yTrue:   mat.NewDense(2, 1, []float64{1, 2}),
			yPred:   mat.NewDense(1, 2, []float64{1, 2}),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(tt.yTrue, tt.yPred)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Evaluate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.N != tt.want.N {
				t.Errorf("N = %d, want %d", got.N, tt.want.N)
			}
			for _, pair := range [][2]float64{{got.MSE, tt.want.MSE}, {got.MAE, tt.want.MAE}, {got.MAPE, tt.want.MAPE}} {
				if math.IsNaN(pair[1]) {
					if !math.IsNaN(pair[0]) {
						t.Errorf("Evaluate() = %+v, want %+v", got, tt.want)
					}
					continue
				}
				if math.Abs(pair[0]-pair[1]) > 1e-10 {
					t.Errorf("Evaluate() = %+v, want %+v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestMSEMatrix(t *testing.T) {
	got, err := MSEMatrix(
		mat.NewDense(4, 1, []float64{1, 2, 3, 4}),
		mat.NewDense(4, 1, []float64{1.5, 2.5, 2.5, 3.5}),
	)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(got-0.25) > 1e-10 {
		t.Errorf("MSEMatrix() = %v, want 0.25", got)
	}
}

func TestWeightedAverage(t *testing.T) {
	got, err := WeightedAverage([]float64{1, 4}, []int{3, 1})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(got-1.75) > 1e-12 {
		t.Errorf("WeightedAverage() = %v, want 1.75", got)
	}

	_, err = WeightedAverage([]float64{1, 2}, []int{0, 0})
	if !errors.Is(err, errors.ErrDivisionByZero) {
		t.Errorf("WeightedAverage() error = %v, want ErrDivisionByZero", err)
	}

	_, err = WeightedAverage(nil, nil)
	if !errors.Is(err, errors.ErrDivisionByZero) {
		t.Errorf("WeightedAverage(nil) error = %v, want ErrDivisionByZero", err)
	}

	if _, err := WeightedAverage([]float64{1}, []int{1, 2}); err == nil {
		t.Error("expected length mismatch error")
	}
}

func BenchmarkEvaluate(b *testing.B) {
	const size = 10000
	yTrue := mat.NewDense(size, 1, nil)
	yPred := mat.NewDense(size, 1, nil)
	for i := 0; i < size; i++ {
		yTrue.Set(i, 0, float64(i+1))
		yPred.Set(i, 0, float64(i+1)+0.1*float64(i%10))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Evaluate(yTrue, yPred)
	}
}
