package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name     string
		op       string
		kind     string
		err      error
		wantMsg  string
		hasStack bool
	}{
		{
			name:     "with original error",
			op:       "Fit",
			kind:     "invalid input",
			err:      fmt.Errorf("test error"),
			wantMsg:  "venusml: Fit: invalid input: test error",
			hasStack: true,
		},
		{
			name:     "without original error",
			op:       "Predict",
			kind:     "not fitted",
			err:      nil,
			wantMsg:  "venusml: Predict: not fitted",
			hasStack: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)

			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			// スタックトレースの存在確認
			if tt.hasStack {
				formatted := fmt.Sprintf("%+v", err)
				if !strings.Contains(formatted, "errors_test.go") {
					t.Error("Expected stack trace to contain test file name")
				}
			}

			var modelErr *ModelError
			if !As(err, &modelErr) {
				t.Error("Error should be castable to *ModelError")
			}
		})
	}
}

func TestPipelineErrorKinds(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
		check   func(error) bool
	}{
		{
			name:    "unsupported file format",
			err:     NewUnsupportedFileFormatError("run1.xlsx", ".csv", ".parquet"),
			wantMsg: "venusml: invalid file type: run1.xlsx. File must be one of [.csv .parquet]",
			check: func(err error) bool {
				var target *UnsupportedFileFormatError
				return As(err, &target) && target.Path == "run1.xlsx"
			},
		},
		{
			name:    "invalid run selector",
			err:     NewInvalidRunSelectorError("1,,2", "empty element"),
			wantMsg: `venusml: invalid run selection "1,,2": empty element`,
			check: func(err error) bool {
				var target *InvalidRunSelectorError
				return As(err, &target)
			},
		},
		{
			name:    "index out of range",
			err:     NewIndexOutOfRangeError("Dataset.Item", 7, 7),
			wantMsg: "venusml: Dataset.Item: index 7 out of range [0, 7)",
			check: func(err error) bool {
				var target *IndexOutOfRangeError
				return As(err, &target) && target.Index == 7
			},
		},
		{
			name:    "invalid model type",
			err:     NewInvalidModelTypeError("svm", "knn", "tree"),
			wantMsg: `venusml: invalid model type "svm" (known: [knn tree])`,
			check: func(err error) bool {
				var target *InvalidModelTypeError
				return As(err, &target) && target.Type == "svm"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", tt.err.Error(), tt.wantMsg)
			}
			if !tt.check(tt.err) {
				t.Errorf("error %v did not match its kind", tt.err)
			}
		})
	}
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("KNNRegressor", "Predict")

	want := "venusml: KNNRegressor: this model is not fitted yet. Call Fit() before using Predict()"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var notFittedErr *NotFittedError
	if !As(err, &notFittedErr) {
		t.Error("Error should be castable to *NotFittedError")
	}
}

func TestWrapfDivisionByZero(t *testing.T) {
	wrapped := Wrapf(ErrDivisionByZero, "weighted average of %s", "mse")

	if !Is(wrapped, ErrDivisionByZero) {
		t.Error("Expected Is(wrapped, ErrDivisionByZero) to be true")
	}
	if !strings.Contains(wrapped.Error(), "weighted average of mse") {
		t.Errorf("Expected wrapped error to contain the wrapping message, got %q", wrapped.Error())
	}
}

func TestCheckScalar(t *testing.T) {
	if err := CheckScalar("loss", 0.5, 1); err != nil {
		t.Errorf("CheckScalar(0.5) = %v, want nil", err)
	}
	zero := 0.0
	err := CheckScalar("loss", zero/zero, 3)
	var instErr *NumericalInstabilityError
	if !As(err, &instErr) {
		t.Fatalf("CheckScalar(NaN) = %v, want NumericalInstabilityError", err)
	}
	if instErr.Iteration != 3 {
		t.Errorf("Iteration = %d, want 3", instErr.Iteration)
	}
}

func TestWarnUsesZerologFunc(t *testing.T) {
	var got error
	SetZerologWarnFunc(func(w error) { got = w })
	defer SetZerologWarnFunc(nil)

	w := NewDroppedColumnWarning("run1.csv", "timestamp", "non-numeric value")
	Warn(w)

	if got != w {
		t.Errorf("warning not routed to zerolog func: %v", got)
	}
}
