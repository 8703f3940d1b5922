package errors

import (
	"math"
)

// CheckScalar checks a single scalar value for numerical instability.
func CheckScalar(operation string, value float64, iteration int) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return NewNumericalInstabilityError(operation, []float64{value}, iteration)
	}
	return nil
}

// CheckNumericalStability checks if values contain NaN or Inf
// and returns an error if numerical instability is detected.
func CheckNumericalStability(operation string, values []float64, iteration int) error {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return NewNumericalInstabilityError(operation, values, iteration)
		}
	}
	return nil
}

// ClipGradient clips gradient values to prevent explosion.
func ClipGradient(gradient []float64, maxNorm float64) []float64 {
	var norm float64
	for _, g := range gradient {
		norm += g * g
	}
	norm = math.Sqrt(norm)

	if norm > maxNorm {
		scale := maxNorm / norm
		clipped := make([]float64, len(gradient))
		for i, g := range gradient {
			clipped[i] = g * scale
		}
		return clipped
	}

	return gradient
}
