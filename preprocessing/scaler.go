package preprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/venus-lab/venusml/core/model"
	"github.com/venus-lab/venusml/pkg/errors"
)

// minScale 未満の分散（レンジ）を持つ列は定数列とみなし、スケールを1にする。
const minScale = 1e-8

// StandardScaler はデータを平均0、標準偏差1に変換する。
// NaN（欠損値）は統計量の計算から除外され、変換後もNaNのまま残る。
type StandardScaler struct {
	model.BaseEstimator

	// Mean は各特徴量の平均値
	Mean []float64

	// Scale は各特徴量の標準偏差（母標準偏差）
	Scale []float64

	NFeatures int

	WithMean bool
	WithStd  bool
}

// NewStandardScaler は新しいStandardScalerを作成する
//
//	scaler := preprocessing.NewStandardScaler(true, true)
//	err := scaler.Fit(X)
//	XScaled, err := scaler.Transform(X)
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{
		WithMean: withMean,
		WithStd:  withStd,
	}
}

// NewStandardScalerDefault はデフォルト設定でStandardScalerを作成する
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

// NewStandardScalerFromParams は保存済みの平均と標準偏差から学習済みのStandardScalerを復元する。
// 訓練データで得たパラメータを検証データへ再適用するために使う。
func NewStandardScalerFromParams(mean, scale []float64) (*StandardScaler, error) {
	if len(mean) != len(scale) {
		return nil, errors.NewDimensionError("NewStandardScalerFromParams", len(mean), len(scale), 1)
	}
	s := NewStandardScalerDefault()
	s.Mean = append([]float64(nil), mean...)
	s.Scale = append([]float64(nil), scale...)
	s.NFeatures = len(mean)
	s.SetFitted()
	return s, nil
}

// Fit は訓練データから列ごとの平均と標準偏差を計算する。
// すべてNaNの列は平均0、スケール1として扱う。
func (s *StandardScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("StandardScaler.Fit", "empty data", errors.ErrEmptyData)
	}

	s.NFeatures = c
	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)

	for j := 0; j < c; j++ {
		sum, n := 0.0, 0
		for i := 0; i < r; i++ {
			if v := X.At(i, j); !math.IsNaN(v) {
				sum += v
				n++
			}
		}
		if s.WithMean && n > 0 {
			s.Mean[j] = sum / float64(n)
		}

		s.Scale[j] = 1.0
		if !s.WithStd || n == 0 {
			continue
		}
		// 分散は常に実際の平均まわりで計算する
		mean := sum / float64(n)
		sumSquares := 0.0
		for i := 0; i < r; i++ {
			if v := X.At(i, j); !math.IsNaN(v) {
				d := v - mean
				sumSquares += d * d
			}
		}
		if std := math.Sqrt(sumSquares / float64(n)); std >= minScale {
			s.Scale[j] = std
		}
	}

	s.SetFitted()
	return nil
}

// Transform は学習済みの統計情報を使ってデータを標準化する
func (s *StandardScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if !s.IsFitted() {
		return nil, errors.NewNotFittedError("StandardScaler", "Transform")
	}

	r, c := X.Dims()
	if c != s.NFeatures {
		return nil, errors.NewDimensionError("StandardScaler.Transform", s.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			result.Set(i, j, (X.At(i, j)-s.Mean[j])/s.Scale[j])
		}
	}
	return result, nil
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (s *StandardScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform は標準化されたデータを元のスケールに戻す
func (s *StandardScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	if !s.IsFitted() {
		return nil, errors.NewNotFittedError("StandardScaler", "InverseTransform")
	}

	r, c := X.Dims()
	if c != s.NFeatures {
		return nil, errors.NewDimensionError("StandardScaler.InverseTransform", s.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			result.Set(i, j, X.At(i, j)*s.Scale[j]+s.Mean[j])
		}
	}
	return result, nil
}

func (s *StandardScaler) String() string {
	if !s.IsFitted() {
		return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t)", s.WithMean, s.WithStd)
	}
	return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t, n_features=%d)",
		s.WithMean, s.WithStd, s.NFeatures)
}

// MinMaxScaler はデータを指定した範囲（デフォルト[0,1]）にスケーリングする。
// StandardScalerと同様にNaNは無視される。
type MinMaxScaler struct {
	model.BaseEstimator

	// DataMin は学習データの最小値
	DataMin []float64

	// Scale は各特徴量のレンジ (max - min)。定数列では1
	Scale []float64

	NFeatures int

	// FeatureRange はスケーリング後の範囲 [min, max]
	FeatureRange [2]float64
}

// NewMinMaxScaler は新しいMinMaxScalerを作成する
func NewMinMaxScaler(featureRange [2]float64) *MinMaxScaler {
	return &MinMaxScaler{
		FeatureRange: featureRange,
	}
}

// NewMinMaxScalerDefault は[0,1]範囲のMinMaxScalerを作成する
func NewMinMaxScalerDefault() *MinMaxScaler {
	return NewMinMaxScaler([2]float64{0.0, 1.0})
}

// NewMinMaxScalerFromParams は保存済みの最小値とレンジから学習済みのMinMaxScalerを復元する。
func NewMinMaxScalerFromParams(dataMin, scale []float64, featureRange [2]float64) (*MinMaxScaler, error) {
	if len(dataMin) != len(scale) {
		return nil, errors.NewDimensionError("NewMinMaxScalerFromParams", len(dataMin), len(scale), 1)
	}
	m := NewMinMaxScaler(featureRange)
	m.DataMin = append([]float64(nil), dataMin...)
	m.Scale = append([]float64(nil), scale...)
	m.NFeatures = len(dataMin)
	m.SetFitted()
	return m, nil
}

// Fit は訓練データから最小値とレンジを計算する
func (m *MinMaxScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("MinMaxScaler.Fit", "empty data", errors.ErrEmptyData)
	}
	if m.FeatureRange[1] <= m.FeatureRange[0] {
		return errors.NewValidationError("feature_range", "max must be greater than min", m.FeatureRange)
	}

	m.NFeatures = c
	m.DataMin = make([]float64, c)
	m.Scale = make([]float64, c)

	for j := 0; j < c; j++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for i := 0; i < r; i++ {
			v := X.At(i, j)
			if math.IsNaN(v) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		if math.IsInf(lo, 1) {
			// 全て欠損
			lo, hi = 0, 0
		}
		m.DataMin[j] = lo
		m.Scale[j] = 1.0
		if hi-lo >= minScale {
			m.Scale[j] = hi - lo
		}
	}

	m.SetFitted()
	return nil
}

// Transform は学習済みの統計情報を使ってデータをスケーリングする
func (m *MinMaxScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("MinMaxScaler", "Transform")
	}

	r, c := X.Dims()
	if c != m.NFeatures {
		return nil, errors.NewDimensionError("MinMaxScaler.Transform", m.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	width := m.FeatureRange[1] - m.FeatureRange[0]
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			result.Set(i, j, (X.At(i, j)-m.DataMin[j])/m.Scale[j]*width+m.FeatureRange[0])
		}
	}
	return result, nil
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (m *MinMaxScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.Fit(X); err != nil {
		return nil, err
	}
	return m.Transform(X)
}

// InverseTransform はスケーリングされたデータを元の範囲に戻す
func (m *MinMaxScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("MinMaxScaler", "InverseTransform")
	}

	r, c := X.Dims()
	if c != m.NFeatures {
		return nil, errors.NewDimensionError("MinMaxScaler.InverseTransform", m.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	width := m.FeatureRange[1] - m.FeatureRange[0]
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			result.Set(i, j, (X.At(i, j)-m.FeatureRange[0])/width*m.Scale[j]+m.DataMin[j])
		}
	}
	return result, nil
}

func (m *MinMaxScaler) String() string {
	if !m.IsFitted() {
		return fmt.Sprintf("MinMaxScaler(feature_range=[%.1f, %.1f])",
			m.FeatureRange[0], m.FeatureRange[1])
	}
	return fmt.Sprintf("MinMaxScaler(feature_range=[%.1f, %.1f], n_features=%d)",
		m.FeatureRange[0], m.FeatureRange[1], m.NFeatures)
}
