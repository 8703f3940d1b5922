// Package metrics は回帰モデルの評価指標を提供する。
package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/venus-lab/venusml/pkg/errors"
)

// ErrAllZeroTargets は真値がすべて0でMAPEが定義できないことを示す
var ErrAllZeroTargets = errors.New("all yTrue values are zero")

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkVecs("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	// MSE = (1/n) * Σ(yTrue - yPred)²
	var sum float64
	for i := 0; i < n; i++ {
		diff := yTrue.AtVec(i) - yPred.AtVec(i)
		sum += diff * diff
	}
	return sum / float64(n), nil
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkVecs("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(yTrue.AtVec(i) - yPred.AtVec(i))
	}
	return sum / float64(n), nil
}

// MAPE は平均絶対パーセンテージ誤差をパーセント単位で計算する。
// 真値が0のサンプルはゼロ除算を避けるため除外する。
func MAPE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkVecs("MAPE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	// MAPE = (100/n') * Σ|yTrue - yPred|/|yTrue|
	var sum float64
	validCount := 0
	for i := 0; i < n; i++ {
		yTrueVal := yTrue.AtVec(i)
		if yTrueVal != 0 {
			sum += math.Abs(yTrueVal-yPred.AtVec(i)) / math.Abs(yTrueVal)
			validCount++
		}
	}

	if validCount == 0 {
		return 0, errors.Wrap(ErrAllZeroTargets, "MAPE")
	}
	return (sum / float64(validCount)) * 100, nil
}

// R2Score は決定係数（R²）を計算する
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkVecs("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var yMean float64
	for i := 0; i < n; i++ {
		yMean += yTrue.AtVec(i)
	}
	yMean /= float64(n)

	// 全変動（TSS）と残差変動（RSS）
	var tss, rss float64
	for i := 0; i < n; i++ {
		t, p := yTrue.AtVec(i), yPred.AtVec(i)
		tss += (t - yMean) * (t - yMean)
		rss += (t - p) * (t - p)
	}

	if tss == 0 {
		return 0, errors.Newf("R2Score: total sum of squares is zero (no variance in yTrue)")
	}
	return 1 - rss/tss, nil
}

func checkVecs(op string, yTrue, yPred *mat.VecDense) (int, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

// Flatten は n×k の目的変数行列を長さ n*k のベクトルに並べ替える。
// 多出力の場合、各出力列を同じ重みで平均することに相当する。
func Flatten(op string, yTrue, yPred mat.Matrix) (*mat.VecDense, *mat.VecDense, error) {
	rTrue, cTrue := yTrue.Dims()
	rPred, cPred := yPred.Dims()

	if rTrue == 0 || cTrue == 0 {
		return nil, nil, errors.NewValueError(op, "empty matrix")
	}
	if rTrue != rPred {
		return nil, nil, errors.NewDimensionError(op, rTrue, rPred, 0)
	}
	if cTrue != cPred {
		return nil, nil, errors.NewDimensionError(op, cTrue, cPred, 1)
	}

	t := mat.NewVecDense(rTrue*cTrue, nil)
	p := mat.NewVecDense(rTrue*cTrue, nil)
	for i := 0; i < rTrue; i++ {
		for j := 0; j < cTrue; j++ {
			t.SetVec(i*cTrue+j, yTrue.At(i, j))
			p.SetVec(i*cTrue+j, yPred.At(i, j))
		}
	}
	return t, p, nil
}

// MSEMatrix は行列形式の入力に対してMSEを計算する
func MSEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := Flatten("MSEMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return MSE(t, p)
}

// Scores は1フォールド分の評価結果
type Scores struct {
	MSE  float64 `json:"mse"`
	MAE  float64 `json:"mae"`
	MAPE float64 `json:"mape"`
	N    int     `json:"n"`
}

// Evaluate は MSE, MAE, MAPE をまとめて計算する。N は評価したサンプル（行）数。
// 真値がすべて0の場合 MAPE は NaN になる。
func Evaluate(yTrue, yPred mat.Matrix) (Scores, error) {
	t, p, err := Flatten("Evaluate", yTrue, yPred)
	if err != nil {
		return Scores{}, err
	}
	var s Scores
	if s.MSE, err = MSE(t, p); err != nil {
		return Scores{}, err
	}
	if s.MAE, err = MAE(t, p); err != nil {
		return Scores{}, err
	}
	if s.MAPE, err = MAPE(t, p); errors.Is(err, ErrAllZeroTargets) {
		s.MAPE = math.NaN()
	} else if err != nil {
		return Scores{}, err
	}
	s.N, _ = yTrue.Dims()
	return s, nil
}

// WeightedAverage はサンプル数で重み付けした平均を計算する。
// 重みの合計が0の場合は ErrDivisionByZero を返す。
func WeightedAverage(values []float64, counts []int) (float64, error) {
	if len(values) != len(counts) {
		return 0, errors.NewDimensionError("WeightedAverage", len(values), len(counts), 0)
	}
	var total float64
	totalCount := 0
	for i, v := range values {
		total += v * float64(counts[i])
		totalCount += counts[i]
	}
	if totalCount == 0 {
		return 0, errors.WithStack(errors.ErrDivisionByZero)
	}
	return total / float64(totalCount), nil
}
