package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Regressor は交差検証ドライバが扱う回帰モデルのインターフェース
type Regressor interface {
	Fitter
	Predictor
}

// TargetAwarePredictor は評価時に真の目的変数系列を参照するベースライン用のインターフェース。
// 交差検証ドライバはこれを実装するモデルに対して Predict の代わりに PredictWithTargets を呼ぶ。
type TargetAwarePredictor interface {
	PredictWithTargets(X, y mat.Matrix) (mat.Matrix, error)
}

// FeatureImporter は学習済みの特徴量重要度を公開するモデルのインターフェース
type FeatureImporter interface {
	FeatureImportances() []float64
}
