// Package errors はプロジェクト全体のエラーハンドリングと警告システムを提供します。
// 実験スクリプトは一回きりのバッチ処理なので、ここで定義されるエラーはすべて
// 呼び出し元へそのまま伝播し、ローカルでのリカバリやリトライは行いません。
package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	グローバル警告ハンドリング
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		log.Printf("venusml-warning: %v\n", w)
	}
	// zerologロガー（循環importを避けるため遅延初期化）
	zerologWarnFunc func(warning error)
)

// SetWarningHandler はライブラリ全体の警告ハンドラを設定します。
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc はzerolog警告関数を設定します（循環importを避けるため）。
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn は警告を発生させます。
// zerologが設定されている場合は構造化ログとして出力し、そうでなければ従来のハンドラを使用します。
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}
	if warningHandler != nil {
		warningHandler(w)
	}
}

// DroppedColumnWarning は数値に変換できない列を読み込み時に破棄した場合の警告です。
type DroppedColumnWarning struct {
	Path   string
	Column string
	Reason string
}

func (w *DroppedColumnWarning) Error() string {
	return fmt.Sprintf("column %q of %s dropped: %s", w.Column, w.Path, w.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *DroppedColumnWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("path", w.Path).
		Str("column", w.Column).
		Str("reason", w.Reason).
		Str("type", "DroppedColumnWarning")
}

// NewDroppedColumnWarning は新しいDroppedColumnWarningを作成します。
func NewDroppedColumnWarning(path, column, reason string) *DroppedColumnWarning {
	return &DroppedColumnWarning{Path: path, Column: column, Reason: reason}
}

// ===========================================================================
//
//	実験パイプラインのエラー型
//
// ===========================================================================

// UnsupportedFileFormatError は拡張子から読み込み方法を決定できない場合のエラーです。
type UnsupportedFileFormatError struct {
	Path      string
	Supported []string
}

func (e *UnsupportedFileFormatError) Error() string {
	return fmt.Sprintf("venusml: invalid file type: %s. File must be one of %v", e.Path, e.Supported)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *UnsupportedFileFormatError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("path", e.Path).
		Strs("supported", e.Supported).
		Str("type", "UnsupportedFileFormatError")
}

// NewUnsupportedFileFormatError は新しいUnsupportedFileFormatErrorを作成し、スタックトレースを付与します。
func NewUnsupportedFileFormatError(path string, supported ...string) error {
	return errors.WithStack(&UnsupportedFileFormatError{Path: path, Supported: supported})
}

// InvalidRunSelectorError はランの選択指定が不正な場合のエラーです。
type InvalidRunSelectorError struct {
	Value  string
	Reason string
}

func (e *InvalidRunSelectorError) Error() string {
	return fmt.Sprintf("venusml: invalid run selection %q: %s", e.Value, e.Reason)
}

// NewInvalidRunSelectorError は新しいInvalidRunSelectorErrorを作成し、スタックトレースを付与します。
func NewInvalidRunSelectorError(value, reason string) error {
	return errors.WithStack(&InvalidRunSelectorError{Value: value, Reason: reason})
}

// IndexOutOfRangeError はデータセットの有効範囲外にアクセスした場合のエラーです。
type IndexOutOfRangeError struct {
	Op    string
	Index int
	Len   int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("venusml: %s: index %d out of range [0, %d)", e.Op, e.Index, e.Len)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *IndexOutOfRangeError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("index", e.Index).
		Int("len", e.Len).
		Str("type", "IndexOutOfRangeError")
}

// NewIndexOutOfRangeError は新しいIndexOutOfRangeErrorを作成し、スタックトレースを付与します。
func NewIndexOutOfRangeError(op string, index, length int) error {
	return errors.WithStack(&IndexOutOfRangeError{Op: op, Index: index, Len: length})
}

// InvalidModelTypeError はモデル選択子が既知のモデルに一致しない場合のエラーです。
type InvalidModelTypeError struct {
	Type  string
	Known []string
}

func (e *InvalidModelTypeError) Error() string {
	return fmt.Sprintf("venusml: invalid model type %q (known: %v)", e.Type, e.Known)
}

// NewInvalidModelTypeError は新しいInvalidModelTypeErrorを作成し、スタックトレースを付与します。
func NewInvalidModelTypeError(modelType string, known ...string) error {
	return errors.WithStack(&InvalidModelTypeError{Type: modelType, Known: known})
}

// ===========================================================================
//
//	構造化されたエラー型
//
// ===========================================================================

// NotFittedError はモデルが未学習の状態で `Predict` や `Transform` を呼び出した場合のエラーです。
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("venusml: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError は新しいNotFittedErrorを作成し、スタックトレースを付与します。
func NewNotFittedError(modelName, method string) error {
	return errors.WithStack(&NotFittedError{ModelName: modelName, Method: method})
}

// DimensionError は入力データの次元が期待値と異なる場合のエラーです。
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("venusml: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// NewDimensionError は新しいDimensionErrorを作成し、スタックトレースを付与します。
func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

// ValidationError は入力パラメータの検証に失敗した場合のエラーです。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("venusml: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError は新しいValidationErrorを作成し、スタックトレースを付与します。
func NewValidationError(param, reason string, value interface{}) error {
	return errors.WithStack(&ValidationError{ParamName: param, Reason: reason, Value: value})
}

// ValueError は引数の値が不適切または不正な場合に発生するエラーです。
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("venusml: %s: %s", e.Op, e.Message)
}

// NewValueError は新しいValueErrorを作成し、スタックトレースを付与します。
func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

// ModelError は機械学習モデルに関する一般的なエラーです。
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("venusml: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("venusml: %s: %s", e.Op, e.Kind)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError は新しいModelErrorを作成し、スタックトレースを付与します。
func NewModelError(op, kind string, err error) error {
	return errors.WithStack(&ModelError{Op: op, Kind: kind, Err: err})
}

// NumericalInstabilityError は数値計算が不安定になった場合のエラーです。
type NumericalInstabilityError struct {
	Operation string
	Values    []float64
	Iteration int
}

func (e *NumericalInstabilityError) Error() string {
	valStr := ""
	for i, v := range e.Values {
		if i > 0 {
			valStr += ", "
		}
		if i >= 5 {
			valStr += "..."
			break
		}
		valStr += fmt.Sprintf("%.6g", v)
	}
	return fmt.Sprintf("venusml: numerical instability detected in %s at iteration %d. Values: [%s]",
		e.Operation, e.Iteration, valStr)
}

// NewNumericalInstabilityError は新しいNumericalInstabilityErrorを作成します。
func NewNumericalInstabilityError(operation string, values []float64, iteration int) error {
	return errors.WithStack(&NumericalInstabilityError{
		Operation: operation,
		Values:    values,
		Iteration: iteration,
	})
}

// ===========================================================================
//
//	cockroachdb/errors ラッパー関数
//
// ===========================================================================

// Is はエラーが特定のターゲットエラーかどうかを判定します。
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As はエラーが特定の型にキャスト可能かどうかを判定します。
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap は既存のエラーをメッセージ付きでラップします。
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf は既存のエラーをフォーマット文字列でラップします。
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New は新しいエラーを作成します。
func New(message string) error {
	return errors.New(message)
}

// Newf は新しいフォーマット済みエラーを作成します。
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack はエラーにスタックトレースを付与します。
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ===========================================================================
//
//	共通エラー変数
//
// ===========================================================================

var (
	// ErrEmptyData は空のデータが渡された場合のエラーです。
	ErrEmptyData = New("empty data")

	// ErrDivisionByZero は重み（サンプル数）の合計が0で加重平均を計算できない場合のエラーです。
	ErrDivisionByZero = New("division by zero")
)
