package model

import (
	"encoding/gob"
	"io"

	"github.com/venus-lab/venusml/pkg/errors"
)

// SaveModelToWriter はモデル（またはそのパラメータ）をgobでio.Writerに保存する
//
// 使用例:
//
//	var buf bytes.Buffer
//	err := model.SaveModelToWriter(params, &buf)
func SaveModelToWriter(model interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(model); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader はio.Readerからモデルを読み込む。model はポインタでなければならない
func LoadModelFromReader(model interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(model); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}
