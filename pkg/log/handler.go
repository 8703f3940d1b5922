package log

import (
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

// addError emits err under key and, when the error carries a cockroachdb
// stack, the first safe detail under StacktraceAttrKey.
func addError(e *zerolog.Event, key string, err error) {
	e.AnErr(key, err)
	if stacktrace := extractStacktrace(err); stacktrace != "" {
		e.Str(StacktraceAttrKey, stacktrace)
	}
}

func extractStacktrace(err error) string {
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}
