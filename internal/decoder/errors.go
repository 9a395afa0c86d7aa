package decoder

import (
	"errors"
	"fmt"
)

// Error is a decode outcome that produced no output. Every Error is
// temporary: the stream continues with the next call.
type Error int

const (
	// ErrInsufficientData means more bytes are needed.
	ErrInsufficientData Error = iota + 1
	// ErrDesyncRecovered means garbage was skipped to find the next sync
	// point.
	ErrDesyncRecovered
	// ErrFrameRejected means a picture or frame header failed validation
	// and the unit was dropped.
	ErrFrameRejected
)

var errorText = map[Error]string{
	ErrInsufficientData: "insufficient data",
	ErrDesyncRecovered:  "desync recovered",
	ErrFrameRejected:    "frame rejected",
}

func (e Error) Error() string {
	if s, ok := errorText[e]; ok {
		return s
	}
	return fmt.Sprintf("decoder error %d", int(e))
}

// Temporary reports whether err is one of the decode outcomes that callers
// retry on the next tick.
func Temporary(err error) bool {
	var e Error
	return errors.As(err, &e)
}
