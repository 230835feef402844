package codec

import (
	"errors"
	"fmt"
)

// ErrFormat marks structural problems with a schematic stream (bad or newer
// version header, impossible counts). Match it with errors.Is.
var ErrFormat = errors.New("schematic format")

type FormatError struct {
	Version int
	Msg     string
}

func (e *FormatError) Error() string {
	if e.Version != 0 {
		return fmt.Sprintf("schematic format: %s (version %d)", e.Msg, e.Version)
	}
	return "schematic format: " + e.Msg
}

func (e *FormatError) Is(target error) bool { return target == ErrFormat }

// IOError wraps read/write failures, including truncated streams.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string { return "schematic " + e.Op + ": " + e.Err.Error() }
func (e *IOError) Unwrap() error { return e.Err }

func ioErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Err: err}
}
