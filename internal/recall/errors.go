package recall

import (
	"errors"
	"fmt"

	"github.com/roach88/agsrecall/internal/recycling"
)

// ErrorCode categorizes container errors.
type ErrorCode string

const (
	// ErrCodeIndexOutOfRange indicates a slot position outside the container.
	ErrCodeIndexOutOfRange ErrorCode = "INDEX_OUT_OF_RANGE"

	// ErrCodeInvalidChainRange indicates reset bounds that do not form a chain.
	ErrCodeInvalidChainRange ErrorCode = "INVALID_CHAIN_RANGE"

	// ErrCodeAmbiguousReset indicates an explicit splice whose old range
	// cannot be located in the container.
	ErrCodeAmbiguousReset ErrorCode = "AMBIGUOUS_RESET"

	// ErrCodeTreeCycle indicates an AddChild that would create a cycle.
	ErrCodeTreeCycle ErrorCode = "TREE_CYCLE"
)

// Sentinels matched by Error.Is.
var (
	ErrIndexOutOfRange   = errors.New("index out of range")
	ErrInvalidChainRange = recycling.ErrInvalidChainRange
	ErrAmbiguousReset    = errors.New("ambiguous reset")
	ErrTreeCycle         = errors.New("tree cycle")
)

// Error is returned by container mutations. Lookups never fail; absence is
// reported as -1.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Position and Length describe the offending slot access, if any.
	Position int
	Length   int

	// Err is the underlying error (optional).
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the package sentinels by code.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrIndexOutOfRange:
		return e.Code == ErrCodeIndexOutOfRange
	case ErrInvalidChainRange:
		return e.Code == ErrCodeInvalidChainRange
	case ErrAmbiguousReset:
		return e.Code == ErrCodeAmbiguousReset
	case ErrTreeCycle:
		return e.Code == ErrCodeTreeCycle
	}
	return false
}

func newIndexError(position, length int) *Error {
	return &Error{
		Code:     ErrCodeIndexOutOfRange,
		Message:  fmt.Sprintf("position %d outside container of length %d", position, length),
		Position: position,
		Length:   length,
	}
}

func newChainError(err error) *Error {
	return &Error{
		Code:    ErrCodeInvalidChainRange,
		Message: "new recycling range is malformed",
		Err:     err,
	}
}
