package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while applying a task.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Task is the kind of the task that failed.
	Task string

	// Audio names the affected audio, if any.
	Audio string

	// Err is the underlying cause, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeQuotaExceeded indicates the live context limit was reached.
	ErrCodeQuotaExceeded RuntimeErrorCode = "QUOTA_EXCEEDED"

	// ErrCodeUnknownAudio indicates a task named an audio not in the graph.
	ErrCodeUnknownAudio RuntimeErrorCode = "UNKNOWN_AUDIO"

	// ErrCodeNotPlaying indicates a note or stop for an audio without playback.
	ErrCodeNotPlaying RuntimeErrorCode = "NOT_PLAYING"

	// ErrCodeAlreadyPlaying indicates a second playback on one audio.
	ErrCodeAlreadyPlaying RuntimeErrorCode = "ALREADY_PLAYING"

	// ErrCodeInvalidTask indicates malformed task arguments.
	ErrCodeInvalidTask RuntimeErrorCode = "INVALID_TASK"

	// ErrCodeTopology indicates the channel graph rejected a change.
	ErrCodeTopology RuntimeErrorCode = "TOPOLOGY"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Audio != "" {
		msg = fmt.Sprintf("%s (audio=%s)", msg, e.Audio)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// HasCode reports whether err is a RuntimeError with the given code.
// Uses errors.As to handle wrapped errors.
func HasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsQuotaError returns true if err is a quota exceeded error.
func IsQuotaError(err error) bool {
	return HasCode(err, ErrCodeQuotaExceeded)
}

// IsNotPlaying returns true if err reports a missing playback.
func IsNotPlaying(err error) bool {
	return HasCode(err, ErrCodeNotPlaying)
}

func unknownAudio(task, audio string) *RuntimeError {
	return &RuntimeError{Code: ErrCodeUnknownAudio, Message: "audio not in graph", Task: task, Audio: audio}
}

func notPlaying(task, audio string) *RuntimeError {
	return &RuntimeError{Code: ErrCodeNotPlaying, Message: "audio has no playback", Task: task, Audio: audio}
}

func invalidTask(task, audio, format string, args ...any) *RuntimeError {
	return &RuntimeError{Code: ErrCodeInvalidTask, Message: fmt.Sprintf(format, args...), Task: task, Audio: audio}
}

func topologyError(task, audio string, err error) *RuntimeError {
	return &RuntimeError{Code: ErrCodeTopology, Message: "topology change rejected", Task: task, Audio: audio, Err: err}
}
