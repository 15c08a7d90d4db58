package session

import (
	"errors"
	"fmt"

	"github.com/rbright/jarvis/internal/fsm"
)

var (
	// ErrResourceInvalid marks unreadable or engine-rejected language resources.
	ErrResourceInvalid = errors.New("language resource invalid")
	// ErrVoiceInvalid marks voices the synthesizer does not provide.
	ErrVoiceInvalid = errors.New("voice invalid")
	// ErrEngineBusy marks operations disallowed in the current state.
	ErrEngineBusy = errors.New("engine busy")
	// ErrEngineFault marks unrecoverable engine failures; Reset clears them.
	ErrEngineFault = errors.New("engine fault")
	// ErrGeneration marks dynamic vocabulary generation failures.
	ErrGeneration = errors.New("vocabulary generation failed")
	// ErrEmptyText marks speak requests with nothing to say.
	ErrEmptyText = errors.New("speech text is empty")
	// ErrEngineUnavailable indicates a recognizer or synthesizer backend is not wired.
	ErrEngineUnavailable = errors.New("speech engine backend unavailable")
)

// Error is the coordinator error value. Kind is one of the sentinels above.
type Error struct {
	Kind  error
	Op    string
	State fsm.State
	Err   error
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.Error()
	if e.State != "" {
		msg += fmt.Sprintf(" (state %s)", e.State)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, op string, state fsm.State, cause error) error {
	return &Error{Kind: kind, Op: op, State: state, Err: cause}
}

// KindOf returns the coordinator error kind carried by err, or nil.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return nil
}

// Reason maps an error to a short machine-readable code for IPC clients.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrResourceInvalid):
		return "resource_invalid"
	case errors.Is(err, ErrVoiceInvalid):
		return "voice_invalid"
	case errors.Is(err, ErrEngineBusy):
		return "engine_busy"
	case errors.Is(err, ErrEngineFault):
		return "engine_fault"
	case errors.Is(err, ErrGeneration):
		return "generation_error"
	case errors.Is(err, ErrEmptyText):
		return "empty_text"
	default:
		return "unknown"
	}
}
