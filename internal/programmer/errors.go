package programmer

import (
	"fmt"
	"strings"
)

// JobError reports a job that is missing something the programmer needs.
type JobError struct {
	Field string
}

func (e *JobError) Error() string {
	return fmt.Sprintf("upload job: %s is required", e.Field)
}

// HandshakeError reports a failed bootloader reset touch.
type HandshakeError struct {
	Device string
	Err    error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("bootloader handshake on %s: %v", e.Device, e.Err)
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// Attempt records one failed strategy of a Policy.
type Attempt struct {
	Strategy string
	Err      error
}

// ChainError is returned when every strategy of a Policy failed.
type ChainError struct {
	Attempts []Attempt
}

func (e *ChainError) Error() string {
	msg := make([]string, len(e.Attempts)+1)
	msg[0] = fmt.Sprintf("all %d upload attempts failed:", len(e.Attempts))
	for n, a := range e.Attempts {
		msg[n+1] = fmt.Sprintf("  %s: %v", a.Strategy, a.Err)
	}
	return strings.Join(msg, "\n")
}

// Unwrap exposes every attempt's error to errors.Is and errors.As.
func (e *ChainError) Unwrap() []error {
	errs := make([]error, len(e.Attempts))
	for i, a := range e.Attempts {
		errs[i] = a.Err
	}
	return errs
}

// Last returns the error of the final attempt.
func (e *ChainError) Last() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}
