package app

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrRateLimited  = errors.New("rate limit exceeded for this session, please try again later")
	ErrJobsDisabled = errors.New("background document processing is not configured")
	ErrJobNotFound  = errors.New("document job not found")
)

// InputError is a validation failure whose message is safe to show to the
// caller. It matches ErrInvalidInput under errors.Is.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string { return e.Msg }

func (e *InputError) Is(target error) bool { return target == ErrInvalidInput }

func invalidInput(msg string) error {
	return &InputError{Msg: msg}
}
