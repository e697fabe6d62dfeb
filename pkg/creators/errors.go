package creators

import (
	"fmt"
)

// Code classifies a Creators API failure.
type Code string

const (
	CodeMissingCredentials Code = "MISSING_CREDENTIALS"
	CodeAuth               Code = "AUTH_ERROR"
	CodeRateLimit          Code = "RATE_LIMIT"
	CodeAPI                Code = "API_ERROR"
)

// Error is returned by every failed Client call.
type Error struct {
	Code    Code
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("creators: %s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("creators: %s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }
