// Package toolerr defines the tool-server error taxonomy shared by every
// engine. Handlers return these instead of ad hoc strings so the dispatcher
// can map failures to a stable error_code for clients.
package toolerr

import (
	"errors"
	"fmt"
)

// Code is a stable, language-neutral error identifier.
type Code string

const (
	PathEscape     Code = "PathEscape"
	NotFound       Code = "NotFound"
	AlreadyExists  Code = "AlreadyExists"
	NotADirectory  Code = "NotADirectory"
	NotAFile       Code = "NotAFile"
	NotUnique      Code = "NotUnique"
	OutOfRange     Code = "OutOfRange"
	PhaseViolation Code = "PhaseViolation"
	UnknownTool    Code = "UnknownTool"
	BadArguments   Code = "BadArguments"
	CommandTimeout Code = "CommandTimeout"
	ShellBroken    Code = "ShellBroken"
	ParseError     Code = "ParseError"
	GitError       Code = "GitError"
	DbError        Code = "DbError"
	Internal       Code = "Internal"
)

// Error is a code plus a human-readable message. It never carries a stack
// trace; callers across process boundaries only see Code and Message.
type Error struct {
	Code    Code
	Message string
	// Lines holds per-occurrence line numbers for NotUnique-style errors.
	Lines []int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New builds a tagged error.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NotUniqueAt builds a NotUnique error carrying the matched line numbers.
func NotUniqueAt(lines []int) *Error {
	return &Error{
		Code:    NotUnique,
		Message: fmt.Sprintf("matched %d occurrences", len(lines)),
		Lines:   lines,
	}
}

// As extracts a *Error from err, following wrap chains.
func As(err error) (*Error, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
