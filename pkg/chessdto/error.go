package chessdto

import "fmt"

// Error codes surfaced to UI consumers.
const (
	CodeValidation           = "validation"
	CodeAuthorityRejected    = "authority_rejected"
	CodeAuthorityUnreachable = "authority_unreachable"
	CodeNotFound             = "not_found"
	CodeBusy                 = "busy"
	CodeCorruptSnapshot      = "corrupt_snapshot"
)

// Sentinels for errors.Is; matching is by Code only.
var (
	ErrValidation           = &DomainError{Code: CodeValidation, FailedAt: -1}
	ErrAuthorityRejected    = &DomainError{Code: CodeAuthorityRejected, FailedAt: -1}
	ErrAuthorityUnreachable = &DomainError{Code: CodeAuthorityUnreachable, FailedAt: -1, Retryable: true}
	ErrNotFound             = &DomainError{Code: CodeNotFound, FailedAt: -1}
	ErrBusy                 = &DomainError{Code: CodeBusy, FailedAt: -1, Retryable: true}
	ErrCorruptSnapshot      = &DomainError{Code: CodeCorruptSnapshot, FailedAt: -1}
)

type DomainError struct {
	Code      string
	Message   string
	Retryable bool
	// FailedAt is the 0-based ply a replay stopped at, or -1.
	FailedAt int
	Err      error
}

func (e *DomainError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Code
	}
	if msg == "" {
		msg = "chess session error"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *DomainError) Unwrap() error { return e.Err }

func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewError builds a DomainError for code. Retryable follows the sentinel.
func NewError(code, message string, cause error) *DomainError {
	return &DomainError{
		Code:      code,
		Message:   message,
		Retryable: code == CodeAuthorityUnreachable || code == CodeBusy,
		FailedAt:  -1,
		Err:       cause,
	}
}

// AtPly returns a copy annotated with the failing ply.
func (e *DomainError) AtPly(ply int) *DomainError {
	cp := *e
	cp.FailedAt = ply
	return &cp
}
