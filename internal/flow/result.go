package flow

import (
	"github.com/winningcv/authgate/internal/authapi"
)

// Result is the discriminated outcome of a provider strategy.
type Result struct {
	kind       resultKind
	credential authapi.Credential
	reason     error
}

type resultKind int

const (
	resultOk resultKind = iota
	resultCancelled
	resultFailed
)

// Ok wraps a provider credential ready for backend exchange.
func Ok(credential authapi.Credential) Result {
	return Result{kind: resultOk, credential: credential}
}

// Cancelled marks a silently abandoned attempt.
func Cancelled() Result {
	return Result{kind: resultCancelled}
}

// Failed wraps a provider failure.
func Failed(reason error) Result {
	return Result{kind: resultFailed, reason: reason}
}

// IsOk reports whether the strategy produced a credential.
func (r Result) IsOk() bool { return r.kind == resultOk }

// IsCancelled reports whether the attempt was cancelled by the user.
func (r Result) IsCancelled() bool { return r.kind == resultCancelled }

// Credential returns the acquired provider credential.
func (r Result) Credential() authapi.Credential { return r.credential }

// Reason returns the failure cause, nil unless the result failed.
func (r Result) Reason() error { return r.reason }
