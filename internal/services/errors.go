package services

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind reason tag of a rejected operation
type ErrorKind string

const (
	KindAuthorization     ErrorKind = "AUTHORIZATION"
	KindOwnershipMismatch ErrorKind = "OWNERSHIP_MISMATCH"
	KindCapReached        ErrorKind = "CAP_REACHED"
	KindInsufficientFunds ErrorKind = "INSUFFICIENT_FUNDS"
	KindInvalidConfig     ErrorKind = "INVALID_CONFIG"
	KindUntrustedRemote   ErrorKind = "UNTRUSTED_REMOTE"
	KindAlreadyMigrated   ErrorKind = "ALREADY_MIGRATED"
	KindNotInitialized    ErrorKind = "NOT_INITIALIZED"
	KindInvalidPayload    ErrorKind = "INVALID_PAYLOAD"
	KindAssetPaused       ErrorKind = "ASSET_PAUSED"
)

// Error deterministic rejection. errors.Is matches on Kind.
type Error struct {
	Kind   ErrorKind
	Reason string
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return strings.ToLower(strings.ReplaceAll(string(e.Kind), "_", " "))
	}
	return e.Reason
}

// Is reports whether target is an *Error of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrAuthorization     = &Error{Kind: KindAuthorization}
	ErrOwnershipMismatch = &Error{Kind: KindOwnershipMismatch}
	ErrCapReached        = &Error{Kind: KindCapReached}
	ErrInsufficientFunds = &Error{Kind: KindInsufficientFunds}
	ErrInvalidConfig     = &Error{Kind: KindInvalidConfig}
	ErrUntrustedRemote   = &Error{Kind: KindUntrustedRemote}
	ErrAlreadyMigrated   = &Error{Kind: KindAlreadyMigrated}
	ErrNotInitialized    = &Error{Kind: KindNotInitialized}
	ErrInvalidPayload    = &Error{Kind: KindInvalidPayload}
	ErrAssetPaused       = &Error{Kind: KindAssetPaused}
)

func newError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// Reasons reported to callers
const (
	reasonNotAuthorized  = "Not authorized to upgrade"
	reasonNotOwner       = "Target does not own that NFT"
	reasonZeroAddress    = "Zero address not allowed"
	reasonMaxLevel       = "Already at maximum level"
	reasonCallerNotOwner = "Ownable: caller is not the owner"
)

// KindOf returns the kind of a domain error, or "" for infrastructure errors
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsDomainError reports whether err is a deterministic rejection
func IsDomainError(err error) bool {
	return KindOf(err) != ""
}
