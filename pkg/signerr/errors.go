// Copyright 2025 The Sigstore Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package signerr defines the structured errors returned by the signing bridge.
package signerr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind represents the category of a signing failure.
type Kind int

const (
	// KindUnknown indicates an unclassified error.
	KindUnknown Kind = iota

	// KindMisconfiguredEnvironment indicates the signer tool directory is
	// unset or the tool is missing or not executable.
	KindMisconfiguredEnvironment

	// KindNotAnEcssReference indicates a key payload without the ECSS tag.
	KindNotAnEcssReference

	// KindInvalidEncoding indicates a key payload that is not valid UTF-8.
	KindInvalidEncoding

	// KindInvalidKey indicates a malformed key or a key of the wrong kind.
	KindInvalidKey

	// KindNotInitialized indicates data was fed to a session that is not accumulating.
	KindNotInitialized

	// KindNotInitializedOrAlreadyFinalized indicates a finalize call outside the accumulating state.
	KindNotInitializedOrAlreadyFinalized

	// KindNotImplemented indicates an unsupported operation such as verification.
	KindNotImplemented

	// KindSignerProcessFailed indicates the signer tool exited with a non-zero status.
	KindSignerProcessFailed

	// KindSignerProcessUnavailable indicates the signer tool could not be started or read.
	KindSignerProcessUnavailable

	// KindCancelled indicates the wait on the signer tool was interrupted.
	KindCancelled

	// KindInvalidSignatureLength indicates a binary signature block of the wrong size.
	KindInvalidSignatureLength

	// KindMalformedSignatureContainer indicates an unparsable or empty SignedData container.
	KindMalformedSignatureContainer

	// KindCopyFailed indicates the input artifact could not be copied to the output path.
	KindCopyFailed

	// KindTooManyKeys indicates more than one key was supplied for whole-file signing.
	KindTooManyKeys

	// KindAlreadyInitialized indicates initialize was called on a session that left the idle state.
	KindAlreadyInitialized
)

// String returns a human-readable name for the error kind.
func (k Kind) String() string {
	switch k {
	case KindMisconfiguredEnvironment:
		return "MisconfiguredEnvironment"
	case KindNotAnEcssReference:
		return "NotAnEcssReference"
	case KindInvalidEncoding:
		return "InvalidEncoding"
	case KindInvalidKey:
		return "InvalidKey"
	case KindNotInitialized:
		return "NotInitialized"
	case KindNotInitializedOrAlreadyFinalized:
		return "NotInitializedOrAlreadyFinalized"
	case KindNotImplemented:
		return "NotImplemented"
	case KindSignerProcessFailed:
		return "SignerProcessFailed"
	case KindSignerProcessUnavailable:
		return "SignerProcessUnavailable"
	case KindCancelled:
		return "Cancelled"
	case KindInvalidSignatureLength:
		return "InvalidSignatureLength"
	case KindMalformedSignatureContainer:
		return "MalformedSignatureContainer"
	case KindCopyFailed:
		return "CopyFailed"
	case KindTooManyKeys:
		return "TooManyKeys"
	case KindAlreadyInitialized:
		return "AlreadyInitialized"
	default:
		return "UnknownError"
	}
}

// Sentinels for use with errors.Is. Matching is done on the Kind only, so
//
//	errors.Is(err, signerr.ErrSignerProcessFailed)
//
// holds for any *Error of that kind regardless of message or exit code.
var (
	ErrMisconfiguredEnvironment         = &Error{Kind: KindMisconfiguredEnvironment}
	ErrNotAnEcssReference               = &Error{Kind: KindNotAnEcssReference}
	ErrInvalidEncoding                  = &Error{Kind: KindInvalidEncoding}
	ErrInvalidKey                       = &Error{Kind: KindInvalidKey}
	ErrNotInitialized                   = &Error{Kind: KindNotInitialized}
	ErrNotInitializedOrAlreadyFinalized = &Error{Kind: KindNotInitializedOrAlreadyFinalized}
	ErrNotImplemented                   = &Error{Kind: KindNotImplemented}
	ErrSignerProcessFailed              = &Error{Kind: KindSignerProcessFailed}
	ErrSignerProcessUnavailable         = &Error{Kind: KindSignerProcessUnavailable}
	ErrCancelled                        = &Error{Kind: KindCancelled}
	ErrInvalidSignatureLength           = &Error{Kind: KindInvalidSignatureLength}
	ErrMalformedSignatureContainer      = &Error{Kind: KindMalformedSignatureContainer}
	ErrCopyFailed                       = &Error{Kind: KindCopyFailed}
	ErrTooManyKeys                      = &Error{Kind: KindTooManyKeys}
	ErrAlreadyInitialized               = &Error{Kind: KindAlreadyInitialized}
)

// Error is a structured signing error.
//
// For signer process failures ExitCode and Output carry the tool's exit
// status and its merged stdout/stderr, verbatim.
type Error struct {
	// Kind categorizes the error for programmatic handling.
	Kind Kind

	// Message is a human-readable description of what went wrong.
	Message string

	// ExitCode is the signer tool's exit status (signer process failures only).
	ExitCode int

	// Output is the captured signer tool output, if any.
	Output string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Kind == KindSignerProcessFailed && e.ExitCode != 0 {
		fmt.Fprintf(&b, " (exit status %d)", e.ExitCode)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	if e.Output != "" {
		b.WriteString("\nsigner output:\n")
		b.WriteString(e.Output)
	}
	return b.String()
}

// Unwrap returns the underlying cause for error chain unwrapping.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New creates a new error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a new error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a new error of the given kind wrapping cause.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool {
	return KindOf(err) == KindMisconfiguredEnvironment
}

// IsStateError reports whether err was caused by calling a session in the wrong state.
func IsStateError(err error) bool {
	switch KindOf(err) {
	case KindNotInitialized, KindNotInitializedOrAlreadyFinalized, KindAlreadyInitialized:
		return true
	}
	return false
}

// IsDecodeError reports whether err was raised while decoding a signer response.
func IsDecodeError(err error) bool {
	switch KindOf(err) {
	case KindInvalidSignatureLength, KindMalformedSignatureContainer:
		return true
	}
	return false
}
