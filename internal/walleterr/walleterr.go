// Package walleterr defines the error taxonomy shared by every SDK component.
// Errors carry a Kind (broad recoverability class), a stable Code, and wrap the
// underlying cause so call sites keep the full chain via errors.Is/As.
package walleterr

import (
	"errors"
	"fmt"
)

// Kind classifies an error by how the caller should react to it.
type Kind string

const (
	KindConfiguration  Kind = "configuration"  // fatal, fails before any I/O
	KindNetwork        Kind = "network"        // recoverable, drives retry/backoff
	KindWallet         Kind = "wallet"         // non-recoverable, re-create/re-import
	KindTransaction    Kind = "transaction"    // recoverable unless validation failed
	KindStorage        Kind = "storage"        // non-recoverable, never retried silently
	KindAuthentication Kind = "authentication" // retry or fall back to non-biometric path
)

// Stable error codes. These are part of the SDK surface; do not rename.
const (
	CodeInvalidAppID       = "invalid_app_id"
	CodeUnsupportedNetwork = "unsupported_network"
	CodeUnsupportedVariant = "unsupported_variant"
	CodeInvalidURL         = "invalid_url"
	CodeNotInitialized     = "not_initialized"

	CodeProviderUnreachable = "provider_unreachable"
	CodeRPCFailure          = "rpc_failure"
	CodeHealthCheckTimeout  = "health_check_timeout"
	CodeNoHealthyProvider   = "no_healthy_provider"

	CodeInvalidPrivateKey  = "invalid_private_key"
	CodeWalletNotFound     = "wallet_not_found"
	CodeWalletDisconnected = "wallet_disconnected"

	CodeInvalidCall         = "invalid_call"
	CodeExecutionFailed     = "execution_failed"
	CodeConfirmationTimeout = "confirmation_timeout"
	CodeNotImplemented      = "not_implemented"

	CodeStorageAccess    = "storage_access"
	CodeEncryptionFailed = "encryption_failed"
	CodeKeyNotFound      = "key_not_found"
	CodeSelfTestFailed   = "self_test_failed"

	CodeBiometricUnavailable = "biometric_unavailable"
	CodeBiometricFailed      = "biometric_failed"
)

// Error is the one error type crossing package boundaries in this SDK.
type Error struct {
	Kind Kind
	Code string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s/%s: %s: %v", e.Kind, e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s/%s: %s", e.Kind, e.Code, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a leaf error.
func New(kind Kind, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind/code context to a dependency failure.
func Wrap(err error, kind Kind, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Msg: fmt.Sprintf(format, args...), Err: err}
}

// IsKind reports whether err (or anything it wraps) carries the given kind.
func IsKind(err error, kind Kind) bool {
	var we *Error
	if errors.As(err, &we) {
		return we.Kind == kind
	}
	return false
}

// CodeOf returns the code of the outermost *Error in the chain, or "".
func CodeOf(err error) string {
	var we *Error
	if errors.As(err, &we) {
		return we.Code
	}
	return ""
}

// IsCode reports whether the outermost *Error carries the given code.
func IsCode(err error, code string) bool { return CodeOf(err) == code }

// userMessages maps codes to fixed human-readable text shown by integrators.
var userMessages = map[string]string{
	CodeInvalidAppID:         "The app identifier is invalid.",
	CodeUnsupportedNetwork:   "This network is not supported.",
	CodeUnsupportedVariant:   "This account type is not supported.",
	CodeInvalidURL:           "The configured URL is invalid.",
	CodeNotInitialized:       "The wallet SDK is not initialized yet.",
	CodeProviderUnreachable:  "The network is unreachable. Check your connection.",
	CodeRPCFailure:           "The network request failed. Please try again.",
	CodeHealthCheckTimeout:   "The network did not respond in time.",
	CodeNoHealthyProvider:    "No network connection is available.",
	CodeInvalidPrivateKey:    "The private key is invalid.",
	CodeWalletNotFound:       "No wallet was found. Create or import one first.",
	CodeWalletDisconnected:   "The wallet is disconnected. Connect it again.",
	CodeInvalidCall:          "The transaction request is malformed.",
	CodeExecutionFailed:      "The transaction failed to execute.",
	CodeConfirmationTimeout:  "The transaction was submitted but not yet confirmed.",
	CodeNotImplemented:       "This feature is not available yet.",
	CodeStorageAccess:        "Secure storage could not be accessed.",
	CodeEncryptionFailed:     "Secure storage encryption failed.",
	CodeKeyNotFound:          "The requested key was not found.",
	CodeSelfTestFailed:       "Secure storage failed its startup check.",
	CodeBiometricUnavailable: "Biometric authentication is not available on this device.",
	CodeBiometricFailed:      "Biometric authentication failed.",
}

const genericUserMessage = "Something went wrong. Please try again."

// UserMessage maps an error to its fixed user-facing text, with one generic
// fallback for unmapped codes and non-SDK errors.
func UserMessage(err error) string {
	if msg, ok := userMessages[CodeOf(err)]; ok {
		return msg
	}
	return genericUserMessage
}
