// Package vaulterr provides the structured error type returned across
// package boundaries by the vault components: the key bundle, the value
// codec, the query encryptor, the storage backends, and the vault facade
// itself. Every error the vault surfaces to a caller is a *VaultError so
// callers can branch on Code without depending on message text.
package vaulterr

import (
	"errors"
	"fmt"
	"sort"
)

// VaultError is the structured error type for the vault.
type VaultError struct {
	Code    string            // Machine-readable error code
	Message string            // Human-readable message
	Details map[string]string // Additional context (never tag/record values or key material)
	Cause   error             // Underlying error
}

func (e *VaultError) Error() string {
	msg := e.Message

	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			msg = fmt.Sprintf("%s (%s: %s)", msg, k, e.Details[k])
		}
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *VaultError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for VaultError, matching by Code.
func (e *VaultError) Is(target error) bool {
	var t *VaultError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinel errors, one per error family named in the wallet's error taxonomy.
var (
	ErrInvalidStructure = &VaultError{
		Code:    "INVALID_STRUCTURE",
		Message: "malformed record, tag, or query structure",
	}

	ErrWalletQueryError = &VaultError{
		Code:    "WALLET_QUERY_ERROR",
		Message: "invalid wallet query",
	}

	ErrItemNotFound = &VaultError{
		Code:    "ITEM_NOT_FOUND",
		Message: "item not found",
	}

	ErrItemAlreadyExists = &VaultError{
		Code:    "ITEM_ALREADY_EXISTS",
		Message: "item already exists",
	}

	ErrWalletAccessFailed = &VaultError{
		Code:    "WALLET_ACCESS_FAILED",
		Message: "failed to derive wallet access key - wrong credentials or corrupted wallet",
	}

	ErrWalletAlreadyExists = &VaultError{
		Code:    "WALLET_ALREADY_EXISTS",
		Message: "wallet already exists",
	}

	ErrWalletNotFound = &VaultError{
		Code:    "WALLET_NOT_FOUND",
		Message: "wallet not found",
	}

	ErrWalletAlreadyOpened = &VaultError{
		Code:    "WALLET_ALREADY_OPENED",
		Message: "wallet is already open",
	}

	ErrInvalidWalletHandle = &VaultError{
		Code:    "INVALID_WALLET_HANDLE",
		Message: "invalid or closed wallet handle",
	}

	ErrUnknownWalletStorageType = &VaultError{
		Code:    "UNKNOWN_WALLET_STORAGE_TYPE",
		Message: "unknown wallet storage type",
	}

	ErrWalletStorageTypeAlreadyRegistered = &VaultError{
		Code:    "WALLET_STORAGE_TYPE_ALREADY_REGISTERED",
		Message: "wallet storage type already registered",
	}

	ErrIOError = &VaultError{
		Code:    "IO_ERROR",
		Message: "storage I/O error",
	}

	ErrInvalidState = &VaultError{
		Code:    "INVALID_STATE",
		Message: "operation invalid for current lifecycle state",
	}

	ErrProofRejected = &VaultError{
		Code:    "PROOF_REJECTED",
		Message: "restriction evaluation rejected the query",
	}
)

// New creates a new VaultError with the given code and message.
func New(code, message string) *VaultError {
	return &VaultError{Code: code, Message: message}
}

// Wrap wraps an error with additional context, preserving the wrapped
// VaultError's Code when present.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	msg := fmt.Sprintf(format, args...)

	var ve *VaultError
	if errors.As(err, &ve) {
		return &VaultError{
			Code:    ve.Code,
			Message: fmt.Sprintf("%s: %s", msg, ve.Message),
			Details: ve.Details,
			Cause:   err,
		}
	}

	return &VaultError{
		Code:    "GENERAL_ERROR",
		Message: msg,
		Cause:   err,
	}
}

// WithDetails attaches structured context to an error, replacing any
// existing Details. Never pass tag values, record values, or key material.
func WithDetails(err error, details map[string]string) error {
	if err == nil {
		return nil
	}

	var ve *VaultError
	if errors.As(err, &ve) {
		return &VaultError{
			Code:    ve.Code,
			Message: ve.Message,
			Details: details,
			Cause:   ve.Cause,
		}
	}

	return &VaultError{
		Code:    "GENERAL_ERROR",
		Message: err.Error(),
		Details: details,
		Cause:   err,
	}
}

// Code returns the error code for an error, or "GENERAL_ERROR" if err is
// not (or does not wrap) a *VaultError.
func Code(err error) string {
	var ve *VaultError
	if errors.As(err, &ve) {
		return ve.Code
	}
	return "GENERAL_ERROR"
}

// Is wraps errors.Is for convenience.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience.
func As(err error, target any) bool {
	return errors.As(err, target)
}
