// Package errors defines the error taxonomy of the adaptive log-security
// pipeline. Sentinels describe what went wrong; the wrapper types classify
// the failure (input, configuration, integrity, crypto) and carry the
// operation that raised it.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for input validation
var (
	// ErrEmptyInput indicates an empty record or trial table
	ErrEmptyInput = errors.New("input: empty table")

	// ErrEmptySearchSpace indicates a search space of size zero
	ErrEmptySearchSpace = errors.New("input: search space is empty")

	// ErrMissingColumn indicates a required column is absent from a table
	ErrMissingColumn = errors.New("input: missing column")

	// ErrSchemaMismatch indicates a table header does not match the expected schema
	ErrSchemaMismatch = errors.New("input: schema mismatch")

	// ErrMalformedRecord indicates a row could not be parsed
	ErrMalformedRecord = errors.New("input: malformed record")
)

// Sentinel errors for configuration
var (
	// ErrEmptyScenarioTable indicates no channel scenarios were supplied
	ErrEmptyScenarioTable = errors.New("config: empty scenario table")

	// ErrInvalidProbability indicates a probability outside [0,1]
	ErrInvalidProbability = errors.New("config: probability out of range")

	// ErrInvalidParameter indicates a non-positive count or unknown option
	ErrInvalidParameter = errors.New("config: invalid parameter")

	// ErrNoKeyBits indicates a scenario carries no amplified key bits
	ErrNoKeyBits = errors.New("config: scenario carries no key bits")
)

// Sentinel errors for AEAD operations
var (
	// ErrAuthenticationFailed indicates AEAD tag verification failed
	ErrAuthenticationFailed = errors.New("aead: authentication failed")

	// ErrPackageTooShort indicates a package shorter than nonce + tag
	ErrPackageTooShort = errors.New("aead: package too short")

	// ErrInvalidKeySize indicates a key of the wrong length
	ErrInvalidKeySize = errors.New("aead: invalid key size")

	// ErrNonceExhausted indicates the key has sealed its maximum number of packages
	ErrNonceExhausted = errors.New("aead: nonce budget exhausted, rekey required")

	// ErrNonceReuse indicates the CSPRNG produced a nonce already used under the key
	ErrNonceReuse = errors.New("aead: nonce reuse detected")

	// ErrVerificationMismatch indicates a package decrypted to something other
	// than the payload it was sealed from
	ErrVerificationMismatch = errors.New("aead: verification mismatch")
)

// Sentinel errors for storage
var (
	// ErrPackageNotFound indicates no package exists under the requested name
	ErrPackageNotFound = errors.New("store: package not found")
)

// InputError reports invalid or empty input to a pipeline stage.
type InputError struct {
	Op  string // Operation that failed
	Err error  // Underlying error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("input error in %s: %v", e.Op, e.Err)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// NewInputError creates a new InputError
func NewInputError(op string, err error) *InputError {
	return &InputError{Op: op, Err: err}
}

// ConfigurationError reports an unusable configuration or scenario table.
type ConfigurationError struct {
	Op  string
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error in %s: %v", e.Op, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError creates a new ConfigurationError
func NewConfigurationError(op string, err error) *ConfigurationError {
	return &ConfigurationError{Op: op, Err: err}
}

// IntegrityError reports a package that failed authentication.
// No plaintext accompanies an IntegrityError.
type IntegrityError struct {
	Op  string
	Err error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity error in %s: %v", e.Op, e.Err)
}

func (e *IntegrityError) Unwrap() error {
	return e.Err
}

// NewIntegrityError creates a new IntegrityError
func NewIntegrityError(op string, err error) *IntegrityError {
	return &IntegrityError{Op: op, Err: err}
}

// CryptoError wraps a cryptographic error with additional context
type CryptoError struct {
	Op  string // Operation that failed
	Err error  // Underlying error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CryptoError) Unwrap() error {
	return e.Err
}

// NewCryptoError creates a new CryptoError
func NewCryptoError(op string, err error) *CryptoError {
	return &CryptoError{Op: op, Err: err}
}

// IsInput reports whether err is, or wraps, an InputError.
func IsInput(err error) bool {
	var target *InputError
	return errors.As(err, &target)
}

// IsConfiguration reports whether err is, or wraps, a ConfigurationError.
func IsConfiguration(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// IsIntegrity reports whether err is, or wraps, an IntegrityError.
func IsIntegrity(err error) bool {
	var target *IntegrityError
	return errors.As(err, &target)
}

// IsCrypto reports whether err is, or wraps, a CryptoError.
func IsCrypto(err error) bool {
	var target *CryptoError
	return errors.As(err, &target)
}

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
