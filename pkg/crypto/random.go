// Package crypto provides the cryptographic primitives of the adaptive
// log-security pipeline: key derivation from key bits, AES-256-GCM packages
// and CSPRNG helpers.
//
// Security Note: key and nonce material always comes from crypto/rand. The
// seeded generators used by the simulators never feed this package.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"io"

	qerrors "github.com/sudhaVaishnavi/quantum-adaptive-log-security/internal/errors"
)

// Reader is an io.Reader that returns cryptographically secure random bytes.
// It wraps crypto/rand.Reader for consistent error handling.
var Reader io.Reader = rand.Reader

// SecureRandom reads cryptographically secure random bytes into the provided slice.
//
// This function will only return an error if the system's random number generator
// fails, which should be treated as a critical system failure.
func SecureRandom(b []byte) error {
	return readFull(Reader, b)
}

// SecureRandomBytes returns n cryptographically secure random bytes.
func SecureRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if err := SecureRandom(b); err != nil {
		return nil, err
	}
	return b, nil
}

// RandomBits returns n independent unbiased bits, one per byte (0 or 1),
// read from r. A nil reader means crypto/rand.
func RandomBits(r io.Reader, n int) ([]byte, error) {
	if n <= 0 {
		return []byte{}, nil
	}
	if r == nil {
		r = Reader
	}

	packed := make([]byte, (n+7)/8)
	if err := readFull(r, packed); err != nil {
		return nil, err
	}
	defer Zeroize(packed)

	return UnpackBits(packed, n), nil
}

func readFull(r io.Reader, b []byte) error {
	if _, err := io.ReadFull(r, b); err != nil {
		return qerrors.NewCryptoError("SecureRandom", err)
	}
	return nil
}

// ConstantTimeCompare compares two byte slices in constant time.
func ConstantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// Zeroize overwrites sensitive data with zeros.
//
// Note: The Go runtime may have already copied the data. This limits exposure
// in long-lived buffers; it is not a guarantee.
func Zeroize(b []byte) {
	clear(b)
}

// ZeroizeMultiple erases multiple byte slices.
func ZeroizeMultiple(slices ...[]byte) {
	for _, s := range slices {
		Zeroize(s)
	}
}
