// kdf.go turns a sequence of key bits into a fixed-size symmetric key.
//
// Construction:
//
//	key = SHA3-256( "b0" || "b1" || ... || "b(n-1)" )[:32]
//
// where each bi is rendered as its decimal digit ('0' or '1'). The digit
// string form keeps derived keys comparable with tooling that hashes the
// textual bit string. SHA3-256 (FIPS 202) provides 128-bit collision and
// 256-bit preimage resistance; its output is exactly KeySize bytes.
//
// An empty bit sequence is valid and yields SHA3-256("").
package crypto

import (
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/internal/constants"
	qerrors "github.com/sudhaVaishnavi/quantum-adaptive-log-security/internal/errors"
)

// BitString renders bits (one 0/1 value per byte) as decimal digits.
// Any non-zero byte counts as a 1 bit.
func BitString(bits []byte) string {
	var b strings.Builder
	b.Grow(len(bits))
	for _, bit := range bits {
		if bit == 0 {
			b.WriteByte('0')
		} else {
			b.WriteByte('1')
		}
	}
	return b.String()
}

// DeriveKeyFromBits derives a KeySize-byte key from key bits.
//
// Parameters:
//   - bits: key bits, one 0/1 value per byte (may be empty)
//
// Returns:
//   - key: 32-byte derived key
func DeriveKeyFromBits(bits []byte) [constants.KeySize]byte {
	digits := []byte(BitString(bits))
	defer Zeroize(digits)

	return sha3.Sum256(digits)
}

// DeriveKeyFromPackedBits derives a key from the first n bits of a packed
// big-endian bit string, as produced by a key exchange.
func DeriveKeyFromPackedBits(packed []byte, n int) ([constants.KeySize]byte, error) {
	if n < 0 || n > len(packed)*8 {
		return [constants.KeySize]byte{}, qerrors.NewCryptoError("DeriveKeyFromPackedBits", qerrors.ErrInvalidKeySize)
	}

	bits := UnpackBits(packed, n)
	defer Zeroize(bits)

	return DeriveKeyFromBits(bits), nil
}

// UnpackBits expands the first n bits of packed into one byte per bit.
func UnpackBits(packed []byte, n int) []byte {
	bits := make([]byte, n)
	for i := range bits {
		bits[i] = (packed[i/8] >> (7 - uint(i%8))) & 1
	}
	return bits
}

// PackBits packs 0/1 bytes into a big-endian bit string.
func PackBits(bits []byte) []byte {
	packed := make([]byte, (len(bits)+7)/8)
	for i, bit := range bits {
		if bit != 0 {
			packed[i/8] |= 1 << (7 - uint(i%8))
		}
	}
	return packed
}
