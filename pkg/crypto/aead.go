// aead.go implements the authenticated encryption used for stored packages.
//
// Construction: AES-256-GCM with a 128-bit nonce and a 128-bit tag.
//
//   - AES: block cipher with 256-bit key, 128-bit blocks
//   - GCM: Galois/Counter Mode; a nonce longer than 96 bits is hashed with
//     GHASH into the initial counter block
//   - Security: IND-CCA2, 128-bit authentication tag
//
// Package layout (no framing, no length prefix):
//
//	nonce(16) || tag(16) || ciphertext(len-32)
//
// The Go GCM implementation emits ciphertext || tag; Seal and Open reorder
// the tag to the fixed package position.
//
// CRITICAL: Nonce reuse under one key breaks GCM. Each AEAD instance draws
// random nonces from the CSPRNG, remembers every nonce it issued and refuses
// to seal once the per-key budget is spent.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"sync"

	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/internal/constants"
	qerrors "github.com/sudhaVaishnavi/quantum-adaptive-log-security/internal/errors"
)

// Package is an encrypted payload: nonce, tag and ciphertext.
type Package struct {
	Nonce      [constants.NonceSize]byte
	Tag        [constants.TagSize]byte
	Ciphertext []byte
}

// Bytes returns nonce || tag || ciphertext.
func (p *Package) Bytes() []byte {
	out := make([]byte, 0, constants.PackageHeaderSize+len(p.Ciphertext))
	out = append(out, p.Nonce[:]...)
	out = append(out, p.Tag[:]...)
	out = append(out, p.Ciphertext...)
	return out
}

// Len returns the serialized size of the package.
func (p *Package) Len() int {
	return constants.PackageHeaderSize + len(p.Ciphertext)
}

// ParsePackage splits a serialized package at its fixed offsets.
// The ciphertext is copied; b may be reused by the caller.
func ParsePackage(b []byte) (*Package, error) {
	if len(b) < constants.PackageHeaderSize {
		return nil, qerrors.NewIntegrityError("ParsePackage", qerrors.ErrPackageTooShort)
	}

	p := &Package{
		Ciphertext: append([]byte(nil), b[constants.PackageHeaderSize:]...),
	}
	copy(p.Nonce[:], b[:constants.NonceSize])
	copy(p.Tag[:], b[constants.NonceSize:constants.PackageHeaderSize])
	return p, nil
}

// AEAD seals and opens packages under a single key.
type AEAD struct {
	cipher cipher.AEAD

	mu     sync.Mutex
	issued map[[constants.NonceSize]byte]struct{}
	maxSeq int
}

// NewAEAD creates an AES-256-GCM cipher with 16-byte nonces.
//
// Parameters:
//   - key: 32-byte encryption key
//
// Returns:
//   - AEAD: The initialized cipher
//   - error: Non-nil if the key size is wrong
func NewAEAD(key []byte) (*AEAD, error) {
	if len(key) != constants.KeySize {
		return nil, qerrors.NewCryptoError("NewAEAD", qerrors.ErrInvalidKeySize)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, qerrors.NewCryptoError("NewAEAD", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, constants.NonceSize)
	if err != nil {
		return nil, qerrors.NewCryptoError("NewAEAD", err)
	}

	return &AEAD{
		cipher: gcm,
		issued: make(map[[constants.NonceSize]byte]struct{}),
		maxSeq: constants.MaxSealsPerKey,
	}, nil
}

// Seal encrypts and authenticates plaintext under a fresh nonce.
//
// The operation:
// 1. Draw a 16-byte nonce from the CSPRNG, rejecting any nonce already issued
// 2. Encrypt: ciphertext || tag = GCM.Seal(nonce, plaintext)
// 3. Return the package with the tag moved ahead of the ciphertext
//
// An empty plaintext is valid and yields a header-only package.
func (a *AEAD) Seal(plaintext []byte) (*Package, error) {
	nonce, err := a.nextNonce()
	if err != nil {
		return nil, err
	}

	sealed := a.cipher.Seal(nil, nonce[:], plaintext, nil)
	split := len(sealed) - constants.TagSize

	p := &Package{
		Nonce:      nonce,
		Ciphertext: sealed[:split:split],
	}
	copy(p.Tag[:], sealed[split:])
	return p, nil
}

// Open verifies the package tag and returns the plaintext.
//
// Verification happens before any plaintext is released. On failure Open
// returns an IntegrityError and no data.
func (a *AEAD) Open(p *Package) ([]byte, error) {
	if p == nil {
		return nil, qerrors.NewIntegrityError("Open", qerrors.ErrPackageTooShort)
	}

	sealed := make([]byte, 0, len(p.Ciphertext)+constants.TagSize)
	sealed = append(sealed, p.Ciphertext...)
	sealed = append(sealed, p.Tag[:]...)

	plaintext, err := a.cipher.Open(nil, p.Nonce[:], sealed, nil)
	if err != nil {
		return nil, qerrors.NewIntegrityError("Open", qerrors.ErrAuthenticationFailed)
	}
	if plaintext == nil {
		plaintext = []byte{}
	}
	return plaintext, nil
}

// OpenBytes parses and opens a serialized package.
func (a *AEAD) OpenBytes(b []byte) ([]byte, error) {
	p, err := ParsePackage(b)
	if err != nil {
		return nil, err
	}
	return a.Open(p)
}

// nextNonce draws a nonce that this key has never issued.
func (a *AEAD) nextNonce() ([constants.NonceSize]byte, error) {
	var nonce [constants.NonceSize]byte

	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.issued) >= a.maxSeq {
		return nonce, qerrors.NewCryptoError("Seal", qerrors.ErrNonceExhausted)
	}
	if err := SecureRandom(nonce[:]); err != nil {
		return nonce, err
	}
	if _, dup := a.issued[nonce]; dup {
		return nonce, qerrors.NewCryptoError("Seal", qerrors.ErrNonceReuse)
	}
	a.issued[nonce] = struct{}{}

	return nonce, nil
}

// Sealed returns how many packages this key has sealed.
func (a *AEAD) Sealed() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.issued)
}

// NeedsRekey returns true once 90% of the per-key budget is used.
func (a *AEAD) NeedsRekey() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.issued) >= a.maxSeq*9/10
}

// Overhead returns the bytes added to a plaintext by sealing.
func (a *AEAD) Overhead() int {
	return constants.NonceSize + a.cipher.Overhead()
}
