// Package keys derives the 32-byte payload key from a selected channel
// scenario.
package keys

import (
	"fmt"
	"io"
	"strings"

	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/internal/constants"
	qerrors "github.com/sudhaVaishnavi/quantum-adaptive-log-security/internal/errors"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/crypto"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/qkd"
)

// Provenance says where the bits hashed into a key come from.
type Provenance int

const (
	// ProvenanceFresh draws SecureKeyLength fresh random bits per derivation.
	// The scenario only sizes the key, so every derivation yields a new key.
	ProvenanceFresh Provenance = iota

	// ProvenanceChannel hashes the scenario's own amplified key bits, making
	// the key a reproducible function of the exchange.
	ProvenanceChannel
)

// String returns "fresh" or "channel".
func (p Provenance) String() string {
	switch p {
	case ProvenanceFresh:
		return "fresh"
	case ProvenanceChannel:
		return "channel"
	default:
		return fmt.Sprintf("Provenance(%d)", int(p))
	}
}

// ParseProvenance parses "fresh" or "channel".
func ParseProvenance(s string) (Provenance, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fresh", "":
		return ProvenanceFresh, nil
	case "channel":
		return ProvenanceChannel, nil
	default:
		return 0, qerrors.NewConfigurationError("keys.ParseProvenance", qerrors.ErrInvalidParameter)
	}
}

// Material is an ephemeral derived key. Call Zeroize once the key has been
// used; it is never persisted.
type Material struct {
	RawBitCount int
	Key         [constants.KeySize]byte
}

// Zeroize clears the key.
func (m *Material) Zeroize() {
	clear(m.Key[:])
	m.RawBitCount = 0
}

// Deriver turns scenarios into key material.
type Deriver struct {
	provenance Provenance
	random     io.Reader
}

// Option configures a Deriver.
type Option func(*Deriver)

// WithProvenance selects where key bits come from.
func WithProvenance(p Provenance) Option {
	return func(d *Deriver) {
		d.provenance = p
	}
}

// WithRandom replaces the CSPRNG used for fresh bits. Intended for tests.
func WithRandom(r io.Reader) Option {
	return func(d *Deriver) {
		d.random = r
	}
}

// NewDeriver returns a deriver that samples fresh bits from crypto/rand
// unless configured otherwise.
func NewDeriver(opts ...Option) *Deriver {
	d := &Deriver{provenance: ProvenanceFresh}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Provenance returns the configured bit source.
func (d *Deriver) Provenance() Provenance {
	return d.provenance
}

// Derive hashes SecureKeyLength bits into a key. A length of zero is valid
// and yields the hash of the empty bit string.
func (d *Deriver) Derive(s qkd.Scenario) (*Material, error) {
	n := s.SecureKeyLength
	if n < 0 {
		return nil, qerrors.NewInputError("keys.Derive", qerrors.ErrInvalidParameter)
	}

	var bits []byte
	switch d.provenance {
	case ProvenanceFresh:
		b, err := crypto.RandomBits(d.random, n)
		if err != nil {
			return nil, err
		}
		bits = b
	case ProvenanceChannel:
		packed, ok := s.SecureKeyBits()
		if !ok && n > 0 {
			return nil, qerrors.NewConfigurationError("keys.Derive", qerrors.ErrNoKeyBits)
		}
		if len(packed)*8 < n {
			return nil, qerrors.NewConfigurationError("keys.Derive", qerrors.ErrNoKeyBits)
		}
		bits = crypto.UnpackBits(packed, n)
		crypto.Zeroize(packed)
	default:
		return nil, qerrors.NewConfigurationError("keys.Derive", qerrors.ErrInvalidParameter)
	}
	defer crypto.Zeroize(bits)

	return &Material{
		RawBitCount: n,
		Key:         crypto.DeriveKeyFromBits(bits),
	}, nil
}
