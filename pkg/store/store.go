// Package store authenticates, encrypts and persists payloads under keys
// derived from channel scenarios, and verifies them on the way back.
//
// A package is stored under a name that carries the threat level it was
// produced for; the cipher itself is the same AES-256-GCM construction at
// every level.
package store

import (
	"context"
	"sync"

	"golang.org/x/crypto/sha3"

	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/internal/constants"
	qerrors "github.com/sudhaVaishnavi/quantum-adaptive-log-security/internal/errors"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/crypto"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/metrics"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/policy"
)

// PackageName returns the artifact name for level, e.g.
// "encrypted_anomalies_HIGH.bin".
func PackageName(level policy.Level) string {
	return constants.PackagePrefix + level.String() + constants.PackageSuffix
}

// Key is a derived payload key.
type Key = [constants.KeySize]byte

// SecureStore seals payloads into a Sink.
type SecureStore struct {
	sink      Sink
	logger    *metrics.Logger
	collector *metrics.Collector

	mu      sync.Mutex
	sealers map[[32]byte]*crypto.AEAD // by key fingerprint
}

// Option configures a SecureStore.
type Option func(*SecureStore)

// WithLogger sets the logger.
func WithLogger(l *metrics.Logger) Option {
	return func(s *SecureStore) {
		s.logger = l
	}
}

// WithCollector records storage metrics into c.
func WithCollector(c *metrics.Collector) Option {
	return func(s *SecureStore) {
		s.collector = c
	}
}

// New returns a store writing to sink.
func New(sink Sink, opts ...Option) *SecureStore {
	s := &SecureStore{
		sink:    sink,
		logger:  metrics.NullLogger(),
		sealers: make(map[[32]byte]*crypto.AEAD),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// sealer returns the AEAD for key, reusing it across calls so nonce
// tracking covers every package sealed under that key.
func (s *SecureStore) sealer(key *Key) (*crypto.AEAD, error) {
	if key == nil {
		return nil, qerrors.NewCryptoError("store.Encrypt", qerrors.ErrInvalidKeySize)
	}
	fp := sha3.Sum256(key[:])

	s.mu.Lock()
	defer s.mu.Unlock()

	if a, ok := s.sealers[fp]; ok {
		return a, nil
	}
	a, err := crypto.NewAEAD(key[:])
	if err != nil {
		return nil, err
	}
	s.sealers[fp] = a
	return a, nil
}

// Forget drops the cached cipher for key. Sealing under the same key again
// afterwards starts a new nonce history. A nil key is ignored.
func (s *SecureStore) Forget(key *Key) {
	if key == nil {
		return
	}
	fp := sha3.Sum256(key[:])
	s.mu.Lock()
	delete(s.sealers, fp)
	s.mu.Unlock()
}

// Encrypt seals payload under key with a fresh nonce and persists the
// package as PackageName(level). It returns the package and its name.
func (s *SecureStore) Encrypt(ctx context.Context, level policy.Level, payload []byte, key *Key) (*crypto.Package, string, error) {
	a, err := s.sealer(key)
	if err != nil {
		return nil, "", err
	}
	pkg, err := a.Seal(payload)
	if err != nil {
		return nil, "", err
	}

	name := PackageName(level)
	if err := s.sink.Put(ctx, name, pkg.Bytes()); err != nil {
		return nil, "", err
	}

	if s.collector != nil {
		s.collector.RecordSealed(len(payload))
	}
	s.logger.Info("package sealed", metrics.Fields{
		"name":         name,
		"payload_size": len(payload),
		"package_size": pkg.Len(),
		"level":        level.String(),
	})
	if a.NeedsRekey() {
		s.logger.Warn("key nearing nonce budget", metrics.Fields{"sealed": a.Sealed()})
	}
	return pkg, name, nil
}

// Decrypt splits data into nonce, tag and ciphertext and returns the
// plaintext only if the tag verifies under key. Any failure, including a
// package shorter than the header, is an IntegrityError. A nil key is a
// CryptoError wrapping ErrInvalidKeySize.
func (s *SecureStore) Decrypt(data []byte, key *Key) ([]byte, error) {
	if key == nil {
		return nil, qerrors.NewCryptoError("store.Decrypt", qerrors.ErrInvalidKeySize)
	}
	a, err := crypto.NewAEAD(key[:])
	if err != nil {
		return nil, err
	}
	plaintext, err := a.OpenBytes(data)
	if err != nil {
		if s.collector != nil {
			s.collector.RecordIntegrityFailure()
		}
		s.logger.Error("package rejected", metrics.Fields{"size": len(data), "error": err})
		return nil, err
	}
	if s.collector != nil {
		s.collector.RecordOpened()
	}
	return plaintext, nil
}

// Load fetches the package stored for level and decrypts it.
func (s *SecureStore) Load(ctx context.Context, level policy.Level, key *Key) ([]byte, error) {
	data, err := s.sink.Get(ctx, PackageName(level))
	if err != nil {
		return nil, err
	}
	return s.Decrypt(data, key)
}

// Close releases cached ciphers and closes the sink.
func (s *SecureStore) Close() error {
	s.mu.Lock()
	clear(s.sealers)
	s.mu.Unlock()
	return s.sink.Close()
}
