package crypto_test

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"errors"
	"testing"

	"golang.org/x/crypto/sha3"

	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/internal/constants"
	qerrors "github.com/sudhaVaishnavi/quantum-adaptive-log-security/internal/errors"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/crypto"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key, err := crypto.SecureRandomBytes(constants.KeySize)
	if err != nil {
		t.Fatalf("SecureRandomBytes failed: %v", err)
	}
	return key
}

// --- Random Tests ---

func TestSecureRandomBytes(t *testing.T) {
	sizes := []int{0, 16, 32, 64}
	for _, size := range sizes {
		buf, err := crypto.SecureRandomBytes(size)
		if err != nil {
			t.Fatalf("SecureRandomBytes(%d) failed: %v", size, err)
		}
		if len(buf) != size {
			t.Errorf("SecureRandomBytes(%d) returned %d bytes", size, len(buf))
		}
	}
}

func TestRandomBits(t *testing.T) {
	bits, err := crypto.RandomBits(nil, 10000)
	if err != nil {
		t.Fatalf("RandomBits failed: %v", err)
	}
	if len(bits) != 10000 {
		t.Fatalf("RandomBits returned %d bits, want 10000", len(bits))
	}

	ones := 0
	for i, b := range bits {
		if b > 1 {
			t.Fatalf("bit %d = %d, want 0 or 1", i, b)
		}
		ones += int(b)
	}
	// 10000 fair coin flips: 5000 ± 5σ (σ = 50)
	if ones < 4750 || ones > 5250 {
		t.Errorf("RandomBits produced %d ones out of 10000", ones)
	}
}

func TestRandomBitsDeterministicReader(t *testing.T) {
	src := bytes.NewReader([]byte{0xA5, 0x80})
	bits, err := crypto.RandomBits(src, 9)
	if err != nil {
		t.Fatalf("RandomBits failed: %v", err)
	}
	want := []byte{1, 0, 1, 0, 0, 1, 0, 1, 1}
	if !bytes.Equal(bits, want) {
		t.Errorf("RandomBits = %v, want %v", bits, want)
	}

	empty, err := crypto.RandomBits(nil, 0)
	if err != nil || len(empty) != 0 {
		t.Errorf("RandomBits(0) = %v, %v", empty, err)
	}
}

func TestRandomBitsShortReader(t *testing.T) {
	_, err := crypto.RandomBits(bytes.NewReader([]byte{1}), 64)
	var cerr *qerrors.CryptoError
	if !errors.As(err, &cerr) {
		t.Fatalf("RandomBits on short reader: got %v, want CryptoError", err)
	}
}

func TestConstantTimeCompare(t *testing.T) {
	a := []byte("hello world")
	b := []byte("hello world")
	c := []byte("hello worle")
	d := []byte("hello")

	if !crypto.ConstantTimeCompare(a, b) {
		t.Error("Equal slices should compare equal")
	}
	if crypto.ConstantTimeCompare(a, c) {
		t.Error("Different slices should not compare equal")
	}
	if crypto.ConstantTimeCompare(a, d) {
		t.Error("Different length slices should not compare equal")
	}
}

func TestZeroize(t *testing.T) {
	a := []byte{1, 2, 3}
	b := []byte{4, 5}
	crypto.ZeroizeMultiple(a, b)

	for i, v := range append(a, b...) {
		if v != 0 {
			t.Errorf("Zeroize failed at index %d: got %d, want 0", i, v)
		}
	}
}

// --- KDF Tests ---

func TestBitString(t *testing.T) {
	tests := []struct {
		bits []byte
		want string
	}{
		{nil, ""},
		{[]byte{0}, "0"},
		{[]byte{1, 0, 1, 1}, "1011"},
		{[]byte{2, 0}, "10"},
	}
	for _, tt := range tests {
		if got := crypto.BitString(tt.bits); got != tt.want {
			t.Errorf("BitString(%v) = %q, want %q", tt.bits, got, tt.want)
		}
	}
}

func TestDeriveKeyFromBitsEmpty(t *testing.T) {
	// SHA3-256 of the empty string (FIPS 202 test vector)
	want, _ := hex.DecodeString("a7ffc6f8bf1ed76651c14756a061d662f580ff4de43b49fa82d80a4b80f8434a")

	key := crypto.DeriveKeyFromBits(nil)
	if !bytes.Equal(key[:], want) {
		t.Errorf("DeriveKeyFromBits(nil) = %x, want %x", key, want)
	}
}

func TestDeriveKeyFromBits(t *testing.T) {
	bits := []byte{0, 1, 1, 0, 1}
	want := sha3.Sum256([]byte("01101"))

	got := crypto.DeriveKeyFromBits(bits)
	if got != want {
		t.Errorf("DeriveKeyFromBits = %x, want %x", got, want)
	}
	if len(got) != constants.KeySize {
		t.Errorf("key size = %d, want %d", len(got), constants.KeySize)
	}

	// Leading zeros are significant.
	if crypto.DeriveKeyFromBits([]byte{0, 1}) == crypto.DeriveKeyFromBits([]byte{1}) {
		t.Error("bit strings 01 and 1 derived the same key")
	}
}

func TestPackUnpackBits(t *testing.T) {
	bits := []byte{1, 0, 1, 1, 0, 0, 0, 1, 1, 1}
	packed := crypto.PackBits(bits)
	if len(packed) != 2 {
		t.Fatalf("PackBits produced %d bytes, want 2", len(packed))
	}
	if packed[0] != 0xB1 || packed[1] != 0xC0 {
		t.Errorf("PackBits = %x, want b1c0", packed)
	}
	if got := crypto.UnpackBits(packed, len(bits)); !bytes.Equal(got, bits) {
		t.Errorf("UnpackBits = %v, want %v", got, bits)
	}

	key, err := crypto.DeriveKeyFromPackedBits(packed, len(bits))
	if err != nil {
		t.Fatalf("DeriveKeyFromPackedBits failed: %v", err)
	}
	if key != crypto.DeriveKeyFromBits(bits) {
		t.Error("packed and unpacked derivations differ")
	}

	if _, err := crypto.DeriveKeyFromPackedBits(packed, 17); err == nil {
		t.Error("DeriveKeyFromPackedBits should reject n beyond packed length")
	}
}

// --- AEAD Tests ---

func TestAEADRoundTrip(t *testing.T) {
	aead, err := crypto.NewAEAD(testKey(t))
	if err != nil {
		t.Fatalf("NewAEAD failed: %v", err)
	}

	payloads := [][]byte{
		{},
		[]byte("x"),
		[]byte("timestamp,user_id,ip_address,anomaly_score\n"),
		bytes.Repeat([]byte{0xAB}, 70000),
	}
	for _, payload := range payloads {
		p, err := aead.Seal(payload)
		if err != nil {
			t.Fatalf("Seal(%d bytes) failed: %v", len(payload), err)
		}
		if p.Len() != len(payload)+constants.PackageHeaderSize {
			t.Errorf("package length = %d, want %d", p.Len(), len(payload)+constants.PackageHeaderSize)
		}

		got, err := aead.OpenBytes(p.Bytes())
		if err != nil {
			t.Fatalf("OpenBytes(%d bytes) failed: %v", len(payload), err)
		}
		if !bytes.Equal(got, payload) {
			t.Errorf("round trip mismatch for %d-byte payload", len(payload))
		}
	}
}

func TestAEADPackageLayout(t *testing.T) {
	key := testKey(t)
	aead, err := crypto.NewAEAD(key)
	if err != nil {
		t.Fatalf("NewAEAD failed: %v", err)
	}

	plaintext := []byte("layout check")
	p, err := aead.Seal(plaintext)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	// Recompute with the raw GCM construction: ciphertext || tag.
	block, _ := aes.NewCipher(key)
	gcm, _ := cipher.NewGCMWithNonceSize(block, constants.NonceSize)
	sealed := gcm.Seal(nil, p.Nonce[:], plaintext, nil)

	raw := p.Bytes()
	if !bytes.Equal(raw[:16], p.Nonce[:]) {
		t.Error("nonce is not the first 16 bytes")
	}
	if !bytes.Equal(raw[16:32], sealed[len(sealed)-16:]) {
		t.Error("tag is not bytes 16..32")
	}
	if !bytes.Equal(raw[32:], sealed[:len(sealed)-16]) {
		t.Error("ciphertext does not follow the tag")
	}
}

func TestAEADTamperEveryBit(t *testing.T) {
	aead, err := crypto.NewAEAD(testKey(t))
	if err != nil {
		t.Fatalf("NewAEAD failed: %v", err)
	}

	p, err := aead.Seal([]byte("anomaly"))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	raw := p.Bytes()

	// Nonce, tag and ciphertext are all covered by authentication.
	for i := 0; i < len(raw)*8; i++ {
		tampered := append([]byte(nil), raw...)
		tampered[i/8] ^= 1 << uint(i%8)

		got, err := aead.OpenBytes(tampered)
		if err == nil {
			t.Fatalf("bit %d flipped: Open succeeded", i)
		}
		if got != nil {
			t.Fatalf("bit %d flipped: Open returned plaintext", i)
		}
		if !qerrors.IsIntegrity(err) || !errors.Is(err, qerrors.ErrAuthenticationFailed) {
			t.Fatalf("bit %d flipped: got %v, want IntegrityError", i, err)
		}
	}
}

func TestAEADWrongKey(t *testing.T) {
	sealer, _ := crypto.NewAEAD(testKey(t))
	opener, _ := crypto.NewAEAD(testKey(t))

	p, err := sealer.Seal([]byte("secret"))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if _, err := opener.Open(p); !qerrors.IsIntegrity(err) {
		t.Errorf("Open with wrong key: got %v, want IntegrityError", err)
	}
}

func TestAEADShortPackage(t *testing.T) {
	aead, _ := crypto.NewAEAD(testKey(t))

	for _, n := range []int{0, 1, 16, 31} {
		_, err := aead.OpenBytes(make([]byte, n))
		if !errors.Is(err, qerrors.ErrPackageTooShort) || !qerrors.IsIntegrity(err) {
			t.Errorf("OpenBytes(%d bytes): got %v, want ErrPackageTooShort", n, err)
		}
	}
	if _, err := aead.Open(nil); !qerrors.IsIntegrity(err) {
		t.Errorf("Open(nil): got %v, want IntegrityError", err)
	}
}

func TestAEADUniqueNonces(t *testing.T) {
	aead, _ := crypto.NewAEAD(testKey(t))

	seen := make(map[[constants.NonceSize]byte]bool)
	for i := 0; i < 1000; i++ {
		p, err := aead.Seal([]byte("same payload"))
		if err != nil {
			t.Fatalf("Seal %d failed: %v", i, err)
		}
		if seen[p.Nonce] {
			t.Fatalf("nonce reused at seal %d", i)
		}
		seen[p.Nonce] = true
	}
	if aead.Sealed() != 1000 {
		t.Errorf("Sealed() = %d, want 1000", aead.Sealed())
	}
	if aead.NeedsRekey() {
		t.Error("NeedsRekey() should be false after 1000 seals")
	}
}

func TestAEADInvalidKeySize(t *testing.T) {
	for _, n := range []int{0, 16, 24, 31, 33} {
		_, err := crypto.NewAEAD(make([]byte, n))
		if !errors.Is(err, qerrors.ErrInvalidKeySize) {
			t.Errorf("NewAEAD(%d-byte key): got %v, want ErrInvalidKeySize", n, err)
		}
	}
}

func TestAEADOverhead(t *testing.T) {
	aead, _ := crypto.NewAEAD(testKey(t))
	if aead.Overhead() != constants.PackageHeaderSize {
		t.Errorf("Overhead() = %d, want %d", aead.Overhead(), constants.PackageHeaderSize)
	}
}

func TestParsePackageCopies(t *testing.T) {
	raw := make([]byte, 40)
	for i := range raw {
		raw[i] = byte(i)
	}
	p, err := crypto.ParsePackage(raw)
	if err != nil {
		t.Fatalf("ParsePackage failed: %v", err)
	}
	raw[35] = 0xFF
	if p.Ciphertext[3] != 35 {
		t.Error("ParsePackage aliases the input buffer")
	}
	if p.Nonce[0] != 0 || p.Tag[0] != 16 || len(p.Ciphertext) != 8 {
		t.Errorf("ParsePackage split at wrong offsets: %+v", p)
	}
}
