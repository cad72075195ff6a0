package crypto_test

import (
	"testing"

	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/internal/constants"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/crypto"
)

// Run with: go test -bench=. -benchmem ./pkg/crypto/

func BenchmarkSecureRandom32(b *testing.B) {
	buf := make([]byte, 32)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		crypto.SecureRandom(buf)
	}
}

func BenchmarkDeriveKeyFromBits(b *testing.B) {
	bits, err := crypto.RandomBits(nil, 5000) // a typical amplified key
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		crypto.DeriveKeyFromBits(bits)
	}
}

func BenchmarkSeal(b *testing.B) {
	key := make([]byte, constants.KeySize)
	crypto.SecureRandom(key)
	a, _ := crypto.NewAEAD(key)
	plaintext := make([]byte, 64*1024) // a small log export

	b.ResetTimer()
	b.SetBytes(int64(len(plaintext)))
	for i := 0; i < b.N; i++ {
		if _, err := a.Seal(plaintext); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkOpenBytes(b *testing.B) {
	key := make([]byte, constants.KeySize)
	crypto.SecureRandom(key)
	a, _ := crypto.NewAEAD(key)
	plaintext := make([]byte, 64*1024)
	pkg, _ := a.Seal(plaintext)
	data := pkg.Bytes()

	b.ResetTimer()
	b.SetBytes(int64(len(plaintext)))
	for i := 0; i < b.N; i++ {
		if _, err := a.OpenBytes(data); err != nil {
			b.Fatal(err)
		}
	}
}
