package grover

import (
	"context"
	"testing"
)

func BenchmarkNewCircuit(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := NewCircuit(1<<12, i%(1<<12)); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSimulatorRun(b *testing.B) {
	s, err := NewSimulator(DefaultConfig())
	if err != nil {
		b.Fatal(err)
	}
	targets := []int{0, 17, 511, 1023}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Run(context.Background(), 1024, targets); err != nil {
			b.Fatal(err)
		}
	}
}
