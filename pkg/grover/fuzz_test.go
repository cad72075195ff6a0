package grover

import "testing"

func FuzzDecodeTarget(f *testing.F) {
	f.Add("0")
	f.Add("1011")
	f.Add("10x1")
	f.Add("")

	f.Fuzz(func(t *testing.T, s string) {
		target, err := DecodeTarget(s)
		if err != nil {
			return
		}
		if got := EncodeTarget(target, len(s)); got != s {
			t.Errorf("DecodeTarget(%q) = %d, which encodes as %q", s, target, got)
		}
	})
}
