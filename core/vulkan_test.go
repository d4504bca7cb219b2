package core_test

import (
	"testing"

	"github.com/devblok/mirage/core"
)

// Shader words are little-endian on disk and reinterpreted in place,
// the same assumption the SPIR-V loader makes.
func TestSliceUint32(t *testing.T) {
	data := []byte{
		0x01, 0x00, 0x00, 0x00,
		0xff, 0xff, 0xff, 0xff,
		0x78, 0x56, 0x34, 0x12,
		0xde, 0xad, // trailing bytes short of a word are dropped
	}

	out := core.SliceUint32(data)
	if len(out) != 3 {
		t.Fatalf("expected 3 words, got %d", len(out))
	}

	want := []uint32{1, 0xffffffff, 0x12345678}
	for idx, w := range want {
		if out[idx] != w {
			t.Errorf("word %d: got %#x, want %#x", idx, out[idx], w)
		}
	}

	// The words alias the input bytes, no copy is made.
	data[0] = 0x02
	if out[0] != 2 {
		t.Errorf("expected aliased word update, got %#x", out[0])
	}
}

func BenchmarkSliceUint32Small(b *testing.B) {
	data := make([]byte, 100)
	for idx := 0; idx < b.N; idx++ {
		core.SliceUint32(data)
	}
}

func BenchmarkSliceUint32Medium(b *testing.B) {
	data := make([]byte, 1000)
	for idx := 0; idx < b.N; idx++ {
		core.SliceUint32(data)
	}
}

func BenchmarkSliceUint32Big(b *testing.B) {
	data := make([]byte, 100000)
	for idx := 0; idx < b.N; idx++ {
		core.SliceUint32(data)
	}
}
