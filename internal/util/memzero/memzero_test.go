package memzero_test

import (
	"bytes"
	"testing"

	"offrecord/internal/util/memzero"
)

func TestZeroAll(t *testing.T) {
	a := []byte{1, 2, 3}
	b := []byte{4, 5}
	memzero.ZeroAll(a, nil, b)
	if !bytes.Equal(a, make([]byte, 3)) || !bytes.Equal(b, make([]byte, 2)) {
		t.Fatalf("buffers not wiped: %v %v", a, b)
	}
}
