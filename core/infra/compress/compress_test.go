package compress

import (
	"bytes"
	"strings"
	"testing"
)

func TestCompressRoundTrip(t *testing.T) {
	codec, err := NewCodec(2)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	defer codec.Close()

	original := []byte(strings.Repeat("layered persistence ", 64))
	compressed, ok := codec.Compress(original)
	if !ok {
		t.Fatalf("expected repetitive payload to compress")
	}
	if len(compressed) >= len(original) {
		t.Fatalf("compressed payload not smaller: %d >= %d", len(compressed), len(original))
	}
	restored, err := codec.Decompress(compressed)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if !bytes.Equal(restored, original) {
		t.Fatalf("round trip mismatch")
	}
}

func TestCompressSkipsSmallPayloads(t *testing.T) {
	codec, err := NewCodec(1)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	defer codec.Close()

	small := []byte("tiny")
	out, ok := codec.Compress(small)
	if ok {
		t.Fatalf("expected small payload to pass through")
	}
	if !bytes.Equal(out, small) {
		t.Fatalf("small payload mutated")
	}
}

func TestDecompressRejectsCorruptPayload(t *testing.T) {
	codec, err := NewCodec(2)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	defer codec.Close()

	if _, err := codec.Decompress([]byte("not a zstd frame")); err == nil {
		t.Fatalf("expected error for corrupt payload")
	}
}
