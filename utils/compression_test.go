package utils

import (
	"bytes"
	"crypto/rand"
	"strings"
	"testing"
)

func TestCompressBlobRoundTrip(t *testing.T) {
	original := []byte(strings.Repeat("compressible lecture text ", 200))

	stored, algorithm, err := CompressBlob(original)
	if err != nil {
		t.Fatalf("compress failed: %v", err)
	}
	if algorithm != CompressionBrotli {
		t.Fatalf("expected brotli for repetitive text, got %q", algorithm)
	}
	if len(stored) >= len(original) {
		t.Fatalf("compressed size %d >= original %d", len(stored), len(original))
	}

	restored, err := DecompressBlob(stored, algorithm)
	if err != nil {
		t.Fatalf("decompress failed: %v", err)
	}
	if !bytes.Equal(restored, original) {
		t.Fatal("round trip altered the blob")
	}
}

func TestCompressBlobSkipsSmallPayloads(t *testing.T) {
	small := []byte("tiny")
	stored, algorithm, err := CompressBlob(small)
	if err != nil {
		t.Fatalf("compress failed: %v", err)
	}
	if algorithm != CompressionNone {
		t.Fatalf("small payload should stay uncompressed, got %q", algorithm)
	}
	if !bytes.Equal(stored, small) {
		t.Fatal("uncompressed payload was altered")
	}
}

func TestCompressBlobKeepsIncompressibleData(t *testing.T) {
	noise := make([]byte, 4096)
	rand.Read(noise)

	stored, algorithm, err := CompressBlob(noise)
	if err != nil {
		t.Fatalf("compress failed: %v", err)
	}
	restored, err := DecompressBlob(stored, algorithm)
	if err != nil {
		t.Fatalf("decompress failed: %v", err)
	}
	if !bytes.Equal(restored, noise) {
		t.Fatal("round trip altered the blob")
	}
}

func TestHashBlobStable(t *testing.T) {
	data := []byte("same bytes")
	if HashBlob(data) != HashBlob([]byte("same bytes")) {
		t.Fatal("hash is not deterministic")
	}
	if HashBlob(data) == HashBlob([]byte("different bytes")) {
		t.Fatal("distinct inputs collided")
	}
	if len(HashBlob(data)) != 64 {
		t.Fatalf("expected sha256 hex digest, got %d chars", len(HashBlob(data)))
	}
}
