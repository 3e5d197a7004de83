package services

import (
	"strings"
	"testing"
)

func TestChunkerEmptyInput(t *testing.T) {
	c := NewChunker(1000, 20)
	if got := c.Chunk(""); len(got) != 0 {
		t.Fatalf("expected no chunks for empty input, got %d", len(got))
	}
	if got := c.Chunk("   \n\t  "); len(got) != 0 {
		t.Fatalf("expected no chunks for whitespace input, got %d", len(got))
	}
}

func TestChunkerShortInput(t *testing.T) {
	c := NewChunker(1000, 20)
	chunks := c.Chunk("hello world")
	if len(chunks) != 1 || chunks[0] != "hello world" {
		t.Fatalf("expected single chunk, got %v", chunks)
	}
}

func TestChunkerOverlapWindows(t *testing.T) {
	c := NewChunker(1000, 20)
	text := strings.Repeat("a", 2400)
	chunks := c.Chunk(text)

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks for 2400 chars at 1000/20, got %d", len(chunks))
	}
	if len(chunks[0]) != 1000 || len(chunks[1]) != 1000 {
		t.Fatalf("expected full windows of 1000, got %d and %d", len(chunks[0]), len(chunks[1]))
	}
	// 2 full steps of 980, tail starts at 1960
	if len(chunks[2]) != 440 {
		t.Fatalf("expected tail of 440, got %d", len(chunks[2]))
	}
}

func TestChunkerDeterministic(t *testing.T) {
	c := NewChunker(100, 10)
	text := strings.Repeat("the quick brown fox ", 50)

	first := c.Chunk(text)
	second := c.Chunk(text)
	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("chunk %d differs between runs", i)
		}
	}
}

func TestChunkerUnicodeBoundaries(t *testing.T) {
	c := NewChunker(10, 2)
	text := strings.Repeat("héllo wörld ", 5)
	for i, chunk := range c.Chunk(text) {
		if !strings.HasPrefix(text, string([]rune(chunk)[:1])) && i == 0 {
			t.Fatalf("first chunk does not start at text start")
		}
		for _, r := range chunk {
			if r == '�' {
				t.Fatalf("chunk %d split a multi-byte rune", i)
			}
		}
	}
}
