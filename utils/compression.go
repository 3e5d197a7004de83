package utils

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
)

// CompressionAlgorithm defines supported compression methods
type CompressionAlgorithm string

const (
	CompressionNone   CompressionAlgorithm = "none"
	CompressionBrotli CompressionAlgorithm = "brotli"
)

// Blobs smaller than this are stored uncompressed, the header overhead is
// not worth it.
const minCompressSize = 512

// CompressBlob compresses a document blob for storage, returning the bytes
// and the algorithm actually applied.
func CompressBlob(data []byte) ([]byte, CompressionAlgorithm, error) {
	if len(data) < minCompressSize {
		return data, CompressionNone, nil
	}

	var buf bytes.Buffer
	writer := brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
	if _, err := writer.Write(data); err != nil {
		return nil, CompressionNone, fmt.Errorf("failed to write to brotli writer: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, CompressionNone, fmt.Errorf("failed to close brotli writer: %w", err)
	}

	// Incompressible input (already-compressed PDFs mostly) is kept as-is
	if buf.Len() >= len(data) {
		return data, CompressionNone, nil
	}

	return buf.Bytes(), CompressionBrotli, nil
}

// DecompressBlob restores a stored blob to its original bytes.
func DecompressBlob(stored []byte, algorithm CompressionAlgorithm) ([]byte, error) {
	switch algorithm {
	case CompressionNone, "":
		return stored, nil

	case CompressionBrotli:
		reader := brotli.NewReader(bytes.NewReader(stored))
		data, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("failed to read from brotli reader: %w", err)
		}
		return data, nil

	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", algorithm)
	}
}
