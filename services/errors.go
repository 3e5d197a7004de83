package services

import "errors"

var (
	// ErrEmptyDocument means extraction produced zero chunks. Fatal to
	// ingest, not retried.
	ErrEmptyDocument = errors.New("no text could be extracted from document")

	// ErrDocumentNotFound means a referenced note id is absent from the
	// durable store. Fatal.
	ErrDocumentNotFound = errors.New("document not found in durable store")

	// ErrIndexUnavailable wraps vector index failures. Ingest proceeds
	// anyway; the reconciler repairs the index later.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrInvalidQuizOutput means the model output failed schema validation
	// or there was no retrieved context to generate from.
	ErrInvalidQuizOutput = errors.New("quiz generation produced invalid output")
)
