package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"prepai-backend/internal/config"
	"prepai-backend/internal/logger"
	"prepai-backend/internal/store"
	"prepai-backend/models"
	"prepai-backend/utils"
)

// NoteStore is the durable-store capability the notes pipeline needs.
type NoteStore interface {
	Insert(ctx context.Context, note *models.Note) (primitive.ObjectID, error)
	Get(ctx context.Context, id, ownerID primitive.ObjectID) (*models.Note, error)
	List(ctx context.Context, ownerID primitive.ObjectID) ([]models.NoteInfo, error)
	Rename(ctx context.Context, id, ownerID primitive.ObjectID, filename string) (*models.Note, error)
	Delete(ctx context.Context, id, ownerID primitive.ObjectID) error
	AllIDs(ctx context.Context) ([]primitive.ObjectID, error)
}

type SessionStore interface {
	Insert(ctx context.Context, session *models.ChatSession) error
	Get(ctx context.Context, id string, ownerID primitive.ObjectID) (*models.ChatSession, error)
	ListByNote(ctx context.Context, noteID, ownerID primitive.ObjectID) ([]models.ChatSession, error)
	DeleteByNote(ctx context.Context, noteID, ownerID primitive.ObjectID) ([]string, error)
}

type MessageStore interface {
	Append(ctx context.Context, msg *models.ChatMessage) error
	History(ctx context.Context, sessionID string) ([]models.ChatMessage, error)
	DeleteBySessions(ctx context.Context, sessionIDs []string) error
}

// Extractor pulls page texts out of a document file on disk.
type Extractor interface {
	Extract(ctx context.Context, path string) ([]string, error)
}

// NotesService owns the document-to-index pipeline: ingest writes the note
// blob and its chunk vectors, EnsureIndexed repairs the index from the blob
// when the two stores diverge. The durable store is the source of truth.
type NotesService struct {
	cfg       *config.Config
	notes     NoteStore
	sessions  SessionStore
	messages  MessageStore
	index     VectorIndex
	embedder  Embedder
	extractor Extractor
	chunker   *Chunker
	textCache *TextCache
}

func NewNotesService(
	cfg *config.Config,
	stores *store.Stores,
	index VectorIndex,
	embedder Embedder,
	extractor Extractor,
	textCache *TextCache,
) *NotesService {
	return &NotesService{
		cfg:       cfg,
		notes:     stores.Notes,
		sessions:  stores.Sessions,
		messages:  stores.Messages,
		index:     index,
		embedder:  embedder,
		extractor: extractor,
		chunker:   NewChunker(cfg.MaxChunkSize, cfg.ChunkOverlap),
		textCache: textCache,
	}
}

// newNotesServiceWith wires explicit capabilities; used by tests and the
// queue processor.
func newNotesServiceWith(cfg *config.Config, notes NoteStore, sessions SessionStore, messages MessageStore,
	index VectorIndex, embedder Embedder, extractor Extractor, textCache *TextCache) *NotesService {
	return &NotesService{
		cfg:       cfg,
		notes:     notes,
		sessions:  sessions,
		messages:  messages,
		index:     index,
		embedder:  embedder,
		extractor: extractor,
		chunker:   NewChunker(cfg.MaxChunkSize, cfg.ChunkOverlap),
		textCache: textCache,
	}
}

// Ingest persists the raw document and indexes its chunks.
//
// The durable insert completes first so the assigned note id can be
// embedded in every chunk's metadata. If the index batch-add then fails
// the note row stays: the index is repaired lazily by EnsureIndexed, the
// writer itself never retries.
func (s *NotesService) Ingest(ctx context.Context, ownerID primitive.ObjectID, filename string, raw []byte) (*models.Note, int, error) {
	tracer := otel.Tracer("notes-service")
	ctx, span := tracer.Start(ctx, "notes.ingest")
	defer span.End()
	span.SetAttributes(attribute.String("note.filename", filename), attribute.Int("note.size", len(raw)))

	text, err := s.extractFromBlob(ctx, raw, filename)
	if err != nil {
		return nil, 0, fmt.Errorf("text extraction failed: %w", err)
	}

	chunks := s.chunker.Chunk(text)
	if len(chunks) == 0 {
		return nil, 0, ErrEmptyDocument
	}

	// One coarse preview embedding over a bounded prefix of the full text,
	// not per-chunk; used for lightweight note similarity elsewhere.
	preview := boundedPrefix(strings.Join(chunks, " "), s.cfg.PreviewEmbedChars)
	previewVec, err := s.embedder.Embed(ctx, preview)
	if err != nil {
		return nil, 0, fmt.Errorf("preview embedding failed: %w", err)
	}

	blob, algorithm, err := utils.CompressBlob(raw)
	if err != nil {
		return nil, 0, fmt.Errorf("blob compression failed: %w", err)
	}
	blobHash := utils.HashBlob(raw)

	note := &models.Note{
		OwnerID:          ownerID,
		Filename:         filename,
		Blob:             blob,
		Compression:      string(algorithm),
		BlobHash:         blobHash,
		PreviewEmbedding: previewVec,
	}
	noteID, err := s.notes.Insert(ctx, note)
	if err != nil {
		return nil, 0, err
	}

	s.textCache.Set(ctx, blobHash, text)

	entries := buildChunkEntries(chunks, noteID, ownerID, filename)
	if err := s.index.Add(ctx, entries); err != nil {
		// The note row is the source of truth; repair is deferred.
		logger.Error("Index add failed after note insert, reconciler will repair",
			"note_id", noteID.Hex(), "error", err)
		span.SetAttributes(attribute.Bool("index.deferred_repair", true))
	}

	logger.Info("Ingested note", "note_id", noteID.Hex(), "filename", filename, "chunks", len(chunks))
	return note, len(chunks), nil
}

// EnsureIndexed verifies the index holds at least one entry for the note
// and rebuilds the entries from the stored blob when it does not.
// Idempotent and safe to call before every retrieval. Repairs use fresh
// chunk ids, so a concurrent repair can only duplicate, never collide.
func (s *NotesService) EnsureIndexed(ctx context.Context, noteID primitive.ObjectID) error {
	tracer := otel.Tracer("notes-service")
	ctx, span := tracer.Start(ctx, "notes.ensure_indexed")
	defer span.End()
	span.SetAttributes(attribute.String("note.id", noteID.Hex()))

	ids, err := s.index.Get(ctx, IndexFilter{"note_id": noteID}, 1)
	if err != nil {
		return err
	}
	if len(ids) > 0 {
		return nil
	}

	logger.Warn("Index entries missing, restoring from durable store", "note_id", noteID.Hex())
	span.SetAttributes(attribute.Bool("index.repair", true))

	note, err := s.notes.Get(ctx, noteID, primitive.NilObjectID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: note %s", ErrDocumentNotFound, noteID.Hex())
	}
	if err != nil {
		return err
	}

	text, err := s.noteText(ctx, note)
	if err != nil {
		return fmt.Errorf("failed to restore note text: %w", err)
	}

	chunks := s.chunker.Chunk(text)
	if len(chunks) == 0 {
		// An intentionally-empty document is not an error at repair time
		logger.Warn("Restored note has no text, skipping repair", "note_id", noteID.Hex())
		return nil
	}

	// Same metadata shape as the ingest path, fresh chunk ids each time
	entries := buildChunkEntries(chunks, note.ID, note.OwnerID, note.Filename)
	if err := s.index.Add(ctx, entries); err != nil {
		return err
	}

	logger.Info("Restored index entries", "note_id", noteID.Hex(), "chunks", len(chunks))
	return nil
}

// noteText returns the extracted text of a stored note, consulting the
// cache before decompressing and re-extracting the blob.
func (s *NotesService) noteText(ctx context.Context, note *models.Note) (string, error) {
	if text, ok := s.textCache.Get(ctx, note.BlobHash); ok {
		return text, nil
	}

	raw, err := utils.DecompressBlob(note.Blob, utils.CompressionAlgorithm(note.Compression))
	if err != nil {
		return "", err
	}

	text, err := s.extractFromBlob(ctx, raw, note.Filename)
	if err != nil {
		return "", err
	}
	s.textCache.Set(ctx, note.BlobHash, text)
	return text, nil
}

// extractFromBlob writes the blob to a temp file for the extractor and
// removes it on every exit path.
func (s *NotesService) extractFromBlob(ctx context.Context, raw []byte, filename string) (string, error) {
	ext := filepath.Ext(filename)
	if ext == "" {
		ext = ".pdf"
	}
	tmp, err := os.CreateTemp("", "note-*"+ext)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}

	pages, err := s.extractor.Extract(ctx, tmpPath)
	if err != nil {
		return "", err
	}
	return strings.Join(pages, "\n\n"), nil
}

// List returns the owner's notes, newest first.
func (s *NotesService) List(ctx context.Context, ownerID primitive.ObjectID) ([]models.NoteInfo, error) {
	return s.notes.List(ctx, ownerID)
}

// Content returns the original (decompressed) blob for inline viewing.
func (s *NotesService) Content(ctx context.Context, noteID, ownerID primitive.ObjectID) (*models.Note, []byte, error) {
	note, err := s.notes.Get(ctx, noteID, ownerID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	raw, err := utils.DecompressBlob(note.Blob, utils.CompressionAlgorithm(note.Compression))
	if err != nil {
		return nil, nil, err
	}
	return note, raw, nil
}

func (s *NotesService) Rename(ctx context.Context, noteID, ownerID primitive.ObjectID, filename string) (*models.Note, error) {
	note, err := s.notes.Rename(ctx, noteID, ownerID, filename)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrDocumentNotFound
	}
	return note, err
}

// Delete removes the note and cascades to its sessions and messages.
// Index cleanup runs first and is tolerated on failure so the stores do
// not drift the other way (index entries without a note row would only be
// orphaned metadata, never served: search is always note-scoped through
// existing rows).
func (s *NotesService) Delete(ctx context.Context, noteID, ownerID primitive.ObjectID) error {
	if _, err := s.notes.Get(ctx, noteID, ownerID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrDocumentNotFound
		}
		return err
	}

	if err := s.index.Delete(ctx, IndexFilter{"note_id": noteID}); err != nil {
		logger.Error("Index delete failed, proceeding with store delete", "note_id", noteID.Hex(), "error", err)
	}

	sessionIDs, err := s.sessions.DeleteByNote(ctx, noteID, ownerID)
	if err != nil {
		return err
	}
	if err := s.messages.DeleteBySessions(ctx, sessionIDs); err != nil {
		return err
	}

	return s.notes.Delete(ctx, noteID, ownerID)
}

// ReconcileAll walks every note and repairs missing index entries. Used by
// the background sweep; the lazy per-chat repair remains authoritative.
func (s *NotesService) ReconcileAll(ctx context.Context) error {
	ids, err := s.notes.AllIDs(ctx)
	if err != nil {
		return err
	}
	var failed int
	for _, id := range ids {
		if err := s.EnsureIndexed(ctx, id); err != nil {
			failed++
			logger.Error("Reconcile sweep failed for note", "note_id", id.Hex(), "error", err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("reconcile sweep: %d of %d notes failed", failed, len(ids))
	}
	return nil
}

func buildChunkEntries(chunks []string, noteID, ownerID primitive.ObjectID, filename string) []models.ChunkEntry {
	entries := make([]models.ChunkEntry, len(chunks))
	for i, text := range chunks {
		entries[i] = models.ChunkEntry{
			ChunkID:    uuid.NewString(),
			NoteID:     noteID,
			OwnerID:    ownerID,
			SourceFile: filename,
			Order:      i,
			Text:       text,
		}
	}
	return entries
}

func boundedPrefix(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
