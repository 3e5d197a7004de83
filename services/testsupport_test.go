package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"prepai-backend/internal/config"
	"prepai-backend/internal/store"
	"prepai-backend/models"
)

func testConfig() *config.Config {
	return &config.Config{
		MaxChunkSize:          1000,
		ChunkOverlap:          20,
		PreviewEmbedChars:     2000,
		SearchTopK:            5,
		PersistErrorFragments: true,
	}
}

// fakeEmbedder returns a deterministic vector derived from the text.
type fakeEmbedder struct {
	calls int
	fail  bool
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("embedder down")
	}
	var sum float32
	for _, r := range text {
		sum += float32(r)
	}
	return []float32{sum, float32(len(text)), 1}, nil
}

// fakeIndex is an in-memory stand-in for the chunk index.
type fakeIndex struct {
	mu      sync.Mutex
	entries []models.ChunkEntry
	failAdd bool
	failAll bool
}

func (f *fakeIndex) Add(ctx context.Context, entries []models.ChunkEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAdd || f.failAll {
		return fmt.Errorf("%w: add refused", ErrIndexUnavailable)
	}
	f.entries = append(f.entries, entries...)
	return nil
}

func (f *fakeIndex) Query(ctx context.Context, query string, topK int, filter IndexFilter) ([]models.ChunkEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return nil, fmt.Errorf("%w: query refused", ErrIndexUnavailable)
	}
	var out []models.ChunkEntry
	for _, e := range f.entries {
		if matchEntry(e, filter) {
			out = append(out, e)
		}
		if len(out) == topK {
			break
		}
	}
	return out, nil
}

func (f *fakeIndex) Get(ctx context.Context, filter IndexFilter, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return nil, fmt.Errorf("%w: get refused", ErrIndexUnavailable)
	}
	var ids []string
	for _, e := range f.entries {
		if matchEntry(e, filter) {
			ids = append(ids, e.ChunkID)
		}
		if limit > 0 && len(ids) == limit {
			break
		}
	}
	return ids, nil
}

func (f *fakeIndex) Delete(ctx context.Context, filter IndexFilter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return fmt.Errorf("%w: delete refused", ErrIndexUnavailable)
	}
	kept := f.entries[:0]
	for _, e := range f.entries {
		if !matchEntry(e, filter) {
			kept = append(kept, e)
		}
	}
	f.entries = kept
	return nil
}

func matchEntry(e models.ChunkEntry, filter IndexFilter) bool {
	for k, v := range filter {
		switch k {
		case "note_id":
			id, ok := v.(primitive.ObjectID)
			if !ok || e.NoteID != id {
				return false
			}
		case "owner_id":
			id, ok := v.(primitive.ObjectID)
			if !ok || e.OwnerID != id {
				return false
			}
		case "chunk_id":
			s, ok := v.(string)
			if !ok || e.ChunkID != s {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// fakeNoteStore keeps notes in a map keyed by id.
type fakeNoteStore struct {
	mu    sync.Mutex
	notes map[primitive.ObjectID]*models.Note
}

func newFakeNoteStore() *fakeNoteStore {
	return &fakeNoteStore{notes: map[primitive.ObjectID]*models.Note{}}
}

func (s *fakeNoteStore) Insert(ctx context.Context, note *models.Note) (primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := primitive.NewObjectID()
	note.ID = id
	copied := *note
	s.notes[id] = &copied
	return id, nil
}

func (s *fakeNoteStore) Get(ctx context.Context, id, ownerID primitive.ObjectID) (*models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	note, ok := s.notes[id]
	if !ok {
		return nil, errNotFoundForTest
	}
	if !ownerID.IsZero() && note.OwnerID != ownerID {
		return nil, errNotFoundForTest
	}
	copied := *note
	return &copied, nil
}

func (s *fakeNoteStore) List(ctx context.Context, ownerID primitive.ObjectID) ([]models.NoteInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.NoteInfo
	for _, n := range s.notes {
		if n.OwnerID == ownerID {
			out = append(out, models.NoteInfo{ID: n.ID, Filename: n.Filename, CreatedAt: n.CreatedAt})
		}
	}
	return out, nil
}

func (s *fakeNoteStore) Rename(ctx context.Context, id, ownerID primitive.ObjectID, filename string) (*models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	note, ok := s.notes[id]
	if !ok || note.OwnerID != ownerID {
		return nil, errNotFoundForTest
	}
	note.Filename = filename
	copied := *note
	return &copied, nil
}

func (s *fakeNoteStore) Delete(ctx context.Context, id, ownerID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	note, ok := s.notes[id]
	if !ok || note.OwnerID != ownerID {
		return errNotFoundForTest
	}
	delete(s.notes, id)
	return nil
}

func (s *fakeNoteStore) AllIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []primitive.ObjectID
	for id := range s.notes {
		ids = append(ids, id)
	}
	return ids, nil
}

type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*models.ChatSession
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: map[string]*models.ChatSession{}}
}

func (s *fakeSessionStore) Insert(ctx context.Context, session *models.ChatSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *session
	s.sessions[session.ID] = &copied
	return nil
}

func (s *fakeSessionStore) Get(ctx context.Context, id string, ownerID primitive.ObjectID) (*models.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok || session.OwnerID != ownerID {
		return nil, errNotFoundForTest
	}
	copied := *session
	return &copied, nil
}

func (s *fakeSessionStore) ListByNote(ctx context.Context, noteID, ownerID primitive.ObjectID) ([]models.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ChatSession
	for _, sess := range s.sessions {
		if sess.NoteID == noteID && sess.OwnerID == ownerID {
			out = append(out, *sess)
		}
	}
	return out, nil
}

func (s *fakeSessionStore) DeleteByNote(ctx context.Context, noteID, ownerID primitive.ObjectID) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted []string
	for id, sess := range s.sessions {
		if sess.NoteID == noteID && sess.OwnerID == ownerID {
			deleted = append(deleted, id)
			delete(s.sessions, id)
		}
	}
	return deleted, nil
}

type fakeMessageStore struct {
	mu       sync.Mutex
	messages []models.ChatMessage
}

func (s *fakeMessageStore) Append(ctx context.Context, msg *models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, *msg)
	return nil
}

func (s *fakeMessageStore) History(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ChatMessage
	for _, m := range s.messages {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeMessageStore) DeleteBySessions(ctx context.Context, sessionIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	drop := map[string]bool{}
	for _, id := range sessionIDs {
		drop[id] = true
	}
	kept := s.messages[:0]
	for _, m := range s.messages {
		if !drop[m.SessionID] {
			kept = append(kept, m)
		}
	}
	s.messages = kept
	return nil
}

func (s *fakeMessageStore) bySession(sessionID string) []models.ChatMessage {
	out, _ := s.History(context.Background(), sessionID)
	return out
}

// plainExtractor reads the file verbatim as one page.
type plainExtractor struct{}

func (plainExtractor) Extract(ctx context.Context, path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, nil
	}
	return []string{text}, nil
}

// The services detect missing rows via errors.Is against store.ErrNotFound.
var errNotFoundForTest = store.ErrNotFound
