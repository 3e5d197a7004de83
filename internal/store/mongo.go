package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"prepai-backend/models"
)

// ErrNotFound is returned when a requested row does not exist or is not
// reachable through the given owner.
var ErrNotFound = errors.New("store: not found")

// Stores bundles the Mongo-backed durable stores. Every read and delete is
// owner-scoped unless documented otherwise.
type Stores struct {
	Users    *UserStore
	Notes    *NoteStore
	Sessions *SessionStore
	Messages *MessageStore
}

func NewStores(db *mongo.Database) *Stores {
	return &Stores{
		Users:    &UserStore{col: db.Collection("users")},
		Notes:    &NoteStore{col: db.Collection("notes")},
		Sessions: &SessionStore{col: db.Collection("chat_sessions")},
		Messages: &MessageStore{col: db.Collection("chat_messages")},
	}
}

type NoteStore struct {
	col *mongo.Collection
}

// Insert stores the note and returns the id Mongo assigned. The id is the
// join key embedded in every chunk's metadata.
func (s *NoteStore) Insert(ctx context.Context, note *models.Note) (primitive.ObjectID, error) {
	note.CreatedAt = time.Now().UTC()
	res, err := s.col.InsertOne(ctx, note)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("failed to insert note: %w", err)
	}
	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	note.ID = id
	return id, nil
}

func (s *NoteStore) Get(ctx context.Context, id, ownerID primitive.ObjectID) (*models.Note, error) {
	filter := bson.M{"_id": id}
	if !ownerID.IsZero() {
		filter["owner_id"] = ownerID
	}
	var note models.Note
	err := s.col.FindOne(ctx, filter).Decode(&note)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load note: %w", err)
	}
	return &note, nil
}

func (s *NoteStore) List(ctx context.Context, ownerID primitive.ObjectID) ([]models.NoteInfo, error) {
	cursor, err := s.col.Find(ctx,
		bson.M{"owner_id": ownerID},
		options.Find().
			SetProjection(bson.M{"_id": 1, "filename": 1, "created_at": 1}).
			SetSort(bson.M{"created_at": -1}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer cursor.Close(ctx)

	notes := make([]models.NoteInfo, 0)
	if err := cursor.All(ctx, &notes); err != nil {
		return nil, fmt.Errorf("failed to decode notes: %w", err)
	}
	return notes, nil
}

func (s *NoteStore) Rename(ctx context.Context, id, ownerID primitive.ObjectID, filename string) (*models.Note, error) {
	var note models.Note
	err := s.col.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "owner_id": ownerID},
		bson.M{"$set": bson.M{"filename": filename}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&note)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to rename note: %w", err)
	}
	return &note, nil
}

func (s *NoteStore) Delete(ctx context.Context, id, ownerID primitive.ObjectID) error {
	res, err := s.col.DeleteOne(ctx, bson.M{"_id": id, "owner_id": ownerID})
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// AllIDs walks every note id regardless of owner. Used only by the
// background reconciliation sweep.
func (s *NoteStore) AllIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	cursor, err := s.col.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to scan notes: %w", err)
	}
	defer cursor.Close(ctx)

	var ids []primitive.ObjectID
	for cursor.Next(ctx) {
		var row struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cursor.Decode(&row); err != nil {
			continue
		}
		ids = append(ids, row.ID)
	}
	return ids, cursor.Err()
}

type SessionStore struct {
	col *mongo.Collection
}

func (s *SessionStore) Insert(ctx context.Context, session *models.ChatSession) error {
	session.CreatedAt = time.Now().UTC()
	if _, err := s.col.InsertOne(ctx, session); err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, id string, ownerID primitive.ObjectID) (*models.ChatSession, error) {
	var session models.ChatSession
	err := s.col.FindOne(ctx, bson.M{"_id": id, "owner_id": ownerID}).Decode(&session)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return &session, nil
}

func (s *SessionStore) ListByNote(ctx context.Context, noteID, ownerID primitive.ObjectID) ([]models.ChatSession, error) {
	cursor, err := s.col.Find(ctx,
		bson.M{"note_id": noteID, "owner_id": ownerID},
		options.Find().SetSort(bson.M{"created_at": -1}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer cursor.Close(ctx)

	sessions := make([]models.ChatSession, 0)
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("failed to decode sessions: %w", err)
	}
	return sessions, nil
}

// DeleteByNote removes every session of a note and returns the removed ids
// so the caller can cascade to messages.
func (s *SessionStore) DeleteByNote(ctx context.Context, noteID, ownerID primitive.ObjectID) ([]string, error) {
	cursor, err := s.col.Find(ctx,
		bson.M{"note_id": noteID, "owner_id": ownerID},
		options.Find().SetProjection(bson.M{"_id": 1}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan sessions: %w", err)
	}
	defer cursor.Close(ctx)

	var ids []string
	for cursor.Next(ctx) {
		var row struct {
			ID string `bson:"_id"`
		}
		if err := cursor.Decode(&row); err != nil {
			continue
		}
		ids = append(ids, row.ID)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	if len(ids) > 0 {
		if _, err := s.col.DeleteMany(ctx, bson.M{"note_id": noteID, "owner_id": ownerID}); err != nil {
			return nil, fmt.Errorf("failed to delete sessions: %w", err)
		}
	}
	return ids, nil
}

type MessageStore struct {
	col *mongo.Collection
}

// Append writes one message row. Messages are append-only; there is no
// update path.
func (s *MessageStore) Append(ctx context.Context, msg *models.ChatMessage) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	res, err := s.col.InsertOne(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		msg.ID = id
	}
	return nil
}

func (s *MessageStore) History(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	cursor, err := s.col.Find(ctx,
		bson.M{"session_id": sessionID},
		options.Find().SetSort(bson.M{"created_at": 1}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	defer cursor.Close(ctx)

	messages := make([]models.ChatMessage, 0)
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}
	return messages, nil
}

func (s *MessageStore) DeleteBySessions(ctx context.Context, sessionIDs []string) error {
	if len(sessionIDs) == 0 {
		return nil
	}
	if _, err := s.col.DeleteMany(ctx, bson.M{"session_id": bson.M{"$in": sessionIDs}}); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	return nil
}
