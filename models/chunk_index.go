package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// ChunkEntry is a denormalized chunk in the note_chunks collection.
// Keeping a separate collection enables efficient $vectorSearch with
// metadata filters; chunks are never stored on the Note itself.
type ChunkEntry struct {
	ChunkID    string             `bson:"chunk_id" json:"chunk_id"`
	NoteID     primitive.ObjectID `bson:"note_id" json:"note_id"`
	OwnerID    primitive.ObjectID `bson:"owner_id" json:"owner_id"`
	SourceFile string             `bson:"source_file" json:"source_file"`
	Order      int                `bson:"order" json:"order"`
	Text       string             `bson:"text" json:"text"`
	Vector     []float32          `bson:"vector,omitempty" json:"-"`
}
