package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Note is the durable record for an uploaded document. The raw blob is the
// source of truth; the chunk index can always be rebuilt from it.
type Note struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OwnerID          primitive.ObjectID `bson:"owner_id" json:"owner_id"`
	Filename         string             `bson:"filename" json:"filename"`
	Blob             []byte             `bson:"blob" json:"-"`
	Compression      string             `bson:"compression,omitempty" json:"-"`
	BlobHash         string             `bson:"blob_hash,omitempty" json:"-"`
	PreviewEmbedding []float32          `bson:"preview_embedding,omitempty" json:"-"`
	CreatedAt        time.Time          `bson:"created_at" json:"created_at"`
}

// NoteInfo is the listing projection for the sidebar.
type NoteInfo struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	Filename  string             `bson:"filename" json:"filename"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

type UploadResponse struct {
	Status         string `json:"status"`
	Filename       string `json:"filename"`
	DocID          string `json:"doc_id,omitempty"`
	ChunksIngested int    `json:"chunks_ingested,omitempty"`
	TaskID         string `json:"task_id,omitempty"`
}

type RenameRequest struct {
	NewFilename string `json:"new_filename" binding:"required,min=1,max=255"`
}
