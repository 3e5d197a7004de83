package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatSession is a named conversation thread scoped to one note and one owner.
type ChatSession struct {
	ID        string             `bson:"_id" json:"id"`
	Name      string             `bson:"name" json:"name"`
	NoteID    primitive.ObjectID `bson:"note_id" json:"note_id"`
	OwnerID   primitive.ObjectID `bson:"owner_id" json:"owner_id"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// ChatMessage rows are append-only and ordered by created_at within a session.
type ChatMessage struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID string             `bson:"session_id" json:"session_id"`
	Role      string             `bson:"role" json:"role"`
	Content   string             `bson:"content" json:"content"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

type SessionCreateRequest struct {
	NoteID string `json:"note_id" binding:"required"`
	Name   string `json:"name"`
}

type SessionResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	NoteID    string    `json:"note_id"`
	CreatedAt time.Time `json:"created_at"`
}
