package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"prepai-backend/internal/logger"
	"prepai-backend/services"
)

const TaskIngestNote = "note:ingest"

// IngestNotePayload carries a staged upload through the queue. The raw
// bytes stay on disk; only the path travels in the task payload.
type IngestNotePayload struct {
	OwnerID  string `json:"owner_id"`
	Filename string `json:"filename"`
	StagedAt string `json:"staged_at"`
}

// NewIngestNoteTask builds the async ingestion task for an upload that was
// too large to process inside the request.
func NewIngestNoteTask(ownerID primitive.ObjectID, filename, stagedPath string) (*asynq.Task, error) {
	payload, err := json.Marshal(IngestNotePayload{
		OwnerID:  ownerID.Hex(),
		Filename: filename,
		StagedAt: stagedPath,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIngestNote,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("critical"),
	), nil
}

// TaskProcessor executes queued work against the notes pipeline.
type TaskProcessor struct {
	notes *services.NotesService
}

func NewTaskProcessor(notes *services.NotesService) *TaskProcessor {
	return &TaskProcessor{notes: notes}
}

// ProcessIngestNote runs the full ingest for a staged upload. The staged
// file is removed only on success or a permanently-failed payload, so a
// retried task still finds its input.
func (p *TaskProcessor) ProcessIngestNote(ctx context.Context, t *asynq.Task) error {
	var payload IngestNotePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	ownerID, err := primitive.ObjectIDFromHex(payload.OwnerID)
	if err != nil {
		os.Remove(payload.StagedAt)
		return fmt.Errorf("bad owner id %q: %w", payload.OwnerID, asynq.SkipRetry)
	}

	raw, err := os.ReadFile(payload.StagedAt)
	if err != nil {
		return fmt.Errorf("staged upload unreadable: %w", err)
	}

	note, chunks, err := p.notes.Ingest(ctx, ownerID, payload.Filename, raw)
	if err != nil {
		logger.Error("Async ingest failed", "filename", payload.Filename, "error", err)
		return err
	}

	os.Remove(payload.StagedAt)
	logger.Info("Async ingest completed", "note_id", note.ID.Hex(), "filename", payload.Filename, "chunks", chunks)
	return nil
}
