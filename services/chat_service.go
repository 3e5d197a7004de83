package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"prepai-backend/internal/ai"
	"prepai-backend/internal/config"
	"prepai-backend/internal/logger"
	"prepai-backend/models"
)

// ChatGenerator is the streaming completion capability ChatService needs.
type ChatGenerator interface {
	StreamChat(ctx context.Context, turns []ai.Turn) (ai.TextStream, error)
}

// ChatService assembles retrieval-augmented prompts and streams model
// output. Each response fragment is handed to the consumer as it arrives;
// the assistant turn is persisted only after the consumer has drained the
// whole stream, so an abandoned stream leaves no partial row behind.
type ChatService struct {
	cfg       *config.Config
	generator ChatGenerator
	messages  MessageStore
}

func NewChatService(cfg *config.Config, generator ChatGenerator, messages MessageStore) *ChatService {
	return &ChatService{cfg: cfg, generator: generator, messages: messages}
}

// buildTurns injects the manual context and retrieved documents into the
// last user turn. When the history carries no trailing user turn, a
// synthetic one asking for analysis of the combined context is appended.
func buildTurns(history []models.ChatTurn, manualContext, retrieved string) []ai.Turn {
	turns := make([]ai.Turn, 0, len(history)+2)
	turns = append(turns, ai.Turn{Role: models.RoleSystem, Content: ChatSystemInstruction})
	for _, t := range history {
		turns = append(turns, ai.Turn{Role: t.Role, Content: t.Content})
	}

	last := len(turns) - 1
	if last > 0 && turns[last].Role == models.RoleUser {
		var b strings.Builder
		if manualContext != "" {
			b.WriteString("Here is the context/notes you must use:\n")
			b.WriteString("---------------------\n")
			b.WriteString(manualContext)
			b.WriteString("\n---------------------\n\n")
		}
		if retrieved != "" {
			b.WriteString("Here is background information/retrieved documents:\n")
			b.WriteString("---------------------\n")
			b.WriteString(retrieved)
			b.WriteString("\n---------------------\n\n")
		}
		b.WriteString("User Question: ")
		b.WriteString(turns[last].Content)
		turns[last].Content = b.String()
		return turns
	}

	combined := manualContext + "\n\n" + retrieved
	turns = append(turns, ai.Turn{
		Role:    models.RoleUser,
		Content: "Context:\n" + combined + "\n\nPlease analyze this.",
	})
	return turns
}

// Stream starts a model completion and returns an unbuffered channel of
// response fragments. The channel closes when the model finishes or the
// context is cancelled. A model failure surfaces as a final
// "Error: <message>" fragment on the same channel rather than an error
// return, so consumers handle one shape.
//
// When persistSessionID is non-empty, the concatenation of every fragment
// the consumer actually received is appended to that session as one
// assistant message — but only after the last fragment was delivered.
// Cancellation before that point persists nothing.
func (s *ChatService) Stream(ctx context.Context, history []models.ChatTurn, manualContext, retrieved, persistSessionID string) <-chan string {
	tracer := otel.Tracer("chat-service")
	ctx, span := tracer.Start(ctx, "chat.stream")
	span.SetAttributes(
		attribute.Int("chat.history_turns", len(history)),
		attribute.Bool("chat.persisted", persistSessionID != ""),
	)

	out := make(chan string)
	turns := buildTurns(history, manualContext, retrieved)

	go func() {
		defer close(out)
		defer span.End()

		var assembled strings.Builder
		hadError := false

		// send delivers one fragment; a successful send means the consumer
		// has it, so it joins the persisted transcript.
		send := func(fragment string, isError bool) bool {
			select {
			case out <- fragment:
				if !isError || s.cfg.PersistErrorFragments {
					assembled.WriteString(fragment)
				}
				if isError {
					hadError = true
				}
				return true
			case <-ctx.Done():
				return false
			}
		}

		stream, err := s.generator.StreamChat(ctx, turns)
		if err != nil {
			// Same shape as a mid-stream failure: the error fragment is the
			// whole response, delivered and then persisted.
			logger.Error("Chat stream failed to start", "error", err)
			if send("Error: "+err.Error(), true) {
				s.persist(persistSessionID, assembled.String(), hadError)
			}
			return
		}

		for {
			fragment, err := stream.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				logger.Error("Chat stream broke mid-response", "error", err)
				if !send("Error: "+err.Error(), true) {
					return
				}
				break
			}
			if !send(fragment, false) {
				// Consumer walked away; discard everything.
				logger.Info("Chat stream abandoned by consumer", "session_id", persistSessionID)
				return
			}
		}

		s.persist(persistSessionID, assembled.String(), hadError)
	}()

	return out
}

func (s *ChatService) persist(sessionID, content string, hadError bool) {
	if sessionID == "" || content == "" {
		return
	}
	// The request context may already be cancelled once streaming ends;
	// the write gets its own deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := s.messages.Append(ctx, &models.ChatMessage{
		SessionID: sessionID,
		Role:      models.RoleAssistant,
		Content:   content,
	})
	if err != nil {
		logger.Error("Failed to persist assistant message", "session_id", sessionID, "error", err)
		return
	}
	logger.Info("Persisted assistant message", "session_id", sessionID, "chars", len(content), "had_error", hadError)
}
