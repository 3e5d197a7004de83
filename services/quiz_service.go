package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"prepai-backend/internal/logger"
	"prepai-backend/models"
)

// JSONGenerator is the structured completion capability QuizService needs.
type JSONGenerator interface {
	CompleteJSON(ctx context.Context, prompt string) (string, error)
}

// QuizService generates multiple-choice quizzes from a parsed document and
// retrieved context. Model output is validated strictly: anything that is
// not a well-formed quiz is rejected rather than partially accepted.
type QuizService struct {
	generator JSONGenerator
}

func NewQuizService(generator JSONGenerator) *QuizService {
	return &QuizService{generator: generator}
}

// Generate builds the quiz prompt and parses the model's JSON answer.
// An empty retrieved context fails fast before any model call is made.
func (s *QuizService) Generate(ctx context.Context, parsedDoc, userPrompt, retrievedContext string) (*models.QuizOutput, error) {
	tracer := otel.Tracer("quiz-service")
	ctx, span := tracer.Start(ctx, "quiz.generate")
	defer span.End()

	if strings.TrimSpace(retrievedContext) == "" {
		return nil, fmt.Errorf("%w: no context available to generate quiz", ErrInvalidQuizOutput)
	}

	prompt := BuildQuizPrompt(parsedDoc, userPrompt, retrievedContext)
	raw, err := s.generator.CompleteJSON(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("quiz generation failed: %w", err)
	}

	quiz, err := parseQuizJSON(raw)
	if err != nil {
		logger.Error("Model returned malformed quiz", "error", err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("quiz.questions", len(quiz.Quiz)))
	return quiz, nil
}

// parseQuizJSON accepts either a bare question array or an object wrapping
// one under "quiz", then validates every question.
func parseQuizJSON(raw string) (*models.QuizOutput, error) {
	raw = strings.TrimSpace(raw)

	var questions []models.QuizQuestion
	if err := json.Unmarshal([]byte(raw), &questions); err != nil {
		var wrapped models.QuizOutput
		if err := json.Unmarshal([]byte(raw), &wrapped); err != nil {
			return nil, fmt.Errorf("%w: not valid JSON: %v", ErrInvalidQuizOutput, err)
		}
		questions = wrapped.Quiz
	}

	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: no questions returned", ErrInvalidQuizOutput)
	}

	for i := range questions {
		if err := validateQuestion(&questions[i]); err != nil {
			return nil, fmt.Errorf("%w: question %d: %v", ErrInvalidQuizOutput, i, err)
		}
		// The response slot belongs to the quiz taker, never the model
		questions[i].UserResponse = ""
	}

	return &models.QuizOutput{Quiz: questions}, nil
}

func validateQuestion(q *models.QuizQuestion) error {
	if strings.TrimSpace(q.Question) == "" {
		return fmt.Errorf("empty question text")
	}
	if len(q.Options) != 4 {
		return fmt.Errorf("expected 4 options, got %d", len(q.Options))
	}
	switch strings.ToLower(strings.TrimSpace(q.Answer)) {
	case "a", "b", "c", "d":
	default:
		return fmt.Errorf("answer %q is not one of a-d", q.Answer)
	}
	if strings.TrimSpace(q.Explanation) == "" {
		return fmt.Errorf("missing explanation")
	}
	return nil
}
