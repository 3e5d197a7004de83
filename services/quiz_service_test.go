package services

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type recordingJSONGenerator struct {
	response string
	err      error
	calls    int
	prompt   string
}

func (g *recordingJSONGenerator) CompleteJSON(ctx context.Context, prompt string) (string, error) {
	g.calls++
	g.prompt = prompt
	return g.response, g.err
}

const validQuizJSON = `[
	{
		"question": "Which command renames files?",
		"options": ["rm", "mv", "rm -r", "none of the mentioned"],
		"answer": "b",
		"explanation": "mv stands for move.",
		"User_response": "model should not fill this"
	}
]`

func TestGenerateRejectsEmptyContextBeforeModelCall(t *testing.T) {
	gen := &recordingJSONGenerator{response: validQuizJSON}
	svc := NewQuizService(gen)

	_, err := svc.Generate(context.Background(), "parsed doc", "make a quiz", "   ")
	if !errors.Is(err, ErrInvalidQuizOutput) {
		t.Fatalf("expected ErrInvalidQuizOutput, got %v", err)
	}
	if gen.calls != 0 {
		t.Fatalf("model was called %d times despite empty context", gen.calls)
	}
}

func TestGenerateParsesBareArray(t *testing.T) {
	gen := &recordingJSONGenerator{response: validQuizJSON}
	svc := NewQuizService(gen)

	quiz, err := svc.Generate(context.Background(), "parsed doc", "make a quiz", "retrieved context")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if len(quiz.Quiz) != 1 {
		t.Fatalf("expected 1 question, got %d", len(quiz.Quiz))
	}
	if quiz.Quiz[0].UserResponse != "" {
		t.Fatalf("User_response must be forced empty, got %q", quiz.Quiz[0].UserResponse)
	}
}

func TestGenerateParsesWrappedObject(t *testing.T) {
	gen := &recordingJSONGenerator{response: `{"quiz": ` + validQuizJSON + `}`}
	svc := NewQuizService(gen)

	quiz, err := svc.Generate(context.Background(), "doc", "prompt", "context")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if len(quiz.Quiz) != 1 {
		t.Fatalf("expected 1 question, got %d", len(quiz.Quiz))
	}
}

func TestGeneratePromptCarriesAllInputs(t *testing.T) {
	gen := &recordingJSONGenerator{response: validQuizJSON}
	svc := NewQuizService(gen)

	_, err := svc.Generate(context.Background(), "the parsed resume", "focus on Go", "retrieved chunk text")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	for _, want := range []string{"the parsed resume", "focus on Go", "retrieved chunk text"} {
		if !strings.Contains(gen.prompt, want) {
			t.Fatalf("prompt missing %q", want)
		}
	}
}

func TestGenerateRejectsMalformedOutput(t *testing.T) {
	cases := map[string]string{
		"not json":      `here is your quiz: [...]`,
		"empty array":   `[]`,
		"three options": `[{"question":"q","options":["a","b","c"],"answer":"a","explanation":"e","User_response":""}]`,
		"bad answer":    `[{"question":"q","options":["1","2","3","4"],"answer":"e","explanation":"e","User_response":""}]`,
		"no explanation": `[{"question":"q","options":["1","2","3","4"],"answer":"a","explanation":"","User_response":""}]`,
		"empty question": `[{"question":"","options":["1","2","3","4"],"answer":"a","explanation":"e","User_response":""}]`,
	}
	for name, response := range cases {
		t.Run(name, func(t *testing.T) {
			svc := NewQuizService(&recordingJSONGenerator{response: response})
			if _, err := svc.Generate(context.Background(), "doc", "prompt", "context"); !errors.Is(err, ErrInvalidQuizOutput) {
				t.Fatalf("expected ErrInvalidQuizOutput, got %v", err)
			}
		})
	}
}

func TestGeneratePropagatesModelError(t *testing.T) {
	svc := NewQuizService(&recordingJSONGenerator{err: errors.New("circuit open")})
	if _, err := svc.Generate(context.Background(), "doc", "prompt", "context"); err == nil {
		t.Fatal("expected model error to surface")
	}
}
