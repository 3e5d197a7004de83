package models

// QuizQuestion follows the MCQ schema the generation prompt demands:
// exactly four options, one answer key (a-d), a short explanation and an
// always-empty User_response slot the frontend fills in.
type QuizQuestion struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	Answer       string   `json:"answer"`
	Explanation  string   `json:"explanation"`
	UserResponse string   `json:"User_response"`
}

type QuizOutput struct {
	Quiz []QuizQuestion `json:"quiz"`
}

type QuizRequest struct {
	ParsedDoc  string `json:"parsed_doc" binding:"required"`
	UserPrompt string `json:"user_prompt" binding:"required"`
}

// IngestRequest pushes an already-parsed document straight into the index.
type IngestRequest struct {
	ParsedDoc  string `json:"parsed_doc" binding:"required"`
	UserPrompt string `json:"user_prompt"`
	ID         string `json:"id"`
}

type IngestResponse struct {
	Status       string `json:"status"`
	ID           string `json:"id"`
	StoredPrompt string `json:"stored_prompt"`
}
