package models

// ChatTurn is one entry of caller-supplied conversation history.
type ChatTurn struct {
	Role    string `json:"role" binding:"required,oneof=user assistant system"`
	Content string `json:"content" binding:"required,min=1"`
}

// StreamChatRequest drives the stateless /stream_chat endpoint: the caller
// owns the history, nothing is persisted.
type StreamChatRequest struct {
	Messages  []ChatTurn `json:"messages" binding:"required,min=1,dive"`
	Context   string     `json:"context"`
	SessionID string     `json:"session_id"`
}

// SessionChatRequest drives the session-backed /chat/:session_id endpoint.
type SessionChatRequest struct {
	Prompt string `json:"prompt" binding:"required,min=1,max=8000"`
}
