package models

// ChatMessage is one entry of the client-supplied conversation history.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content" validate:"max=10000"`
}

// ChatRequest is the body of the chat endpoint.
type ChatRequest struct {
	Message             string        `json:"message" validate:"required,min=1,max=5000"`
	ConversationHistory []ChatMessage `json:"conversationHistory,omitempty" validate:"omitempty,max=50,dive"`
}

// ChatResponse carries the assistant reply with memory annotations stripped.
type ChatResponse struct {
	Output string `json:"output"`
}
