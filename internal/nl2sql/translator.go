package nl2sql

import (
	"context"

	"github.com/askdb/askdb/internal/conversation"
)

const systemInstruction = "You are a helpful assistant that converts natural language to SQL using this schema:\n"

type Request struct {
	SchemaText string
	History    []conversation.Turn
	Question   string
}

// Translator returns the model's raw completion text. It never validates or
// repairs SQL; that is left to the Extractor.
type Translator interface {
	Translate(ctx context.Context, req Request) (string, error)
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// BuildMessages lays out the chat: the system instruction carrying the schema,
// the history in recorded order, then the question as the final user message.
func BuildMessages(req Request) []Message {
	messages := make([]Message, 0, len(req.History)+2)
	messages = append(messages, Message{Role: "system", Content: systemInstruction + req.SchemaText})
	for _, turn := range req.History {
		messages = append(messages, Message{Role: string(turn.Role), Content: turn.Text})
	}
	messages = append(messages, Message{Role: "user", Content: req.Question})
	return messages
}
