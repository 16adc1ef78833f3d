package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/SatyaChamana/Codelens/internal/llm"
	"github.com/SatyaChamana/Codelens/internal/retriever"
	"github.com/SatyaChamana/Codelens/internal/store"
)

const systemPrompt = `You are a code intelligence assistant. You answer questions about a codebase using the retrieved source code context provided below.

Focus on answering how, why, and where questions about the code. Explain architecture, data flow, and relationships between components. Reference specific file paths and line numbers when relevant.

Do not generate new code unless explicitly asked. Keep answers concise and grounded in the provided context. If the context doesn't contain enough information to answer, say so.`

// NoContextAnswer is returned when retrieval finds nothing above the
// similarity floor.
const NoContextAnswer = "No relevant code found in the indexed repository for this question."

// Engine glues retrieval and generation for one repository.
type Engine struct {
	retriever *retriever.Retriever
	chat      llm.Chat
}

// New creates an Engine over an existing retriever and chat client.
func New(r *retriever.Retriever, chat llm.Chat) *Engine {
	return &Engine{retriever: r, chat: chat}
}

// Answer holds a generated response with the chunks that grounded it.
type Answer struct {
	Text    string
	Sources []retriever.Result
}

// Ask retrieves context for one question and generates an answer.
// History is the prior conversation as an ordered message log; it is
// passed through to the model, never folded into retrieval state.
func (e *Engine) Ask(ctx context.Context, collection, question string, history []llm.Message, req retriever.Request) (*Answer, error) {
	req.Collection = collection
	req.Query = question
	results, err := e.retriever.Retrieve(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return &Answer{Text: NoContextAnswer}, nil
	}

	msgs := BuildMessages(results, history, question)
	text, err := e.chat.Generate(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	return &Answer{Text: text, Sources: results}, nil
}

// BuildMessages constructs the message list for the LLM from retrieved
// chunks, conversation history, and the current question.
func BuildMessages(results []retriever.Result, history []llm.Message, question string) []llm.Message {
	msgs := []llm.Message{{Role: "system", Content: systemPrompt}}

	if len(results) > 0 {
		var b strings.Builder
		b.WriteString("Here is the relevant source code context:\n\n")
		for i, r := range results {
			b.WriteString(formatChunkHeader(i+1, r.Entry))
			b.WriteString(r.Entry.Text)
			b.WriteString("\n\n")
		}
		msgs = append(msgs, llm.Message{Role: "user", Content: b.String()})
		msgs = append(msgs, llm.Message{Role: "assistant", Content: "I've reviewed the code context. What would you like to know?"})
	}

	msgs = append(msgs, history...)
	msgs = append(msgs, llm.Message{Role: "user", Content: question})
	return msgs
}

func formatChunkHeader(n int, e store.Entry) string {
	label := e.UnitType
	if e.Summary {
		label = "file summary"
	}
	return fmt.Sprintf("--- Chunk %d: %s [%s %s] (lines %d-%d, %s) ---\n",
		n, e.FilePath, label, e.Name, e.StartLine, e.EndLine, e.Language)
}
