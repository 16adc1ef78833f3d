package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SatyaChamana/Codelens/internal/llm"
	"github.com/SatyaChamana/Codelens/internal/retriever"
	"github.com/SatyaChamana/Codelens/internal/store"
)

func TestBuildMessagesOrdering(t *testing.T) {
	results := []retriever.Result{{
		Entry: store.Entry{
			ChunkID:   "c1",
			Text:      "def handler(): pass",
			FilePath:  "app/routes.py",
			UnitType:  "function",
			Name:      "handler",
			Language:  "python",
			StartLine: 10,
			EndLine:   12,
		},
		Score: 0.9,
	}}
	history := []llm.Message{
		{Role: "user", Content: "earlier question"},
		{Role: "assistant", Content: "earlier answer"},
	}

	msgs := BuildMessages(results, history, "what handles requests?")
	require.Len(t, msgs, 6)

	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "user", msgs[1].Role)
	assert.Contains(t, msgs[1].Content, "app/routes.py")
	assert.Contains(t, msgs[1].Content, "lines 10-12")
	assert.Contains(t, msgs[1].Content, "def handler(): pass")
	assert.Equal(t, "assistant", msgs[2].Role)

	// History is an explicit ordered log, passed through untouched.
	assert.Equal(t, history[0], msgs[3])
	assert.Equal(t, history[1], msgs[4])

	assert.Equal(t, llm.Message{Role: "user", Content: "what handles requests?"}, msgs[5])
}

func TestBuildMessagesWithoutContext(t *testing.T) {
	msgs := BuildMessages(nil, nil, "hello")
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "hello", msgs[1].Content)
}

func TestBuildMessagesLabelsSummaryChunks(t *testing.T) {
	results := []retriever.Result{{
		Entry: store.Entry{
			ChunkID:  "s1",
			Text:     "File: app.py\nLanguage: python",
			FilePath: "app.py",
			UnitType: "module",
			Summary:  true,
		},
	}}

	msgs := BuildMessages(results, nil, "what does app.py do?")
	assert.Contains(t, msgs[1].Content, "file summary")
}
