package gemini

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/bunko/bunko/pkg/inference"
)

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(context.Background(), ClientConfig{})
	assert.ErrorIs(t, err, inference.ErrProviderNotAvailable)
}

func TestBuildContents(t *testing.T) {
	contents, config := buildContents(inference.ChatRequest{
		System: "規則",
		Messages: []inference.Message{
			{Role: inference.RoleUser, Content: "質問"},
			{Role: inference.RoleAssistant, Content: "回答"},
			{Role: inference.RoleUser, Content: "続き"},
		},
		Temperature: 0.2,
		MaxTokens:   256,
	})

	require.Len(t, contents, 3)
	assert.Equal(t, string(genai.RoleUser), contents[0].Role)
	assert.Equal(t, string(genai.RoleModel), contents[1].Role)
	assert.Equal(t, "回答", contents[1].Parts[0].Text)

	require.NotNil(t, config.SystemInstruction)
	assert.Equal(t, "規則", config.SystemInstruction.Parts[0].Text)
	require.NotNil(t, config.Temperature)
	assert.InDelta(t, 0.2, *config.Temperature, 1e-6)
	assert.EqualValues(t, 256, config.MaxOutputTokens)
}

func TestToChunk(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Parts: []*genai.Part{{Text: "吾輩は"}, {Text: "猫である"}}},
			FinishReason: genai.FinishReasonStop,
		}},
	}

	chunk := toChunk(resp)
	assert.Equal(t, "吾輩は猫である", chunk.Content)
	assert.True(t, chunk.Done)

	assert.Equal(t, inference.ChatChunk{}, toChunk(nil))
}
