package openai

import (
	"context"
	"errors"
	"testing"

	"github.com/cloo-solutions/doctalk/internal/domain"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockEmbeddingAPI struct {
	embedding []float32
	err       error
	lastText  string
}

func (m *mockEmbeddingAPI) CreateEmbeddings(ctx context.Context, text string) ([]float32, error) {
	m.lastText = text
	if m.err != nil {
		return nil, m.err
	}
	return m.embedding, nil
}

type mockChatAPI struct {
	response string
	err      error
	lastReq  openai.ChatCompletionRequest
	noChoice bool
}

func (m *mockChatAPI) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.lastReq = req
	if m.err != nil {
		return openai.ChatCompletionResponse{}, m.err
	}
	if m.noChoice {
		return openai.ChatCompletionResponse{}, nil
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: m.response}},
		},
	}, nil
}

func newTestClient(emb EmbeddingAPI, chat ChatAPI, dims int) *Client {
	return &Client{
		embeddings: emb,
		chat:       chat,
		chatModel:  DefaultChatModel,
		dimensions: dims,
	}
}

func TestGenerateEmbedding(t *testing.T) {
	ctx := context.Background()

	t.Run("returns embedding", func(t *testing.T) {
		api := &mockEmbeddingAPI{embedding: make([]float32, 1536)}
		client := newTestClient(api, nil, 1536)

		got, err := client.GenerateEmbedding(ctx, "hello")
		require.NoError(t, err)
		assert.Len(t, got, 1536)
		assert.Equal(t, "hello", api.lastText)
	})

	t.Run("rejects empty text", func(t *testing.T) {
		client := newTestClient(&mockEmbeddingAPI{}, nil, 1536)

		_, err := client.GenerateEmbedding(ctx, "")
		assert.ErrorIs(t, err, ErrEmptyText)
	})

	t.Run("wraps provider failure as embedding error", func(t *testing.T) {
		api := &mockEmbeddingAPI{err: errors.New("rate limited")}
		client := newTestClient(api, nil, 1536)

		_, err := client.GenerateEmbedding(ctx, "hello")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrEmbeddingFailed)
		assert.Contains(t, err.Error(), "rate limited")
	})

	t.Run("rejects wrong dimensions", func(t *testing.T) {
		api := &mockEmbeddingAPI{embedding: make([]float32, 42)}
		client := newTestClient(api, nil, 1536)

		_, err := client.GenerateEmbedding(ctx, "hello")
		assert.ErrorIs(t, err, ErrWrongDimensions)
	})
}

func TestGenerateText(t *testing.T) {
	ctx := context.Background()

	t.Run("composes system, history, and prompt", func(t *testing.T) {
		chat := &mockChatAPI{response: "Paris."}
		client := newTestClient(nil, chat, 1536)

		history := []domain.Turn{
			{Role: domain.RoleUser, Content: "Who wrote Hamlet?"},
			{Role: domain.RoleAssistant, Content: "Shakespeare."},
		}

		answer, err := client.GenerateText(ctx, "answer only from context", history, "When was he born?")
		require.NoError(t, err)
		assert.Equal(t, "Paris.", answer)

		msgs := chat.lastReq.Messages
		require.Len(t, msgs, 4)
		assert.Equal(t, openai.ChatMessageRoleSystem, msgs[0].Role)
		assert.Equal(t, openai.ChatMessageRoleUser, msgs[1].Role)
		assert.Equal(t, openai.ChatMessageRoleAssistant, msgs[2].Role)
		assert.Equal(t, "When was he born?", msgs[3].Content)
	})

	t.Run("omits system message when empty", func(t *testing.T) {
		chat := &mockChatAPI{response: "ok"}
		client := newTestClient(nil, chat, 1536)

		_, err := client.GenerateText(ctx, "", nil, "question")
		require.NoError(t, err)
		require.Len(t, chat.lastReq.Messages, 1)
		assert.Equal(t, openai.ChatMessageRoleUser, chat.lastReq.Messages[0].Role)
	})

	t.Run("wraps provider failure as generation error", func(t *testing.T) {
		chat := &mockChatAPI{err: errors.New("quota exceeded")}
		client := newTestClient(nil, chat, 1536)

		_, err := client.GenerateText(ctx, "sys", nil, "question")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrGenerationFailed)
	})

	t.Run("empty choices is a generation error", func(t *testing.T) {
		chat := &mockChatAPI{noChoice: true}
		client := newTestClient(nil, chat, 1536)

		_, err := client.GenerateText(ctx, "sys", nil, "question")
		assert.ErrorIs(t, err, domain.ErrGenerationFailed)
	})

	t.Run("rejects empty prompt", func(t *testing.T) {
		client := newTestClient(nil, &mockChatAPI{}, 1536)

		_, err := client.GenerateText(ctx, "sys", nil, "")
		assert.ErrorIs(t, err, ErrEmptyText)
	})
}
