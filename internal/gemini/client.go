// Package gemini provides a Google Gemini backend for the embedding and
// generation provider interfaces.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloo-solutions/doctalk/internal/domain"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	// DefaultChatModel is the Gemini model used for rewriting and synthesis
	DefaultChatModel = "gemini-1.5-flash-latest"
	// DefaultEmbeddingModel is the Gemini embedding model
	DefaultEmbeddingModel = "text-embedding-004"
	// DefaultEmbeddingDimensions is the dimension of text-embedding-004 vectors
	DefaultEmbeddingDimensions = 768
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when an embedding has unexpected dimensions
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
)

// EmbeddingAPI is the subset of the genai embedding model the client uses.
type EmbeddingAPI interface {
	EmbedContent(ctx context.Context, parts ...genai.Part) (*genai.EmbedContentResponse, error)
}

// Client wraps the Gemini API client.
type Client struct {
	client     *genai.Client
	embedder   EmbeddingAPI
	chatModel  string
	dimensions int
}

type Config struct {
	APIKey         string
	ChatModel      string
	EmbeddingModel string
	// Dimensions is the expected embedding dimension. Zero means the
	// model default.
	Dimensions int
}

// NewClient creates a Gemini client with default models.
func NewClient(ctx context.Context, apiKey string) (*Client, error) {
	return NewClientWithConfig(ctx, Config{APIKey: apiKey})
}

// NewClientWithConfig creates a Gemini client with explicit configuration.
func NewClientWithConfig(ctx context.Context, cfg Config) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	chatModel := cfg.ChatModel
	if chatModel == "" {
		chatModel = DefaultChatModel
	}
	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}
	dimensions := cfg.Dimensions
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}

	return &Client{
		client:     client,
		embedder:   client.EmbeddingModel(embeddingModel),
		chatModel:  chatModel,
		dimensions: dimensions,
	}, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// GenerateEmbedding generates an embedding for the given text
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	res, err := c.embedder.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, domain.NewEmbeddingError(err)
	}

	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, domain.NewEmbeddingError(errors.New("no embedding data returned"))
	}

	if len(res.Embedding.Values) != c.dimensions {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrWrongDimensions, c.dimensions, len(res.Embedding.Values))
	}

	return res.Embedding.Values, nil
}

// GenerateText produces a completion for the given system instruction,
// conversation history, and user prompt.
func (c *Client) GenerateText(ctx context.Context, system string, history []domain.Turn, prompt string) (string, error) {
	if prompt == "" {
		return "", ErrEmptyText
	}

	model := c.client.GenerativeModel(c.chatModel)
	if system != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(system)},
		}
	}

	session := model.StartChat()
	session.History = historyToContents(history)

	resp, err := session.SendMessage(ctx, genai.Text(prompt))
	if err != nil {
		return "", domain.NewGenerationError(err)
	}

	text := candidateText(resp)
	if text == "" {
		return "", domain.NewGenerationError(errors.New("empty response from model"))
	}

	return text, nil
}

func historyToContents(history []domain.Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, turn := range history {
		role := "user"
		if turn.Role == domain.RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(turn.Content)},
		})
	}
	return contents
}

func candidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return b.String()
}
