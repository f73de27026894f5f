// Package answer implements the "ask" contract's external handoff half:
// given a question and the chunks search already retrieved, assemble a
// context string and hand it to a chat-completion backend.
package answer

import (
	"context"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/raghavvag/lucidfiles/internal/apperror"
	"github.com/raghavvag/lucidfiles/internal/search"
)

// ErrNotConfigured is returned by the no-op Answerer; ask() still does the
// retrieval half and assembles context, but has nowhere to send it.
var ErrNotConfigured = errors.New("no chat completion backend configured")

// Answerer hands an assembled context plus a question to an external chat
// completion service. The retrieval half (search) is the core's job; this
// interface is the explicitly out-of-scope LLM call.
type Answerer interface {
	Answer(ctx context.Context, question, context string) (string, error)
}

// NoopAnswerer always fails with ErrNotConfigured, for deployments that
// want the search/context-assembly half without wiring a chat backend.
type NoopAnswerer struct{}

func (NoopAnswerer) Answer(ctx context.Context, question, context string) (string, error) {
	return "", ErrNotConfigured
}

// OpenAIAnswerer calls an OpenAI-compatible chat completion endpoint.
type OpenAIAnswerer struct {
	client *openai.Client
	model  string
}

// NewOpenAIAnswerer builds an OpenAIAnswerer. model defaults to GPT-4o-mini
// when empty.
func NewOpenAIAnswerer(apiKey, model string) *OpenAIAnswerer {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIAnswerer{client: openai.NewClient(apiKey), model: model}
}

func (a *OpenAIAnswerer) Answer(ctx context.Context, question, contextText string) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				Content: "Answer the question using only the provided context. " +
					"If the context does not contain the answer, say so.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: "Context:\n" + contextText + "\n\nQuestion: " + question,
			},
		},
	})
	if err != nil {
		return "", apperror.New(apperror.KindEmbeddingFailure, err)
	}
	if len(resp.Choices) == 0 {
		return "", apperror.Newf(apperror.KindEmbeddingFailure, "chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// AssembleContext joins ranked search hits into the context string ask()
// hands to the Answerer, in rank order.
func AssembleContext(hits []search.Hit) string {
	var b strings.Builder
	for i, h := range hits {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(h.FilePath)
		b.WriteString(":\n")
		b.WriteString(h.Chunk)
	}
	return b.String()
}

// Ask runs search(question, top_k) then hands the assembled context and
// question to the Answerer. searcher is *search.Service narrowed to the
// one method this needs.
func Ask(ctx context.Context, searcher Searcher, answerer Answerer, question string, topK int) (string, []search.Hit, error) {
	hits, err := searcher.Search(ctx, question, topK)
	if err != nil {
		return "", nil, err
	}
	contextText := AssembleContext(hits)
	text, err := answerer.Answer(ctx, question, contextText)
	if err != nil {
		return "", hits, err
	}
	return text, hits, nil
}

// Searcher is the subset of *search.Service Ask needs.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]search.Hit, error)
}
