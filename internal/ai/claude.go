// Package ai implements memo analysis and question answering on Anthropic
// Claude.
package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/apptype"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "claude-haiku-4-5-20251001"

const (
	analyzeMaxTokens = 1024
	searchMaxTokens  = 2048
)

const analyzeSystemPrompt = "You are a careful note-organizing assistant. " +
	"Summarize the user's text and pick relevant tags. " +
	"Reply with JSON only and no other text. " +
	`Format: {"summary": "summary text", "tags": ["tag1", "tag2"]}`

const searchSystemPrompt = "You are a careful note-search assistant. " +
	"You are given the user's memos and a search query. " +
	"Find the memos that are contextually related to the query and answer it. " +
	"Reply with JSON only and no other text. " +
	`Format: {"answer": "answer text", "related_memo_ids": ["id1", "id2"]}`

// Config configures the Claude client.
type Config struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint; empty uses the SDK default.
	BaseURL string
}

// Client analyzes memos and answers search queries with Claude.
type Client struct {
	api    anthropic.Client
	model  string
	logger *zap.Logger
}

// NewClient returns a Client. Requests are not retried.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Client{api: anthropic.NewClient(opts...), model: model, logger: logger}, nil
}

func (c *Client) complete(ctx context.Context, system, user string, maxTokens int64) (string, error) {
	resp, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxTokens,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("claude API error: %w", err)
	}
	for _, block := range resp.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", errors.New("claude response has no text block")
}

// Analyze returns a summary and tags for content.
func (c *Client) Analyze(ctx context.Context, content string) (apptype.AnalysisResult, error) {
	text, err := c.complete(ctx, analyzeSystemPrompt, content, analyzeMaxTokens)
	if err != nil {
		return apptype.AnalysisResult{}, err
	}
	var parsed struct {
		Summary *string  `json:"summary"`
		Tags    []string `json:"tags"`
	}
	if err := ExtractJSON(text, &parsed); err != nil {
		c.logger.Warn("unparseable analysis reply", zap.Error(err))
		return apptype.AnalysisResult{}, errors.Wrap(err, "analyze memo")
	}
	if parsed.Summary == nil {
		return apptype.AnalysisResult{}, errors.New("analyze memo: reply has no summary")
	}
	tags := parsed.Tags
	if tags == nil {
		tags = []string{}
	}
	return apptype.AnalysisResult{Summary: *parsed.Summary, Tags: tags}, nil
}

// Search answers query using memos as context.
func (c *Client) Search(ctx context.Context, query string, memos []apptype.Memo) (apptype.SearchResult, error) {
	user := fmt.Sprintf("## Memos\n%s\n\n## Query\n%s", FormatMemos(memos), query)
	text, err := c.complete(ctx, searchSystemPrompt, user, searchMaxTokens)
	if err != nil {
		return apptype.SearchResult{}, err
	}
	var parsed struct {
		Answer         *string  `json:"answer"`
		RelatedMemoIDs []string `json:"related_memo_ids"`
	}
	if err := ExtractJSON(text, &parsed); err != nil {
		c.logger.Warn("unparseable search reply", zap.Error(err))
		return apptype.SearchResult{}, errors.Wrap(err, "search memos")
	}
	if parsed.Answer == nil {
		return apptype.SearchResult{}, errors.New("search memos: reply has no answer")
	}
	ids := parsed.RelatedMemoIDs
	if ids == nil {
		ids = []string{}
	}
	return apptype.SearchResult{Answer: *parsed.Answer, RelatedMemoIDs: ids}, nil
}

// FormatMemos renders memos as the context block of a search prompt.
func FormatMemos(memos []apptype.Memo) string {
	parts := make([]string, len(memos))
	for i, m := range memos {
		summary := m.Summary
		if summary == "" {
			summary = "not generated"
		}
		parts[i] = fmt.Sprintf("ID: %s\nContent: %s\nSummary: %s\nTags: %s",
			m.ID, m.Content, summary, strings.Join(m.Tags, ", "))
	}
	return strings.Join(parts, "\n---\n")
}
