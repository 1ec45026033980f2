package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/polymorphcorp/profilegpt/internal/domain"
)

// ErrNotConfigured is returned when no API key was provided. The server
// still starts; the conversational surface fails at first use.
var ErrNotConfigured = errors.New("openai api key is not configured")

type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

type Completion struct {
	Content string
	Model   string
	Usage   Usage
}

type ScopeResult struct {
	Scope string // domain.ScopeIn or domain.ScopeOut
	Model string
	Usage Usage
}

type JobFit struct {
	FitScore  int      `json:"fit_score"`
	Summary   string   `json:"summary"`
	Strengths []string `json:"strengths"`
	Gaps      []string `json:"gaps"`
}

type JobFitResult struct {
	JobFit
	Model string `json:"-"`
	Usage Usage  `json:"-"`
}

// Client wraps the hosted model API for the three call types: intent
// classification, persona conversation and job vetting.
type Client struct {
	api     *openai.Client
	model   string
	persona *PersonaSource
	logger  *slog.Logger
}

func NewClient(apiKey, model string, persona *PersonaSource, logger *slog.Logger) *Client {
	if model == "" {
		model = openai.GPT4oMini
	}
	c := &Client{model: model, persona: persona, logger: logger}
	if apiKey == "" {
		logger.Warn("OPENAI_API_KEY not set, conversational calls will fail")
		return c
	}
	c.api = openai.NewClient(apiKey)
	return c
}

// ClassifyIntent asks the model whether the message is about the persona's
// professional background. Callers treat an error as IN_SCOPE (safe
// fallback to the full conversation).
func (c *Client) ClassifyIntent(ctx context.Context, message string) (*ScopeResult, error) {
	if c.api == nil {
		return nil, ErrNotConfigured
	}

	system := "You are a strict intent classifier for a professional-profile assistant. " +
		"Reply with exactly IN_SCOPE if the question concerns the subject's career, skills, projects, " +
		"work history, expertise or working style, and exactly OUT_OF_SCOPE otherwise."
	if names := c.persona.CompanyNames(); len(names) > 0 {
		system += " Questions mentioning these employers are in scope: " + strings.Join(names, ", ") + "."
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: message},
		},
		MaxTokens:   10,
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("classify intent: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("classify intent: no choices returned")
	}

	scope := domain.ScopeIn
	if strings.Contains(resp.Choices[0].Message.Content, domain.ScopeOut) {
		scope = domain.ScopeOut
	}
	return &ScopeResult{
		Scope: scope,
		Model: resp.Model,
		Usage: Usage{PromptTokens: resp.Usage.PromptTokens, CompletionTokens: resp.Usage.CompletionTokens},
	}, nil
}

// Respond runs the full persona conversation. The history already contains
// the latest user turn.
func (c *Client) Respond(ctx context.Context, history []domain.Turn) (*Completion, error) {
	if c.api == nil {
		return nil, ErrNotConfigured
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: c.persona.Load(),
	})
	for _, turn := range history {
		messages = append(messages, openai.ChatCompletionMessage{Role: turn.Role, Content: turn.Content})
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   500,
		Temperature: 0.7,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion: no choices returned")
	}
	return &Completion{
		Content: resp.Choices[0].Message.Content,
		Model:   resp.Model,
		Usage:   Usage{PromptTokens: resp.Usage.PromptTokens, CompletionTokens: resp.Usage.CompletionTokens},
	}, nil
}

// EvaluateJobDescription scores a job description against the persona.
func (c *Client) EvaluateJobDescription(ctx context.Context, jobDescription string) (*JobFitResult, error) {
	if c.api == nil {
		return nil, ErrNotConfigured
	}

	system := c.persona.Load() + "\n\n" +
		"Evaluate how well the subject matches the job description the user provides. " +
		`Respond with a JSON object: {"fit_score": 0-100, "summary": "...", "strengths": [...], "gaps": [...]}.`

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: jobDescription},
		},
		MaxTokens:   500,
		Temperature: 0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("evaluate job description: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("evaluate job description: no choices returned")
	}

	result := &JobFitResult{
		Model: resp.Model,
		Usage: Usage{PromptTokens: resp.Usage.PromptTokens, CompletionTokens: resp.Usage.CompletionTokens},
	}
	content := stripCodeFence(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &result.JobFit); err != nil {
		// Model ignored the JSON instruction; surface the raw text.
		c.logger.Warn("job fit response was not valid JSON", "error", err)
		result.JobFit = JobFit{Summary: strings.TrimSpace(resp.Choices[0].Message.Content)}
	}
	return result, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
