package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pavelanni/revision/internal/evaluate"
	"github.com/pavelanni/revision/internal/llm/prompts"
	"github.com/pavelanni/revision/internal/model"
)

const (
	generateSystemPrompt = "You are a quiz generator. Output MUST be valid JSON only. Do not include markdown, code fences, or any extra text."
	judgeSystemPrompt    = "You are an expert educator. Respond only with valid JSON."

	generateTemperature = 0.8
	generateMaxTokens   = 2000
	judgeTemperature    = 0.3
	judgeMaxTokens      = 500
)

// ErrEmptyResponse is returned when the provider answers without content.
var ErrEmptyResponse = errors.New("LLM returned no content")

// Recorder stores a copy of every provider exchange.
type Recorder interface {
	RecordExchange(ctx context.Context, ex model.Exchange) error
}

// Config describes one OpenAI-compatible provider.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	JudgeModel string            // defaults to Model
	Headers    map[string]string // extra request headers, e.g. HTTP-Referer and X-Title for OpenRouter
	JSONMode   bool              // request response_format=json_object
	Variant    prompts.Variant   // judge prompt variant
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api        *openai.Client
	model      string
	judgeModel string
	jsonMode   bool
	variant    prompts.Variant
	recorder   Recorder
}

// New creates a new LLM client.
func New(cfg Config) *Client {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	if len(cfg.Headers) > 0 {
		config.HTTPClient = &http.Client{Transport: &headerTransport{headers: cfg.Headers, next: http.DefaultTransport}}
	}
	judgeModel := cfg.JudgeModel
	if judgeModel == "" {
		judgeModel = cfg.Model
	}
	variant := cfg.Variant
	if variant == "" {
		variant = prompts.VariantStandard
	}
	return &Client{
		api:        openai.NewClientWithConfig(config),
		model:      cfg.Model,
		judgeModel: judgeModel,
		jsonMode:   cfg.JSONMode,
		variant:    variant,
	}
}

// SetRecorder makes the client log every exchange to r.
func (c *Client) SetRecorder(r Recorder) {
	c.recorder = r
}

// Model returns the generation model name.
func (c *Client) Model() string {
	return c.model
}

// Generate sends a rendered generation prompt and returns the raw reply.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.complete(ctx, model.ExchangeGenerate, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: generateSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: generateTemperature,
		MaxTokens:   generateMaxTokens,
		TopP:        1,
	})
}

// Judge asks the judge model to grade one open-ended answer. The reply is
// returned unparsed.
func (c *Client) Judge(ctx context.Context, req evaluate.Request) (string, error) {
	prompt, err := prompts.BuildJudgePrompt(c.variant, req.Question, req.UserAnswer, req.CorrectAnswer, req.QuestionType)
	if err != nil {
		return "", fmt.Errorf("build judge prompt: %w", err)
	}
	return c.complete(ctx, model.ExchangeJudge, openai.ChatCompletionRequest{
		Model: c.judgeModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: judgeSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: judgeTemperature,
		MaxTokens:   judgeMaxTokens,
	})
}

// Ping checks that the provider is reachable and the key is accepted.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("LLM list models: %w", err)
	}
	return nil
}

func (c *Client) complete(ctx context.Context, kind string, req openai.ChatCompletionRequest) (string, error) {
	if c.jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	start := time.Now()
	raw, err := c.send(ctx, req)
	c.record(ctx, model.Exchange{
		Kind:     kind,
		Model:    req.Model,
		Prompt:   req.Messages[len(req.Messages)-1].Content,
		Response: raw,
		Error:    errString(err),
		Duration: time.Since(start),
	})
	if err != nil {
		return "", err
	}
	slog.Debug("LLM response", "kind", kind, "raw", raw)
	return raw, nil
}

func (c *Client) send(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) record(ctx context.Context, ex model.Exchange) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.RecordExchange(context.WithoutCancel(ctx), ex); err != nil {
		slog.Warn("record LLM exchange", "error", err)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// headerTransport adds fixed headers to every request.
type headerTransport struct {
	headers map[string]string
	next    http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.next.RoundTrip(req)
}
