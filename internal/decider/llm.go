package decider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
	openai "github.com/sashabaranov/go-openai"
)

const defaultSystemPrompt = "You are an autonomous agent in a commercial " +
	"transaction simulation. Respond concisely and always in valid JSON " +
	"when instructed."

// EnvConfig is the LLM decider's environment configuration.
type EnvConfig struct {
	APIKey      string  `env:"PARLEY_LLM_API_KEY"`
	BaseURL     string  `env:"PARLEY_LLM_BASE_URL"`
	Model       string  `env:"PARLEY_LLM_MODEL" envDefault:"gpt-4o-mini"`
	Temperature float32 `env:"PARLEY_LLM_TEMPERATURE" envDefault:"0.3"`
}

// completionAPI is the slice of the openai client the decider uses.
// Tests substitute a fake.
type completionAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// LLM decides by chat completion. Responses are normalized and decoded
// with the prompt's fallback, so a model that rambles degrades to the
// safe default instead of stalling the run.
type LLM struct {
	client      completionAPI
	model       string
	temperature float32
	log         *slog.Logger
}

// NewLLM creates an LLM decider from explicit configuration.
func NewLLM(cfg EnvConfig, log *slog.Logger) (*LLM, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("decider: LLM API key is not set")
	}
	if log == nil {
		log = slog.Default()
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &LLM{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		log:         log.With("component", "llm-decider", "model", cfg.Model),
	}, nil
}

// NewLLMFromEnv creates an LLM decider from PARLEY_LLM_* variables.
func NewLLMFromEnv(log *slog.Logger) (*LLM, error) {
	var cfg EnvConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("decider: parse LLM env config: %w", err)
	}
	return NewLLM(cfg, log)
}

// Decide implements Decider.
//
// Transport errors surface as errors: the caller chooses whether to
// retry or fall back. A response that arrives but does not parse is not
// an error; it decodes to the prompt's fallback.
func (l *LLM) Decide(ctx context.Context, p Prompt) (Outcome, error) {
	system := p.System
	if system == "" {
		system = defaultSystemPrompt
	}

	resp, err := l.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       l.model,
		Temperature: l.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: p.User},
		},
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("decider: chat completion for %s: %w", p.Role, err)
	}
	if len(resp.Choices) == 0 {
		return Outcome{}, fmt.Errorf("decider: empty completion for %s", p.Role)
	}

	out := DecodeOutcome(resp.Choices[0].Message.Content, p.Fallback)
	l.log.Info("llm decision", "role", p.Role, "decision", out.Decision)
	return out, nil
}
