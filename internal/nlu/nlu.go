package nlu

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"sync"

	openai "github.com/openai/openai-go/v3"

	"jarvis/internal/domain"
)

// DefaultMaxHistory is the number of user and assistant messages kept
// between turns, excluding the system prompt.
const DefaultMaxHistory = 20

type PersonalitySource interface {
	Personality() domain.Personality
}

// Memory renders remembered facts for the system prompt.
type Memory interface {
	ContextPrompt() string
}

type Config struct {
	Model      string
	MaxHistory int
	MaxTokens  int64
}

// Responder answers open-ended utterances through the chat completions API.
type Responder struct {
	client      openai.Client
	cfg         Config
	personality PersonalitySource
	memory      Memory

	mu      sync.Mutex
	history []openai.ChatCompletionMessageParamUnion
}

func NewResponder(client openai.Client, cfg Config, personality PersonalitySource, memory Memory) *Responder {
	if cfg.Model == "" {
		cfg.Model = string(openai.ChatModelGPT4oMini)
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = DefaultMaxHistory
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 150
	}
	return &Responder{
		client:      client,
		cfg:         cfg,
		personality: personality,
		memory:      memory,
	}
}

func (r *Responder) Reply(ctx context.Context, text string) (string, error) {
	r.mu.Lock()
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(r.history)+2)
	msgs = append(msgs, openai.SystemMessage(SystemPrompt(r.currentPersonality(), r.memoryPrompt())))
	msgs = append(msgs, r.history...)
	msgs = append(msgs, openai.UserMessage(text))
	r.mu.Unlock()

	resp, err := r.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages:            msgs,
		Model:               openai.ChatModel(r.cfg.Model),
		Temperature:         openai.Float(0.7),
		TopP:                openai.Float(0.9),
		MaxCompletionTokens: openai.Int(r.cfg.MaxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices in response")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("empty message content")
	}

	log.Debug("Responder replied", "chars", len(content))

	r.mu.Lock()
	r.history = append(r.history, openai.UserMessage(text), openai.AssistantMessage(content))
	if over := len(r.history) - r.cfg.MaxHistory; over > 0 {
		r.history = append([]openai.ChatCompletionMessageParamUnion(nil), r.history[over:]...)
	}
	r.mu.Unlock()

	return content, nil
}

// Reset forgets the conversation so far.
func (r *Responder) Reset() {
	r.mu.Lock()
	r.history = nil
	r.mu.Unlock()
}

func (r *Responder) turns() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.history)
}

func (r *Responder) currentPersonality() domain.Personality {
	if r.personality == nil {
		return domain.PersonalityProfessional
	}
	return r.personality.Personality()
}

func (r *Responder) memoryPrompt() string {
	if r.memory == nil {
		return ""
	}
	return r.memory.ContextPrompt()
}
