package tts

import (
	"context"
	"fmt"
	"io"
	"net/http"

	openai "github.com/openai/openai-go/v3"
)

// Player plays an encoded MP3 stream and closes it.
type Player interface {
	PlayMP3(ctx context.Context, rc io.ReadCloser) error
}

// VoiceSource supplies the user's current voice preferences.
type VoiceSource interface {
	Voice() string
	SpeechSpeed() float64
}

const speechInstructions = "Speak as a calm, composed British butler AI. Measured pace, crisp diction, understated warmth."

type speechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	Instructions   string  `json:"instructions,omitempty"`
	ResponseFormat string  `json:"response_format"`
	Speed          float64 `json:"speed,omitempty"`
}

// OpenAI synthesizes speech with the audio/speech endpoint.
type OpenAI struct {
	client openai.Client
	model  string
	voice  VoiceSource
	player Player
}

func NewOpenAI(client openai.Client, model string, voice VoiceSource, player Player) *OpenAI {
	if model == "" {
		model = "gpt-4o-mini-tts"
	}
	return &OpenAI{client: client, model: model, voice: voice, player: player}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Say(ctx context.Context, text string) error {
	req := speechRequest{
		Model:          o.model,
		Input:          text,
		Voice:          "onyx",
		Instructions:   speechInstructions,
		ResponseFormat: "mp3",
	}
	if o.voice != nil {
		if v := o.voice.Voice(); v != "" {
			req.Voice = v
		}
		req.Speed = o.voice.SpeechSpeed()
	}

	var resp *http.Response
	if err := o.client.Post(ctx, "audio/speech", req, &resp); err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}

	return o.player.PlayMP3(ctx, resp.Body)
}
