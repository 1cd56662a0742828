package tts

import (
	"context"
	"io"
	"strings"

	"github.com/openai/openai-go/v3"
)

const (
	defaultSpeechModel = "gpt-4o-mini-tts"
	defaultVoice       = "coral"
)

type OpenAI struct {
	client openai.Client
}

func NewOpenAI(client openai.Client) *OpenAI {
	return &OpenAI{client: client}
}

func (o *OpenAI) Close() error { return nil }

func (o *OpenAI) Synthesize(ctx context.Context, text, voice, model string) ([]byte, int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, 0, nil
	}
	if model == "" {
		model = defaultSpeechModel
	}
	if voice == "" {
		voice = defaultVoice
	}

	res, err := o.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          model,
		Input:          text,
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatPCM,
	})
	if err != nil {
		return nil, 0, err
	}
	defer res.Body.Close()

	pcm, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, 0, err
	}

	// The speech endpoint reports no usage; bill by input length.
	return pcm, len(text), nil
}
