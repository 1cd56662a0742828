package stt

import (
	"bytes"
	"context"
	"strings"

	"github.com/openai/openai-go/v3"

	"github.com/soriai/sori/internal/audio"
)

const defaultTranscribeModel = "gpt-4o-mini-transcribe"

type OpenAI struct {
	client openai.Client
}

func NewOpenAI(client openai.Client) *OpenAI {
	return &OpenAI{client: client}
}

func (o *OpenAI) Close() error { return nil }

func (o *OpenAI) Transcribe(ctx context.Context, pcm []byte, sampleRate int, model string) (string, int, error) {
	if len(pcm) == 0 {
		return "", 0, nil
	}
	if model == "" {
		model = defaultTranscribeModel
	}

	// The transcription endpoint wants a container, not raw PCM.
	wav := audio.WrapWAV(pcm, sampleRate)

	resp, err := o.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		Model: model,
		File:  openai.File(bytes.NewReader(wav), "audio.wav", "audio/wav"),
	})
	if err != nil {
		return "", 0, err
	}

	return strings.TrimSpace(resp.Text), int(resp.Usage.TotalTokens), nil
}
