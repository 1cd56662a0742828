package stt

import "context"

// Provider transcribes one complete utterance of raw 16-bit LE mono
// PCM. tokens is the provider-reported usage total; 0 when the backend
// does not report token counts.
type Provider interface {
	Transcribe(ctx context.Context, pcm []byte, sampleRate int, model string) (text string, tokens int, err error)
	Close() error
}
