package tts

import "context"

// Provider synthesizes speech as raw 16-bit LE mono PCM at 24 kHz,
// ready to be sent to the client as one binary frame.
type Provider interface {
	Synthesize(ctx context.Context, text, voice, model string) (pcm []byte, tokens int, err error)
	Close() error
}
