package realtime

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/soriai/sori/internal/audio"
)

// Upstream event types the relay bridge translates.
const (
	EventInputTranscriptDelta     = "conversation.item.input_audio_transcription.delta"
	EventInputTranscriptCompleted = "conversation.item.input_audio_transcription.completed"
	EventOutputTranscriptDelta    = "response.output_audio_transcript.delta"
	EventOutputTranscriptDone     = "response.output_audio_transcript.done"
	EventOutputAudioDelta         = "response.output_audio.delta"
	EventOutputAudioDone          = "response.output_audio.done"
	EventResponseDone             = "response.done"
)

type Usage struct {
	TotalTokens int `json:"total_tokens"`
}

type responseBody struct {
	Usage *Usage `json:"usage"`
}

// Event is one decoded upstream server event. Unknown event types are
// delivered as-is and skipped by the bridge.
type Event struct {
	Type       string          `json:"type"`
	Delta      json.RawMessage `json:"delta,omitempty"`
	Transcript string          `json:"transcript,omitempty"`
	Text       string          `json:"text,omitempty"`
	Usage      *Usage          `json:"usage,omitempty"`
	Response   *responseBody   `json:"response,omitempty"`
}

// DeltaText extracts a text delta; the field is either a bare string
// or an object carrying a "text" key.
func (e *Event) DeltaText() string {
	if len(e.Delta) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(e.Delta, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(e.Delta, &obj); err == nil {
		return strings.TrimSpace(obj.Text)
	}
	return ""
}

// DeltaAudio decodes a base64 audio delta to raw PCM.
func (e *Event) DeltaAudio() ([]byte, error) {
	if len(e.Delta) == 0 {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(e.Delta, &s); err != nil {
		return nil, err
	}
	return audio.DecodePCM(s)
}

// TotalTokens reads usage totals from either the event itself
// (transcription.completed) or the embedded response (response.done).
func (e *Event) TotalTokens() int {
	if e.Usage != nil {
		return e.Usage.TotalTokens
	}
	if e.Response != nil && e.Response.Usage != nil {
		return e.Response.Usage.TotalTokens
	}
	return 0
}

// SessionConfig is negotiated once on connect via session.update.
type SessionConfig struct {
	Model              string
	TranscriptionModel string
	Voice              string
	Instructions       string
	SampleRate         int
}

// Session is one live upstream realtime connection. Events() is closed
// when the upstream stream ends for any reason.
type Session interface {
	UpdateInstructions(instructions string) error
	AppendAudio(pcm []byte) error
	Events() <-chan Event
	Close() error
}

// Dialer opens upstream sessions; faked in tests.
type Dialer interface {
	Dial(ctx context.Context, cfg SessionConfig) (Session, error)
}
