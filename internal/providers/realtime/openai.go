package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/soriai/sori/internal/audio"
)

const (
	defaultRealtimeModel = "gpt-4o-mini-realtime-preview"
	defaultRealtimeURL   = "wss://api.openai.com/v1/realtime"
	defaultVoice         = "alloy"
)

// OpenAIDialer connects to the OpenAI Realtime API over WebSocket.
type OpenAIDialer struct {
	APIKey  string
	BaseURL string
}

func NewOpenAIDialer(apiKey string) *OpenAIDialer {
	return &OpenAIDialer{APIKey: apiKey, BaseURL: defaultRealtimeURL}
}

func (d *OpenAIDialer) Dial(ctx context.Context, cfg SessionConfig) (Session, error) {
	model := cfg.Model
	if model == "" {
		model = defaultRealtimeModel
	}
	if cfg.Voice == "" {
		cfg.Voice = defaultVoice
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 24000
	}

	base := d.BaseURL
	if base == "" {
		base = defaultRealtimeURL
	}

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+d.APIKey)

	dialer := websocket.Dialer{Subprotocols: []string{"realtime"}}
	conn, _, err := dialer.DialContext(ctx, base+"?model="+model, headers)
	if err != nil {
		return nil, err
	}

	s := &openaiSession{
		conn:   conn,
		events: make(chan Event, 64),
		closed: make(chan struct{}),
	}

	if err := s.sendSessionUpdate(model, cfg); err != nil {
		_ = conn.Close()
		return nil, err
	}

	go s.readLoop()
	return s, nil
}

type openaiSession struct {
	conn      *websocket.Conn
	events    chan Event
	closed    chan struct{}
	closeOnce sync.Once
	writeMu   sync.Mutex
}

func (s *openaiSession) Events() <-chan Event { return s.events }

func (s *openaiSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		err = s.conn.Close()
	})
	return err
}

func (s *openaiSession) UpdateInstructions(instructions string) error {
	return s.send(map[string]any{
		"type": "session.update",
		"session": map[string]any{
			"instructions": instructions,
		},
	})
}

func (s *openaiSession) AppendAudio(pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}
	// Server-side VAD commits the buffer; append is all we send.
	return s.send(map[string]any{
		"type":  "input_audio_buffer.append",
		"audio": audio.EncodePCM(pcm),
	})
}

// sendSessionUpdate negotiates model, PCM formats, transcription model
// and server VAD turn detection, plus the session's base instruction.
func (s *openaiSession) sendSessionUpdate(model string, cfg SessionConfig) error {
	return s.send(map[string]any{
		"type": "session.update",
		"session": map[string]any{
			"type":         "realtime",
			"model":        model,
			"instructions": cfg.Instructions,
			"audio": map[string]any{
				"input": map[string]any{
					"format": map[string]any{
						"type": "audio/pcm",
						"rate": cfg.SampleRate,
					},
					"transcription": map[string]any{
						"model": cfg.TranscriptionModel,
					},
					"turn_detection": map[string]any{
						"type": "server_vad",
					},
				},
				"output": map[string]any{
					"format": map[string]any{
						"type": "audio/pcm",
						"rate": cfg.SampleRate,
					},
					"voice": cfg.Voice,
				},
			},
		},
	})
}

func (s *openaiSession) send(event map[string]any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(event)
}

func (s *openaiSession) readLoop() {
	defer close(s.events)

	for {
		select {
		case <-s.closed:
			return
		default:
		}

		msgType, message, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var event Event
		if err := json.Unmarshal(message, &event); err != nil {
			continue
		}

		select {
		case <-s.closed:
			return
		case s.events <- event:
		}
	}
}
