package relay

import "encoding/json"

// Frame is one inbound transport frame: binary frames carry raw PCM,
// text frames carry one JSON client event.
type Frame struct {
	Binary bool
	Data   []byte
}

// Conn is the client transport as the relay sees it. Implementations
// must serialize writes; the main loop and the bridge task both send.
type Conn interface {
	ReadFrame() (Frame, error)
	WriteJSON(v any) error
	WriteBinary(data []byte) error
	Close() error
}

const (
	eventConfig     = "config"
	eventChat       = "chat"
	eventSend       = "send"
	eventDisconnect = "disconnect"
)

// clientEvent is the closed set of inbound text events. Anything that
// does not decode into one of the four types is dropped at this
// boundary.
type clientEvent struct {
	Type             string `json:"type"`
	SessionID        string `json:"session_id"`
	Mode             string `json:"mode"`
	SampleRate       int    `json:"sampleRate"`
	ClientSampleRate int    `json:"clientSampleRate"`
	ChatbotID        int64  `json:"chatbot_id"`
	Text             string `json:"text"`
}

func decodeClientEvent(data []byte) (*clientEvent, bool) {
	var ev clientEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, false
	}
	switch ev.Type {
	case eventConfig, eventChat, eventSend, eventDisconnect:
		return &ev, true
	default:
		return nil, false
	}
}

// serverText is an outbound stt_text / gpt_text frame.
type serverText struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	Partial *bool  `json:"partial,omitempty"`
}

func partialFlag(v bool) *bool { return &v }
