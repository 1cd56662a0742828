package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeltaTextShapes(t *testing.T) {
	ev := Event{Delta: json.RawMessage(`"hello "`)}
	require.Equal(t, "hello", ev.DeltaText())

	ev = Event{Delta: json.RawMessage(`{"text":"world"}`)}
	require.Equal(t, "world", ev.DeltaText())

	ev = Event{}
	require.Equal(t, "", ev.DeltaText())

	ev = Event{Delta: json.RawMessage(`[1,2]`)}
	require.Equal(t, "", ev.DeltaText())
}

func TestDeltaAudio(t *testing.T) {
	ev := Event{Delta: json.RawMessage(`"AAEC"`)}
	pcm, err := ev.DeltaAudio()
	require.NoError(t, err)
	require.Equal(t, []byte{0x00, 0x01, 0x02}, pcm)

	ev = Event{Delta: json.RawMessage(`"???"`)}
	_, err = ev.DeltaAudio()
	require.Error(t, err)
}

func TestTotalTokens(t *testing.T) {
	ev := Event{Usage: &Usage{TotalTokens: 10}}
	require.Equal(t, 10, ev.TotalTokens())

	var decoded Event
	require.NoError(t, json.Unmarshal([]byte(`{"type":"response.done","response":{"usage":{"total_tokens":42}}}`), &decoded))
	require.Equal(t, 42, decoded.TotalTokens())

	empty := Event{}
	require.Equal(t, 0, empty.TotalTokens())
}
