package relay

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/soriai/sori/internal/audio"
	"github.com/soriai/sori/internal/models"
	"github.com/soriai/sori/internal/providers/realtime"
)

type fakeUpstream struct {
	events chan realtime.Event

	mu           sync.Mutex
	instructions []string
	audio        [][]byte
	closed       bool
}

func newFakeUpstream(buf int) *fakeUpstream {
	return &fakeUpstream{events: make(chan realtime.Event, buf)}
}

func (f *fakeUpstream) UpdateInstructions(s string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.instructions = append(f.instructions, s)
	return nil
}

func (f *fakeUpstream) AppendAudio(pcm []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audio = append(f.audio, pcm)
	return nil
}

func (f *fakeUpstream) Events() <-chan realtime.Event { return f.events }

func (f *fakeUpstream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

type fakeDialer struct {
	up   *fakeUpstream
	cfgs []realtime.SessionConfig
}

func (d *fakeDialer) Dial(_ context.Context, cfg realtime.SessionConfig) (realtime.Session, error) {
	d.cfgs = append(d.cfgs, cfg)
	return d.up, nil
}

func rawString(t *testing.T, s string) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(s)
	require.NoError(t, err)
	return b
}

func TestBridgeTranslatesOneExchange(t *testing.T) {
	conn := newFakeConn()
	env := newTestEnv(conn)

	up := newFakeUpstream(16)
	sess := NewSession(conn, "u1", env.deps)
	sess.sessionID = "s1"
	sess.rec.SetLogID(7)
	sess.upstream = up

	replyPCM := append(make([]byte, 50), make([]byte, 30)...)

	up.events <- realtime.Event{Type: realtime.EventInputTranscriptDelta, Delta: rawString(t, "안녕")}
	up.events <- realtime.Event{
		Type:       realtime.EventInputTranscriptCompleted,
		Transcript: "안녕하세요",
		Usage:      &realtime.Usage{TotalTokens: 12},
	}
	up.events <- realtime.Event{Type: realtime.EventOutputTranscriptDelta, Delta: rawString(t, "네,")}
	up.events <- realtime.Event{Type: realtime.EventOutputTranscriptDone, Transcript: "네, 반갑습니다"}
	up.events <- realtime.Event{Type: realtime.EventOutputAudioDelta, Delta: rawString(t, audio.EncodePCM(replyPCM[:50]))}
	up.events <- realtime.Event{Type: realtime.EventOutputAudioDelta, Delta: rawString(t, audio.EncodePCM(replyPCM[50:]))}
	up.events <- realtime.Event{Type: realtime.EventOutputAudioDone}
	up.events <- realtime.Event{Type: realtime.EventResponseDone, Usage: &realtime.Usage{TotalTokens: 99}}
	close(up.events)

	sess.runBridge(context.Background())

	// Frame order: partial transcript, reply text, reply audio.
	require.Len(t, conn.writes, 3)
	require.Equal(t, serverText{Type: "stt_text", Text: "안녕", Partial: partialFlag(true)}, *conn.writes[0].text)
	require.Equal(t, serverText{Type: "gpt_text", Text: "네, 반갑습니다", Partial: partialFlag(false)}, *conn.writes[1].text)
	require.Len(t, conn.writes[2].bin, 80)

	msgs := env.logs.messages()
	require.Len(t, msgs, 2)
	require.Equal(t, models.RoleUser, msgs[0].role)
	require.Equal(t, models.MessageTypeVoice, msgs[0].messageType)
	require.Equal(t, "안녕하세요", msgs[0].text)
	require.Equal(t, models.LatencySTT, *msgs[0].latencyType)
	require.NotNil(t, msgs[0].latencyMS)
	require.Equal(t, 12, msgs[0].tokens)

	require.Equal(t, models.RoleAI, msgs[1].role)
	require.Equal(t, "네, 반갑습니다", msgs[1].text)
	require.Equal(t, models.LatencyTTS, *msgs[1].latencyType)
	require.NotNil(t, msgs[1].latencyMS)
	require.Equal(t, 99, msgs[1].tokens)

	// Both finalized transcripts refreshed the upstream instruction.
	require.Len(t, up.instructions, 2)
	require.Contains(t, up.instructions[0], "user: 안녕하세요")
	require.Contains(t, up.instructions[1], "assistant: 네, 반갑습니다")

	hist := env.mem.History("s1")
	require.Len(t, hist, 2)
	require.Equal(t, "user", hist[0].Role)
	require.Equal(t, "assistant", hist[1].Role)
}

func TestBridgeSkipsEmptyTranscripts(t *testing.T) {
	conn := newFakeConn()
	env := newTestEnv(conn)

	up := newFakeUpstream(8)
	sess := NewSession(conn, "u1", env.deps)
	sess.sessionID = "s1"
	sess.rec.SetLogID(7)
	sess.upstream = up

	up.events <- realtime.Event{Type: realtime.EventInputTranscriptCompleted, Transcript: "  "}
	up.events <- realtime.Event{Type: realtime.EventOutputTranscriptDone}
	up.events <- realtime.Event{Type: realtime.EventResponseDone, Usage: &realtime.Usage{TotalTokens: 5}}
	close(up.events)

	sess.runBridge(context.Background())

	require.Empty(t, conn.writes)
	require.Empty(t, env.logs.messages())
	require.Empty(t, up.instructions)
	require.Empty(t, env.mem.History("s1"))
}

func TestRealtimeSessionForwardsAudioAndTearsDown(t *testing.T) {
	conn := newFakeConn(
		configFrame(t, ModeRealtime),
		Frame{Binary: true, Data: make([]byte, 20)},
		textFrame(t, map[string]any{"type": "disconnect"}),
	)
	env := newTestEnv(conn)
	dialer := &fakeDialer{up: newFakeUpstream(1)}
	env.deps.Realtime = dialer

	sess := NewSession(conn, "u1", env.deps)
	sess.Run(context.Background())

	require.Len(t, dialer.cfgs, 1)
	require.Equal(t, defaultRealtimeModel, dialer.cfgs[0].Model)
	require.Equal(t, defaultSTTModel, dialer.cfgs[0].TranscriptionModel)
	require.Equal(t, 24000, dialer.cfgs[0].SampleRate)
	require.Contains(t, dialer.cfgs[0].Instructions, "be helpful")

	require.Len(t, dialer.up.audio, 1)
	require.Len(t, dialer.up.audio[0], 20)

	require.True(t, dialer.up.closed)
	require.Equal(t, []models.EndedReason{models.EndedNormal}, env.logs.ended)
	require.False(t, env.mem.Exists("s1"))
	require.True(t, conn.closed)
}
