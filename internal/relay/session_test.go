package relay

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/soriai/sori/internal/memory"
	"github.com/soriai/sori/internal/models"
	"github.com/soriai/sori/internal/providers/llm"
	pgrepo "github.com/soriai/sori/internal/repositories/postgres"
	"github.com/soriai/sori/internal/services"
)

// fakeConn scripts inbound frames and records outbound ones in order.
type writeRec struct {
	text *serverText
	bin  []byte
}

type fakeConn struct {
	frames chan Frame

	mu     sync.Mutex
	writes []writeRec
	closed bool
}

func newFakeConn(frames ...Frame) *fakeConn {
	ch := make(chan Frame, len(frames)+1)
	for _, f := range frames {
		ch <- f
	}
	close(ch)
	return &fakeConn{frames: ch}
}

func (c *fakeConn) ReadFrame() (Frame, error) {
	f, ok := <-c.frames
	if !ok {
		return Frame{}, io.EOF
	}
	return f, nil
}

func (c *fakeConn) WriteJSON(v any) error {
	t, ok := v.(serverText)
	if !ok {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, writeRec{text: &t})
	return nil
}

func (c *fakeConn) WriteBinary(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, writeRec{bin: data})
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func textFrame(t *testing.T, v map[string]any) Frame {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return Frame{Data: b}
}

// --- provider fakes ---

type fakeSTT struct {
	text   string
	tokens int
	err    error
	calls  [][]byte
}

func (f *fakeSTT) Transcribe(_ context.Context, pcm []byte, _ int, _ string) (string, int, error) {
	f.calls = append(f.calls, pcm)
	return f.text, f.tokens, f.err
}
func (f *fakeSTT) Close() error { return nil }

type fakeLLM struct {
	res   llm.Result
	err   error
	calls []llm.Request
}

func (f *fakeLLM) Generate(_ context.Context, req llm.Request) (llm.Result, error) {
	f.calls = append(f.calls, req)
	return f.res, f.err
}
func (f *fakeLLM) Close() error { return nil }

type fakeTTS struct {
	pcm    []byte
	tokens int
	err    error
	calls  []string
}

func (f *fakeTTS) Synthesize(_ context.Context, text, _, _ string) ([]byte, int, error) {
	f.calls = append(f.calls, text)
	return f.pcm, f.tokens, f.err
}
func (f *fakeTTS) Close() error { return nil }

// --- service mocks ---

type persistedMsg struct {
	role        models.Role
	messageType models.MessageType
	text        string
	latencyMS   *int64
	latencyType *models.LatencyType
	tokens      int
}

type mockLogs struct {
	mu    sync.Mutex
	msgs  []persistedMsg
	ended []models.EndedReason
}

func (m *mockLogs) CreateOrGetLog(_ context.Context, _, sessionID string, _ services.LogModels) (*models.Log, error) {
	return &models.Log{ID: 7, SessionID: sessionID}, nil
}

func (m *mockLogs) UpdateLog(_ context.Context, _ string, reason models.EndedReason) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ended = append(m.ended, reason)
	return nil
}

func (m *mockLogs) CreateMessage(_ context.Context, _ int64, role models.Role, message string, messageType models.MessageType, latencyMS *int64, latencyType *models.LatencyType, tokens int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, persistedMsg{
		role:        role,
		messageType: messageType,
		text:        message,
		latencyMS:   latencyMS,
		latencyType: latencyType,
		tokens:      tokens,
	})
	return nil
}

func (m *mockLogs) List(_ context.Context, _ pgrepo.LogFilter) (*services.LogPage, error) {
	return &services.LogPage{}, nil
}

func (m *mockLogs) SearchMessages(_ context.Context, _ string, _ int) ([]models.Message, error) {
	return nil, nil
}

func (m *mockLogs) messages() []persistedMsg {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]persistedMsg, len(m.msgs))
	copy(out, m.msgs)
	return out
}

type mockBots struct{ bot *models.Chatbot }

func (m *mockBots) GetChatbotDetail(_ context.Context, _ int64) (*models.Chatbot, error) {
	return m.bot, nil
}
func (m *mockBots) List(_ context.Context) ([]models.Chatbot, error) { return nil, nil }
func (m *mockBots) Save(_ context.Context, _ *models.Chatbot) error  { return nil }
func (m *mockBots) Delete(_ context.Context, _ int64) error          { return nil }

type stubSummarizer struct{}

func (stubSummarizer) Summarize(_ context.Context, _ string) (string, error) { return "", nil }

type testEnv struct {
	conn *fakeConn
	stt  *fakeSTT
	llm  *fakeLLM
	tts  *fakeTTS
	logs *mockLogs
	mem  *memory.Registry
	deps Deps
}

func newTestEnv(conn *fakeConn) *testEnv {
	bots := &mockBots{bot: &models.Chatbot{ID: 1, Description: "be helpful"}}
	logs := &mockLogs{}
	mem := memory.NewRegistry(bots, stubSummarizer{}, nil)

	env := &testEnv{
		conn: conn,
		stt:  &fakeSTT{},
		llm:  &fakeLLM{},
		tts:  &fakeTTS{},
		logs: logs,
		mem:  mem,
	}
	env.deps = Deps{
		Memory: mem,
		Bots:   bots,
		Logs:   logs,
		STT:    env.stt,
		LLM:    env.llm,
		TTS:    env.tts,
	}
	return env
}

func configFrame(t *testing.T, mode string) Frame {
	return textFrame(t, map[string]any{
		"type":       "config",
		"session_id": "s1",
		"mode":       mode,
		"sampleRate": 24000,
		"chatbot_id": 1,
	})
}

func TestLegacyTurn(t *testing.T) {
	conn := newFakeConn(
		configFrame(t, ModeLegacy),
		Frame{Binary: true, Data: make([]byte, 60)},
		Frame{Binary: true, Data: make([]byte, 40)},
		textFrame(t, map[string]any{"type": "send"}),
		textFrame(t, map[string]any{"type": "disconnect"}),
	)
	env := newTestEnv(conn)
	env.stt.text = "hello"
	env.stt.tokens = 5
	env.llm.res = llm.Result{Text: "hi there", InputTokens: 10, OutputTokens: 20}
	env.tts.pcm = make([]byte, 100)
	env.tts.tokens = 8

	sess := NewSession(conn, "u1", env.deps)
	sess.Run(context.Background())

	// Buffered chunks arrive at the transcriber as one utterance.
	require.Len(t, env.stt.calls, 1)
	require.Len(t, env.stt.calls[0], 100)

	// Frame order: transcript, reply audio, reply text.
	require.Len(t, conn.writes, 3)
	require.Equal(t, serverText{Type: "stt_text", Text: "hello"}, *conn.writes[0].text)
	require.Len(t, conn.writes[1].bin, 100)
	require.Equal(t, serverText{Type: "gpt_text", Text: "hi there"}, *conn.writes[2].text)

	msgs := env.logs.messages()
	require.Len(t, msgs, 2)
	require.Equal(t, models.RoleUser, msgs[0].role)
	require.Equal(t, models.MessageTypeVoice, msgs[0].messageType)
	require.Equal(t, "hello", msgs[0].text)
	require.Equal(t, models.LatencySTT, *msgs[0].latencyType)
	require.Equal(t, 5, msgs[0].tokens)

	require.Equal(t, models.RoleAI, msgs[1].role)
	require.Equal(t, "hi there", msgs[1].text)
	require.Equal(t, models.LatencyTTS, *msgs[1].latencyType)
	require.Equal(t, 8+10+20, msgs[1].tokens)

	require.Equal(t, []models.EndedReason{models.EndedNormal}, env.logs.ended)
	require.False(t, env.mem.Exists("s1"))
	require.True(t, conn.closed)
}

func TestLegacyTurnTranscriptionFails(t *testing.T) {
	conn := newFakeConn(
		configFrame(t, ModeLegacy),
		Frame{Binary: true, Data: make([]byte, 50)},
		textFrame(t, map[string]any{"type": "send"}),
		textFrame(t, map[string]any{"type": "send"}),
		textFrame(t, map[string]any{"type": "disconnect"}),
	)
	env := newTestEnv(conn)
	env.stt.err = io.ErrUnexpectedEOF

	sess := NewSession(conn, "u1", env.deps)
	sess.Run(context.Background())

	// Empty transcript frames go out; nothing downstream runs.
	require.Len(t, conn.writes, 2)
	require.Equal(t, serverText{Type: "stt_text"}, *conn.writes[0].text)
	require.Empty(t, env.llm.calls)
	require.Empty(t, env.tts.calls)
	require.Empty(t, env.logs.messages())

	// The failed turn consumed the buffer.
	require.Len(t, env.stt.calls, 2)
	require.Len(t, env.stt.calls[0], 50)
	require.Empty(t, env.stt.calls[1])
}

func TestLegacyGenerationFailureEndsTurnSilently(t *testing.T) {
	conn := newFakeConn(
		configFrame(t, ModeLegacy),
		Frame{Binary: true, Data: make([]byte, 50)},
		textFrame(t, map[string]any{"type": "send"}),
		textFrame(t, map[string]any{"type": "disconnect"}),
	)
	env := newTestEnv(conn)
	env.stt.text = "hello"
	env.llm.err = io.ErrUnexpectedEOF

	sess := NewSession(conn, "u1", env.deps)
	sess.Run(context.Background())

	// The user's transcript still goes out and persists; no reply.
	require.Len(t, conn.writes, 1)
	require.Equal(t, "stt_text", conn.writes[0].text.Type)
	require.Empty(t, env.tts.calls)

	msgs := env.logs.messages()
	require.Len(t, msgs, 1)
	require.Equal(t, models.RoleUser, msgs[0].role)
}

func TestChatTurn(t *testing.T) {
	conn := newFakeConn(
		configFrame(t, ModeLegacy),
		textFrame(t, map[string]any{"type": "chat", "text": "what time is it"}),
		textFrame(t, map[string]any{"type": "disconnect"}),
	)
	env := newTestEnv(conn)
	env.llm.res = llm.Result{Text: "half past nine", InputTokens: 3, OutputTokens: 4}

	sess := NewSession(conn, "u1", env.deps)
	sess.Run(context.Background())

	require.Len(t, conn.writes, 1)
	require.Equal(t, serverText{Type: "gpt_text", Text: "half past nine"}, *conn.writes[0].text)

	msgs := env.logs.messages()
	require.Len(t, msgs, 2)
	require.Equal(t, models.MessageTypeText, msgs[0].messageType)
	require.Nil(t, msgs[0].latencyType)
	require.Equal(t, models.MessageTypeText, msgs[1].messageType)
	require.Equal(t, models.LatencyResponse, *msgs[1].latencyType)
	require.Equal(t, 7, msgs[1].tokens)

	// The prompt carried the instruction and the prior user turn.
	require.Len(t, env.llm.calls, 1)
	require.Contains(t, env.llm.calls[0].Instructions, "be helpful")
	require.Contains(t, env.llm.calls[0].Instructions, "user: what time is it")
}

func TestMalformedAndUnknownFramesIgnored(t *testing.T) {
	conn := newFakeConn(
		configFrame(t, ModeLegacy),
		Frame{Data: []byte("{not json")},
		textFrame(t, map[string]any{"type": "mystery"}),
		textFrame(t, map[string]any{"type": "disconnect"}),
	)
	env := newTestEnv(conn)

	sess := NewSession(conn, "u1", env.deps)
	sess.Run(context.Background())

	require.Empty(t, conn.writes)
	require.Equal(t, []models.EndedReason{models.EndedNormal}, env.logs.ended)
}

func TestReadErrorFinalizesAsError(t *testing.T) {
	conn := newFakeConn(
		configFrame(t, ModeLegacy),
		// channel closes; ReadFrame fails
	)
	env := newTestEnv(conn)

	sess := NewSession(conn, "u1", env.deps)
	sess.Run(context.Background())

	require.Equal(t, []models.EndedReason{models.EndedError}, env.logs.ended)
	require.False(t, env.mem.Exists("s1"))
	require.True(t, conn.closed)
}

func TestFramesBeforeConfigAreNoOps(t *testing.T) {
	conn := newFakeConn(
		Frame{Binary: true, Data: make([]byte, 10)},
		textFrame(t, map[string]any{"type": "send"}),
		textFrame(t, map[string]any{"type": "disconnect"}),
	)
	env := newTestEnv(conn)

	sess := NewSession(conn, "u1", env.deps)
	sess.Run(context.Background())

	require.Empty(t, conn.writes)
	require.Empty(t, env.stt.calls)
	require.Empty(t, env.logs.messages())
}
