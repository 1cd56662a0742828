package relay

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/soriai/sori/internal/memory"
	"github.com/soriai/sori/internal/models"
	"github.com/soriai/sori/internal/providers/llm"
	"github.com/soriai/sori/internal/providers/realtime"
	"github.com/soriai/sori/internal/providers/stt"
	"github.com/soriai/sori/internal/providers/tts"
	"github.com/soriai/sori/internal/services"
)

const (
	ModeLegacy   = "legacy"
	ModeRealtime = "realtime"

	defaultSampleRate = 24000
	defaultChatbotID  = 1

	defaultSTTModel      = "gpt-4o-mini-transcribe"
	defaultTTSModel      = "gpt-4o-mini-tts"
	defaultResponseModel = "gpt-4o-mini"
	defaultRealtimeModel = "gpt-4o-mini-realtime-preview"

	legacyVoice   = "coral"
	realtimeVoice = "alloy"
)

// Deps are the collaborators one session needs. Archive may be nil;
// turn audio is then not recorded.
type Deps struct {
	Memory  *memory.Registry
	Bots    services.ChatbotService
	Logs    services.LogService
	Archive services.ArchiveService

	STT      stt.Provider
	LLM      llm.Provider
	TTS      tts.Provider
	Realtime realtime.Dialer

	Logger *logrus.Logger

	// ProviderTimeout bounds each provider call; zero means no bound.
	ProviderTimeout time.Duration
}

// Session owns one client connection: it routes inbound frames, runs
// the legacy turn pipeline or the realtime bridge, and tears everything
// down when the connection ends. Frames are processed sequentially on
// the read loop; only the bridge task runs alongside it.
type Session struct {
	deps Deps
	conn Conn
	rec  *recorder
	log  *logrus.Entry

	userID    string
	sessionID string
	chatbotID int64
	mode      string

	sampleRate  int
	audioBuffer []byte
	turnIndex   int64

	sttModel      string
	ttsModel      string
	responseModel string
	realtimeModel string

	upstream     realtime.Session
	bridgeCancel context.CancelFunc
	bridgeDone   chan struct{}
}

func NewSession(conn Conn, userID string, deps Deps) *Session {
	if deps.Logger == nil {
		deps.Logger = logrus.New()
	}
	log := deps.Logger.WithField("user_id", userID)
	return &Session{
		deps:       deps,
		conn:       conn,
		rec:        newRecorder(deps.Logs, log),
		log:        log,
		userID:     userID,
		chatbotID:  defaultChatbotID,
		mode:       ModeRealtime,
		sampleRate: defaultSampleRate,
	}
}

// Run drives the connection until the client disconnects or the
// transport fails. It always returns with the session torn down.
func (s *Session) Run(ctx context.Context) {
	reason := models.EndedError
	defer func() { s.cleanup(reason) }()

	for {
		frame, err := s.conn.ReadFrame()
		if err != nil {
			s.log.WithError(err).WithField("session_id", s.sessionID).Info("connection closed")
			return
		}

		if frame.Binary {
			s.handleAudio(frame.Data)
			continue
		}

		ev, ok := decodeClientEvent(frame.Data)
		if !ok {
			continue
		}
		if s.sessionID == "" && ev.SessionID != "" {
			s.sessionID = ev.SessionID
			s.log = s.log.WithField("session_id", s.sessionID)
		}

		switch ev.Type {
		case eventConfig:
			s.handleConfig(ctx, ev)
		case eventChat:
			s.handleChat(ctx, ev.Text)
		case eventSend:
			s.handleSend(ctx)
		case eventDisconnect:
			reason = models.EndedNormal
			return
		}
	}
}

// handleAudio buffers legacy audio for the next send, or forwards it
// upstream immediately in realtime mode.
func (s *Session) handleAudio(pcm []byte) {
	if s.sessionID == "" || len(pcm) == 0 {
		return
	}

	if s.mode == ModeRealtime {
		if s.upstream == nil {
			return
		}
		if err := s.upstream.AppendAudio(pcm); err != nil {
			s.log.WithError(err).Error("failed to forward audio upstream")
		}
		return
	}

	s.audioBuffer = append(s.audioBuffer, pcm...)
}

func (s *Session) handleConfig(ctx context.Context, ev *clientEvent) {
	if s.sessionID == "" {
		return
	}

	switch {
	case ev.SampleRate > 0:
		s.sampleRate = ev.SampleRate
	case ev.ClientSampleRate > 0:
		s.sampleRate = ev.ClientSampleRate
	}
	if ev.Mode != "" {
		s.mode = ev.Mode
	}
	if ev.ChatbotID > 0 {
		s.chatbotID = ev.ChatbotID
	}

	s.deps.Memory.Ensure(s.sessionID)
	if err := s.deps.Memory.BuildInstruction(ctx, s.sessionID, s.chatbotID); err != nil {
		s.log.WithError(err).WithField("chatbot_id", s.chatbotID).Error("failed to build instruction")
	}

	s.resolveModels(ctx)

	lm := services.LogModels{RealtimeModel: s.realtimeModel}
	if s.mode == ModeLegacy {
		lm = services.LogModels{
			STTModel:      s.sttModel,
			TTSModel:      s.ttsModel,
			ResponseModel: s.responseModel,
		}
	}
	logRow, err := s.deps.Logs.CreateOrGetLog(ctx, s.userID, s.sessionID, lm)
	if err != nil {
		s.log.WithError(err).Error("failed to create log")
	} else {
		s.rec.SetLogID(logRow.ID)
	}

	if s.mode == ModeRealtime {
		s.openBridge(ctx)
	}
}

// resolveModels reads per-bot model overrides and falls back to the
// service defaults.
func (s *Session) resolveModels(ctx context.Context) {
	s.sttModel = defaultSTTModel
	s.ttsModel = defaultTTSModel
	s.responseModel = defaultResponseModel
	s.realtimeModel = defaultRealtimeModel

	bot, err := s.deps.Bots.GetChatbotDetail(ctx, s.chatbotID)
	if err != nil || bot == nil {
		return
	}
	if bot.STTModel != "" {
		s.sttModel = bot.STTModel
	}
	if bot.TTSModel != "" {
		s.ttsModel = bot.TTSModel
	}
	if bot.ResponseModel != "" {
		s.responseModel = bot.ResponseModel
	}
	if bot.RealtimeModel != "" {
		s.realtimeModel = bot.RealtimeModel
	}
}

// openBridge dials upstream and starts the bridge task. At most one
// upstream per session; repeat config frames keep the existing one.
func (s *Session) openBridge(ctx context.Context) {
	if s.upstream == nil && s.deps.Realtime != nil {
		up, err := s.deps.Realtime.Dial(ctx, realtime.SessionConfig{
			Model:              s.realtimeModel,
			TranscriptionModel: s.sttModel,
			Voice:              realtimeVoice,
			Instructions:       s.deps.Memory.FullInstruction(s.sessionID),
			SampleRate:         s.sampleRate,
		})
		if err != nil {
			s.log.WithError(err).Error("failed to dial realtime upstream")
			return
		}
		s.upstream = up
	}
	if s.upstream == nil || s.bridgeDone != nil {
		return
	}

	bctx, cancel := context.WithCancel(ctx)
	s.bridgeCancel = cancel
	s.bridgeDone = make(chan struct{})
	go func() {
		defer close(s.bridgeDone)
		s.runBridge(bctx)
	}()
}

// handleChat answers a typed message through the generation backend.
// Works in both modes; in realtime mode it bypasses the upstream.
func (s *Session) handleChat(ctx context.Context, text string) {
	if s.sessionID == "" || text == "" {
		return
	}

	s.rec.Persist(ctx, models.RoleUser, models.MessageTypeText, text, nil, nil, 0)
	s.deps.Memory.AppendHistory(ctx, s.sessionID, text, "user")

	model := s.responseModel
	if model == "" {
		model = defaultResponseModel
	}

	start := time.Now()
	cctx, cancel := s.providerCtx(ctx)
	res, err := s.deps.LLM.Generate(cctx, llm.Request{
		Model:         model,
		Instructions:  s.deps.Memory.FullInstruction(s.sessionID),
		Input:         text,
		VectorStoreID: s.deps.Memory.VectorStoreID(s.sessionID),
	})
	cancel()
	if err != nil {
		s.log.WithError(err).Error("chat generation failed")
		return
	}
	if res.Text == "" {
		return
	}
	latency := time.Since(start).Milliseconds()

	s.writeText("gpt_text", res.Text, nil)
	s.rec.Persist(ctx, models.RoleAI, models.MessageTypeText, res.Text, &latency, latencyKind(models.LatencyResponse), res.InputTokens+res.OutputTokens)
	s.deps.Memory.AppendHistory(ctx, s.sessionID, res.Text, "assistant")
}

// cleanup runs exactly once per session, on every exit path: stop the
// bridge, close upstream, finalize the log, drop session memory, close
// the client connection.
func (s *Session) cleanup(reason models.EndedReason) {
	if s.bridgeCancel != nil {
		s.bridgeCancel()
	}
	if s.upstream != nil {
		_ = s.upstream.Close()
	}
	if s.bridgeDone != nil {
		<-s.bridgeDone
	}

	if s.sessionID != "" {
		// Finalization must land even when the read context is gone.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.deps.Logs.UpdateLog(ctx, s.sessionID, reason); err != nil {
			s.log.WithError(err).Error("failed to finalize log")
		}
		s.deps.Memory.Clear(s.sessionID)
	}

	_ = s.conn.Close()
}

func (s *Session) providerCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.deps.ProviderTimeout > 0 {
		return context.WithTimeout(ctx, s.deps.ProviderTimeout)
	}
	return ctx, func() {}
}

func (s *Session) writeText(frameType, text string, partial *bool) {
	err := s.conn.WriteJSON(serverText{Type: frameType, Text: text, Partial: partial})
	if err != nil {
		s.log.WithError(err).WithField("frame", frameType).Error("failed to write frame")
	}
}
