package relay

import (
	"context"
	"strings"

	"github.com/soriai/sori/internal/models"
	"github.com/soriai/sori/internal/providers/llm"
)

// handleSend runs one legacy turn over the buffered audio:
// transcribe, generate, synthesize. The buffer is consumed whether or
// not the turn succeeds.
func (s *Session) handleSend(ctx context.Context) {
	if s.sessionID == "" {
		return
	}

	pcm := s.audioBuffer
	s.audioBuffer = nil

	s.rec.BeginSTT()
	cctx, cancel := s.providerCtx(ctx)
	text, sttTokens, err := s.deps.STT.Transcribe(cctx, pcm, s.sampleRate, s.sttModel)
	cancel()
	if err != nil {
		s.log.WithError(err).Error("transcription failed")
		text = ""
	}
	text = strings.TrimSpace(text)
	sttLatency := s.rec.EndSTT()

	// The transcript frame goes out even when empty so the client can
	// clear its pending state.
	s.writeText("stt_text", text, nil)
	if text == "" {
		return
	}

	s.rec.Persist(ctx, models.RoleUser, models.MessageTypeVoice, text, sttLatency, latencyKind(models.LatencySTT), sttTokens)

	// The tts mark opens before generation: the recorded latency covers
	// reply generation plus synthesis, what the user actually waits.
	s.rec.BeginTTS()
	cctx, cancel = s.providerCtx(ctx)
	res, err := s.deps.LLM.Generate(cctx, llm.Request{
		Model:         s.responseModel,
		Instructions:  s.deps.Memory.FullInstruction(s.sessionID),
		Input:         text,
		VectorStoreID: s.deps.Memory.VectorStoreID(s.sessionID),
	})
	cancel()
	if err != nil {
		// The user's utterance is already delivered and persisted; the
		// turn just ends without a reply.
		s.log.WithError(err).Error("reply generation failed")
		res = llm.Result{}
	}
	gptText := strings.TrimSpace(res.Text)

	if gptText != "" {
		cctx, cancel = s.providerCtx(ctx)
		voicePCM, ttsTokens, err := s.deps.TTS.Synthesize(cctx, gptText, legacyVoice, s.ttsModel)
		cancel()
		if err != nil {
			s.log.WithError(err).Error("synthesis failed")
		}

		// Audio first, then its transcript.
		if len(voicePCM) > 0 {
			if err := s.conn.WriteBinary(voicePCM); err != nil {
				s.log.WithError(err).Error("failed to write reply audio")
			}
		}
		s.writeText("gpt_text", gptText, nil)

		ttsLatency := s.rec.EndTTS()
		s.rec.Persist(ctx, models.RoleAI, models.MessageTypeVoice, gptText, ttsLatency, latencyKind(models.LatencyTTS), ttsTokens+res.InputTokens+res.OutputTokens)
	}

	s.deps.Memory.AppendHistory(ctx, s.sessionID, text, "user")
	if gptText != "" {
		s.deps.Memory.AppendHistory(ctx, s.sessionID, gptText, "assistant")
	}

	s.archiveTurn(ctx, pcm, text)
}

// archiveTurn records the turn's input audio for later inspection.
// Best-effort; the conversation never waits on archive failures.
func (s *Session) archiveTurn(ctx context.Context, pcm []byte, transcript string) {
	if s.deps.Archive == nil || len(pcm) == 0 {
		return
	}
	s.turnIndex++
	if err := s.deps.Archive.EnqueueTurn(ctx, s.sessionID, s.turnIndex, pcm, s.sampleRate, transcript); err != nil {
		s.log.WithError(err).WithField("turn_index", s.turnIndex).Warn("failed to enqueue turn audio")
	}
}
