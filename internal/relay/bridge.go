package relay

import (
	"context"
	"strings"

	"github.com/soriai/sori/internal/models"
	"github.com/soriai/sori/internal/providers/realtime"
)

// runBridge translates upstream realtime events into client frames and
// side effects. It is the session's only concurrent task; it exits when
// the upstream event stream closes or the session is torn down.
func (s *Session) runBridge(ctx context.Context) {
	var (
		userText   strings.Builder
		replyText  strings.Builder
		reply      string
		replyAudio []byte
		ttsLatency *int64
	)

	events := s.upstream.Events()
	for {
		var ev realtime.Event
		var ok bool
		select {
		case <-ctx.Done():
			return
		case ev, ok = <-events:
			if !ok {
				return
			}
		}

		switch ev.Type {
		case realtime.EventInputTranscriptDelta:
			chunk := ev.DeltaText()
			if chunk == "" {
				continue
			}
			s.rec.BeginSTTOnce()
			userText.WriteString(chunk)
			s.writeText("stt_text", chunk, partialFlag(true))

		case realtime.EventInputTranscriptCompleted:
			text := strings.TrimSpace(ev.Transcript)
			if text == "" {
				text = strings.TrimSpace(userText.String())
			}
			userText.Reset()
			sttLatency := s.rec.EndSTT()
			if text == "" {
				continue
			}
			// Memory and the upstream instruction update settle before
			// the next event is consumed.
			s.deps.Memory.AppendHistory(ctx, s.sessionID, text, "user")
			s.pushInstruction()
			s.rec.Persist(ctx, models.RoleUser, models.MessageTypeVoice, text, sttLatency, latencyKind(models.LatencySTT), ev.TotalTokens())

		case realtime.EventOutputTranscriptDelta:
			replyText.WriteString(ev.DeltaText())

		case realtime.EventOutputTranscriptDone:
			text := strings.TrimSpace(ev.Transcript)
			if text == "" {
				text = strings.TrimSpace(ev.Text)
			}
			if text == "" {
				text = strings.TrimSpace(replyText.String())
			}
			replyText.Reset()
			if text == "" {
				continue
			}
			reply = text
			s.writeText("gpt_text", reply, partialFlag(false))
			s.deps.Memory.AppendHistory(ctx, s.sessionID, reply, "assistant")
			s.pushInstruction()

		case realtime.EventOutputAudioDelta:
			pcm, err := ev.DeltaAudio()
			if err != nil {
				s.log.WithError(err).Error("failed to decode reply audio delta")
				continue
			}
			if len(pcm) == 0 {
				continue
			}
			s.rec.BeginTTSOnce()
			replyAudio = append(replyAudio, pcm...)

		case realtime.EventOutputAudioDone:
			if len(replyAudio) > 0 {
				if err := s.conn.WriteBinary(replyAudio); err != nil {
					s.log.WithError(err).Error("failed to write reply audio")
				}
				replyAudio = nil
			}
			ttsLatency = s.rec.EndTTS()

		case realtime.EventResponseDone:
			if reply != "" {
				s.rec.Persist(ctx, models.RoleAI, models.MessageTypeVoice, reply, ttsLatency, latencyKind(models.LatencyTTS), ev.TotalTokens())
			}
			reply = ""
			ttsLatency = nil
		}
	}
}

// pushInstruction resends the recomputed full instruction upstream so
// the model sees fresh history on its next turn.
func (s *Session) pushInstruction() {
	if err := s.upstream.UpdateInstructions(s.deps.Memory.FullInstruction(s.sessionID)); err != nil {
		s.log.WithError(err).Error("failed to push instruction upstream")
	}
}
