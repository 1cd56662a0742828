package relay

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/soriai/sori/internal/models"
	"github.com/soriai/sori/internal/services"
)

// recorder tracks per-turn latency marks and persists messages. The
// connection loop and the bridge task share it, so marks sit behind a
// mutex. A zero logID disables persistence.
type recorder struct {
	logs services.LogService
	log  *logrus.Entry

	mu       sync.Mutex
	logID    int64
	sttStart time.Time
	ttsStart time.Time
}

func newRecorder(logs services.LogService, log *logrus.Entry) *recorder {
	return &recorder{logs: logs, log: log}
}

func (r *recorder) SetLogID(id int64) {
	r.mu.Lock()
	r.logID = id
	r.mu.Unlock()
}

// BeginSTT overwrites any previous mark; used by the legacy turn where
// the mark is set exactly once per send.
func (r *recorder) BeginSTT() {
	r.mu.Lock()
	r.sttStart = time.Now()
	r.mu.Unlock()
}

// BeginSTTOnce keeps an existing mark; used by the bridge where the
// first partial transcript opens the measurement window.
func (r *recorder) BeginSTTOnce() {
	r.mu.Lock()
	if r.sttStart.IsZero() {
		r.sttStart = time.Now()
	}
	r.mu.Unlock()
}

// EndSTT returns elapsed milliseconds since the mark and clears it;
// nil when no mark was set.
func (r *recorder) EndSTT() *int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sttStart.IsZero() {
		return nil
	}
	ms := time.Since(r.sttStart).Milliseconds()
	r.sttStart = time.Time{}
	return &ms
}

func (r *recorder) BeginTTS() {
	r.mu.Lock()
	r.ttsStart = time.Now()
	r.mu.Unlock()
}

func (r *recorder) BeginTTSOnce() {
	r.mu.Lock()
	if r.ttsStart.IsZero() {
		r.ttsStart = time.Now()
	}
	r.mu.Unlock()
}

func (r *recorder) EndTTS() *int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ttsStart.IsZero() {
		return nil
	}
	ms := time.Since(r.ttsStart).Milliseconds()
	r.ttsStart = time.Time{}
	return &ms
}

// Persist stores one half-turn. Persistence failures are logged and
// swallowed; they never interrupt the conversation.
func (r *recorder) Persist(ctx context.Context, role models.Role, messageType models.MessageType, text string, latencyMS *int64, latencyType *models.LatencyType, tokens int) {
	r.mu.Lock()
	logID := r.logID
	r.mu.Unlock()

	if logID == 0 || text == "" {
		return
	}
	if err := r.logs.CreateMessage(ctx, logID, role, text, messageType, latencyMS, latencyType, tokens); err != nil {
		r.log.WithError(err).WithFields(logrus.Fields{
			"log_id": logID,
			"role":   role,
		}).Error("failed to persist message")
	}
}

func latencyKind(t models.LatencyType) *models.LatencyType { return &t }
