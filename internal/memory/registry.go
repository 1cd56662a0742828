package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/soriai/sori/internal/models"
)

// historyLimit is the number of unsummarized turns a session may hold;
// crossing it drains history into one summary entry.
const historyLimit = 30

type Turn struct {
	Role    string
	Content string
}

// BotConfigSource provides the bot configuration a session's base
// instruction is built from.
type BotConfigSource interface {
	GetChatbotDetail(ctx context.Context, chatbotID int64) (*models.Chatbot, error)
}

// Summarizer produces a bounded synopsis of a history transcript.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
}

type session struct {
	mu            sync.Mutex
	instruction   string
	history       []Turn
	summary       []string
	vectorStoreID string
}

// Registry owns per-session instruction/history/summary state. State
// is process-local: created on first reference, dropped on disconnect,
// never persisted. A per-session mutex serializes access from the
// connection loop and the relay bridge task.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*session

	bots       BotConfigSource
	summarizer Summarizer
	log        *logrus.Logger
}

func NewRegistry(bots BotConfigSource, summarizer Summarizer, log *logrus.Logger) *Registry {
	if log == nil {
		log = logrus.New()
	}
	return &Registry{
		sessions:   make(map[string]*session),
		bots:       bots,
		summarizer: summarizer,
		log:        log,
	}
}

// Ensure creates the session entry if it does not exist yet.
func (r *Registry) Ensure(sessionID string) {
	if sessionID == "" {
		return
	}
	r.get(sessionID)
}

func (r *Registry) get(sessionID string) *session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		s = &session{}
		r.sessions[sessionID] = s
	}
	return s
}

func (r *Registry) lookup(sessionID string) *session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[sessionID]
}

// Clear drops all state for the session.
func (r *Registry) Clear(sessionID string) {
	if sessionID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}

// Exists reports whether the session still holds state.
func (r *Registry) Exists(sessionID string) bool {
	return r.lookup(sessionID) != nil
}

// BuildInstruction fetches the bot configuration and composes the base
// instruction: persona, optional fixed corpus, fallback policy.
func (r *Registry) BuildInstruction(ctx context.Context, sessionID string, chatbotID int64) error {
	if sessionID == "" {
		return nil
	}

	bot, err := r.bots.GetChatbotDetail(ctx, chatbotID)
	if err != nil {
		return err
	}
	if bot == nil {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("[지침]\n")
	sb.WriteString(bot.Description)

	if bot.DataType == models.DataTypeText && bot.TextData != "" {
		sb.WriteString("\n[학습 데이터]\n 해당 데이터를 활용하여 답해주세요.\n")
		sb.WriteString(bot.TextData)
	}

	if bot.FallbackType {
		sb.WriteString("[데이터 찾기 실패시 아래 텍스트로만 답해주세요.]")
	} else {
		sb.WriteString("[데이터 찾기 실패시 학습 데이터말고도 알고있는 지식을 활용하여 답해주세요.]")
	}
	sb.WriteString(bot.FallbackText)

	s := r.get(sessionID)
	s.mu.Lock()
	s.instruction = sb.String()
	s.vectorStoreID = bot.VectorStoreID
	s.mu.Unlock()
	return nil
}

// AppendHistory records one turn. Crossing the history bound drains
// history into exactly one new summary entry.
func (r *Registry) AppendHistory(ctx context.Context, sessionID, text, role string) {
	if sessionID == "" {
		return
	}

	s := r.get(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, Turn{Role: role, Content: text})
	if len(s.history) <= historyLimit {
		return
	}

	transcript := historyLines(s.history)
	if transcript == "" {
		s.history = nil
		return
	}

	synopsis, err := r.summarizer.Summarize(ctx, transcript)
	if err != nil {
		// Keep the bound anyway; the turns are lost to the summary
		// but the context stays usable.
		r.log.WithError(err).WithField("session_id", sessionID).Error("history summarize failed")
		s.history = nil
		return
	}

	s.summary = append(s.summary, synopsis)
	s.history = nil
}

// FullInstruction recomputes base + summaries + unsummarized history
// on every call; never cached.
func (r *Registry) FullInstruction(sessionID string) string {
	if sessionID == "" {
		return ""
	}

	s := r.get(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()

	var sb strings.Builder
	sb.WriteString(s.instruction)

	if len(s.summary) > 0 {
		sb.WriteString("\n\n[Previous summaries]")
		for _, sum := range s.summary {
			sb.WriteString("\n- ")
			sb.WriteString(sum)
		}
	}

	if len(s.history) > 0 {
		if lines := historyLines(s.history); lines != "" {
			sb.WriteString("\n\n[Recent history]\n")
			sb.WriteString(lines)
		}
	}

	return sb.String()
}

// VectorStoreID returns the session's retrieval-index reference, empty
// when the bot has none.
func (r *Registry) VectorStoreID(sessionID string) string {
	s := r.lookup(sessionID)
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vectorStoreID
}

// History returns a copy of the unsummarized turns.
func (r *Registry) History(sessionID string) []Turn {
	s := r.lookup(sessionID)
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

// Summaries returns a copy of the summary entries.
func (r *Registry) Summaries(sessionID string) []string {
	s := r.lookup(sessionID)
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.summary))
	copy(out, s.summary)
	return out
}

func historyLines(history []Turn) string {
	var sb strings.Builder
	for _, t := range history {
		if t.Content == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(t.Role)
		sb.WriteString(": ")
		sb.WriteString(t.Content)
	}
	return sb.String()
}
