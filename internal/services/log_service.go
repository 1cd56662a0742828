package services

import (
	"context"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/sirupsen/logrus"

	"github.com/soriai/sori/internal/models"
	"github.com/soriai/sori/internal/providers/embedding"
	pgrepo "github.com/soriai/sori/internal/repositories/postgres"
	"github.com/soriai/sori/internal/utils"
)

// LogModels carries the model identifiers recorded on the session's
// log row; only the fields for the active mode are set.
type LogModels struct {
	STTModel      string
	TTSModel      string
	ResponseModel string
	RealtimeModel string
}

type LogPage struct {
	Total int64        `json:"total"`
	Data  []models.Log `json:"data"`
}

// LogService is the relay's log store: one log per session, one
// message per persisted half-turn.
type LogService interface {
	CreateOrGetLog(ctx context.Context, userID, sessionID string, m LogModels) (*models.Log, error)
	UpdateLog(ctx context.Context, sessionID string, reason models.EndedReason) error
	CreateMessage(ctx context.Context, logID int64, role models.Role, message string, messageType models.MessageType, latencyMS *int64, latencyType *models.LatencyType, tokens int) error
	List(ctx context.Context, f pgrepo.LogFilter) (*LogPage, error)
	SearchMessages(ctx context.Context, query string, limit int) ([]models.Message, error)
}

type logService struct {
	logs     pgrepo.LogRepo
	embedder embedding.Provider
	log      *logrus.Logger
}

// NewLogService accepts a nil embedder; semantic search is then
// unavailable and messages are stored without vectors.
func NewLogService(logs pgrepo.LogRepo, embedder embedding.Provider, log *logrus.Logger) LogService {
	if log == nil {
		log = logrus.New()
	}
	return &logService{logs: logs, embedder: embedder, log: log}
}

func (s *logService) CreateOrGetLog(ctx context.Context, userID, sessionID string, m LogModels) (*models.Log, error) {
	const op = "LogService.CreateOrGetLog"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}

	existing, err := s.logs.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to look up log", err)
	}
	if existing != nil {
		return existing, nil
	}

	log := &models.Log{
		SessionID:     sessionID,
		UserID:        userID,
		STTModel:      m.STTModel,
		TTSModel:      m.TTSModel,
		ResponseModel: m.ResponseModel,
		RealtimeModel: m.RealtimeModel,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.logs.Create(ctx, log); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create log", err)
	}
	return log, nil
}

func (s *logService) UpdateLog(ctx context.Context, sessionID string, reason models.EndedReason) error {
	const op = "LogService.UpdateLog"

	if sessionID == "" {
		return utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	if err := s.logs.SetEnded(ctx, sessionID, reason, time.Now().UTC()); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to finalize log", err)
	}
	return nil
}

func (s *logService) CreateMessage(ctx context.Context, logID int64, role models.Role, message string, messageType models.MessageType, latencyMS *int64, latencyType *models.LatencyType, tokens int) error {
	const op = "LogService.CreateMessage"

	if logID <= 0 || message == "" {
		return utils.E(utils.CodeInvalidArgument, op, "log_id and message are required", nil)
	}

	msg := &models.Message{
		LogID:       logID,
		Role:        role,
		MessageType: messageType,
		Message:     message,
		Tokens:      tokens,
		LatencyMS:   latencyMS,
		LatencyType: latencyType,
		CreatedAt:   time.Now().UTC(),
	}

	// Embedding is best-effort; never fail the persist over it.
	if s.embedder != nil {
		if vec, err := s.embedder.Embed(ctx, message); err == nil {
			msg.Embedding = pgvector.NewVector(vec)
		} else {
			s.log.WithError(err).WithField("log_id", logID).Warn("message embedding failed")
		}
	}

	if err := s.logs.CreateMessage(ctx, msg); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to create message", err)
	}
	return nil
}

func (s *logService) List(ctx context.Context, f pgrepo.LogFilter) (*LogPage, error) {
	const op = "LogService.List"

	logs, total, err := s.logs.List(ctx, f)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list logs", err)
	}
	return &LogPage{Total: total, Data: logs}, nil
}

func (s *logService) SearchMessages(ctx context.Context, query string, limit int) ([]models.Message, error) {
	const op = "LogService.SearchMessages"

	if query == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "query is required", nil)
	}
	if s.embedder == nil {
		return nil, utils.E(utils.CodeUnavailable, op, "semantic search is not configured", nil)
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to embed query", err)
	}

	rows, err := s.logs.SearchMessages(ctx, vec, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to search messages", err)
	}
	return rows, nil
}
