package services

import (
	"context"
	"encoding/base64"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/soriai/sori/internal/models"
	mongorepo "github.com/soriai/sori/internal/repositories/mongo"
	"github.com/soriai/sori/internal/utils"
)

const ArchiveStream = "audio:archive"

// ArchiveService records completed legacy turns for later inspection:
// a metadata document now, the WAV upload asynchronously via the
// archive worker stream.
type ArchiveService interface {
	EnqueueTurn(ctx context.Context, sessionID string, turnIndex int64, pcm []byte, sampleRate int, transcript string) error
	MarkUploaded(ctx context.Context, sessionID string, turnIndex int64, audioURL, status string) error
	ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.TurnAudio, error)
}

type archiveService struct {
	archives mongorepo.ArchiveRepository
	redis    *redis.Client
	ttl      time.Duration
}

func NewArchiveService(archives mongorepo.ArchiveRepository, rdb *redis.Client, ttl time.Duration) ArchiveService {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &archiveService{archives: archives, redis: rdb, ttl: ttl}
}

func (s *archiveService) EnqueueTurn(ctx context.Context, sessionID string, turnIndex int64, pcm []byte, sampleRate int, transcript string) error {
	const op = "ArchiveService.EnqueueTurn"

	if sessionID == "" || len(pcm) == 0 {
		return utils.E(utils.CodeInvalidArgument, op, "session_id and pcm are required", nil)
	}

	now := time.Now().UTC()
	doc := &models.TurnAudio{
		SessionID:  sessionID,
		TurnIndex:  turnIndex,
		SampleRate: sampleRate,
		SizeBytes:  int64(len(pcm)),
		Transcript: transcript,
		Status:     "pending",
		Timestamp:  now,
		ExpiresAt:  now.Add(s.ttl),
	}
	if err := s.archives.Insert(ctx, doc); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to insert archive doc", err)
	}

	err := s.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: ArchiveStream,
		Values: map[string]any{
			"session_id":  sessionID,
			"turn_index":  strconv.FormatInt(turnIndex, 10),
			"sample_rate": strconv.Itoa(sampleRate),
			"pcm_base64":  base64.StdEncoding.EncodeToString(pcm),
		},
	}).Err()
	if err != nil {
		return utils.E(utils.CodeUnavailable, op, "failed to enqueue archive job", err)
	}
	return nil
}

func (s *archiveService) MarkUploaded(ctx context.Context, sessionID string, turnIndex int64, audioURL, status string) error {
	const op = "ArchiveService.MarkUploaded"

	if sessionID == "" || status == "" {
		return utils.E(utils.CodeInvalidArgument, op, "session_id and status are required", nil)
	}
	if err := s.archives.MarkUploaded(ctx, sessionID, turnIndex, audioURL, status); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to update archive doc", err)
	}
	return nil
}

func (s *archiveService) ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.TurnAudio, error) {
	const op = "ArchiveService.ListBySession"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	out, err := s.archives.ListBySession(ctx, sessionID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list archives", err)
	}
	return out, nil
}
