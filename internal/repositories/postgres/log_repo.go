package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"github.com/soriai/sori/internal/models"
)

type LogFilter struct {
	Page      int
	PageSize  int
	Category  string // user_id | message
	Search    string
	StartDate *time.Time
	EndDate   *time.Time
}

type LogRepo interface {
	GetBySessionID(ctx context.Context, sessionID string) (*models.Log, error)
	Create(ctx context.Context, log *models.Log) error
	SetEnded(ctx context.Context, sessionID string, reason models.EndedReason, endedAt time.Time) error
	CreateMessage(ctx context.Context, msg *models.Message) error
	List(ctx context.Context, f LogFilter) ([]models.Log, int64, error)
	SearchMessages(ctx context.Context, embedding []float32, limit int) ([]models.Message, error)
}

type logRepo struct {
	db *gorm.DB
}

func NewLogRepo(db *gorm.DB) LogRepo {
	return &logRepo{db: db}
}

func (r *logRepo) GetBySessionID(ctx context.Context, sessionID string) (*models.Log, error) {
	var log models.Log
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Take(&log).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &log, nil
}

func (r *logRepo) Create(ctx context.Context, log *models.Log) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *logRepo) SetEnded(ctx context.Context, sessionID string, reason models.EndedReason, endedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Log{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]any{
			"ended_reason": reason,
			"ended_at":     endedAt,
		}).Error
}

func (r *logRepo) CreateMessage(ctx context.Context, msg *models.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *logRepo) List(ctx context.Context, f LogFilter) ([]models.Log, int64, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = 20
	}

	q := r.db.WithContext(ctx).Model(&models.Log{})

	if f.StartDate != nil {
		q = q.Where("tb_logs.created_at >= ?", *f.StartDate)
	}
	if f.EndDate != nil {
		q = q.Where("tb_logs.created_at < ?", f.EndDate.AddDate(0, 0, 1))
	}
	if f.Category != "" && f.Search != "" {
		keyword := "%" + f.Search + "%"
		switch f.Category {
		case "user_id":
			q = q.Where("tb_logs.user_id ILIKE ?", keyword)
		case "message":
			q = q.Where("tb_logs.id IN (?)",
				r.db.Model(&models.Message{}).Select("log_id").Where("message ILIKE ?", keyword))
		}
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []models.Log
	err := q.Preload("Messages", func(db *gorm.DB) *gorm.DB {
		return db.Order("tb_messages.id ASC")
	}).
		Order("tb_logs.id DESC").
		Offset((f.Page - 1) * f.PageSize).
		Limit(f.PageSize).
		Find(&logs).Error
	return logs, total, err
}

// SearchMessages ranks messages by cosine distance to the query
// embedding.
func (r *logRepo) SearchMessages(ctx context.Context, embedding []float32, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []models.Message
	err := r.db.WithContext(ctx).
		Raw(`SELECT * FROM tb_messages WHERE embedding IS NOT NULL ORDER BY embedding <=> ? LIMIT ?`,
			pgvector.NewVector(embedding), limit).
		Scan(&rows).Error
	return rows, err
}
