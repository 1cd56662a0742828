package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/soriai/sori/internal/models"
	"github.com/soriai/sori/internal/utils"
)

type ChatbotRepo interface {
	GetByID(ctx context.Context, id int64) (*models.Chatbot, error)
	List(ctx context.Context) ([]models.Chatbot, error)
	Save(ctx context.Context, bot *models.Chatbot) error
	Delete(ctx context.Context, id int64) error
}

type chatbotRepo struct {
	db *gorm.DB
}

func NewChatbotRepo(db *gorm.DB) ChatbotRepo {
	return &chatbotRepo{db: db}
}

func (r *chatbotRepo) GetByID(ctx context.Context, id int64) (*models.Chatbot, error) {
	var bot models.Chatbot
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&bot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &bot, nil
}

func (r *chatbotRepo) List(ctx context.Context) ([]models.Chatbot, error) {
	var bots []models.Chatbot
	err := r.db.WithContext(ctx).Order("id DESC").Find(&bots).Error
	return bots, err
}

func (r *chatbotRepo) Save(ctx context.Context, bot *models.Chatbot) error {
	return r.db.WithContext(ctx).Save(bot).Error
}

func (r *chatbotRepo) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&models.Chatbot{}, id).Error
}
