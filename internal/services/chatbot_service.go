package services

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/soriai/sori/internal/cache"
	"github.com/soriai/sori/internal/models"
	pgrepo "github.com/soriai/sori/internal/repositories/postgres"
	"github.com/soriai/sori/internal/utils"
)

const chatbotCacheTTL = 5 * time.Minute

// ChatbotService is the bot configuration store. Detail reads go
// through the cache because the relay hits them on every config frame.
type ChatbotService interface {
	GetChatbotDetail(ctx context.Context, chatbotID int64) (*models.Chatbot, error)
	List(ctx context.Context) ([]models.Chatbot, error)
	Save(ctx context.Context, bot *models.Chatbot) error
	Delete(ctx context.Context, chatbotID int64) error
}

type chatbotService struct {
	bots  pgrepo.ChatbotRepo
	cache cache.Cache
}

func NewChatbotService(bots pgrepo.ChatbotRepo, c cache.Cache) ChatbotService {
	return &chatbotService{bots: bots, cache: c}
}

func chatbotCacheKey(id int64) string {
	return "chatbot:" + strconv.FormatInt(id, 10)
}

func (s *chatbotService) GetChatbotDetail(ctx context.Context, chatbotID int64) (*models.Chatbot, error) {
	const op = "ChatbotService.GetChatbotDetail"

	if chatbotID <= 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "chatbot_id must be > 0", nil)
	}

	key := chatbotCacheKey(chatbotID)
	if s.cache != nil {
		var cached models.Chatbot
		if hit, _ := s.cache.GetJSON(ctx, key, &cached); hit {
			return &cached, nil
		}
	}

	bot, err := s.bots.GetByID(ctx, chatbotID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "chatbot not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get chatbot", err)
	}

	if s.cache != nil {
		_ = s.cache.SetJSON(ctx, key, bot, chatbotCacheTTL)
	}
	return bot, nil
}

func (s *chatbotService) List(ctx context.Context) ([]models.Chatbot, error) {
	const op = "ChatbotService.List"

	bots, err := s.bots.List(ctx)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list chatbots", err)
	}
	return bots, nil
}

func (s *chatbotService) Save(ctx context.Context, bot *models.Chatbot) error {
	const op = "ChatbotService.Save"

	if bot == nil || bot.Name == "" {
		return utils.E(utils.CodeInvalidArgument, op, "name is required", nil)
	}
	if bot.CreatedAt.IsZero() {
		bot.CreatedAt = time.Now().UTC()
	}

	if err := s.bots.Save(ctx, bot); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to save chatbot", err)
	}
	if s.cache != nil && bot.ID > 0 {
		_ = s.cache.Del(ctx, chatbotCacheKey(bot.ID))
	}
	return nil
}

func (s *chatbotService) Delete(ctx context.Context, chatbotID int64) error {
	const op = "ChatbotService.Delete"

	if chatbotID <= 0 {
		return utils.E(utils.CodeInvalidArgument, op, "chatbot_id must be > 0", nil)
	}
	if err := s.bots.Delete(ctx, chatbotID); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to delete chatbot", err)
	}
	if s.cache != nil {
		_ = s.cache.Del(ctx, chatbotCacheKey(chatbotID))
	}
	return nil
}
