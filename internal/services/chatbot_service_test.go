package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/soriai/sori/internal/models"
	"github.com/soriai/sori/internal/utils"
)

type memCache struct {
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) GetJSON(_ context.Context, key string, dst any) (bool, error) {
	b, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *memCache) SetJSON(_ context.Context, key string, val any, _ time.Duration) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	c.data[key] = b
	return nil
}

func (c *memCache) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

type mockChatbotRepo struct {
	bot     *models.Chatbot
	getCnt  int
	deleted []int64
}

func (m *mockChatbotRepo) GetByID(_ context.Context, id int64) (*models.Chatbot, error) {
	m.getCnt++
	if m.bot == nil || m.bot.ID != id {
		return nil, utils.ErrNotFound
	}
	return m.bot, nil
}

func (m *mockChatbotRepo) List(_ context.Context) ([]models.Chatbot, error) {
	if m.bot == nil {
		return nil, nil
	}
	return []models.Chatbot{*m.bot}, nil
}

func (m *mockChatbotRepo) Save(_ context.Context, bot *models.Chatbot) error {
	m.bot = bot
	return nil
}

func (m *mockChatbotRepo) Delete(_ context.Context, id int64) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func TestGetChatbotDetailUsesCache(t *testing.T) {
	repo := &mockChatbotRepo{bot: &models.Chatbot{ID: 1, Name: "guide", Description: "be nice"}}
	svc := NewChatbotService(repo, newMemCache())
	ctx := context.Background()

	first, err := svc.GetChatbotDetail(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "guide", first.Name)
	require.Equal(t, 1, repo.getCnt)

	second, err := svc.GetChatbotDetail(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, first.Description, second.Description)
	require.Equal(t, 1, repo.getCnt) // served from cache
}

func TestGetChatbotDetailNotFound(t *testing.T) {
	svc := NewChatbotService(&mockChatbotRepo{}, nil)

	_, err := svc.GetChatbotDetail(context.Background(), 9)
	require.Error(t, err)
	require.True(t, utils.IsCode(err, utils.CodeNotFound))
}

func TestSaveInvalidatesCache(t *testing.T) {
	repo := &mockChatbotRepo{bot: &models.Chatbot{ID: 1, Name: "guide"}}
	cache := newMemCache()
	svc := NewChatbotService(repo, cache)
	ctx := context.Background()

	_, err := svc.GetChatbotDetail(ctx, 1)
	require.NoError(t, err)
	require.Contains(t, cache.data, "chatbot:1")

	require.NoError(t, svc.Save(ctx, &models.Chatbot{ID: 1, Name: "guide v2"}))
	require.NotContains(t, cache.data, "chatbot:1")

	got, err := svc.GetChatbotDetail(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "guide v2", got.Name)
}

func TestSaveRejectsMissingName(t *testing.T) {
	svc := NewChatbotService(&mockChatbotRepo{}, nil)

	err := svc.Save(context.Background(), &models.Chatbot{})
	require.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}
