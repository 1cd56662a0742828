package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/soriai/sori/internal/models"
)

type mockBots struct {
	bot *models.Chatbot
	err error
}

func (m *mockBots) GetChatbotDetail(_ context.Context, _ int64) (*models.Chatbot, error) {
	return m.bot, m.err
}

type mockSummarizer struct {
	calls    int
	lastText string
	summary  string
	err      error
}

func (m *mockSummarizer) Summarize(_ context.Context, transcript string) (string, error) {
	m.calls++
	m.lastText = transcript
	return m.summary, m.err
}

func TestBuildInstruction(t *testing.T) {
	bots := &mockBots{bot: &models.Chatbot{
		Description:   "도움이 되는 상담원입니다.",
		DataType:      models.DataTypeText,
		TextData:      "영업시간은 9시부터 6시까지입니다.",
		FallbackType:  true,
		FallbackText:  "잘 모르겠습니다.",
		VectorStoreID: "vs_123",
	}}
	r := NewRegistry(bots, &mockSummarizer{}, nil)

	require.NoError(t, r.BuildInstruction(context.Background(), "s1", 1))

	full := r.FullInstruction("s1")
	require.Contains(t, full, "[지침]\n도움이 되는 상담원입니다.")
	require.Contains(t, full, "[학습 데이터]")
	require.Contains(t, full, "영업시간은 9시부터 6시까지입니다.")
	require.Contains(t, full, "잘 모르겠습니다.")
	require.Equal(t, "vs_123", r.VectorStoreID("s1"))
}

func TestAppendHistorySummarizesPastLimit(t *testing.T) {
	sum := &mockSummarizer{summary: "they talked about the weather"}
	r := NewRegistry(&mockBots{}, sum, nil)
	ctx := context.Background()

	for i := 0; i < historyLimit+1; i++ {
		r.AppendHistory(ctx, "s1", fmt.Sprintf("message %d", i), "user")
	}

	require.Equal(t, 1, sum.calls)
	require.Empty(t, r.History("s1"))
	require.Equal(t, []string{"they talked about the weather"}, r.Summaries("s1"))

	// Transcript fed to the summarizer covers every drained turn.
	require.True(t, strings.HasPrefix(sum.lastText, "user: message 0"))
	require.Contains(t, sum.lastText, fmt.Sprintf("message %d", historyLimit))
}

func TestAppendHistoryDropsHistoryOnSummarizeError(t *testing.T) {
	sum := &mockSummarizer{err: errors.New("model down")}
	r := NewRegistry(&mockBots{}, sum, nil)
	ctx := context.Background()

	for i := 0; i < historyLimit+1; i++ {
		r.AppendHistory(ctx, "s1", "hi", "user")
	}

	require.Empty(t, r.History("s1"))
	require.Empty(t, r.Summaries("s1"))
}

func TestFullInstructionComposition(t *testing.T) {
	bots := &mockBots{bot: &models.Chatbot{Description: "be brief"}}
	r := NewRegistry(bots, &mockSummarizer{}, nil)
	ctx := context.Background()

	require.NoError(t, r.BuildInstruction(ctx, "s1", 1))
	r.AppendHistory(ctx, "s1", "hello", "user")
	r.AppendHistory(ctx, "s1", "hi there", "assistant")

	full := r.FullInstruction("s1")
	base := strings.Index(full, "[지침]")
	hist := strings.Index(full, "[Recent history]")
	require.True(t, base >= 0 && hist > base)
	require.Contains(t, full, "user: hello\nassistant: hi there")
	require.NotContains(t, full, "[Previous summaries]")
}

func TestClearAndExists(t *testing.T) {
	r := NewRegistry(&mockBots{}, &mockSummarizer{}, nil)

	r.Ensure("s1")
	require.True(t, r.Exists("s1"))

	r.Clear("s1")
	require.False(t, r.Exists("s1"))
	require.Empty(t, r.FullInstruction("s1"))
}
