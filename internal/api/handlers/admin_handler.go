package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soriai/sori/internal/models"
	pgrepo "github.com/soriai/sori/internal/repositories/postgres"
	"github.com/soriai/sori/internal/services"
	"github.com/soriai/sori/internal/utils"
)

// AdminHandler serves the operator console: chatbot configuration and
// conversation log browsing.
type AdminHandler struct {
	bots services.ChatbotService
	logs services.LogService
}

func NewAdminHandler(bots services.ChatbotService, logs services.LogService) *AdminHandler {
	return &AdminHandler{bots: bots, logs: logs}
}

func (h *AdminHandler) ListChatbots(c *gin.Context) {
	bots, err := h.bots.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": bots})
}

func (h *AdminHandler) GetChatbot(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("chatbot_id"), 10, 64)
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "AdminHandler.GetChatbot", "invalid chatbot_id", err))
		return
	}

	bot, err := h.bots.GetChatbotDetail(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bot)
}

func (h *AdminHandler) SaveChatbot(c *gin.Context) {
	var bot models.Chatbot
	if err := c.ShouldBindJSON(&bot); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "AdminHandler.SaveChatbot", "invalid body", err))
		return
	}

	if err := h.bots.Save(c.Request.Context(), &bot); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bot)
}

func (h *AdminHandler) DeleteChatbot(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("chatbot_id"), 10, 64)
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "AdminHandler.DeleteChatbot", "invalid chatbot_id", err))
		return
	}

	if err := h.bots.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (h *AdminHandler) ListLogs(c *gin.Context) {
	f := pgrepo.LogFilter{
		Page:     atoiDefault(c.Query("page"), 1),
		PageSize: atoiDefault(c.Query("page_size"), 20),
		Category: c.Query("category"),
		Search:   c.Query("search"),
	}
	if t, ok := parseDate(c.Query("start_date")); ok {
		f.StartDate = &t
	}
	if t, ok := parseDate(c.Query("end_date")); ok {
		f.EndDate = &t
	}

	page, err := h.logs.List(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// SearchMessages ranks persisted messages by embedding distance to the
// query.
func (h *AdminHandler) SearchMessages(c *gin.Context) {
	query := c.Query("q")
	limit := atoiDefault(c.Query("limit"), 20)

	rows, err := h.logs.SearchMessages(c.Request.Context(), query, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows})
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
