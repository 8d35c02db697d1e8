package handler

import (
	"net/http"
	"strconv"

	"smartnagrik/backend/internal/apperr"
	"smartnagrik/backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
)

type preferencesRequest struct {
	Language       *string  `json:"language"`
	NotifyChannels []string `json:"notify_channels"`
	TelegramChatID *int64   `json:"telegram_chat_id"`
}

var knownChannels = map[string]bool{
	models.ChannelEmail:    true,
	models.ChannelTelegram: true,
	models.ChannelInbox:    true,
}

func (h *Handler) Me(c *gin.Context) {
	u, err := h.Storage.GetUserByID(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// MyNotifications returns the caller's inbox, newest first.
func (h *Handler) MyNotifications(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondError(c, apperr.Validation("invalid limit"))
			return
		}
		limit = min(n, maxPageSize)
	}
	rows, err := h.Storage.ListNotifications(c.Request.Context(), currentUserID(c), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if rows == nil {
		rows = []models.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": rows})
}

// UpdatePreferences sets language, notification channels and the linked
// Telegram chat (the id the bot shows on /start).
func (h *Handler) UpdatePreferences(c *gin.Context) {
	var req preferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Validation("invalid request: %v", err))
		return
	}
	for _, ch := range req.NotifyChannels {
		if !knownChannels[ch] {
			respondError(c, apperr.Validation("unknown notification channel %q", ch))
			return
		}
	}

	ctx := c.Request.Context()
	u, err := h.Storage.GetUserByID(ctx, currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if req.Language != nil {
		u.Language = *req.Language
	}
	if req.NotifyChannels != nil {
		u.NotifyChannels = pq.StringArray(req.NotifyChannels)
	}
	if req.TelegramChatID != nil {
		u.TelegramChatID = *req.TelegramChatID
	}
	if err := h.Storage.UpdateUser(ctx, u); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}
