// Package telegram connects the service to a Telegram bot. The bot answers
// status queries and delivers complaint notifications to linked chats.
package telegram

import (
	"context"
	"log"
	"strconv"

	"smartnagrik/backend/internal/localization"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BotService receives Telegram updates and routes commands.
type BotService struct {
	BotAPI    *tgbotapi.BotAPI
	Tracker   ComplaintTracker
	Localizer *localization.Localizer
}

// NewBotService authorizes the bot token.
func NewBotService(token string, tracker ComplaintTracker, l *localization.Localizer) (*BotService, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	bot.Debug = false
	log.Printf("INFO: telegram: authorized on account %s", bot.Self.UserName)

	return &BotService{
		BotAPI:    bot,
		Tracker:   tracker,
		Localizer: l,
	}, nil
}

// Run polls for updates until ctx is cancelled.
func (s *BotService) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := s.BotAPI.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			s.BotAPI.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			s.handleUpdate(ctx, &update, s.BotAPI)
		}
	}
}

func (s *BotService) handleUpdate(ctx context.Context, update *tgbotapi.Update, bot Sender) {
	if update.Message == nil || !update.Message.IsCommand() {
		return
	}
	switch update.Message.Command() {
	case "status":
		HandleStatusCommand(ctx, update, s.Tracker, s.Localizer, bot)
	case "start", "help":
		handleStartCommand(update, bot)
	}
}

// handleStartCommand tells the user the chat id to enter in the portal to
// receive notifications here.
func handleStartCommand(update *tgbotapi.Update, bot Sender) {
	chatID := update.Message.Chat.ID
	text := "Smart Nagrik Seva bot.\n\n" +
		"/status <number> shows the status of a complaint.\n" +
		"To receive updates here, enter this chat id in your profile: " + strconv.FormatInt(chatID, 10)
	if _, err := bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Printf("ERROR: telegram: sending start reply: %v", err)
	}
}
