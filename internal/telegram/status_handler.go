package telegram

import (
	"context"
	"errors"
	"log"
	"strings"

	"smartnagrik/backend/internal/apperr"
	"smartnagrik/backend/internal/localization"
	"smartnagrik/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender is the part of *tgbotapi.BotAPI used to reply.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// ComplaintTracker looks a complaint up by its public number.
type ComplaintTracker interface {
	Track(ctx context.Context, number string) (*models.Complaint, error)
}

// HandleStatusCommand answers /status <number> with the complaint's current status.
func HandleStatusCommand(ctx context.Context, update *tgbotapi.Update, tracker ComplaintTracker, l *localization.Localizer, bot Sender) {
	if update.Message == nil || update.Message.Command() != "status" {
		return
	}

	lang := localization.DefaultLanguage
	if update.Message.From != nil && update.Message.From.LanguageCode != "" {
		lang = update.Message.From.LanguageCode
	}

	number := strings.ToUpper(strings.TrimSpace(update.Message.CommandArguments()))
	var responseText string

	if number == "" {
		responseText = l.GetString(lang, "bot.status.usage")
	} else {
		c, err := tracker.Track(ctx, number)
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			responseText = l.Format(lang, "bot.status.not_found", map[string]string{"number": number})
		case err != nil:
			log.Printf("ERROR: telegram: status lookup for %s failed: %v", number, err)
			responseText = l.GetString(lang, "bot.status.error")
		default:
			responseText = l.Format(lang, "bot.status.reply", map[string]string{
				"number": c.ComplaintNumber,
				"title":  c.Title,
				"status": l.GetString(lang, "status."+string(c.Status)),
			})
		}
	}

	msg := tgbotapi.NewMessage(update.Message.Chat.ID, responseText)
	if _, err := bot.Send(msg); err != nil {
		log.Printf("ERROR: telegram: sending status reply: %v", err)
	}
}
