package telegram

import (
	"context"
	"fmt"

	"smartnagrik/backend/internal/models"
	"smartnagrik/backend/internal/notify"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier is the Telegram notification channel. Recipients without a linked
// chat are skipped.
type Notifier struct {
	Bot   Sender
	Texts notify.Texts
}

func (n *Notifier) Name() string { return models.ChannelTelegram }

func (n *Notifier) Send(ctx context.Context, note notify.Notification) error {
	chatID := note.Recipient.TelegramChatID
	if chatID == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	text := fmt.Sprintf("%s\n\n%s", n.Texts.Subject(note), n.Texts.Body(note))
	if _, err := n.Bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("telegram send to %d: %w", chatID, err)
	}
	return nil
}
