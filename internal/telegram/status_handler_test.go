package telegram

import (
	"context"
	"errors"
	"testing"

	"smartnagrik/backend/internal/apperr"
	"smartnagrik/backend/internal/localization"
	"smartnagrik/backend/internal/models"
	"smartnagrik/backend/internal/notify"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockTracker is a mock implementation of the ComplaintTracker interface
type MockTracker struct {
	mock.Mock
}

func (m *MockTracker) Track(ctx context.Context, number string) (*models.Complaint, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Complaint), args.Error(1)
}

// MockSender records outgoing messages.
type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return tgbotapi.Message{}, args.Error(0)
}

func (m *MockSender) sentText(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, m.Calls)
	msg, ok := m.Calls[len(m.Calls)-1].Arguments.Get(0).(tgbotapi.MessageConfig)
	require.True(t, ok)
	return msg.Text
}

func commandUpdate(text string, lang string) *tgbotapi.Update {
	cmdLen := len(text)
	for i, r := range text {
		if r == ' ' {
			cmdLen = i
			break
		}
	}
	return &tgbotapi.Update{
		Message: &tgbotapi.Message{
			Text: text,
			Entities: []tgbotapi.MessageEntity{
				{Type: "bot_command", Offset: 0, Length: cmdLen},
			},
			From: &tgbotapi.User{ID: 12345, LanguageCode: lang},
			Chat: tgbotapi.Chat{ID: 12345},
		},
	}
}

func TestHandleStatusCommand_Found(t *testing.T) {
	// Arrange
	ctx := context.Background()
	tracker := new(MockTracker)
	bot := new(MockSender)
	tracker.On("Track", ctx, "SNS-2025-001").
		Return(&models.Complaint{ComplaintNumber: "SNS-2025-001", Title: "Pothole", Status: models.StatusInProgress}, nil)
	bot.On("Send", mock.Anything).Return(nil)

	// Act
	HandleStatusCommand(ctx, commandUpdate("/status sns-2025-001", "en"), tracker, localization.NewDefault(), bot)

	// Assert
	tracker.AssertExpectations(t)
	assert.Equal(t, "SNS-2025-001: Pothole\nStatus: In progress", bot.sentText(t))
}

func TestHandleStatusCommand_NotFound(t *testing.T) {
	ctx := context.Background()
	tracker := new(MockTracker)
	bot := new(MockSender)
	tracker.On("Track", ctx, "SNS-2025-999").Return(nil, apperr.NotFound("complaint SNS-2025-999"))
	bot.On("Send", mock.Anything).Return(nil)

	HandleStatusCommand(ctx, commandUpdate("/status SNS-2025-999", "en"), tracker, localization.NewDefault(), bot)

	assert.Equal(t, "No complaint with number SNS-2025-999 was found.", bot.sentText(t))
}

func TestHandleStatusCommand_MissingArgument(t *testing.T) {
	ctx := context.Background()
	tracker := new(MockTracker)
	bot := new(MockSender)
	bot.On("Send", mock.Anything).Return(nil)

	HandleStatusCommand(ctx, commandUpdate("/status", "hi"), tracker, localization.NewDefault(), bot)

	tracker.AssertNotCalled(t, "Track", mock.Anything, mock.Anything)
	assert.Equal(t, "उपयोग: /status SNS-2025-001", bot.sentText(t))
}

func TestHandleStatusCommand_StoreErrorAndSendErrorAreLogged(t *testing.T) {
	ctx := context.Background()
	tracker := new(MockTracker)
	bot := new(MockSender)
	tracker.On("Track", ctx, "SNS-2025-001").Return(nil, errors.New("db down"))
	bot.On("Send", mock.Anything).Return(errors.New("telegram unreachable"))

	assert.NotPanics(t, func() {
		HandleStatusCommand(ctx, commandUpdate("/status SNS-2025-001", "en"), tracker, localization.NewDefault(), bot)
	})
	assert.Equal(t, "The service is unavailable, please try again later.", bot.sentText(t))
}

func TestHandleUpdate_IgnoresPlainText(t *testing.T) {
	bot := new(MockSender)
	s := &BotService{Tracker: new(MockTracker), Localizer: localization.NewDefault()}
	update := &tgbotapi.Update{Message: &tgbotapi.Message{Text: "hello", Chat: tgbotapi.Chat{ID: 1}}}

	s.handleUpdate(context.Background(), update, bot)

	bot.AssertNotCalled(t, "Send", mock.Anything)
}

func TestHandleUpdate_StartShowsChatID(t *testing.T) {
	bot := new(MockSender)
	bot.On("Send", mock.Anything).Return(nil)
	s := &BotService{Tracker: new(MockTracker), Localizer: localization.NewDefault()}

	s.handleUpdate(context.Background(), commandUpdate("/start", "en"), bot)

	assert.Contains(t, bot.sentText(t), "12345")
}

func TestNotifier_SkipsUnlinkedRecipient(t *testing.T) {
	bot := new(MockSender)
	n := &Notifier{Bot: bot, Texts: notify.Texts{Localizer: localization.NewDefault()}}

	err := n.Send(context.Background(), notify.Notification{Recipient: notify.Recipient{UserID: "u-1"}})

	assert.NoError(t, err)
	bot.AssertNotCalled(t, "Send", mock.Anything)
}

func TestNotifier_SendsLocalizedText(t *testing.T) {
	bot := new(MockSender)
	bot.On("Send", mock.Anything).Return(nil).Once()
	n := &Notifier{Bot: bot, Texts: notify.Texts{Localizer: localization.NewDefault()}}

	err := n.Send(context.Background(), notify.Notification{
		Recipient:       notify.Recipient{UserID: "u-1", Name: "Asha", TelegramChatID: 777, Language: "en"},
		ComplaintNumber: "SNS-2025-001",
		Title:           "Pothole",
		Event:           "ASSIGNED",
	})

	require.NoError(t, err)
	assert.Contains(t, bot.sentText(t), "Complaint SNS-2025-001 is now Assigned")
}

func TestNotifier_WrapsSendError(t *testing.T) {
	bot := new(MockSender)
	bot.On("Send", mock.Anything).Return(errors.New("forbidden: bot was blocked"))
	n := &Notifier{Bot: bot, Texts: notify.Texts{Localizer: localization.NewDefault()}}

	err := n.Send(context.Background(), notify.Notification{Recipient: notify.Recipient{TelegramChatID: 5}, Event: "CLOSED"})

	assert.ErrorContains(t, err, "bot was blocked")
}
