package telegram

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

type Bot struct {
	api *tgbotapi.BotAPI
}

func NewBot(token string) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}
	logrus.WithField("bot", api.Self.UserName).Info("Telegram bot authorized")
	return &Bot{api: api}, nil
}

// SendMessage отправляет текст в чат; chatID хранится в БД строкой
func (b *Bot) SendMessage(chatID, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", chatID, err)
	}

	if _, err := b.api.Send(tgbotapi.NewMessage(id, text)); err != nil {
		return fmt.Errorf("telegram send failed: %w", err)
	}
	return nil
}

// Listen отвечает на /start идентификатором чата, который пользователь
// привязывает к аккаунту через POST /api/v1/users/me/telegram
func (b *Bot) Listen(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	logrus.Info("Telegram update listener started")
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			logrus.Info("Telegram update listener stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			b.handleCommand(update.Message)
		}
	}
}

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	var reply string
	switch msg.Command() {
	case "start", "id":
		reply = fmt.Sprintf("Your chat id is %d. Link it in railbook to receive booking updates.", msg.Chat.ID)
	default:
		reply = "Unknown command. Use /start to get your chat id."
	}

	if _, err := b.api.Send(tgbotapi.NewMessage(msg.Chat.ID, reply)); err != nil {
		logrus.WithError(err).WithField("chat_id", msg.Chat.ID).Warn("Failed to reply to telegram command")
	}
}
