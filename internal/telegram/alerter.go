package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Alerter posts digest run summaries to an operator chat.
type Alerter struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    *zap.Logger
}

// NewAlerter connects to the Bot API with token and posts to chatID.
func NewAlerter(token string, chatID int64, log *zap.Logger) (*Alerter, error) {
	return NewAlerterWithEndpoint(token, tgbotapi.APIEndpoint, chatID, log)
}

// NewAlerterWithEndpoint is NewAlerter against a custom Bot API endpoint.
func NewAlerterWithEndpoint(token, endpoint string, chatID int64, log *zap.Logger) (*Alerter, error) {
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	bot.Debug = false
	log.Info("telegram alerts enabled",
		zap.String("bot", bot.Self.UserName), zap.Int64("chatID", chatID))
	return &Alerter{bot: bot, chatID: chatID, log: log}, nil
}

// Alert sends text to the operator chat. The Bot API client has no context
// support, so ctx is only checked before sending.
func (a *Alerter) Alert(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(a.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := a.bot.Send(msg); err != nil {
		return fmt.Errorf("send alert to chat %d: %w", a.chatID, err)
	}
	a.log.Debug("operator alert sent", zap.Int64("chatID", a.chatID))
	return nil
}
