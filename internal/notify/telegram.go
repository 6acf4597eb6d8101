package notify

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"slotbook/internal/model"
)

// BotAPI is the part of tgbotapi.BotAPI the sender uses.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSender posts notifications to the owners' Telegram chat.
type TelegramSender struct {
	bot    BotAPI
	chatID int64
}

// NewTelegramSender creates a sender posting to chatID.
func NewTelegramSender(bot BotAPI, chatID int64) *TelegramSender {
	return &TelegramSender{bot: bot, chatID: chatID}
}

// NewTelegramBot connects to the Bot API with token.
func NewTelegramBot(token string, debug bool) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot api: %w", err)
	}
	api.Debug = debug
	return api, nil
}

func (s *TelegramSender) Send(ctx context.Context, n model.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(s.chatID, FormatMessage(n))
	if _, err := s.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send to %d: %w", s.chatID, err)
	}
	return nil
}

// FormatMessage renders the text of a notification.
func FormatMessage(n model.Notification) string {
	var title string
	switch n.Kind {
	case model.NotifyBookingCreated:
		title = "New booking confirmed"
	case model.NotifyBookingPending:
		title = "New booking waiting for approval"
	case model.NotifyBookingApproved:
		title = "Booking approved"
	case model.NotifyBookingRejected:
		title = "Booking rejected"
	case model.NotifyBookingRescheduled:
		title = "Booking rescheduled"
	case model.NotifyBookingCancelled:
		title = "Booking cancelled"
	default:
		title = "Booking update"
	}

	var sb strings.Builder
	sb.WriteString(title)
	if n.BusinessName != "" {
		sb.WriteString(" at ")
		sb.WriteString(n.BusinessName)
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Client: %s (%s)\n", n.ClientName, n.Phone)
	if n.ServiceName != "" {
		fmt.Fprintf(&sb, "Service: %s\n", n.ServiceName)
	}
	fmt.Fprintf(&sb, "When: %s %s", n.Date.Format("02.01.2006"), n.Time)
	return sb.String()
}

// LogSender writes notifications to the log. It is used when no Telegram
// token is configured.
type LogSender struct {
	logger *zerolog.Logger
}

// NewLogSender creates a log-only sender.
func NewLogSender(logger *zerolog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, n model.Notification) error {
	s.logger.Info().
		Str("kind", string(n.Kind)).
		Str("booking_id", n.BookingID).
		Str("phone", n.Phone).
		Str("date", model.FormatDate(n.Date)).
		Str("time", n.Time.String()).
		Msg("notification")
	return nil
}
