package notifier

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// ErrTimeout marks a send whose outcome is unknown: the transport gave up
// waiting but the message may still have been delivered. The delivery worker
// treats it differently from an explicit refusal.
var ErrTimeout = errors.New("send timed out")

const sendTimeout = 30 * time.Second

// Alert is one rendered detection ready for fan-out.
type Alert struct {
	RecordID int64
	Photo    []byte
	Caption  string
}

// Telegram delivers alert photos to operator chats through the Bot API.
type Telegram struct {
	bot *tgbotapi.BotAPI
	log zerolog.Logger
}

func NewTelegram(token string, log zerolog.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	bot.Client = &http.Client{Timeout: sendTimeout}

	log.Info().Str("bot", bot.Self.UserName).Msg("telegram bot authorized")
	return &Telegram{bot: bot, log: log}, nil
}

// Send uploads the alert photo with its caption to a single chat. Transport
// timeouts come back wrapped in ErrTimeout; every other failure is an
// explicit delivery error.
func (t *Telegram) Send(ctx context.Context, chatID int64, alert Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("vehicle_%d.jpg", alert.RecordID),
		Bytes: alert.Photo,
	})
	msg.Caption = alert.Caption

	if _, err := t.bot.Send(msg); err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w: chat %d: %v", ErrTimeout, chatID, err)
		}
		return fmt.Errorf("send to chat %d: %w", chatID, err)
	}

	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
