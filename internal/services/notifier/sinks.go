package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/NordCoder/Farewatch/internal/domain/notification"
	"github.com/NordCoder/Farewatch/internal/obs"
)

// LogSink writes alerts to the service log.
type LogSink struct{ log *zap.Logger }

func NewLogSink(log *zap.Logger) *LogSink { return &LogSink{log: obs.Component(log, "notifier.log")} }

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Send(ctx context.Context, a notification.Alert) error {
	obs.WithTrace(ctx, s.log).Info(a.Title,
		zap.String("monitor_id", a.MonitorID),
		zap.String("body", a.Body),
		zap.String("url", a.URL),
		zap.Bool("synthetic", a.Synthetic),
	)
	return nil
}

type EmailSink struct {
	sender notification.EmailSender
	to     string
}

func NewEmailSink(sender notification.EmailSender, to string) *EmailSink {
	return &EmailSink{sender: sender, to: to}
}

func (s *EmailSink) Name() string { return "email" }

func (s *EmailSink) Send(ctx context.Context, a notification.Alert) error {
	var b strings.Builder
	b.WriteString(a.Body)
	b.WriteString("\n\n")
	if a.URL != "" {
		fmt.Fprintf(&b, "Book: %s\n", a.URL)
	}
	if a.ClickURL != "" {
		fmt.Fprintf(&b, "Open Farewatch: %s\n", a.ClickURL)
	}
	return s.sender.Send(ctx, s.to, a.Title, b.String())
}

// WebhookSink POSTs the alert as JSON.
type WebhookSink struct {
	url    string
	client *http.Client
}

func NewWebhookSink(url string, timeout time.Duration) *WebhookSink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookSink{url: url, client: obs.HTTPClient(timeout)}
}

func (s *WebhookSink) Name() string { return "webhook" }

func (s *WebhookSink) Send(ctx context.Context, a notification.Alert) error {
	body, err := json.Marshal(a)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded %s", resp.Status)
	}
	return nil
}

type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type TelegramSink struct {
	bot    telegramSender
	chatID int64
}

func NewTelegramSink(token string, chatID int64) (*TelegramSink, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &TelegramSink{bot: bot, chatID: chatID}, nil
}

func (s *TelegramSink) Name() string { return "telegram" }

func (s *TelegramSink) Send(_ context.Context, a notification.Alert) error {
	text := "🔥 " + a.Title + "\n" + a.Body
	msg := tgbotapi.NewMessage(s.chatID, text)
	msg.DisableWebPagePreview = true
	if strings.HasPrefix(a.URL, "http") {
		kb := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("Book on "+a.Airline, a.URL)),
		)
		msg.ReplyMarkup = kb
	}
	_, err := s.bot.Send(msg)
	return err
}
