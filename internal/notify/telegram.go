package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

const telegramAPI = "https://api.telegram.org"

// TelegramSender posts alerts to one chat through a bot.
type TelegramSender struct {
	endpoint string
	chatID   string
	client   *http.Client
}

// NewTelegramSender creates a TelegramSender for a bot token and chat.
func NewTelegramSender(token, chatID string) *TelegramSender {
	return newTelegramSender(telegramAPI, token, chatID)
}

func newTelegramSender(apiBase, token, chatID string) *TelegramSender {
	return &TelegramSender{
		endpoint: strings.TrimRight(apiBase, "/") + "/bot" + token + "/sendMessage",
		chatID:   chatID,
		client:   &http.Client{Timeout: senderTimeout},
	}
}

type telegramMessage struct {
	ChatID              string `json:"chat_id"`
	Text                string `json:"text"`
	ParseMode           string `json:"parse_mode"`
	DisablePreview      bool   `json:"disable_web_page_preview"`
	DisableNotification bool   `json:"disable_notification,omitempty"`
}

// Send posts a as a MarkdownV2 message. Bids are delivered silently; every
// other kind pings the chat.
func (t *TelegramSender) Send(ctx context.Context, a Alert) error {
	msg := telegramMessage{
		ChatID:              t.chatID,
		Text:                telegramText(a),
		ParseMode:           "MarkdownV2",
		DisablePreview:      true,
		DisableNotification: quiet(a),
	}
	return postJSON(ctx, t.client, "telegram", t.endpoint, msg, telegramReject)
}

// telegramReject reads the Bot API's {"ok":false,"description":...} reply.
// The bot token is part of the URL and never appears in the error.
func telegramReject(status int, body []byte) *DeliveryError {
	var reply struct {
		Description string `json:"description"`
		Parameters  struct {
			RetryAfter int `json:"retry_after"`
		} `json:"parameters"`
	}
	e := &DeliveryError{Channel: "telegram", Status: status}
	if json.Unmarshal(body, &reply) == nil {
		e.Detail = reply.Description
		e.RetryAfter = time.Duration(reply.Parameters.RetryAfter) * time.Second
	} else {
		e.Detail = strings.TrimSpace(string(body))
	}
	return e
}

// Name implements Sender.
func (t *TelegramSender) Name() string { return "telegram" }
