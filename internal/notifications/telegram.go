package notifications

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TelegramNotifier delivers events to a Telegram chat.
type TelegramNotifier struct {
	token  string
	chatID string
	client *http.Client
}

func NewTelegramNotifier(token, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		token:  token,
		chatID: chatID,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Emit sends the event to Telegram. Errors are swallowed: notification
// delivery must never influence trading.
func (t *TelegramNotifier) Emit(event Event) {
	emoji := "ℹ️"
	switch event.Kind {
	case EventTradeOpened:
		emoji = "🟢"
	case EventTradeClosed:
		emoji = "✅"
	case EventSignalRejected, EventBreakerWarning:
		emoji = "⚠️"
	case EventOrderFailed, EventBreakerTripped, EventFatalError:
		emoji = "🚨"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s *%s*\n", emoji, event.Kind)
	if event.Symbol != "" {
		fmt.Fprintf(&b, "Symbol: %s\n", event.Symbol)
	}
	if event.Reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", event.Reason)
	}
	if event.Message != "" {
		fmt.Fprintf(&b, "%s\n", event.Message)
	}
	fmt.Fprintf(&b, "Time: %s", event.Time.Format("2006-01-02 15:04:05"))

	apiURL := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.token)

	data := url.Values{}
	data.Set("chat_id", t.chatID)
	data.Set("text", b.String())
	data.Set("parse_mode", "Markdown")

	resp, err := t.client.Post(apiURL, "application/x-www-form-urlencoded",
		strings.NewReader(data.Encode()))
	if err != nil {
		return
	}
	resp.Body.Close()
}
