package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"chartengine/internal/model"
)

// TelegramNotifier posts alerts to one chat through the Bot API.
type TelegramNotifier struct {
	baseURL  string
	botToken string
	chatID   string
	client   *http.Client
}

func NewTelegramNotifier(botToken, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		baseURL:  "https://api.telegram.org",
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *TelegramNotifier) Send(ctx context.Context, alert Alert) error {
	msg := telegramMessage{ChatID: t.chatID, Text: telegramText(alert), ParseMode: "MarkdownV2"}
	url := t.baseURL + "/bot" + t.botToken + "/sendMessage"

	status, body, err := postJSON(ctx, t.client, url, msg)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	var resp telegramResponse
	if err := json.Unmarshal(body, &resp); err != nil || !resp.OK {
		if resp.Description != "" {
			return fmt.Errorf("telegram: status %d: %s", status, resp.Description)
		}
		return fmt.Errorf("telegram: unexpected status %d", status)
	}
	log.Printf("[telegram] sent alert: %s", alert.Title)
	return nil
}

// telegramText renders a signal as a compact card, other alerts as title
// and message.
func telegramText(alert Alert) string {
	sig := alert.Signal
	if sig == nil {
		icon := "ℹ️"
		switch alert.Level {
		case AlertWarning:
			icon = "⚠️"
		case AlertCritical:
			icon = "🚨"
		}
		return icon + " *" + escapeMarkdown(alert.Title) + "*\n\n" + escapeMarkdown(alert.Message)
	}

	icon := "📈"
	if sig.Direction == model.Short {
		icon = "📉"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s *%s %s* @ %s\n", icon,
		escapeMarkdown(sig.Symbol), sig.Direction,
		escapeMarkdown(strconv.FormatFloat(sig.Price, 'f', -1, 64)))
	fmt.Fprintf(&b, "fast %s / slow %s\n",
		escapeMarkdown(strconv.FormatFloat(sig.FastMA, 'f', 2, 64)),
		escapeMarkdown(strconv.FormatFloat(sig.SlowMA, 'f', 2, 64)))
	fmt.Fprintf(&b, "bar %s\n", escapeMarkdown(time.UnixMilli(sig.Timestamp).UTC().Format("2006-01-02 15:04 UTC")))
	if sig.Reason != "" {
		b.WriteString("_" + escapeMarkdown(sig.Reason) + "_\n")
	}
	b.WriteString("`" + sig.ID + "`")
	return b.String()
}

var markdownEscaper = strings.NewReplacer(
	`_`, `\_`, `*`, `\*`, `[`, `\[`, `]`, `\]`, `(`, `\(`, `)`, `\)`,
	`~`, `\~`, "`", "\\`", `>`, `\>`, `#`, `\#`, `+`, `\+`, `-`, `\-`,
	`=`, `\=`, `|`, `\|`, `{`, `\{`, `}`, `\}`, `.`, `\.`, `!`, `\!`,
)

// escapeMarkdown escapes the MarkdownV2 reserved characters.
func escapeMarkdown(s string) string { return markdownEscaper.Replace(s) }
