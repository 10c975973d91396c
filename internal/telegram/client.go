// Package telegram sends a short run report to a Telegram chat when a
// conversion or prefetch finishes. Conversions of large inventories and full
// dataset prefetches run for minutes, so the report is the signal that the
// outputs are ready.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const requestTimeout = 10 * time.Second

// Report summarises one finished run.
type Report struct {
	Command string
	Subject string
	Counts  []Count
	Elapsed time.Duration
	Err     error
}

// Count is one labelled figure of a report, e.g. "intervals processed: 3".
type Count struct {
	Label string
	Value int
}

// Client handles Telegram notifications
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client. endpoint is the Bot API URL
// template; empty selects the public API. No request is made until Send.
func NewClient(botToken, chatID, endpoint string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	if botToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot := &tgbotapi.BotAPI{
		Token:  botToken,
		Client: &http.Client{Timeout: requestTimeout},
		Buffer: 100,
	}
	bot.SetAPIEndpoint(endpoint)

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// Send delivers the report, retrying with linear backoff.
func (c *Client) Send(ctx context.Context, r Report) error {
	msg := tgbotapi.NewMessage(c.chatID, FormatReport(r))
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelayBase * time.Duration(i)):
			}
		}
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

// FormatReport renders r as a MarkdownV2 message.
func FormatReport(r Report) string {
	var b strings.Builder

	status := "✅ finished"
	if r.Err != nil {
		status = "❌ failed"
	}
	fmt.Fprintf(&b, "*%s* %s in %s\n", escapeMarkdownV2(r.Command), status, escapeMarkdownV2(formatDuration(r.Elapsed)))
	if r.Subject != "" {
		fmt.Fprintf(&b, "`%s`\n", escapeMarkdownV2(r.Subject))
	}
	if len(r.Counts) > 0 {
		b.WriteString("\n")
	}
	for _, c := range r.Counts {
		fmt.Fprintf(&b, "%s: *%d*\n", escapeMarkdownV2(c.Label), c.Value)
	}
	if r.Err != nil {
		fmt.Fprintf(&b, "\n%s\n", escapeMarkdownV2(r.Err.Error()))
	}
	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	case d >= time.Minute:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
}
