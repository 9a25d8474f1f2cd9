// Package telegram provides a client for delivering daily digests via
// the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"themeradar/internal/logger"
	"themeradar/internal/report"
)

// Client handles Telegram delivery.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

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

// ReportFunc produces the current digest text and the strength-file
// path on demand, for the /report command.
type ReportFunc func() (text string, attachment string, err error)

// ListenForCommands starts a goroutine that polls for Telegram updates
// and handles bot commands. It returns immediately; the goroutine stops
// when ctx is cancelled.
func (c *Client) ListenForCommands(ctx context.Context, reportFn ReportFunc) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil && update.Message.IsCommand() {
					c.handleCommand(update.Message, reportFn)
				}
			}
		}
	}()
}

func (c *Client) handleCommand(msg *tgbotapi.Message, reportFn ReportFunc) {
	switch msg.Command() {
	case "ping":
		reply := tgbotapi.NewMessage(msg.Chat.ID, "Pong")
		c.bot.Send(reply) //nolint:errcheck
	case "report":
		if reportFn == nil {
			return
		}
		text, attachment, err := reportFn()
		if err != nil {
			logger.Warn("Failed to build on-demand report: %v", err)
			return
		}
		if err := c.SendDigest(text, attachment); err != nil {
			logger.Warn("Failed to send on-demand report: %v", err)
		}
	}
}

// sendHTML sends an HTML message with linear-backoff retry.
func (c *Client) sendHTML(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// SendDigest delivers the digest, chunked at line boundaries to fit the
// message-size ceiling, then attaches the strength file if present.
func (c *Client) SendDigest(text string, attachmentPath string) error {
	for _, chunk := range report.SplitMessage(text, report.MaxMessageLen) {
		if err := c.sendHTML(chunk); err != nil {
			return err
		}
	}
	if attachmentPath != "" {
		doc := tgbotapi.NewDocument(c.chatID, tgbotapi.FilePath(attachmentPath))
		if _, err := c.bot.Send(doc); err != nil {
			return fmt.Errorf("failed to send attachment: %w", err)
		}
	}
	return nil
}

// SendError sends a pipeline error notification.
// Call this only on the first occurrence of a consecutive error sequence.
func (c *Client) SendError(runErr error) error {
	text := fmt.Sprintf("⚠️ <b>Pipeline error</b>\n<code>%s</code>", html.EscapeString(runErr.Error()))
	return c.sendHTML(text)
}

// SendRecovery sends a recovery notification after consecutive failures.
func (c *Client) SendRecovery(failureCount int) error {
	text := fmt.Sprintf("✅ <b>Pipeline recovered</b> after %d consecutive failure(s)", failureCount)
	return c.sendHTML(text)
}
