package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hectic-downloader/server/internal/model"
	logx "github.com/hectic-downloader/server/pkg/logger"
)

const defaultAPIServer = "https://api.telegram.org"

// Client implements Messenger on top of telegram-bot-api and owns the
// long-polling update stream.
type Client struct {
	api      *tgbotapi.BotAPI
	pollWait int
}

// NewClient authenticates against the Bot API. A custom APIServer points at a
// self-hosted Bot API server, which lifts the upload size limit.
func NewClient(cfg model.TelegramConfig) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram: bot token is required")
	}
	server := strings.TrimRight(cfg.APIServer, "/")
	if server == "" {
		server = defaultAPIServer
	}
	api, err := tgbotapi.NewBotAPIWithAPIEndpoint(cfg.Token, server+"/bot%s/%s")
	if err != nil {
		return nil, fmt.Errorf("telegram: authorize: %w", err)
	}
	api.Debug = cfg.Debug

	logx.Info().Str("username", api.Self.UserName).Str("api_server", server).Msg("authorized on telegram")
	return &Client{api: api, pollWait: cfg.PollWait}, nil
}

// Username is the bot's @handle.
func (c *Client) Username() string { return c.api.Self.UserName }

// Ready reports whether the bot identity has been resolved.
func (c *Client) Ready() bool { return c.api.Self.ID != 0 }

// Updates starts long polling. The channel closes after Stop.
func (c *Client) Updates() tgbotapi.UpdatesChannel {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = c.pollWait
	u.AllowedUpdates = []string{"message", "callback_query"}
	return c.api.GetUpdatesChan(u)
}

func (c *Client) Stop() { c.api.StopReceivingUpdates() }

func (c *Client) send(ctx context.Context, msg tgbotapi.Chattable) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	sent, err := c.api.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func (c *Client) request(ctx context.Context, req tgbotapi.Chattable) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.api.Request(req)
	return err
}

func (c *Client) SendText(ctx context.Context, chatID int64, text string, opts ...SendOption) (int, error) {
	o := collect(opts)
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = o.NoPreview
	if o.Markdown {
		msg.ParseMode = tgbotapi.ModeMarkdown
	}
	if len(o.Keyboard) > 0 {
		msg.ReplyMarkup = markup(o.Keyboard)
	}
	return c.send(ctx, msg)
}

func (c *Client) SendPhoto(ctx context.Context, chatID int64, photoURL, caption string, opts ...SendOption) (int, error) {
	o := collect(opts)
	msg := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(photoURL))
	msg.Caption = caption
	if o.Markdown {
		msg.ParseMode = tgbotapi.ModeMarkdown
	}
	if len(o.Keyboard) > 0 {
		msg.ReplyMarkup = markup(o.Keyboard)
	}
	return c.send(ctx, msg)
}

func (c *Client) SendVideo(ctx context.Context, chatID int64, file Upload, caption string) (int, error) {
	msg := tgbotapi.NewVideo(chatID, tgbotapi.FileReader{Name: file.Name, Reader: file.Reader})
	msg.Caption = caption
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.SupportsStreaming = true
	return c.send(ctx, msg)
}

func (c *Client) SendAudio(ctx context.Context, chatID int64, file Upload, caption, title string) (int, error) {
	msg := tgbotapi.NewAudio(chatID, tgbotapi.FileReader{Name: file.Name, Reader: file.Reader})
	msg.Caption = caption
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.Title = title
	return c.send(ctx, msg)
}

func (c *Client) EditText(ctx context.Context, chatID int64, messageID int, text string, opts ...SendOption) error {
	o := collect(opts)
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.DisableWebPagePreview = o.NoPreview
	if o.Markdown {
		edit.ParseMode = tgbotapi.ModeMarkdown
	}
	if len(o.Keyboard) > 0 {
		kb := markup(o.Keyboard)
		edit.ReplyMarkup = &kb
	}
	err := c.request(ctx, edit)
	if isNotModified(err) {
		return nil
	}
	return err
}

func (c *Client) EditCaption(ctx context.Context, chatID int64, messageID int, caption string) error {
	err := c.request(ctx, tgbotapi.NewEditMessageCaption(chatID, messageID, caption))
	if isNotModified(err) {
		return nil
	}
	return err
}

func (c *Client) Delete(ctx context.Context, chatID int64, messageID int) error {
	err := c.request(ctx, tgbotapi.NewDeleteMessage(chatID, messageID))
	if isGone(err) {
		return nil
	}
	return err
}

func (c *Client) AnswerCallback(ctx context.Context, callbackID, alert string) error {
	cb := tgbotapi.NewCallback(callbackID, "")
	if alert != "" {
		cb = tgbotapi.NewCallbackWithAlert(callbackID, alert)
	}
	return c.request(ctx, cb)
}

func (c *Client) SendTyping(ctx context.Context, chatID int64) error {
	return c.request(ctx, tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))
}

// Ping measures one round trip to the Bot API via a typing action.
func Ping(ctx context.Context, m Messenger, chatID int64) (time.Duration, error) {
	start := time.Now()
	err := m.SendTyping(ctx, chatID)
	return time.Since(start), err
}

func markup(k Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(k))
	for _, r := range k {
		row := make([]tgbotapi.InlineKeyboardButton, 0, len(r))
		for _, b := range r {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(row...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func isGone(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "message to delete not found")
}

func isNotModified(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "message is not modified")
}

var _ Messenger = (*Client)(nil)

// EscapeMarkdown escapes user-provided text for legacy Markdown messages.
func EscapeMarkdown(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}
