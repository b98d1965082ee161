// Package telegram adapts the Telegram Bot API to the small messaging surface
// the bot needs.
package telegram

import (
	"context"
	"io"
)

// Button is one inline keyboard button carrying callback data.
type Button struct {
	Text string
	Data string
}

// Keyboard is a list of button rows.
type Keyboard [][]Button

// Upload is a media payload streamed to Telegram.
type Upload struct {
	Name   string
	Reader io.Reader
}

type SendOptions struct {
	Markdown  bool
	NoPreview bool
	Keyboard  Keyboard
}

type SendOption func(*SendOptions)

func WithMarkdown() SendOption { return func(o *SendOptions) { o.Markdown = true } }

func WithoutPreview() SendOption { return func(o *SendOptions) { o.NoPreview = true } }

func WithKeyboard(k Keyboard) SendOption { return func(o *SendOptions) { o.Keyboard = k } }

func collect(opts []SendOption) SendOptions {
	var o SendOptions
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Messenger is the chat transport. Send methods return the new message id.
// Delete treats an already-deleted message as success.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string, opts ...SendOption) (int, error)
	SendPhoto(ctx context.Context, chatID int64, photoURL, caption string, opts ...SendOption) (int, error)
	SendVideo(ctx context.Context, chatID int64, file Upload, caption string) (int, error)
	SendAudio(ctx context.Context, chatID int64, file Upload, caption, title string) (int, error)
	EditText(ctx context.Context, chatID int64, messageID int, text string, opts ...SendOption) error
	EditCaption(ctx context.Context, chatID int64, messageID int, caption string) error
	Delete(ctx context.Context, chatID int64, messageID int) error
	AnswerCallback(ctx context.Context, callbackID, alert string) error
	SendTyping(ctx context.Context, chatID int64) error
}
