package telegram

import (
	"context"

	logx "github.com/hectic-downloader/server/pkg/logger"
)

// Attempt is the result of a best-effort transport call. The caller either
// inspects Err or calls Tolerate to accept that the call may have failed.
type Attempt struct {
	Op     string
	ChatID int64
	Err    error
}

func (a Attempt) OK() bool { return a.Err == nil }

// Tolerate acknowledges a failure as expected and logs it at debug level.
func (a Attempt) Tolerate() {
	if a.Err == nil {
		return
	}
	logx.Debug().Err(a.Err).Str("op", a.Op).Int64("chat_id", a.ChatID).Msg("best-effort call failed")
}

// TryEdit edits a message text without failing the caller.
func TryEdit(ctx context.Context, m Messenger, chatID int64, messageID int, text string, opts ...SendOption) Attempt {
	return Attempt{Op: "edit", ChatID: chatID, Err: m.EditText(ctx, chatID, messageID, text, opts...)}
}

// TryEditAny edits a text message, falling back to the caption for media
// messages.
func TryEditAny(ctx context.Context, m Messenger, chatID int64, messageID int, text string) Attempt {
	err := m.EditText(ctx, chatID, messageID, text)
	if err != nil {
		err = m.EditCaption(ctx, chatID, messageID, text)
	}
	return Attempt{Op: "edit", ChatID: chatID, Err: err}
}

func TryDelete(ctx context.Context, m Messenger, chatID int64, messageID int) Attempt {
	return Attempt{Op: "delete", ChatID: chatID, Err: m.Delete(ctx, chatID, messageID)}
}

func TryAnswer(ctx context.Context, m Messenger, callbackID, alert string) Attempt {
	return Attempt{Op: "answer_callback", Err: m.AnswerCallback(ctx, callbackID, alert)}
}
