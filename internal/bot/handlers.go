package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	errx "github.com/hectic-downloader/server/internal/core/error"
	"github.com/hectic-downloader/server/internal/delivery"
	"github.com/hectic-downloader/server/internal/model"
	"github.com/hectic-downloader/server/internal/platform"
	"github.com/hectic-downloader/server/internal/telegram"
	logx "github.com/hectic-downloader/server/pkg/logger"
)

// maxCallbackData is Telegram's limit on inline button payloads.
const maxCallbackData = 64

const (
	tagVideo  = "video"
	tagAudio  = "audio"
	tagCancel = "cancel"
)

func menuKey(chatID int64) string { return "menu:" + strconv.FormatInt(chatID, 10) }

// =========== Text messages ===========

func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	if msg.From != nil {
		b.users.Track(msg.From.ID)
	}
	text := strings.TrimSpace(msg.Text)

	awaiting, err := b.conversations.Awaiting(ctx, chatID)
	if err != nil {
		return err
	}
	if awaiting {
		return b.handleSelection(ctx, chatID, msg.MessageID, text)
	}

	c := b.matcher.Classify(text)
	if !c.IsLink() {
		return b.processSearch(ctx, chatID, c.Query, msg.MessageID)
	}
	if err := b.conversations.Begin(ctx, chatID, msg.MessageID); err != nil {
		return err
	}
	return b.processLink(ctx, chatID, c.Platform, c.URL, msg.MessageID)
}

func (b *Bot) handleSelection(ctx context.Context, chatID int64, replyID int, text string) error {
	picked, err := b.conversations.ResolveSelection(ctx, chatID, text)
	if errors.Is(err, errx.ErrInvalidSelection) {
		noticeID, sendErr := b.messenger.SendText(ctx, chatID, "❌ "+errx.UserMessage(err))
		if sendErr != nil {
			return sendErr
		}
		b.cleanup.Schedule(chatID, []int{noticeID, replyID}, b.cfg.Cleanup.AfterFailure)
		return nil
	}
	if err != nil {
		return err
	}

	logx.Ctx(ctx).Debug().Str("video_id", picked.ID).Msg("search result selected")
	if err := b.conversations.Track(ctx, chatID, replyID); err != nil {
		return err
	}
	return b.processLink(ctx, chatID, model.PlatformYouTube, platform.WatchURL(picked.ID), replyID)
}

// processLink fetches media info and presents the quality menu.
func (b *Bot) processLink(ctx context.Context, chatID int64, p model.Platform, link string, userMsgID int) error {
	loadingID, err := b.messenger.SendText(ctx, chatID, fetchingText(p))
	if err != nil {
		return err
	}
	stop := b.animate(ctx, chatID, loadingID, loadingLabel(p))
	res, err := b.retriever.FetchMedia(ctx, p, link)
	stop()

	if err != nil {
		if errx.KindOf(err) != errx.KindUpstream {
			return err
		}
		telegram.TryEdit(ctx, b.messenger, chatID, loadingID, fetchFailedText(p), telegram.WithMarkdown()).Tolerate()
		ids, cerr := b.conversations.Conclude(ctx, chatID)
		if cerr != nil {
			logx.Ctx(ctx).Warn().Err(cerr).Msg("failed to clear conversation after fetch failure")
		}
		b.cleanup.Schedule(chatID, append(ids, loadingID, userMsgID), b.cfg.Cleanup.AfterFailure)
		return nil
	}
	telegram.TryDelete(ctx, b.messenger, chatID, loadingID).Tolerate()

	key, err := b.cache.Put(ctx, chatID, res)
	if err != nil {
		return err
	}

	caption := qualityCaption(p, res, b.cfg.Branding.BotName)
	menuID, err := b.sendWithThumbnail(ctx, chatID, res.Thumbnail, caption, telegram.WithKeyboard(qualityKeyboard(res, key)))
	if err != nil {
		return err
	}
	return b.conversations.Track(ctx, chatID, menuID)
}

func (b *Bot) processSearch(ctx context.Context, chatID int64, query string, userMsgID int) error {
	loadingID, err := b.messenger.SendText(ctx, chatID, searchingText)
	if err != nil {
		return err
	}
	stop := b.animate(ctx, chatID, loadingID, "Searching")
	results, err := b.retriever.Search(ctx, query)
	stop()

	if err != nil && errx.KindOf(err) != errx.KindUpstream {
		return err
	}
	if err != nil || len(results) == 0 {
		text := noResultsText
		if err != nil {
			text = searchFailedText
		}
		telegram.TryEdit(ctx, b.messenger, chatID, loadingID, text).Tolerate()
		b.cleanup.Schedule(chatID, []int{loadingID, userMsgID}, b.cfg.Cleanup.AfterFailure)
		return nil
	}
	telegram.TryDelete(ctx, b.messenger, chatID, loadingID).Tolerate()

	if limit := b.conversations.MenuLimit(); len(results) > limit {
		results = results[:limit]
	}
	menuID, err := b.sendWithThumbnail(ctx, chatID, results[0].Thumbnail, searchMenuText(query, results))
	if err != nil {
		return err
	}
	if err := b.conversations.OpenMenu(ctx, chatID, results, userMsgID, menuID); err != nil {
		return err
	}
	b.cleanup.ScheduleKeyedThen(menuKey(chatID), chatID, []int{userMsgID, menuID}, b.cfg.Cleanup.AutoDelete, func() {
		b.serial.Submit(chatID, func() { b.abandonMenu(ctx, chatID, menuID) })
	})
	return nil
}

// abandonMenu drops the pending selection once its menu has been deleted,
// so the next message is classified afresh.
func (b *Bot) abandonMenu(ctx context.Context, chatID int64, menuID int) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	cleared, err := b.conversations.Abandon(ctx, chatID, menuID)
	if err != nil {
		logx.Ctx(ctx).Warn().Err(err).Msg("failed to abandon search menu")
		return
	}
	if cleared {
		logx.Ctx(ctx).Debug().Int("menu_id", menuID).Msg("search menu abandoned")
	}
}

// sendWithThumbnail sends a photo with caption and falls back to text when
// there is no thumbnail or the photo is rejected.
func (b *Bot) sendWithThumbnail(ctx context.Context, chatID int64, thumb, text string, opts ...telegram.SendOption) (int, error) {
	opts = append(opts, telegram.WithMarkdown())
	if thumb != "" {
		id, err := b.messenger.SendPhoto(ctx, chatID, thumb, text, opts...)
		if err == nil {
			return id, nil
		}
		logx.Ctx(ctx).Debug().Err(err).Str("thumbnail", thumb).Msg("photo rejected, sending text")
	}
	return b.messenger.SendText(ctx, chatID, text, opts...)
}

// qualityKeyboard lays out video qualities two per row, then the audio
// button when an mp3 variant exists, then Cancel.
func qualityKeyboard(res model.MediaResult, key string) telegram.Keyboard {
	var kb telegram.Keyboard
	var row []telegram.Button
	for _, label := range res.Labels() {
		if label == model.QualityMP3 {
			continue
		}
		data := tagVideo + "|" + label + "|" + key
		if len(data) > maxCallbackData {
			logx.Warn().Str("label", label).Msg("callback data too long, skipping quality")
			continue
		}
		row = append(row, telegram.Button{Text: qualityButtonText(label), Data: data})
		if len(row) == 2 {
			kb = append(kb, row)
			row = nil
		}
	}
	if len(row) > 0 {
		kb = append(kb, row)
	}
	if _, ok := res.URL(model.QualityMP3); ok {
		if data := tagAudio + "|" + model.QualityMP3 + "|" + key; len(data) <= maxCallbackData {
			kb = append(kb, []telegram.Button{{Text: qualityButtonText(model.QualityMP3), Data: data}})
		}
	}
	return append(kb, []telegram.Button{{Text: "❌ Cancel", Data: tagCancel}})
}

// =========== Callback queries ===========

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb.From != nil {
		b.users.Track(cb.From.ID)
	}
	if cb.Message == nil || cb.Message.Chat == nil {
		telegram.TryAnswer(ctx, b.messenger, cb.ID, "").Tolerate()
		return nil
	}
	chatID, menuID := cb.Message.Chat.ID, cb.Message.MessageID

	if cb.Data == tagCancel {
		telegram.TryAnswer(ctx, b.messenger, cb.ID, "").Tolerate()
		return b.cancelFlow(ctx, chatID, menuID)
	}

	kind, label, key, ok := parseCallback(cb.Data)
	if !ok {
		telegram.TryAnswer(ctx, b.messenger, cb.ID, "❌ "+errx.SessionExpiredMessage).Tolerate()
		return nil
	}

	entry, found, err := b.cache.Get(ctx, key)
	if err != nil {
		return err
	}
	if !found {
		telegram.TryAnswer(ctx, b.messenger, cb.ID, "❌ "+errx.SessionExpiredMessage).Tolerate()
		return nil
	}
	url, ok := entry.URL(label)
	if !ok {
		telegram.TryAnswer(ctx, b.messenger, cb.ID, unavailableText).Tolerate()
		return nil
	}
	telegram.TryAnswer(ctx, b.messenger, cb.ID, "").Tolerate()
	telegram.TryDelete(ctx, b.messenger, chatID, menuID).Tolerate()

	res := b.deliverer.Deliver(ctx, delivery.Request{ChatID: chatID, URL: url, Kind: kind, Title: entry.Title})
	logx.Ctx(ctx).Info().Str("outcome", string(res.Outcome)).Str("label", label).Msg("delivery finished")

	return b.finishFlow(ctx, chatID, b.cfg.Cleanup.AfterDelivery)
}

func (b *Bot) cancelFlow(ctx context.Context, chatID int64, menuID int) error {
	telegram.TryEditAny(ctx, b.messenger, chatID, menuID, cancelledText).Tolerate()
	ids, err := b.conversations.Conclude(ctx, chatID)
	if err != nil {
		return err
	}
	b.cleanup.Cancel(menuKey(chatID))
	b.cleanup.Schedule(chatID, append(ids, menuID), b.cfg.Cleanup.AfterCancel)
	return nil
}

// finishFlow sweeps the conversation's transient messages after delay.
func (b *Bot) finishFlow(ctx context.Context, chatID int64, delay time.Duration) error {
	ids, err := b.conversations.Conclude(ctx, chatID)
	if err != nil {
		return err
	}
	if len(ids) > 0 {
		b.cleanup.Cancel(menuKey(chatID))
		b.cleanup.Schedule(chatID, ids, delay)
	}
	return nil
}

// parseCallback splits "tag|param|key".
func parseCallback(data string) (model.MediaKind, string, string, bool) {
	parts := strings.SplitN(data, "|", 3)
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return "", "", "", false
	}
	switch parts[0] {
	case tagVideo:
		return model.MediaVideo, parts[1], parts[2], true
	case tagAudio:
		return model.MediaAudio, parts[1], parts[2], true
	}
	return "", "", "", false
}
