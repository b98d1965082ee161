// Package bot turns Telegram updates into retrieval, menu and delivery flows.
package bot

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/hectic-downloader/server/internal/conversation"
	errx "github.com/hectic-downloader/server/internal/core/error"
	"github.com/hectic-downloader/server/internal/delivery"
	"github.com/hectic-downloader/server/internal/model"
	"github.com/hectic-downloader/server/internal/platform"
	"github.com/hectic-downloader/server/internal/telegram"
	logx "github.com/hectic-downloader/server/pkg/logger"
	"github.com/hectic-downloader/server/pkg/metrics"
)

// Retriever fetches media metadata and search results from upstreams.
type Retriever interface {
	FetchMedia(ctx context.Context, p model.Platform, link string) (model.MediaResult, error)
	Search(ctx context.Context, query string) ([]model.SearchResult, error)
}

type Deliverer interface {
	Deliver(ctx context.Context, req delivery.Request) delivery.Result
}

// Cleaner schedules deferred deletion of transient messages.
type Cleaner interface {
	Schedule(chatID int64, ids []int, delay time.Duration) string
	ScheduleKeyed(key string, chatID int64, ids []int, delay time.Duration)
	ScheduleKeyedThen(key string, chatID int64, ids []int, delay time.Duration, then func())
	Cancel(key string) bool
}

type Deps struct {
	Messenger     telegram.Messenger
	Matcher       *platform.Matcher
	Conversations *conversation.Manager
	Cache         model.ResultCache
	Retriever     Retriever
	Deliverer     Deliverer
	Cleanup       Cleaner
}

type Config struct {
	Cleanup  model.CleanupConfig
	Branding model.BrandingConfig
}

type Bot struct {
	messenger     telegram.Messenger
	matcher       *platform.Matcher
	conversations *conversation.Manager
	cache         model.ResultCache
	retriever     Retriever
	deliverer     Deliverer
	cleanup       Cleaner

	cfg       Config
	users     *userSet
	serial    *Serializer
	startedAt time.Time
	now       func() time.Time
	running   atomic.Bool
}

func New(deps Deps, cfg Config) (*Bot, error) {
	switch {
	case deps.Messenger == nil:
		return nil, fmt.Errorf("bot: messenger is required")
	case deps.Conversations == nil:
		return nil, fmt.Errorf("bot: conversation manager is required")
	case deps.Cache == nil:
		return nil, fmt.Errorf("bot: result cache is required")
	case deps.Retriever == nil:
		return nil, fmt.Errorf("bot: retriever is required")
	case deps.Deliverer == nil:
		return nil, fmt.Errorf("bot: deliverer is required")
	case deps.Cleanup == nil:
		return nil, fmt.Errorf("bot: cleanup scheduler is required")
	}
	if deps.Matcher == nil {
		deps.Matcher = platform.NewMatcher()
	}
	return &Bot{
		messenger:     deps.Messenger,
		matcher:       deps.Matcher,
		conversations: deps.Conversations,
		cache:         deps.Cache,
		retriever:     deps.Retriever,
		deliverer:     deps.Deliverer,
		cleanup:       deps.Cleanup,
		cfg:           cfg,
		users:         newUserSet(),
		serial:        NewSerializer(),
		startedAt:     time.Now(),
		now:           time.Now,
	}, nil
}

// Run consumes updates until ctx is done or the channel closes, then waits
// for in-flight handlers. Updates of one chat are handled in arrival order.
func (b *Bot) Run(ctx context.Context, updates <-chan tgbotapi.Update) {
	b.running.Store(true)
	defer b.running.Store(false)
	defer b.serial.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			b.serial.Submit(chatOf(u), func() { b.HandleUpdate(ctx, u) })
		}
	}
}

func chatOf(u tgbotapi.Update) int64 {
	switch {
	case u.Message != nil && u.Message.Chat != nil:
		return u.Message.Chat.ID
	case u.CallbackQuery != nil && u.CallbackQuery.Message != nil && u.CallbackQuery.Message.Chat != nil:
		return u.CallbackQuery.Message.Chat.ID
	case u.CallbackQuery != nil && u.CallbackQuery.From != nil:
		return u.CallbackQuery.From.ID
	}
	return 0
}

// HandleUpdate processes one update. It never panics and never lets an
// error escape: failures are logged and answered with an apology.
func (b *Bot) HandleUpdate(ctx context.Context, u tgbotapi.Update) {
	chatID := chatOf(u)
	l := logx.Chat(chatID).With().Str("trace_id", uuid.NewString()).Logger()
	ctx = logx.WithContext(ctx, l)

	defer func() {
		if r := recover(); r != nil {
			metrics.PanicsRecovered.Inc()
			l.Error().Interface("panic", r).Msg("recovered panic in update handler")
			b.apologize(ctx, u)
		}
	}()

	var err error
	switch {
	case u.CallbackQuery != nil:
		metrics.UpdatesTotal.WithLabelValues("callback").Inc()
		err = b.handleCallback(ctx, u.CallbackQuery)
	case u.Message != nil && u.Message.IsCommand():
		metrics.UpdatesTotal.WithLabelValues("command").Inc()
		err = b.handleCommand(ctx, u.Message)
	case u.Message != nil && u.Message.Text != "":
		metrics.UpdatesTotal.WithLabelValues("message").Inc()
		err = b.handleText(ctx, u.Message)
	default:
		return
	}

	if err != nil {
		l.Error().Err(err).Str("kind", string(errx.KindOf(err))).Msg("update handler failed")
		b.apologize(ctx, u)
	}
}

func (b *Bot) apologize(ctx context.Context, u tgbotapi.Update) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if cb := u.CallbackQuery; cb != nil {
		telegram.TryAnswer(ctx, b.messenger, cb.ID, "❌ "+errx.SystemErrorMessage).Tolerate()
		return
	}
	if chatID := chatOf(u); chatID != 0 {
		_, err := b.messenger.SendText(ctx, chatID, "❌ "+errx.SystemErrorMessage)
		telegram.Attempt{Op: "apology", ChatID: chatID, Err: err}.Tolerate()
	}
}

// Running reports whether Run is consuming updates.
func (b *Bot) Running() bool { return b.running.Load() }

// Users returns the number of distinct users seen since start.
func (b *Bot) Users() int { return b.users.Count() }
