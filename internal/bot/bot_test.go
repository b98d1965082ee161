package bot

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hectic-downloader/server/internal/cleanup"
	"github.com/hectic-downloader/server/internal/conversation"
	errx "github.com/hectic-downloader/server/internal/core/error"
	"github.com/hectic-downloader/server/internal/delivery"
	"github.com/hectic-downloader/server/internal/model"
	"github.com/hectic-downloader/server/internal/repo"
	"github.com/hectic-downloader/server/internal/retrieval"
	"github.com/hectic-downloader/server/internal/telegram"
	"github.com/hectic-downloader/server/internal/telegram/telegramtest"
	"github.com/stretchr/testify/require"
)

const chatID int64 = 42

type stubSearcher struct {
	results []model.SearchResult
	err     error
}

func (s *stubSearcher) Search(context.Context, string, int) ([]model.SearchResult, error) {
	return s.results, s.err
}

type noopTranscoder struct{}

func (noopTranscoder) ToAudio(context.Context, string, string) error { return errors.New("unused") }

type harness struct {
	bot      *Bot
	fake     *telegramtest.Fake
	states   *repo.MemoryStateRepository
	searcher *stubSearcher

	mu           sync.Mutex
	lastLookup   string
	upstreamDown bool
	mediaURL     string
}

func (h *harness) setUpstreamDown(down bool) {
	h.mu.Lock()
	h.upstreamDown = down
	h.mu.Unlock()
}

func newHarness(t *testing.T, tweaks ...func(*Config)) *harness {
	t.Helper()
	h := &harness{fake: telegramtest.New(), searcher: &stubSearcher{}}

	media := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("video-bytes"))
	}))
	t.Cleanup(media.Close)
	h.mediaURL = media.URL

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		h.lastLookup = r.URL.Query().Get("url")
		down := h.upstreamDown
		h.mu.Unlock()
		if down {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"status":false}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":true,"data":{"title":"Clip","low":"` + media.URL + `/low.mp4","high":"` + media.URL + `/high.mp4"}}`))
	}))
	t.Cleanup(upstream.Close)

	dispatcher, err := retrieval.NewDispatcher(model.UpstreamConfig{
		YouTubeAPI:      upstream.URL,
		SocialMediaAPI:  upstream.URL,
		MetadataTimeout: 5 * time.Second,
		SearchFetch:     12,
	}, h.searcher)
	require.NoError(t, err)

	pipeline, err := delivery.NewPipeline(model.DeliveryConfig{MaxConcurrent: 2, TempDir: t.TempDir()}, h.fake, noopTranscoder{})
	require.NoError(t, err)

	scheduler := cleanup.NewScheduler(h.fake)
	t.Cleanup(scheduler.Close)

	cfg := Config{
		Cleanup: model.CleanupConfig{
			AutoDelete:    time.Hour,
			AfterFailure:  time.Hour,
			AfterCancel:   time.Hour,
			AfterDelivery: time.Hour,
		},
		Branding: model.BrandingConfig{BotName: "Hectic"},
	}
	for _, tweak := range tweaks {
		tweak(&cfg)
	}

	h.states = repo.NewMemoryStateRepository(time.Hour, nil)
	h.bot, err = New(Deps{
		Messenger:     h.fake,
		Conversations: conversation.NewManager(h.states, model.SessionConfig{MenuSize: 10}),
		Cache:         repo.NewMemoryResultCache(5*time.Minute, nil),
		Retriever:     dispatcher,
		Deliverer:     pipeline,
		Cleanup:       scheduler,
	}, cfg)
	require.NoError(t, err)
	return h
}

func textUpdate(id int, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: id,
		From:      &tgbotapi.User{ID: 7},
		Chat:      &tgbotapi.Chat{ID: chatID},
		Text:      text,
	}}
}

func commandUpdate(id int, cmd string) tgbotapi.Update {
	u := textUpdate(id, "/"+cmd)
	u.Message.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd) + 1}}
	return u
}

func callbackUpdate(menuID int, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: 7},
		Message: &tgbotapi.Message{MessageID: menuID, Chat: &tgbotapi.Chat{ID: chatID}},
		Data:    data,
	}}
}

// button finds the callback data starting with prefix on the newest menu.
func (h *harness) button(t *testing.T, prefix string) (int, string) {
	t.Helper()
	sent := h.fake.Sent()
	for i := len(sent) - 1; i >= 0; i-- {
		for _, row := range sent[i].Keyboard {
			for _, btn := range row {
				if strings.HasPrefix(btn.Data, prefix) {
					return sent[i].ID, btn.Data
				}
			}
		}
	}
	t.Fatalf("no button with prefix %q", prefix)
	return 0, ""
}

func TestLinkToDeliveryWithLinkFallback(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.fake.FailSend = func(kind string) error {
		if kind == "video" {
			return errors.New("Request Entity Too Large")
		}
		return nil
	}

	h.bot.HandleUpdate(ctx, textUpdate(1, "https://www.tiktok.com/@user/video/123"))
	menuID, data := h.button(t, "video|high|")
	_, lowData := h.button(t, "video|low|")
	require.NotEmpty(t, lowData)

	h.bot.HandleUpdate(ctx, callbackUpdate(menuID, data))

	menu, _ := h.fake.Message(menuID)
	require.True(t, menu.Deleted)

	last, ok := h.fake.Last()
	require.True(t, ok)
	require.Contains(t, last.Text, "("+h.mediaURL+"/high.mp4)")
	require.Equal(t, []string{""}, h.fake.Answers())

	_, found, err := h.states.Get(ctx, chatID)
	require.NoError(t, err)
	require.False(t, found)
}

func TestCacheKeyUsedTwice(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.bot.HandleUpdate(ctx, textUpdate(1, "https://youtu.be/abc"))
	menuID, data := h.button(t, "video|low|")

	h.bot.HandleUpdate(ctx, callbackUpdate(menuID, data))
	h.bot.HandleUpdate(ctx, callbackUpdate(menuID, data))

	videos := 0
	for _, m := range h.fake.Sent() {
		if m.Kind == "video" {
			videos++
			require.Equal(t, []byte("video-bytes"), m.Payload)
		}
	}
	require.Equal(t, 2, videos)
	require.Equal(t, []string{"", ""}, h.fake.Answers())
}

func TestExpiredSessionAlerts(t *testing.T) {
	h := newHarness(t)
	h.bot.HandleUpdate(context.Background(), callbackUpdate(5, "video|high|42_123"))

	answers := h.fake.Answers()
	require.Len(t, answers, 1)
	require.Contains(t, answers[0], "Session expired")
}

func TestSearchWithZeroResultsPersistsNothing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.bot.HandleUpdate(ctx, textUpdate(1, "something nobody uploaded"))

	last, _ := h.fake.Last()
	require.Equal(t, noResultsText, last.Text)
	_, found, err := h.states.Get(ctx, chatID)
	require.NoError(t, err)
	require.False(t, found)
}

func TestSearchSelectionFlow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.searcher.results = []model.SearchResult{
		{ID: "v1", Title: "one"}, {ID: "v2", Title: "two"}, {ID: "v3", Title: "three"},
		{ID: "v4", Title: "four"}, {ID: "v5", Title: "five"},
	}

	h.bot.HandleUpdate(ctx, textUpdate(1, "lofi"))
	state, found, err := h.states.Get(ctx, chatID)
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, state.AwaitingSelection)
	require.Len(t, state.PendingResults, 5)

	for i, reply := range []string{"0", "6", "abc"} {
		h.bot.HandleUpdate(ctx, textUpdate(10+i, reply))
		last, _ := h.fake.Last()
		require.Contains(t, last.Text, "Invalid selection")
		after, _, _ := h.states.Get(ctx, chatID)
		require.Equal(t, state, after)
	}

	h.bot.HandleUpdate(ctx, textUpdate(20, "3"))
	h.mu.Lock()
	require.Equal(t, "https://www.youtube.com/watch?v=v3", h.lastLookup)
	h.mu.Unlock()

	state, found, err = h.states.Get(ctx, chatID)
	require.NoError(t, err)
	require.True(t, found)
	require.False(t, state.AwaitingSelection)
	h.button(t, "video|high|")
}

func TestCancelClearsState(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.bot.HandleUpdate(ctx, textUpdate(1, "https://instagram.com/reel/xyz"))
	menuID, _ := h.button(t, "video|high|")

	h.bot.HandleUpdate(ctx, callbackUpdate(menuID, "cancel"))
	menu, _ := h.fake.Message(menuID)
	require.Equal(t, cancelledText, menu.Text)

	_, found, err := h.states.Get(ctx, chatID)
	require.NoError(t, err)
	require.False(t, found)
}

type panickyRetriever struct{}

func (panickyRetriever) FetchMedia(context.Context, model.Platform, string) (model.MediaResult, error) {
	panic("boom")
}

func (panickyRetriever) Search(context.Context, string) ([]model.SearchResult, error) {
	return nil, nil
}

func TestHandlerPanicIsRecovered(t *testing.T) {
	h := newHarness(t)
	h.bot.retriever = panickyRetriever{}

	require.NotPanics(t, func() {
		h.bot.HandleUpdate(context.Background(), textUpdate(1, "https://youtu.be/abc"))
	})
	last, _ := h.fake.Last()
	require.Contains(t, last.Text, "An error occurred")
}

func TestCommands(t *testing.T) {
	h := newHarness(t)
	for i, cmd := range []string{"start", "help", "developer", "uptime", "system"} {
		h.bot.HandleUpdate(context.Background(), commandUpdate(i+1, cmd))
	}
	require.Len(t, h.fake.Sent(), 5)
	require.Equal(t, 1, h.bot.Users())
}

func TestQualityKeyboardLayout(t *testing.T) {
	kb := qualityKeyboard(model.MediaResult{QualityURLs: map[string]string{
		"high": "h", "low": "l", "1080": "x", "mp3": "a",
	}}, "42_1")

	require.Equal(t, telegram.Keyboard{
		{{Text: "📹 High Quality", Data: "video|high|42_1"}, {Text: "📹 Low Quality", Data: "video|low|42_1"}},
		{{Text: "📹 1080p", Data: "video|1080|42_1"}},
		{{Text: "🎵 Audio (MP3)", Data: "audio|mp3|42_1"}},
		{{Text: "❌ Cancel", Data: "cancel"}},
	}, kb)
}

func TestParseCallback(t *testing.T) {
	kind, label, key, ok := parseCallback("audio|mp3|42_1_2")
	require.True(t, ok)
	require.Equal(t, model.MediaAudio, kind)
	require.Equal(t, "mp3", label)
	require.Equal(t, "42_1_2", key)

	for _, bad := range []string{"", "video|high", "zip|high|k", "video||k"} {
		_, _, _, ok := parseCallback(bad)
		require.False(t, ok, bad)
	}
}

func (h *harness) deleted(ids ...int) func() bool {
	return func() bool {
		seen := map[int]bool{}
		for _, id := range h.fake.Deletes() {
			seen[id] = true
		}
		for _, id := range ids {
			if !seen[id] {
				return false
			}
		}
		return true
	}
}

func (h *harness) requireNoApology(t *testing.T) {
	t.Helper()
	for _, m := range h.fake.Sent() {
		require.NotContains(t, m.Text, errx.SystemErrorMessage)
	}
}

func TestLinkUpstreamFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, func(c *Config) { c.Cleanup.AfterFailure = 10 * time.Millisecond })
	h.setUpstreamDown(true)

	h.bot.HandleUpdate(ctx, textUpdate(1, "https://www.tiktok.com/@user/video/123"))

	sent := h.fake.Sent()
	require.Len(t, sent, 1)
	loading := sent[0]
	require.Equal(t, fetchFailedText(model.PlatformTikTok), loading.Text)
	h.requireNoApology(t)

	_, found, err := h.states.Get(ctx, chatID)
	require.NoError(t, err)
	require.False(t, found)

	require.Eventually(t, h.deleted(loading.ID, 1), time.Second, 5*time.Millisecond)
}

func TestSearchUpstreamFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, func(c *Config) { c.Cleanup.AfterFailure = 10 * time.Millisecond })
	h.searcher.err = errors.New("yt-dlp exited with status 1")

	h.bot.HandleUpdate(ctx, textUpdate(1, "lofi"))

	sent := h.fake.Sent()
	require.Len(t, sent, 1)
	loading := sent[0]
	require.Equal(t, searchFailedText, loading.Text)
	h.requireNoApology(t)

	_, found, err := h.states.Get(ctx, chatID)
	require.NoError(t, err)
	require.False(t, found)

	require.Eventually(t, h.deleted(loading.ID, 1), time.Second, 5*time.Millisecond)
}

func TestExpiredSearchMenuReleasesChat(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, func(c *Config) { c.Cleanup.AutoDelete = 20 * time.Millisecond })
	h.searcher.results = []model.SearchResult{{ID: "v1", Title: "one"}, {ID: "v2", Title: "two"}}

	h.bot.HandleUpdate(ctx, textUpdate(1, "lofi"))
	menu, ok := h.fake.Last()
	require.True(t, ok)
	require.Contains(t, menu.Text, "Search Results")

	require.Eventually(t, func() bool {
		m, _ := h.fake.Message(menu.ID)
		_, found, err := h.states.Get(ctx, chatID)
		return m.Deleted && err == nil && !found
	}, time.Second, 5*time.Millisecond)

	h.bot.HandleUpdate(ctx, textUpdate(2, "https://youtu.be/abc"))

	h.mu.Lock()
	require.Equal(t, "https://www.youtube.com/watch?v=abc", h.lastLookup)
	h.mu.Unlock()
	h.button(t, "video|high|")
	for _, m := range h.fake.Sent() {
		require.NotContains(t, m.Text, "Invalid selection")
	}
}

func TestRunReportsRunning(t *testing.T) {
	h := newHarness(t)
	require.False(t, h.bot.Running())

	updates := make(chan tgbotapi.Update)
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.bot.Run(context.Background(), updates)
	}()

	require.Eventually(t, h.bot.Running, time.Second, 5*time.Millisecond)
	close(updates)
	<-done
	require.False(t, h.bot.Running())
}
