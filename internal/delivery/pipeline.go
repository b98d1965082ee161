// Package delivery streams a chosen media variant into the chat, falling
// back to a plain download link when the upload fails.
package delivery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	errx "github.com/hectic-downloader/server/internal/core/error"
	"github.com/hectic-downloader/server/internal/model"
	"github.com/hectic-downloader/server/internal/telegram"
	logx "github.com/hectic-downloader/server/pkg/logger"
	"github.com/hectic-downloader/server/pkg/metrics"
	"golang.org/x/sync/semaphore"
)

type Outcome string

const (
	Delivered              Outcome = "delivered"
	FailedWithLinkFallback Outcome = "link_fallback"
)

// Request describes one delivery.
type Request struct {
	ChatID int64
	URL    string
	Kind   model.MediaKind
	Title  string
}

type Result struct {
	Outcome Outcome
	// Err is the cause of a fallback. It is never shown to the user.
	Err error
}

type Pipeline struct {
	messenger  telegram.Messenger
	transcoder Transcoder
	client     *http.Client
	slots      *semaphore.Weighted

	tempDir          string
	mediaTimeout     time.Duration
	transcodeTimeout time.Duration
	botName          string
}

type Option func(*Pipeline)

func WithHTTPClient(c *http.Client) Option {
	return func(p *Pipeline) { p.client = c }
}

func WithBotName(name string) Option {
	return func(p *Pipeline) { p.botName = name }
}

func NewPipeline(cfg model.DeliveryConfig, m telegram.Messenger, t Transcoder, opts ...Option) (*Pipeline, error) {
	if m == nil {
		return nil, fmt.Errorf("delivery: messenger is required")
	}
	if t == nil {
		return nil, fmt.Errorf("delivery: transcoder is required")
	}
	slots := cfg.MaxConcurrent
	if slots <= 0 {
		slots = 1
	}
	p := &Pipeline{
		messenger:        m,
		transcoder:       t,
		client:           &http.Client{},
		slots:            semaphore.NewWeighted(slots),
		tempDir:          cfg.TempDir,
		mediaTimeout:     cfg.MediaTimeout,
		transcodeTimeout: cfg.TranscodeLimit,
	}
	if p.mediaTimeout <= 0 {
		p.mediaTimeout = 5 * time.Minute
	}
	if p.transcodeTimeout <= 0 {
		p.transcodeTimeout = 3 * time.Minute
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Deliver uploads the media at req.URL. It never returns a raw error to the
// chat: on any failure the status message becomes a direct download link.
func (p *Pipeline) Deliver(ctx context.Context, req Request) Result {
	title := req.Title
	if title == "" {
		title = "Media"
	}
	log := logx.Chat(req.ChatID)

	statusID, err := p.messenger.SendText(ctx, req.ChatID, processingText(title), telegram.WithMarkdown())
	if err != nil {
		log.Warn().Err(err).Msg("failed to send processing status")
	}

	err = p.upload(ctx, req, title, statusID)
	if err == nil {
		if statusID != 0 {
			telegram.TryDelete(ctx, p.messenger, req.ChatID, statusID).Tolerate()
		}
		metrics.RecordDelivery(string(req.Kind), string(Delivered))
		return Result{Outcome: Delivered}
	}

	log.Warn().Err(err).Str("kind", string(req.Kind)).Msg("upload failed, sending direct link")
	p.fallback(ctx, req.ChatID, statusID, title, req.URL)
	metrics.RecordDelivery(string(req.Kind), string(FailedWithLinkFallback))
	return Result{Outcome: FailedWithLinkFallback, Err: errx.Wrap(err, errx.KindDelivery, "upload failed")}
}

func (p *Pipeline) upload(ctx context.Context, req Request, title string, statusID int) error {
	if err := p.slots.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("wait for delivery slot: %w", err)
	}
	defer p.slots.Release(1)
	metrics.DeliveriesActive.Inc()
	defer metrics.DeliveriesActive.Dec()

	ctx, cancel := context.WithTimeout(ctx, p.mediaTimeout)
	defer cancel()

	body, err := p.open(ctx, req.URL)
	if err != nil {
		return err
	}
	defer body.Close()

	if statusID != 0 {
		telegram.TryEdit(ctx, p.messenger, req.ChatID, statusID, uploadingText(title), telegram.WithMarkdown()).Tolerate()
	}

	caption := p.caption(title)
	if req.Kind == model.MediaAudio {
		return p.uploadAudio(ctx, req.ChatID, body, title, caption)
	}
	_, err = p.messenger.SendVideo(ctx, req.ChatID, telegram.Upload{Name: fileName(title, "mp4"), Reader: body}, caption)
	return err
}

func (p *Pipeline) open(ctx context.Context, url string) (io.ReadCloser, error) {
	if url == "" {
		return nil, fmt.Errorf("empty media url")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build media request: %w", err)
	}
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetch media: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch media: unexpected status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// uploadAudio materializes the stream, transcodes it and uploads the result.
// The scratch directory is removed on every path.
func (p *Pipeline) uploadAudio(ctx context.Context, chatID int64, src io.Reader, title, caption string) error {
	dir, err := os.MkdirTemp(p.tempDir, "hectic-audio-")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			logx.Error().Err(err).Str("dir", dir).Msg("failed to remove temp dir")
		}
	}()

	inPath := filepath.Join(dir, "source")
	if err := writeFile(inPath, src); err != nil {
		return err
	}

	outPath := filepath.Join(dir, "audio.mp3")
	tctx, cancel := context.WithTimeout(ctx, p.transcodeTimeout)
	err = p.transcoder.ToAudio(tctx, inPath, outPath)
	cancel()
	if err != nil {
		return fmt.Errorf("transcode: %w", err)
	}

	f, err := os.Open(outPath)
	if err != nil {
		return fmt.Errorf("open transcoded audio: %w", err)
	}
	defer f.Close()

	_, err = p.messenger.SendAudio(ctx, chatID, telegram.Upload{Name: fileName(title, "mp3"), Reader: f}, caption, title)
	return err
}

func writeFile(path string, src io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		return fmt.Errorf("download media: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	return nil
}

// fallback edits the status message into a link, or sends the link when
// there is no status message. Failures are swallowed.
func (p *Pipeline) fallback(ctx context.Context, chatID int64, statusID int, title, url string) {
	// the request context may be the reason we are here
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()

	text := linkText(title, url)
	if statusID != 0 {
		telegram.TryEdit(ctx, p.messenger, chatID, statusID, text, telegram.WithMarkdown(), telegram.WithoutPreview()).Tolerate()
		return
	}
	_, err := p.messenger.SendText(ctx, chatID, text, telegram.WithMarkdown(), telegram.WithoutPreview())
	telegram.Attempt{Op: "send_link", ChatID: chatID, Err: err}.Tolerate()
}

func (p *Pipeline) caption(title string) string {
	c := "📹 *" + telegram.EscapeMarkdown(title) + "*"
	if p.botName != "" {
		c += "\n\n👨‍💻 *" + telegram.EscapeMarkdown(p.botName) + "*"
	}
	return c
}

func processingText(title string) string {
	return "📥 *Processing...*\n\n" + telegram.EscapeMarkdown(title)
}

func uploadingText(title string) string {
	return "⬆️ *Uploading...*\n\n" + telegram.EscapeMarkdown(title)
}

func linkText(title, url string) string {
	return fmt.Sprintf("📥 *Direct Download Link*\n\n*%s*\n\n[Download Here](%s)", telegram.EscapeMarkdown(title), url)
}

var unsafeName = regexp.MustCompile(`[^\p{L}\p{N}._ -]+`)

func fileName(title, ext string) string {
	name := strings.TrimSpace(unsafeName.ReplaceAllString(title, ""))
	if name == "" {
		name = "media"
	}
	if r := []rune(name); len(r) > 60 {
		name = string(r[:60])
	}
	return name + "." + ext
}
