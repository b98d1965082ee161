package bot

import (
	"context"
	"sync"
	"time"

	"github.com/hectic-downloader/server/internal/telegram"
)

// animate cycles the loading frames on a status message until stop is
// called or an edit fails. stop waits for the animation goroutine so no
// frame lands after the caller's own edit.
func (b *Bot) animate(ctx context.Context, chatID int64, messageID int, label string) (stop func()) {
	frames := b.cfg.Cleanup.LoadingFrames
	interval := b.cfg.Cleanup.LoadingInterval
	if messageID == 0 || len(frames) == 0 || interval <= 0 {
		return func() {}
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for frame := 0; ; frame = (frame + 1) % len(frames) {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			a := telegram.TryEdit(ctx, b.messenger, chatID, messageID, loadingText(frames[frame], label))
			if !a.OK() {
				a.Tolerate()
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}
