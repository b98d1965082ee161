package bot

import (
	"context"
	"fmt"
	"runtime"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hectic-downloader/server/internal/telegram"
)

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	if msg.From != nil {
		b.users.Track(msg.From.ID)
	}

	switch msg.Command() {
	case "start":
		return b.cmdStart(ctx, chatID)
	case "help":
		_, err := b.messenger.SendText(ctx, chatID, helpText, telegram.WithMarkdown())
		return err
	case "developer":
		_, err := b.messenger.SendText(ctx, chatID, developerText(b.cfg.Branding), telegram.WithMarkdown())
		return err
	case "uptime":
		_, err := b.messenger.SendText(ctx, chatID, b.uptimeText(), telegram.WithMarkdown())
		return err
	case "system":
		return b.cmdSystem(ctx, chatID)
	}
	return nil
}

func (b *Bot) cmdStart(ctx context.Context, chatID int64) error {
	_, err := b.sendWithThumbnail(ctx, chatID, b.cfg.Branding.StartImage, welcomeText(b.cfg.Branding))
	return err
}

func (b *Bot) uptimeText() string {
	return fmt.Sprintf("⏱️ *Bot Uptime*\n\n🟢 *Status:* Online\n⏰ *Uptime:* %s\n🚀 *Started:* %s\n\nThe bot is running smoothly!",
		formatUptime(b.now().Sub(b.startedAt)), b.startedAt.UTC().Format(time.RFC1123))
}

func (b *Bot) cmdSystem(ctx context.Context, chatID int64) error {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	ping, err := telegram.Ping(ctx, b.messenger, chatID)
	pingText := fmt.Sprintf("%dms", ping.Milliseconds())
	if err != nil {
		pingText = "n/a"
	}

	used := float64(mem.HeapAlloc) / 1024 / 1024
	total := float64(mem.HeapSys) / 1024 / 1024
	percent := 0.0
	if total > 0 {
		percent = used / total * 100
	}

	text := fmt.Sprintf("💻 *System Info*\n\n"+
		"🖥️ *RAM Usage:* %.2f MB / %.2f MB (%.1f%%)\n"+
		"⚡ *Ping:* %s\n"+
		"⏱️ *Uptime:* %s\n"+
		"👥 *Total Users:* %d\n"+
		"🧵 *Goroutines:* %d\n"+
		"⚙️ *Go Version:* %s\n"+
		"🌐 *Platform:* %s/%s\n\n"+
		"System running optimally! ✅",
		used, total, percent, pingText, formatUptime(b.now().Sub(b.startedAt)),
		b.users.Count(), runtime.NumGoroutine(), runtime.Version(), runtime.GOOS, runtime.GOARCH)

	_, err = b.messenger.SendText(ctx, chatID, text, telegram.WithMarkdown())
	return err
}

func formatUptime(d time.Duration) string {
	s := int(d.Seconds())
	days, hours, mins, secs := s/86400, (s%86400)/3600, (s%3600)/60, s%60
	return fmt.Sprintf("%dd %dh %dm %ds", days, hours, mins, secs)
}
