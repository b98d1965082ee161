package bot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hectic-downloader/server/internal/model"
	"github.com/hectic-downloader/server/internal/telegram"
)

// ====================== Message templates ======================

var esc = telegram.EscapeMarkdown

func loadingText(frame, label string) string {
	return fmt.Sprintf("%s %s...", frame, label)
}

func fetchingText(p model.Platform) string {
	if p == model.PlatformYouTube {
		return "⏳ Fetching YouTube video..."
	}
	return fmt.Sprintf("⏳ Processing %s video...", p.DisplayName())
}

func loadingLabel(p model.Platform) string {
	if p == model.PlatformYouTube {
		return "Fetching"
	}
	return "Downloading"
}

func fetchFailedText(p model.Platform) string {
	if p == model.PlatformYouTube {
		return "❌ *Error!*\n\nCould not fetch video information. Please check:\n• The URL is correct\n• The video is publicly available"
	}
	return fmt.Sprintf("❌ *Error!*\n\nCould not download from %s. Please check:\n• The URL is correct\n• The content is public\n• The link is valid", p.DisplayName())
}

const (
	searchingText    = "⏳ Searching YouTube..."
	searchFailedText = "❌ Search failed. Please try again later."
	noResultsText    = "❌ No results found. Try a different search query."
	cancelledText    = "❌ Download cancelled."
	unavailableText  = "❌ That format is not available for this video."
)

func platformIcon(p model.Platform) string {
	switch p {
	case model.PlatformInstagram:
		return "📸"
	case model.PlatformFacebook:
		return "👍"
	case model.PlatformTikTok:
		return "🎵"
	default:
		return "🎬"
	}
}

func qualityCaption(p model.Platform, res model.MediaResult, botName string) string {
	return fmt.Sprintf("%s *%s*\n\n✅ Video found! Choose your preferred quality:\n\n👨‍💻 *%s*",
		platformIcon(p), esc(res.Title), esc(botName))
}

func qualityButtonText(label string) string {
	switch label {
	case model.QualityHigh:
		return "📹 High Quality"
	case model.QualityLow:
		return "📹 Low Quality"
	case model.QualityMP3:
		return "🎵 Audio (MP3)"
	default:
		if _, err := strconv.Atoi(label); err == nil {
			return "📹 " + label + "p"
		}
		return "📹 " + label
	}
}

func searchMenuText(query string, results []model.SearchResult) string {
	var b strings.Builder
	b.WriteString("🔍 *Search Results*\n")
	b.WriteString("━━━━━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(&b, "Query: _\"%s\"_\n\n", esc(query))
	for i, r := range results {
		d := r.Duration
		if d == "" {
			d = "Live"
		}
		fmt.Fprintf(&b, "*%d.* %s (%s)\n", i+1, esc(r.Title), esc(d))
	}
	b.WriteString("\n━━━━━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(&b, "💬 Reply with number (1-%d)", len(results))
	return b.String()
}

func welcomeText(br model.BrandingConfig) string {
	return fmt.Sprintf(`🎬 *%s* 🎬

🌟 *Welcome!*

📥 *How to use:*
• Send a link from Instagram, Facebook, TikTok or YouTube
• Or type anything to search YouTube
• Pick a quality and get your file

📋 *Commands:*
/help - How to use the bot
/developer - Developer info
/uptime - Bot uptime
/system - System status`, esc(br.BotName))
}

const helpText = `📖 *Help*

1️⃣ Send a supported link:
• Instagram posts, reels and stories
• Facebook videos, watch and reels
• TikTok videos
• YouTube videos and shorts

2️⃣ Or send a search query and reply with the number of a result.

3️⃣ Choose a quality, or the audio button for MP3.

Menus disappear automatically after a while.`

func developerText(br model.BrandingConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "👨‍💻 *Developer Info*\n\n*Developer:* %s\n\n", esc(br.DeveloperName))
	if br.DeveloperTG != "" {
		fmt.Fprintf(&b, "💬 *Telegram:* @%s\n", esc(br.DeveloperTG))
	}
	if br.DeveloperGH != "" {
		fmt.Fprintf(&b, "🐙 *GitHub:* %s\n", esc(br.DeveloperGH))
	}
	if br.DeveloperPhone != "" {
		fmt.Fprintf(&b, "📱 *WhatsApp:* %s\n", esc(br.DeveloperPhone))
	}
	b.WriteString("\nFeel free to reach out for support or feedback!")
	return b.String()
}
