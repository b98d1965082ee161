package model

import "time"

// ================ Config ================
type TelegramConfig struct {
	Token     string `envconfig:"BOT_TOKEN" required:"true"`
	APIServer string `envconfig:"TELEGRAM_API_SERVER"`
	Debug     bool   `envconfig:"TELEGRAM_DEBUG" default:"false"`
	PollWait  int    `envconfig:"TELEGRAM_POLL_TIMEOUT" default:"60"`
}

type UpstreamConfig struct {
	YouTubeAPI      string        `envconfig:"YOUTUBE_API" default:"https://yt-dl.officialhectormanuel.workers.dev/"`
	SocialMediaAPI  string        `envconfig:"SOCIAL_MEDIA_API" default:"https://dev-priyanshi.onrender.com/api/alldl"`
	SearchAPI       string        `envconfig:"SEARCH_API"`
	SearchBackend   string        `envconfig:"SEARCH_BACKEND" default:"ytdlp"`
	YTDLPPath       string        `envconfig:"YTDLP_PATH" default:"yt-dlp"`
	MetadataTimeout time.Duration `envconfig:"METADATA_TIMEOUT" default:"30s"`
	SearchFetch     int           `envconfig:"SEARCH_FETCH_LIMIT" default:"12"`
}

type SessionConfig struct {
	CacheTTL time.Duration `envconfig:"CACHE_TTL" default:"5m"`
	StateTTL time.Duration `envconfig:"STATE_TTL" default:"30m"`
	MenuSize int           `envconfig:"MENU_LIMIT" default:"10"`
}

type CleanupConfig struct {
	AutoDelete      time.Duration `envconfig:"AUTO_DELETE_DELAY" default:"60s"`
	AfterFailure    time.Duration `envconfig:"FAILURE_DELETE_DELAY" default:"10s"`
	AfterCancel     time.Duration `envconfig:"CANCEL_DELETE_DELAY" default:"3s"`
	AfterDelivery   time.Duration `envconfig:"DELIVERED_DELETE_DELAY" default:"5s"`
	LoadingFrames   []string      `envconfig:"LOADING_FRAMES" default:"⏳,⌛,⏳,⌛"`
	LoadingInterval time.Duration `envconfig:"LOADING_INTERVAL" default:"500ms"`
}

type DeliveryConfig struct {
	MediaTimeout   time.Duration `envconfig:"MEDIA_TIMEOUT" default:"5m"`
	MaxConcurrent  int64         `envconfig:"MAX_CONCURRENT_DELIVERIES" default:"4"`
	FFmpegPath     string        `envconfig:"FFMPEG_PATH" default:"ffmpeg"`
	TempDir        string        `envconfig:"DELIVERY_TEMP_DIR"`
	AudioBitrate   string        `envconfig:"AUDIO_BITRATE" default:"192k"`
	TranscodeLimit time.Duration `envconfig:"TRANSCODE_TIMEOUT" default:"3m"`
}

type BrandingConfig struct {
	BotName        string `envconfig:"BOT_NAME" default:"Hectic Downloader"`
	StartImage     string `envconfig:"START_IMAGE" default:"https://dabby.vercel.app/hect.jpg"`
	DeveloperName  string `envconfig:"DEVELOPER_NAME" default:"Mr Frank"`
	DeveloperTG    string `envconfig:"DEVELOPER_TELEGRAM" default:"mrfrankofc"`
	DeveloperGH    string `envconfig:"DEVELOPER_GITHUB" default:"github.com/mrfr8nk"`
	DeveloperPhone string `envconfig:"DEVELOPER_WHATSAPP"`
}
