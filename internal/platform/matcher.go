// Package platform classifies chat input as a supported media link or a
// free-text search query.
package platform

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/hectic-downloader/server/internal/model"
)

// Rule recognizes links of one platform.
type Rule struct {
	Platform model.Platform
	Pattern  *regexp.Regexp
}

// DefaultRules are tried in order; the first match wins.
var DefaultRules = []Rule{
	{
		Platform: model.PlatformInstagram,
		Pattern:  regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?instagram\.com/(?:p|reel|stories)/[\w-]+`),
	},
	{
		Platform: model.PlatformFacebook,
		Pattern:  regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?facebook\.com/(?:share/v/|watch/|video/|reel/|[\w-]+/video)[\w/?=&\-._~:@!$'()*+,;%]+`),
	},
	{
		Platform: model.PlatformTikTok,
		Pattern:  regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?(?:vm\.)?tiktok\.com/[\w@]+`),
	},
	{
		Platform: model.PlatformYouTube,
		Pattern:  regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?(?:youtube\.com|youtu\.be)/\S+`),
	},
}

// Classification is the outcome of Classify. Exactly one of Platform or
// Query is meaningful: IsLink reports which.
type Classification struct {
	Platform model.Platform
	URL      string
	Query    string
}

func (c Classification) IsLink() bool { return c.Platform != "" }

type Matcher struct {
	rules []Rule
}

func NewMatcher(rules ...Rule) *Matcher {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	return &Matcher{rules: rules}
}

// Classify trims text and returns the first platform whose pattern matches.
// The URL is the whitespace-delimited token holding the match, so words
// around a pasted link are dropped. Anything else, malformed URLs included,
// becomes a search query verbatim.
func (m *Matcher) Classify(text string) Classification {
	text = strings.TrimSpace(text)
	for _, r := range m.rules {
		loc := r.Pattern.FindStringIndex(text)
		if loc == nil {
			continue
		}
		u := linkToken(text, loc[0], loc[1])
		if r.Platform == model.PlatformYouTube {
			u = CanonicalYouTube(u)
		}
		return Classification{Platform: r.Platform, URL: u}
	}
	return Classification{Query: text}
}

func linkToken(text string, start, end int) string {
	if i := strings.LastIndexFunc(text[:start], unicode.IsSpace); i >= 0 {
		start = i + 1
	}
	if i := strings.IndexFunc(text[end:], unicode.IsSpace); i >= 0 {
		end += i
	} else {
		end = len(text)
	}
	return text[start:end]
}

var youtubeIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/)([^&\n?#]+)`),
	regexp.MustCompile(`youtube\.com/embed/([^&\n?#]+)`),
	regexp.MustCompile(`youtube\.com/v/([^&\n?#]+)`),
}

// YouTubeID extracts the video id from watch, short, embed and /v/ links.
func YouTubeID(link string) (string, bool) {
	for _, p := range youtubeIDPatterns {
		if m := p.FindStringSubmatch(link); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// CanonicalYouTube rewrites a recognized YouTube link to its watch URL and
// returns other links unchanged.
func CanonicalYouTube(link string) string {
	if id, ok := YouTubeID(link); ok {
		return WatchURL(id)
	}
	return link
}

func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}
