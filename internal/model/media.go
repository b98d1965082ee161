package model

import (
	"sort"
)

// Platform identifies the source site of a link.
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformFacebook  Platform = "facebook"
	PlatformTikTok    Platform = "tiktok"
	PlatformYouTube   Platform = "youtube"
)

// DisplayName is the human name used in status messages.
func (p Platform) DisplayName() string {
	switch p {
	case PlatformInstagram:
		return "Instagram"
	case PlatformFacebook:
		return "Facebook"
	case PlatformTikTok:
		return "TikTok"
	case PlatformYouTube:
		return "YouTube"
	default:
		return string(p)
	}
}

// MediaKind selects how a chosen variant is sent to the chat.
type MediaKind string

const (
	MediaVideo MediaKind = "video"
	MediaAudio MediaKind = "audio"
)

// Well-known quality labels. Upstreams may add others ("1080", "720", ...).
const (
	QualityHigh = "high"
	QualityLow  = "low"
	QualityMP3  = "mp3"
)

// MediaResult is the normalized answer of an extraction API. It is stored
// as-is in the result cache and never mutated afterwards.
type MediaResult struct {
	Title       string            `json:"title,omitempty"`
	Thumbnail   string            `json:"thumbnail,omitempty"`
	QualityURLs map[string]string `json:"quality_urls"`
}

// URL returns the download link for a label.
func (m MediaResult) URL(label string) (string, bool) {
	u, ok := m.QualityURLs[label]
	return u, ok && u != ""
}

// Labels lists the available quality labels with "high" and "low" first and
// the rest in lexical order, so menus are stable across requests.
func (m MediaResult) Labels() []string {
	rank := func(l string) int {
		switch l {
		case QualityHigh:
			return 0
		case QualityLow:
			return 1
		default:
			return 2
		}
	}
	labels := make([]string, 0, len(m.QualityURLs))
	for l, u := range m.QualityURLs {
		if u != "" {
			labels = append(labels, l)
		}
	}
	sort.Slice(labels, func(i, j int) bool {
		ri, rj := rank(labels[i]), rank(labels[j])
		if ri != rj {
			return ri < rj
		}
		return labels[i] < labels[j]
	})
	return labels
}

// Clone returns a deep copy so callers cannot mutate a cached entry.
func (m MediaResult) Clone() MediaResult {
	urls := make(map[string]string, len(m.QualityURLs))
	for k, v := range m.QualityURLs {
		urls[k] = v
	}
	m.QualityURLs = urls
	return m
}
