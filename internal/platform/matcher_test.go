package platform

import (
	"testing"

	"github.com/hectic-downloader/server/internal/model"
	"github.com/stretchr/testify/require"
)

func TestClassify_Links(t *testing.T) {
	cases := []struct {
		in   string
		want model.Platform
	}{
		{"https://www.instagram.com/p/Cx1_ab-9/", model.PlatformInstagram},
		{"instagram.com/reel/abc123", model.PlatformInstagram},
		{"https://instagram.com/stories/someone", model.PlatformInstagram},
		{"https://www.facebook.com/share/v/1AbCdEf/", model.PlatformFacebook},
		{"https://facebook.com/watch/?v=123456", model.PlatformFacebook},
		{"https://www.facebook.com/reel/98765", model.PlatformFacebook},
		{"https://www.facebook.com/somepage/videos/123", model.PlatformFacebook},
		{"https://vm.tiktok.com/ZMabc123/", model.PlatformTikTok},
		{"https://www.tiktok.com/@user/video/1", model.PlatformTikTok},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", model.PlatformYouTube},
		{"https://youtu.be/dQw4w9WgXcQ", model.PlatformYouTube},
		{"HTTPS://WWW.YOUTUBE.COM/shorts/abc", model.PlatformYouTube},
		{"  https://youtu.be/xyz  ", model.PlatformYouTube},
	}
	m := NewMatcher()
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got := m.Classify(tc.in)
			require.True(t, got.IsLink())
			require.Equal(t, tc.want, got.Platform)
		})
	}
}

func TestClassify_SearchFallback(t *testing.T) {
	m := NewMatcher()
	for _, in := range []string{
		"lofi beats to study to",
		"   .   ",
		"https://example.com/video/1",
		"instagram.com/explore",
		"youtube.com",
		"htp:/youtu.be",
	} {
		got := m.Classify(in)
		require.False(t, got.IsLink(), in)
		require.NotEmpty(t, got.Query, in)
	}
}

func TestClassify_FirstRuleWins(t *testing.T) {
	// the text carries both an instagram and a youtube link
	got := NewMatcher().Classify("https://instagram.com/p/abc https://youtu.be/xyz")
	require.Equal(t, model.PlatformInstagram, got.Platform)
	require.Equal(t, "https://instagram.com/p/abc", got.URL)
}

func TestClassify_URLIsLinkTokenOnly(t *testing.T) {
	m := NewMatcher()
	cases := map[string]string{
		"look at instagram.com/p/abc":                            "instagram.com/p/abc",
		"look at https://www.tiktok.com/@user/video/123 please":  "https://www.tiktok.com/@user/video/123",
		"https://www.facebook.com/reel/98765\nso funny":          "https://www.facebook.com/reel/98765",
		"watch this https://youtu.be/dQw4w9WgXcQ?si=x right now": "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
	}
	for in, want := range cases {
		got := m.Classify(in)
		require.True(t, got.IsLink(), in)
		require.Equal(t, want, got.URL, in)
	}
}

func TestCanonicalYouTube(t *testing.T) {
	want := "https://www.youtube.com/watch?v=dQw4w9WgXcQ"
	for _, in := range []string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42",
		"https://youtu.be/dQw4w9WgXcQ?si=share",
		"https://www.youtube.com/embed/dQw4w9WgXcQ",
		"https://youtube.com/v/dQw4w9WgXcQ",
	} {
		require.Equal(t, want, CanonicalYouTube(in), in)
	}
	require.Equal(t, "https://youtube.com/shorts/abc", CanonicalYouTube("https://youtube.com/shorts/abc"))
}

func TestClassify_YouTubeURLIsCanonical(t *testing.T) {
	got := NewMatcher().Classify("https://youtu.be/dQw4w9WgXcQ")
	require.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", got.URL)
}
