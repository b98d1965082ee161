package retrieval

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os/exec"
	"strconv"
	"strings"

	"github.com/hectic-downloader/server/internal/model"
	logx "github.com/hectic-downloader/server/pkg/logger"
	"github.com/tidwall/gjson"
)

// HTTPSearcher queries a search API with GET <endpoint>?q=<query>&limit=<n>.
// It understands the youtube-search-api item layout ("items" with
// length.simpleText and thumbnail.thumbnails) and a flat "results" list.
type HTTPSearcher struct {
	endpoint string
	client   *http.Client
}

func NewHTTPSearcher(endpoint string, client *http.Client) *HTTPSearcher {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPSearcher{endpoint: endpoint, client: client}
}

func (s *HTTPSearcher) Search(ctx context.Context, query string, limit int) ([]model.SearchResult, error) {
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse search endpoint: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("invalid search response")
	}

	body := gjson.ParseBytes(raw)
	list := body.Get("items")
	if !list.Exists() {
		list = body.Get("results")
	}

	var out []model.SearchResult
	list.ForEach(func(_, it gjson.Result) bool {
		// channels and playlists share the list with videos
		if t := it.Get("type").String(); t != "" && t != "video" {
			return true
		}
		r := model.SearchResult{
			ID:        it.Get("id").String(),
			Title:     it.Get("title").String(),
			Duration:  firstString(it, "length.simpleText", "duration"),
			Thumbnail: firstString(it, "thumbnail.thumbnails.0.url", "thumbnail"),
		}
		if r.ID == "" {
			return true
		}
		out = append(out, r)
		return limit <= 0 || len(out) < limit
	})
	return out, nil
}

// YTDLPSearcher shells out to yt-dlp in ytsearch mode.
type YTDLPSearcher struct {
	path string
}

func NewYTDLPSearcher(path string) *YTDLPSearcher {
	if path == "" {
		path = "yt-dlp"
	}
	return &YTDLPSearcher{path: path}
}

func (s *YTDLPSearcher) Search(ctx context.Context, query string, limit int) ([]model.SearchResult, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}
	args := []string{"-j", "--no-warnings", "--flat-playlist", fmt.Sprintf("ytsearch%d:%s", limit, q)}

	cmd := exec.CommandContext(ctx, s.path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()

	results := parseYTDLPLines(out, limit)
	// partial output still counts as success
	if len(results) > 0 {
		return results, nil
	}
	if err != nil {
		msg := stderr.String()
		if len(msg) > 300 {
			msg = msg[:300] + "..."
		}
		logx.Debug().Str("stderr", msg).Msg("yt-dlp search failed")
		return nil, fmt.Errorf("yt-dlp search: %w", err)
	}
	return nil, nil
}

func parseYTDLPLines(out []byte, limit int) []model.SearchResult {
	var results []model.SearchResult
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 4<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "{") || !gjson.Valid(line) {
			continue
		}
		e := gjson.Parse(line)
		id := e.Get("id").String()
		if id == "" {
			continue
		}
		thumb := e.Get("thumbnail").String()
		if thumb == "" {
			thumb = e.Get("thumbnails.0.url").String()
		}
		results = append(results, model.SearchResult{
			ID:        id,
			Title:     e.Get("title").String(),
			Duration:  FormatDuration(int(e.Get("duration").Float())),
			Thumbnail: thumb,
		})
		if len(results) >= limit {
			break
		}
	}
	return results
}

// FormatDuration renders seconds as m:ss or h:mm:ss. Zero means live or
// unknown and renders empty.
func FormatDuration(seconds int) string {
	if seconds <= 0 {
		return ""
	}
	h, m, s := seconds/3600, (seconds%3600)/60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func firstString(r gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := r.Get(p); v.Exists() && v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}
	return ""
}
