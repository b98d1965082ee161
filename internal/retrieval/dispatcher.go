// Package retrieval calls the external extraction and search services and
// normalizes their answers.
package retrieval

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	errx "github.com/hectic-downloader/server/internal/core/error"
	"github.com/hectic-downloader/server/internal/model"
	logx "github.com/hectic-downloader/server/pkg/logger"
	"github.com/hectic-downloader/server/pkg/metrics"
)

// maxBodyBytes caps what is read from an extraction API response.
const maxBodyBytes = 4 << 20

// Searcher turns a keyword query into an ordered result list.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]model.SearchResult, error)
}

// Dispatcher routes classified input to the right upstream. Every call is a
// single attempt bounded by timeout.
type Dispatcher struct {
	client      *http.Client
	endpoints   map[model.Platform]string
	fallback    string
	shapes      []Shape
	searcher    Searcher
	searchLimit int
	timeout     time.Duration
}

type DispatcherOption func(*Dispatcher)

func WithHTTPClient(c *http.Client) DispatcherOption {
	return func(d *Dispatcher) { d.client = c }
}

func WithShapes(shapes ...Shape) DispatcherOption {
	return func(d *Dispatcher) { d.shapes = shapes }
}

// NewDispatcher builds a Dispatcher from config. YouTube links go to the
// YouTube API; every other platform goes to the social media API.
func NewDispatcher(cfg model.UpstreamConfig, searcher Searcher, opts ...DispatcherOption) (*Dispatcher, error) {
	if cfg.YouTubeAPI == "" && cfg.SocialMediaAPI == "" {
		return nil, fmt.Errorf("retrieval: no extraction endpoint configured")
	}
	if searcher == nil {
		return nil, fmt.Errorf("retrieval: searcher is required")
	}
	d := &Dispatcher{
		client:      &http.Client{},
		endpoints:   map[model.Platform]string{model.PlatformYouTube: cfg.YouTubeAPI},
		fallback:    cfg.SocialMediaAPI,
		shapes:      DefaultShapes,
		searcher:    searcher,
		searchLimit: cfg.SearchFetch,
		timeout:     cfg.MetadataTimeout,
	}
	if d.fallback == "" {
		d.fallback = cfg.YouTubeAPI
	}
	if d.endpoints[model.PlatformYouTube] == "" {
		d.endpoints[model.PlatformYouTube] = d.fallback
	}
	if d.timeout <= 0 {
		d.timeout = 30 * time.Second
	}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

func (d *Dispatcher) endpoint(p model.Platform) string {
	if e, ok := d.endpoints[p]; ok && e != "" {
		return e
	}
	return d.fallback
}

// FetchMedia asks the extraction API about link. Transport errors, bad
// status codes and unrecognized bodies all come back as KindUpstream.
func (d *Dispatcher) FetchMedia(ctx context.Context, p model.Platform, link string) (model.MediaResult, error) {
	service := string(p)
	start := time.Now()

	res, shape, err := d.fetch(ctx, d.endpoint(p), link)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordUpstream(service, status, time.Since(start).Seconds())
	metrics.RetrievalsTotal.WithLabelValues(service, status).Inc()

	if err != nil {
		logx.Warn().Err(err).Str("platform", service).Str("url", link).Msg("media retrieval failed")
		return model.MediaResult{}, errx.WrapUpstream(err, service)
	}
	if res.Title == "" {
		res.Title = p.DisplayName() + " Video"
	}
	logx.Debug().Str("platform", service).Str("shape", shape).Strs("labels", res.Labels()).Msg("media retrieved")
	return res, nil
}

func (d *Dispatcher) fetch(ctx context.Context, endpoint, link string) (model.MediaResult, string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	u, err := url.Parse(endpoint)
	if err != nil {
		return model.MediaResult{}, "", fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("url", link)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return model.MediaResult{}, "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return model.MediaResult{}, "", fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.MediaResult{}, "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return model.MediaResult{}, "", fmt.Errorf("read body: %w", err)
	}
	return Normalize(raw, d.shapes)
}

// Search returns at most the configured number of results. An empty slice
// with a nil error means the query matched nothing.
func (d *Dispatcher) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	results, err := d.searcher.Search(ctx, query, d.searchLimit)
	switch {
	case err != nil:
		metrics.SearchesTotal.WithLabelValues("error").Inc()
		metrics.RecordUpstream("search", "error", time.Since(start).Seconds())
		logx.Warn().Err(err).Str("query", query).Msg("search failed")
		return nil, errx.WrapUpstream(err, "search")
	case len(results) == 0:
		metrics.SearchesTotal.WithLabelValues("empty").Inc()
	default:
		metrics.SearchesTotal.WithLabelValues("results").Inc()
	}
	metrics.RecordUpstream("search", "ok", time.Since(start).Seconds())
	return results, nil
}
