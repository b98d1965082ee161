package retrieval

import (
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/hectic-downloader/server/internal/model"
	"github.com/tidwall/gjson"
)

var (
	errNoSuccess = errors.New("response has no success indicator")
	errNoPayload = errors.New("response has no data payload")
	errNoShape   = errors.New("response shape not recognized")
)

// Shape is one known upstream response layout together with its adapter
// into MediaResult. Supporting a new upstream means adding a Shape.
type Shape interface {
	Name() string
	// Match reports whether body has this layout. It is only called on
	// bodies that already passed the success check.
	Match(body gjson.Result) bool
	Adapt(body gjson.Result) model.MediaResult
}

// DefaultShapes are tried in order.
var DefaultShapes = []Shape{NestedShape{}, FormatsShape{}, FlatShape{}}

// NestedShape: {"status": true, "data": {"title", "thumbnail", "low", "high"}}.
type NestedShape struct{}

func (NestedShape) Name() string { return "nested" }

func (NestedShape) Match(body gjson.Result) bool {
	d := body.Get("data")
	return d.IsObject() && (d.Get("low").Exists() || d.Get("high").Exists())
}

func (NestedShape) Adapt(body gjson.Result) model.MediaResult {
	d := body.Get("data")
	return model.MediaResult{
		Title:     d.Get("title").String(),
		Thumbnail: d.Get("thumbnail").String(),
		QualityURLs: compact(map[string]string{
			model.QualityLow:  d.Get("low").String(),
			model.QualityHigh: d.Get("high").String(),
		}),
	}
}

// FormatsShape: {"status": true, "data": {"title", "thumbnail",
// "formats": [{"quality": "1080", "url": ...}], "audio": "..."}}.
// The best and worst video formats double as "high" and "low".
type FormatsShape struct{}

func (FormatsShape) Name() string { return "formats" }

func (FormatsShape) Match(body gjson.Result) bool {
	return body.Get("data.formats").IsArray()
}

func (FormatsShape) Adapt(body gjson.Result) model.MediaResult {
	d := body.Get("data")
	urls := map[string]string{}

	type format struct {
		label  string
		height int
	}
	var videos []format
	d.Get("formats").ForEach(func(_, f gjson.Result) bool {
		u := f.Get("url").String()
		label := strings.TrimSuffix(strings.ToLower(f.Get("quality").String()), "p")
		if u == "" || label == "" {
			return true
		}
		urls[label] = u
		h, _ := strconv.Atoi(label)
		videos = append(videos, format{label: label, height: h})
		return true
	})
	if len(videos) > 0 {
		sort.Slice(videos, func(i, j int) bool { return videos[i].height > videos[j].height })
		if _, ok := urls[model.QualityHigh]; !ok {
			urls[model.QualityHigh] = urls[videos[0].label]
		}
		if _, ok := urls[model.QualityLow]; !ok {
			urls[model.QualityLow] = urls[videos[len(videos)-1].label]
		}
	}
	if a := d.Get("audio").String(); a != "" {
		urls[model.QualityMP3] = a
	}

	return model.MediaResult{
		Title:       d.Get("title").String(),
		Thumbnail:   d.Get("thumbnail").String(),
		QualityURLs: compact(urls),
	}
}

// FlatShape: {"success": true, "title", "thumbnail", "hd", "sd"} with an
// optional single "url" when only one variant exists.
type FlatShape struct{}

func (FlatShape) Name() string { return "flat" }

func (FlatShape) Match(body gjson.Result) bool {
	return body.Get("hd").Exists() || body.Get("sd").Exists() || body.Get("url").Exists()
}

func (FlatShape) Adapt(body gjson.Result) model.MediaResult {
	urls := map[string]string{
		model.QualityHigh: body.Get("hd").String(),
		model.QualityLow:  body.Get("sd").String(),
	}
	if u := body.Get("url").String(); u != "" {
		if urls[model.QualityHigh] == "" {
			urls[model.QualityHigh] = u
		}
		if urls[model.QualityLow] == "" {
			urls[model.QualityLow] = u
		}
	}
	return model.MediaResult{
		Title:       body.Get("title").String(),
		Thumbnail:   body.Get("thumbnail").String(),
		QualityURLs: compact(urls),
	}
}

// succeeded looks for a truthy "status" or "success" field.
func succeeded(body gjson.Result) bool {
	for _, key := range []string{"status", "success"} {
		r := body.Get(key)
		switch r.Type {
		case gjson.True:
			return true
		case gjson.String:
			switch strings.ToLower(r.String()) {
			case "ok", "success", "true":
				return true
			}
		case gjson.Number:
			if n := r.Int(); n == 1 || n == 200 {
				return true
			}
		}
	}
	return false
}

func hasPayload(body gjson.Result) bool {
	d := body.Get("data")
	if d.Exists() {
		return d.Type != gjson.Null && d.Type != gjson.False && d.Raw != "{}" && d.Raw != "[]"
	}
	// flat layouts carry the payload at the top level
	return body.Get("hd").Exists() || body.Get("sd").Exists() || body.Get("url").Exists()
}

// Normalize picks the first matching shape and adapts raw into a MediaResult.
func Normalize(raw []byte, shapes []Shape) (model.MediaResult, string, error) {
	if !gjson.ValidBytes(raw) {
		return model.MediaResult{}, "", errNoShape
	}
	body := gjson.ParseBytes(raw)
	if !succeeded(body) {
		return model.MediaResult{}, "", errNoSuccess
	}
	if !hasPayload(body) {
		return model.MediaResult{}, "", errNoPayload
	}
	for _, s := range shapes {
		if !s.Match(body) {
			continue
		}
		res := s.Adapt(body)
		if len(res.QualityURLs) == 0 {
			return model.MediaResult{}, s.Name(), errNoPayload
		}
		return res, s.Name(), nil
	}
	return model.MediaResult{}, "", errNoShape
}

func compact(m map[string]string) map[string]string {
	for k, v := range m {
		if v == "" {
			delete(m, k)
		}
	}
	return m
}
