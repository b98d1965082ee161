package delivery

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Transcoder extracts an audio-only file from a downloaded media file.
type Transcoder interface {
	ToAudio(ctx context.Context, inPath, outPath string) error
}

// FFmpegTranscoder runs the ffmpeg binary to produce an mp3.
type FFmpegTranscoder struct {
	path    string
	bitrate string
}

func NewFFmpegTranscoder(path, bitrate string) *FFmpegTranscoder {
	if path == "" {
		path = "ffmpeg"
	}
	if bitrate == "" {
		bitrate = "192k"
	}
	return &FFmpegTranscoder{path: path, bitrate: bitrate}
}

// Available reports whether the binary can be found.
func (t *FFmpegTranscoder) Available() error {
	if _, err := exec.LookPath(t.path); err != nil {
		return fmt.Errorf("%s not found in PATH: %w", t.path, err)
	}
	return nil
}

func (t *FFmpegTranscoder) ToAudio(ctx context.Context, inPath, outPath string) error {
	cmd := exec.CommandContext(
		ctx,
		t.path,
		"-y",
		"-loglevel", "error",
		"-i", inPath,
		"-vn",
		"-acodec", "libmp3lame",
		"-b:a", t.bitrate,
		outPath,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			msg = err.Error()
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("ffmpeg timed out: %s", msg)
		}
		return fmt.Errorf("ffmpeg failed: %s", msg)
	}
	return nil
}
