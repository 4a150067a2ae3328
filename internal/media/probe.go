package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/clipfetch/clipfetch/internal/utils"
)

const probeTimeout = 30 * time.Second

// StreamMeta is the subset of stream metadata the pipeline cares about.
type StreamMeta struct {
	Duration float64
	Width    int
	Height   int
}

// IsDegenerate reports whether the clip is a placeholder rather than
// real video: near-zero duration or zero dimensions.
func (m StreamMeta) IsDegenerate() bool {
	return m.Duration < 0.5 || m.Width == 0 || m.Height == 0
}

// Prober reads stream metadata from a local or remote media URL.
type Prober interface {
	Probe(ctx context.Context, target string) (StreamMeta, error)
}

// FFprobe shells out to the ffprobe binary.
type FFprobe struct {
	Path string
}

// ffprobe's -print_format json output, trimmed to what we read.
type ffprobeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe runs ffprobe against target (a file path or URL) and returns
// the first video stream's dimensions plus container duration.
func (p *FFprobe) Probe(ctx context.Context, target string) (StreamMeta, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.Path,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		target,
	)

	out, err := cmd.Output()
	if err != nil {
		return StreamMeta{}, fmt.Errorf("ffprobe failed: %w", err)
	}

	var parsed ffprobeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return StreamMeta{}, fmt.Errorf("ffprobe output unparsable: %w", err)
	}

	meta := StreamMeta{}
	meta.Duration, _ = strconv.ParseFloat(parsed.Format.Duration, 64)
	for _, s := range parsed.Streams {
		if s.CodecType == "video" {
			meta.Width = s.Width
			meta.Height = s.Height
			break
		}
	}

	utils.Debug("probe %s: duration=%.2fs %dx%d", target, meta.Duration, meta.Width, meta.Height)
	return meta, nil
}
