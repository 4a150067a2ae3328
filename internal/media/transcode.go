package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/clipfetch/clipfetch/internal/utils"
)

const transcodeTimeout = 5 * time.Minute

// Audio output parameters. Fixed so every delivered audio file plays
// everywhere regardless of the source codec.
const (
	audioCodec      = "libmp3lame"
	audioBitrate    = "192k"
	audioSampleRate = "44100"
)

// Transcoder converts an arbitrary audio source into the fixed target format.
type Transcoder interface {
	TranscodeAudio(ctx context.Context, src, dst string) error
}

// FFmpeg shells out to the ffmpeg binary.
type FFmpeg struct {
	Path string
}

// TranscodeAudio re-encodes src into dst as mp3. A missing output file
// after a zero exit status is still treated as failure.
func (f *FFmpeg) TranscodeAudio(ctx context.Context, src, dst string) error {
	ctx, cancel := context.WithTimeout(ctx, transcodeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, f.Path,
		"-y",
		"-i", src,
		"-vn",
		"-acodec", audioCodec,
		"-b:a", audioBitrate,
		"-ar", audioSampleRate,
		dst,
	)

	if out, err := cmd.CombinedOutput(); err != nil {
		utils.Debug("ffmpeg failed: %v: %s", err, tail(out, 512))
		return fmt.Errorf("audio transcode failed: %w", err)
	}

	info, err := os.Stat(dst)
	if err != nil || info.Size() == 0 {
		return fmt.Errorf("audio transcode produced no output file")
	}
	return nil
}

func tail(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[len(b)-n:])
}
