// Package extractor defines the media-extraction capability and its
// yt-dlp adapter. The adapter is the only place that knows the tool's
// command line; everything above it works against the interface.
package extractor

import "context"

// Format is what the requester asked for.
type Format int

const (
	FormatVideo Format = iota
	FormatAudio
)

func (f Format) String() string {
	if f == FormatAudio {
		return "audio"
	}
	return "video"
}

// ResolutionCandidate is one downloadable rendition of a probed video.
type ResolutionCandidate struct {
	Height    int
	FormatID  string
	HasAudio  bool
	FileSize  int64 // size of this stream alone
	TotalSize int64 // estimated size including a muxed audio track
}

// ProbeInfo is the result of a metadata-only probe.
type ProbeInfo struct {
	Title      string
	Duration   float64
	Candidates []ResolutionCandidate
}

// FetchOptions selects what Fetch should produce.
type FetchOptions struct {
	Format   Format
	FormatID string // explicit rendition; empty means best available
}

// ProgressFunc receives completion percentages in [0,100].
type ProgressFunc func(percent float64)

// MediaExtractor is the capability the pipeline consumes. Probe never
// touches the filesystem; Fetch downloads into destDir and returns the
// produced file's path.
type MediaExtractor interface {
	Probe(ctx context.Context, url string) (*ProbeInfo, error)
	Fetch(ctx context.Context, url, destDir, baseName string, opts FetchOptions, progress ProgressFunc) (string, error)
}
