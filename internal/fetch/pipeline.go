package fetch

import (
	"context"
	"errors"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clipfetch/clipfetch/internal/config"
	"github.com/clipfetch/clipfetch/internal/extractor"
	"github.com/clipfetch/clipfetch/internal/media"
	"github.com/clipfetch/clipfetch/internal/metrics"
	"github.com/clipfetch/clipfetch/internal/mirror"
	"github.com/clipfetch/clipfetch/internal/platform"
	"github.com/clipfetch/clipfetch/internal/utils"
)

// Pipeline wires the download workflow's collaborators together. One
// Pipeline serves all requests; each Run call is independent except for
// the mirror-path mutual exclusion.
type Pipeline struct {
	Mirror     MirrorResolver
	Extractor  extractor.MediaExtractor
	Prober     media.Prober
	Transcoder media.Transcoder
	Limits     config.LimitSettings
	TempDir    string
	Suffix     string // attribution appended to every caption

	// Only one mirror-family fetch may be in flight globally; the
	// mirror service throttles aggressively otherwise. The extractor
	// path has no such restriction.
	mirrorMu sync.Mutex

	streamer *streamDownloader
	initOnce sync.Once
}

func (p *Pipeline) stream() *streamDownloader {
	p.initOnce.Do(func() { p.streamer = newStreamDownloader() })
	return p.streamer
}

// ProbeResolutions returns the selectable renditions for an
// extractor-family video URL. An empty list means no valid resolution,
// not an error to retry.
func (p *Pipeline) ProbeResolutions(ctx context.Context, url string) (*extractor.ProbeInfo, error) {
	return p.Extractor.Probe(ctx, url)
}

// Run executes the full download-and-deliver workflow for req, handing
// the finished artifact to d and reporting progress through progress
// (may be nil). The deliverer is a call parameter, not pipeline state:
// one Pipeline serves every chat concurrently. A rate-limit signal
// from delivery re-runs the whole pipeline after the indicated backoff,
// up to the configured attempt ceiling; every other failure is terminal.
func (p *Pipeline) Run(ctx context.Context, req Request, d Deliverer, progress ProgressFunc) error {
	attempts := p.Limits.MaxDeliveryRetries
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		err = p.runOnce(ctx, req, d, progress)

		var rl *RateLimitError
		if !errors.As(err, &rl) {
			return err
		}

		metrics.RateLimitRetries.Inc()
		utils.Debug("delivery rate limited, sleeping %s (attempt %d/%d)", rl.RetryAfter, attempt+1, attempts)
		select {
		case <-time.After(rl.RetryAfter):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (p *Pipeline) runOnce(ctx context.Context, req Request, d Deliverer, progress ProgressFunc) (err error) {
	cls := platform.Classify(req.URL)
	if cls.Platform == platform.Unsupported {
		return ErrUnsupported
	}

	metrics.DownloadsStarted.WithLabelValues(cls.Platform.String()).Inc()
	defer func() {
		if err != nil {
			metrics.DownloadsFailed.WithLabelValues(cls.Platform.String()).Inc()
		} else {
			metrics.DownloadsCompleted.WithLabelValues(cls.Platform.String()).Inc()
		}
	}()

	if err := os.MkdirAll(p.TempDir, 0755); err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}

	// Every path below registers its files here; whatever happens, they
	// are removed. Removal failures are swallowed: a leftover temp file
	// must not mask the real error.
	var tempPaths []string
	defer func() {
		for _, path := range tempPaths {
			_ = os.Remove(path)
		}
	}()
	track := func(path string) string {
		tempPaths = append(tempPaths, path)
		return path
	}

	gate := newProgressGate(progress, req.SizeHint, p.Limits)

	var art *Artifact
	switch cls.Platform {
	case platform.ShortVideoMirror:
		art, err = p.fetchViaMirror(ctx, req, gate, track)
	default:
		art, err = p.fetchViaExtractor(ctx, req, gate, track)
	}
	if err != nil {
		return err
	}

	// Audio requests always re-encode, even when the source is already
	// audio: the output codec/bitrate is fixed regardless of the source.
	if req.Format == extractor.FormatAudio {
		art, err = p.extractAudio(ctx, art, track)
		if err != nil {
			return err
		}
	}

	if err := p.enforceSizeLimit(art); err != nil {
		return err
	}

	return d.Deliver(ctx, art)
}

// fetchViaMirror tries the specialized mirror API first and falls back
// to the extractor tool when the mirror fails or returns a degenerate
// clip. The exclusion lock covers only the mirror interaction itself;
// a fallback run of the extractor is not serialized.
func (p *Pipeline) fetchViaMirror(ctx context.Context, req Request, gate *progressGate, track func(string) string) (*Artifact, error) {
	art, fellBack, err := p.tryMirror(ctx, req, gate, track)
	if fellBack {
		return p.fetchViaExtractor(ctx, req, gate, track)
	}
	return art, err
}

func (p *Pipeline) tryMirror(ctx context.Context, req Request, gate *progressGate, track func(string) string) (art *Artifact, fallback bool, err error) {
	p.mirrorMu.Lock()
	defer p.mirrorMu.Unlock()

	res, err := p.Mirror.Resolve(ctx, req.URL)
	if err != nil {
		utils.Debug("mirror resolve failed for %s: %v, falling back to extractor", req.URL, err)
		return nil, true, nil
	}

	if res.IsSlideshow() {
		art, err = p.fetchSlideshow(ctx, req, res, gate, track)
		return art, false, err
	}

	// Guard against slideshows posing as videos: a near-zero-duration or
	// zero-dimension stream is a placeholder, not a clip.
	meta, probeErr := p.Prober.Probe(ctx, res.PlayURL)
	if probeErr != nil || meta.IsDegenerate() {
		utils.Debug("mirror content degenerate for %s (err=%v), falling back to extractor", req.URL, probeErr)
		return nil, true, nil
	}

	dest := track(p.tempPath("mp4"))
	result, err := p.stream().Download(ctx, res.PlayURL, dest, gate)
	if err != nil {
		utils.Debug("mirror stream failed for %s: %v, falling back to extractor", req.URL, err)
		return nil, true, nil
	}

	title := firstNonEmpty(req.Title, res.Title, result.Filename)
	return &Artifact{
		Paths:   []string{result.Path},
		Kind:    media.KindVideo,
		Caption: p.caption(title),
	}, false, nil
}

// fetchSlideshow handles mirror posts with no true video stream: the
// image-album path for video requests, the music track for audio ones.
func (p *Pipeline) fetchSlideshow(ctx context.Context, req Request, res *mirror.Resolution, gate *progressGate, track func(string) string) (*Artifact, error) {
	title := firstNonEmpty(req.Title, res.Title)

	if req.Format == extractor.FormatAudio {
		if res.MusicURL == "" {
			return nil, fmt.Errorf("slideshow has no audio track")
		}
		dest := track(p.tempPath("audio"))
		result, err := p.stream().Download(ctx, res.MusicURL, dest, gate)
		if err != nil {
			return nil, fmt.Errorf("failed to download slideshow audio: %w", err)
		}
		return &Artifact{
			Paths:   []string{result.Path},
			Kind:    media.ClassifyPath(result.Path),
			Caption: p.caption(title),
		}, nil
	}

	var paths []string
	for i, imgURL := range res.Images {
		dest := track(p.tempPath(fmt.Sprintf("%02d.jpg", i)))
		if _, err := p.stream().Download(ctx, imgURL, dest, nil); err != nil {
			return nil, fmt.Errorf("failed to download slideshow image %d: %w", i+1, err)
		}
		paths = append(paths, dest)
		gate.Report(float64(i+1) * 100 / float64(len(res.Images)))
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("slideshow has no images")
	}

	return &Artifact{
		Paths:   paths,
		Kind:    media.KindPhoto,
		Caption: p.caption(title),
	}, nil
}

// fetchViaExtractor drives the external extractor tool.
func (p *Pipeline) fetchViaExtractor(ctx context.Context, req Request, gate *progressGate, track func(string) string) (*Artifact, error) {
	baseName := uuid.New().String()

	opts := extractor.FetchOptions{Format: req.Format, FormatID: req.FormatID}
	path, err := p.Extractor.Fetch(ctx, req.URL, p.TempDir, baseName, opts, gate.Report)
	if err != nil {
		// A failed run can still leave partial output (.part files and
		// the like) behind; register whatever matches the base name so
		// the deferred cleanup removes it.
		if leftovers, globErr := filepath.Glob(filepath.Join(p.TempDir, baseName+".*")); globErr == nil {
			for _, leftover := range leftovers {
				track(leftover)
			}
		}
		return nil, err
	}
	track(path)

	title := req.Title
	if title == "" {
		title = strippedName(path)
	}

	return &Artifact{
		Paths:   []string{path},
		Kind:    media.ClassifyPath(path),
		Caption: p.caption(title),
	}, nil
}

// extractAudio re-encodes the artifact's audio into the fixed target
// format. Producing no output file is a hard error.
func (p *Pipeline) extractAudio(ctx context.Context, art *Artifact, track func(string) string) (*Artifact, error) {
	if len(art.Paths) != 1 {
		return nil, fmt.Errorf("cannot extract audio from an image album")
	}

	dest := track(p.tempPath("mp3"))
	if err := p.Transcoder.TranscodeAudio(ctx, art.Paths[0], dest); err != nil {
		return nil, err
	}

	return &Artifact{
		Paths:   []string{dest},
		Kind:    media.KindAudio,
		Caption: art.Caption,
	}, nil
}

func (p *Pipeline) enforceSizeLimit(art *Artifact) error {
	if p.Limits.MaxUploadBytes <= 0 {
		return nil
	}
	for _, path := range art.Paths {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("artifact vanished before delivery: %w", err)
		}
		if info.Size() > p.Limits.MaxUploadBytes {
			return ErrTooLarge
		}
	}
	return nil
}

// caption HTML-escapes the title and appends the attribution suffix.
func (p *Pipeline) caption(title string) string {
	if title == "" {
		return p.Suffix
	}
	return html.EscapeString(title) + p.Suffix
}

func (p *Pipeline) tempPath(ext string) string {
	return filepath.Join(p.TempDir, uuid.New().String()+"."+ext)
}

func strippedName(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
