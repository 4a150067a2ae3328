// Package fetch implements the download/dispatch workflow: strategy
// selection between the mirror API and the extractor tool, progress
// reporting, post-processing, delivery handoff and cleanup.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clipfetch/clipfetch/internal/extractor"
	"github.com/clipfetch/clipfetch/internal/media"
	"github.com/clipfetch/clipfetch/internal/mirror"
)

// Request describes one download to perform. Created when a user submits
// a link or picks a resolution; consumed once; never persisted.
type Request struct {
	URL      string
	Format   extractor.Format
	FormatID string // explicit rendition picked by the user, optional
	Title    string // known title, optional; probed otherwise
	SizeHint int64  // estimated size of the picked rendition, 0 if unknown
}

// Artifact is a completed download handed to the delivery collaborator.
// Paths has one entry except for image albums.
type Artifact struct {
	Paths   []string
	Kind    media.Kind
	Caption string
}

// ProgressFunc receives completion percentages in [0,100], already
// gated for monotonicity and pacing.
type ProgressFunc func(percent float64)

// Deliverer uploads a finished artifact to the chat platform. A
// rate-limited delivery returns *RateLimitError.
type Deliverer interface {
	Deliver(ctx context.Context, art *Artifact) error
}

// MirrorResolver resolves a short-video post into direct media URLs.
type MirrorResolver interface {
	Resolve(ctx context.Context, url string) (*mirror.Resolution, error)
}

// RateLimitError is the delivery platform's explicit retry-after signal.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

var (
	// ErrUnsupported means the URL belongs to no supported platform.
	ErrUnsupported = errors.New("unsupported link")
	// ErrNoValidResolution means no probed rendition fits under the
	// upload ceiling.
	ErrNoValidResolution = errors.New("no valid resolution under the size limit")
	// ErrTooLarge means the finished artifact exceeds the upload ceiling.
	ErrTooLarge = errors.New("file exceeds the upload limit, pick a lower resolution")
)
