package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/vfaronov/httpheader"

	"github.com/clipfetch/clipfetch/internal/utils"
)

const streamChunkSize = 64 * 1024

var streamUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) " +
	"Chrome/120.0.0.0 Safari/537.36"

// streamDownloader downloads arbitrary bytes to a local path while
// reporting percentage completion. Used for mirror direct links and
// slideshow assets.
type streamDownloader struct {
	client *http.Client
}

func newStreamDownloader() *streamDownloader {
	return &streamDownloader{client: &http.Client{Timeout: 0}}
}

// result of a completed stream download.
type streamResult struct {
	Path     string
	Filename string // server-suggested name, may be empty
	Written  int64
}

// Download GETs rawurl into destPath. Percentage comes from
// Content-Length; when the header is absent reporting is skipped
// entirely, which is not an error. The gate also learns the response
// size so its pacing matches the file being pulled.
func (d *streamDownloader) Download(ctx context.Context, rawurl, destPath string, gate *progressGate) (*streamResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", streamUA)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			utils.Debug("error closing response body: %v", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	total := resp.ContentLength // -1 when the header is absent
	if total > 0 && gate != nil {
		gate.SetTotal(total)
	}

	// Server-suggested filename, used for caption fallback
	var filename string
	if _, fn, _ := httpheader.ContentDisposition(resp.Header); fn != "" {
		filename = utils.SanitizeFilename(fn)
		if filename == "file" {
			filename = ""
		}
	}

	outFile, err := os.Create(destPath)
	if err != nil {
		return nil, err
	}

	success := false
	defer func() {
		_ = outFile.Close()
		if !success {
			_ = os.Remove(destPath)
		}
	}()

	start := time.Now()
	var written int64
	buf := make([]byte, streamChunkSize)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		nr, readErr := resp.Body.Read(buf)
		if nr > 0 {
			nw, writeErr := outFile.Write(buf[0:nr])
			if nw > 0 {
				written += int64(nw)
				if total > 0 && gate != nil {
					gate.Report(float64(written) * 100 / float64(total))
				}
			}
			if writeErr != nil {
				return nil, fmt.Errorf("write error: %w", writeErr)
			}
			if nr != nw {
				return nil, io.ErrShortWrite
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			return nil, fmt.Errorf("read error: %w", readErr)
		}
	}

	if err := outFile.Sync(); err != nil {
		return nil, fmt.Errorf("sync error: %w", err)
	}
	if err := outFile.Close(); err != nil {
		return nil, fmt.Errorf("close error: %w", err)
	}
	success = true

	if gate != nil {
		gate.Report(100)
	}

	elapsed := time.Since(start)
	utils.Debug("streamed %s (%s) in %s", destPath,
		utils.ConvertBytesToHumanReadable(written), elapsed.Round(time.Second))

	return &streamResult{Path: destPath, Filename: filename, Written: written}, nil
}
