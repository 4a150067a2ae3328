package extractor

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/clipfetch/clipfetch/internal/utils"
)

const (
	defaultProbeTimeout = 60 * time.Second
	defaultFetchTimeout = 10 * time.Minute

	// Machine-parsable progress lines on stdout
	progressTemplate = "download:%(progress._percent_str)s"
	progressPrefix   = "download:"
)

// YtDlp drives the yt-dlp binary.
type YtDlp struct {
	Path         string
	CookieFile   string // optional cookie jar for authenticated sources
	MaxBytes     int64  // upload ceiling used to filter probe candidates
	ProbeTimeout time.Duration
	FetchTimeout time.Duration
}

// NewYtDlp creates an adapter with default timeouts.
func NewYtDlp(path, cookieFile string, maxBytes int64) *YtDlp {
	return &YtDlp{
		Path:         path,
		CookieFile:   cookieFile,
		MaxBytes:     maxBytes,
		ProbeTimeout: defaultProbeTimeout,
		FetchTimeout: defaultFetchTimeout,
	}
}

// probeDump is the -J output, trimmed to what we read.
type probeDump struct {
	Title    string      `json:"title"`
	Duration float64     `json:"duration"`
	Formats  []rawFormat `json:"formats"`
}

// Probe runs the tool in metadata-only mode. A missing tool or
// unparsable dump yields an empty candidate list, not an error: the
// caller treats empty as "no valid resolution".
func (y *YtDlp) Probe(ctx context.Context, url string) (*ProbeInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, y.probeTimeout())
	defer cancel()

	args := []string{"-J", "--no-playlist", "--no-warnings"}
	args = y.appendCookieArgs(args)
	args = append(args, url)

	cmd := exec.CommandContext(ctx, y.Path, args...)
	setProcessGroup(cmd)

	out, err := cmd.Output()
	if err != nil {
		utils.Debug("yt-dlp probe failed for %s: %v", url, err)
		return &ProbeInfo{}, nil
	}

	var dump probeDump
	if err := json.Unmarshal(out, &dump); err != nil {
		utils.Debug("yt-dlp probe output unparsable for %s: %v", url, err)
		return &ProbeInfo{}, nil
	}

	return &ProbeInfo{
		Title:      dump.Title,
		Duration:   dump.Duration,
		Candidates: buildCandidates(dump.Formats, dump.Duration, y.MaxBytes),
	}, nil
}

// Fetch downloads url into destDir as baseName.<ext> and returns the
// produced path. On a non-zero exit it re-attempts exactly once at a
// degraded quality tier before surfacing the failure.
func (y *YtDlp) Fetch(ctx context.Context, url, destDir, baseName string, opts FetchOptions, progress ProgressFunc) (string, error) {
	path, err := y.fetchOnce(ctx, url, destDir, baseName, y.formatSpec(opts), progress)
	if err == nil {
		return path, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	utils.Debug("yt-dlp fetch failed (%v), retrying at degraded tier", err)
	path, retryErr := y.fetchOnce(ctx, url, destDir, baseName, "worst", progress)
	if retryErr != nil {
		// Report the original failure; the degraded attempt is best effort
		return "", err
	}
	return path, nil
}

func (y *YtDlp) formatSpec(opts FetchOptions) string {
	switch {
	case opts.Format == FormatAudio:
		return "bestaudio/best"
	case opts.FormatID != "":
		return opts.FormatID + "+bestaudio/" + opts.FormatID
	default:
		return "best"
	}
}

func (y *YtDlp) fetchOnce(ctx context.Context, url, destDir, baseName, formatSpec string, progress ProgressFunc) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, y.fetchTimeout())
	defer cancel()

	outTemplate := filepath.Join(destDir, baseName+".%(ext)s")
	args := []string{
		"--newline",
		"--no-playlist",
		"--no-warnings",
		"--progress-template", progressTemplate,
		"--format", formatSpec,
		"-o", outTemplate,
	}
	args = y.appendCookieArgs(args)
	args = append(args, url)

	cmd := exec.CommandContext(ctx, y.Path, args...)
	setProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", err
	}
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("failed to start extractor tool: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if pct, ok := parseProgressLine(scanner.Text()); ok && progress != nil {
			progress(pct)
		}
	}

	if err := cmd.Wait(); err != nil {
		return "", fmt.Errorf("extractor tool exited: %w", err)
	}

	path, err := findOutput(destDir, baseName)
	if err != nil {
		return "", err
	}
	if progress != nil {
		progress(100)
	}
	return path, nil
}

func (y *YtDlp) appendCookieArgs(args []string) []string {
	if y.CookieFile != "" {
		return append(args, "--cookies", y.CookieFile)
	}
	return args
}

func (y *YtDlp) probeTimeout() time.Duration {
	if y.ProbeTimeout > 0 {
		return y.ProbeTimeout
	}
	return defaultProbeTimeout
}

func (y *YtDlp) fetchTimeout() time.Duration {
	if y.FetchTimeout > 0 {
		return y.FetchTimeout
	}
	return defaultFetchTimeout
}

// parseProgressLine extracts the percentage from a progress-template
// line like "download:  42.3%".
func parseProgressLine(line string) (float64, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, progressPrefix) {
		return 0, false
	}
	token := strings.TrimSpace(strings.TrimPrefix(line, progressPrefix))
	token = strings.TrimSuffix(token, "%")
	token = strings.TrimSpace(token)

	pct, err := strconv.ParseFloat(token, 64)
	if err != nil || pct < 0 || pct > 100 {
		return 0, false
	}
	return pct, true
}

// findOutput locates the file the tool produced; the extension is the
// tool's choice, so glob for baseName.*.
func findOutput(destDir, baseName string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(destDir, baseName+".*"))
	if err != nil {
		return "", err
	}
	// .part files are abandoned partials
	for _, m := range matches {
		if !strings.HasSuffix(m, ".part") {
			return m, nil
		}
	}
	return "", fmt.Errorf("extractor tool reported success but produced no output file")
}

// setProcessGroup puts the subprocess in its own process group so a
// context cancel kills the whole tree, not just the leader.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		proc := cmd.Process
		if proc == nil {
			return nil
		}
		return syscall.Kill(-proc.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second
}
