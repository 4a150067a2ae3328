// Package mirror talks to the short-video mirror service: a third-party
// API that re-hosts TikTok-family content and returns direct play URLs
// without needing the platform's own client protocol.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Resolution is the mirror API's response for a single post.
type Resolution struct {
	PlayURL  string   // direct video stream, empty for slideshows
	Images   []string // slideshow frames
	MusicURL string   // background audio track
	Title    string
	Duration float64 // seconds, 0 when unknown
}

// IsSlideshow reports whether the post has no true video stream.
func (r *Resolution) IsSlideshow() bool {
	return r.PlayURL == "" && len(r.Images) > 0
}

// Client is an HTTP client for the mirror API.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient creates a mirror client for baseURL. apiKey may be empty for
// keyless deployments of the service.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// apiResponse mirrors the service's JSON envelope.
type apiResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		Play     string   `json:"play"`
		Images   []string `json:"images"`
		Music    string   `json:"music"`
		Title    string   `json:"title"`
		Duration float64  `json:"duration"`
	} `json:"data"`
}

// Resolve asks the mirror service for the direct media behind a post URL.
func (c *Client) Resolve(ctx context.Context, postURL string) (*Resolution, error) {
	form := url.Values{}
	form.Set("url", postURL)
	form.Set("hd", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mirror request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("mirror API error %d: %s", resp.StatusCode, string(body))
	}

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("mirror response unparsable: %w", err)
	}
	if parsed.Code != 0 {
		return nil, fmt.Errorf("mirror API rejected url: %s", parsed.Msg)
	}

	res := &Resolution{
		PlayURL:  parsed.Data.Play,
		Images:   parsed.Data.Images,
		MusicURL: parsed.Data.Music,
		Title:    parsed.Data.Title,
		Duration: parsed.Data.Duration,
	}
	if res.PlayURL == "" && len(res.Images) == 0 {
		return nil, fmt.Errorf("mirror API returned no playable content")
	}

	// Relative play URLs are served off the mirror host itself
	if res.PlayURL != "" && strings.HasPrefix(res.PlayURL, "/") {
		res.PlayURL = c.baseURL + res.PlayURL
	}
	if res.MusicURL != "" && strings.HasPrefix(res.MusicURL, "/") {
		res.MusicURL = c.baseURL + res.MusicURL
	}

	return res, nil
}
