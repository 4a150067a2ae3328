package mirror

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/clipfetch/clipfetch/internal/testutil"
)

func TestResolveVideo(t *testing.T) {
	srv := testutil.NewHTTPServerT(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if got := r.PostForm.Get("url"); got != "https://vm.tiktok.com/ZMabc/" {
			t.Errorf("unexpected url param: %s", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"code": 0,
			"data": map[string]any{
				"play":     "/video/abc.mp4",
				"music":    "https://cdn.example/abc.mp3",
				"title":    "a clip",
				"duration": 14.2,
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	res, err := c.Resolve(context.Background(), "https://vm.tiktok.com/ZMabc/")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.PlayURL != srv.URL+"/video/abc.mp4" {
		t.Errorf("relative play URL should be resolved against base, got %s", res.PlayURL)
	}
	if res.IsSlideshow() {
		t.Error("post with a play URL is not a slideshow")
	}
	if res.Title != "a clip" {
		t.Errorf("unexpected title: %s", res.Title)
	}
}

func TestResolveSlideshow(t *testing.T) {
	srv := testutil.NewHTTPServerT(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"code": 0,
			"data": map[string]any{
				"images": []string{"https://cdn.example/1.jpg", "https://cdn.example/2.jpg"},
				"music":  "https://cdn.example/track.mp3",
				"title":  "photo dump",
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	res, err := c.Resolve(context.Background(), "https://vm.tiktok.com/ZMxyz/")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !res.IsSlideshow() {
		t.Error("post with images and no play URL should be a slideshow")
	}
	if len(res.Images) != 2 {
		t.Errorf("expected 2 images, got %d", len(res.Images))
	}
	if res.MusicURL == "" {
		t.Error("music URL should be preserved")
	}
}

func TestResolveAPIError(t *testing.T) {
	srv := testutil.NewHTTPServerT(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"code": -1, "msg": "url invalid"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	if _, err := c.Resolve(context.Background(), "https://vm.tiktok.com/bad/"); err == nil {
		t.Error("non-zero code should surface as an error")
	}
}

func TestResolveEmptyContent(t *testing.T) {
	srv := testutil.NewHTTPServerT(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"code": 0, "data": map[string]any{"title": "nothing"}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	if _, err := c.Resolve(context.Background(), "https://vm.tiktok.com/empty/"); err == nil {
		t.Error("response with neither play URL nor images should be an error")
	}
}
