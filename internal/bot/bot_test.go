package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"

	"github.com/clipfetch/clipfetch/internal/extractor"
	"github.com/clipfetch/clipfetch/internal/fetch"
	"github.com/clipfetch/clipfetch/internal/media"
)

type fakeAPI struct {
	sent   []tgbotapi.Chattable
	groups []tgbotapi.MediaGroupConfig
	err    error
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: 1}, f.err
}

func (f *fakeAPI) SendMediaGroup(c tgbotapi.MediaGroupConfig) ([]tgbotapi.Message, error) {
	f.groups = append(f.groups, c)
	return nil, f.err
}

func TestResolutionKeyboard(t *testing.T) {
	candidates := []extractor.ResolutionCandidate{
		{Height: 1080, FormatID: "137", TotalSize: 50 << 20},
		{Height: 720, FormatID: "136", TotalSize: 25 << 20},
		{Height: 360, FormatID: "18"},
	}

	kb := resolutionKeyboard("abc12345", candidates)

	// one row per candidate plus the cancel row
	require.Len(t, kb.InlineKeyboard, 4)

	first := kb.InlineKeyboard[0][0]
	require.Contains(t, first.Text, "1080p")
	require.Contains(t, first.Text, "MB")
	require.Equal(t, "res:abc12345:1080", *first.CallbackData)

	// no size estimate, no size in the label
	third := kb.InlineKeyboard[2][0]
	require.Equal(t, "360p", third.Text)

	cancel := kb.InlineKeyboard[3][0]
	require.Equal(t, "cancel:abc12345", *cancel.CallbackData)
}

func TestParseCallbackData(t *testing.T) {
	tests := []struct {
		data                 string
		action, token, param string
	}{
		{"res:abc123:720", "res", "abc123", "720"},
		{"cancel:abc123", "cancel", "abc123", ""},
		{"garbage", "", "", ""},
		{"", "", "", ""},
	}
	for _, tt := range tests {
		action, token, arg := parseCallbackData(tt.data)
		if action != tt.action || token != tt.token || arg != tt.param {
			t.Errorf("parseCallbackData(%q) = (%q, %q, %q), want (%q, %q, %q)",
				tt.data, action, token, arg, tt.action, tt.token, tt.param)
		}
	}
}

func TestProbeFailureText(t *testing.T) {
	require.Equal(t,
		"No resolution of this video fits under the upload limit.",
		probeFailureText(fetch.ErrNoValidResolution))
	require.Equal(t,
		"Could not read this video's available resolutions.",
		probeFailureText(errors.New("tool exploded")))
}

func TestWrapDeliveryErrorRateLimit(t *testing.T) {
	apiErr := &tgbotapi.Error{
		Code:               429,
		Message:            "Too Many Requests",
		ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 7},
	}

	err := wrapDeliveryError(apiErr)

	var rl *fetch.RateLimitError
	require.ErrorAs(t, err, &rl)
	require.Equal(t, 7*time.Second, rl.RetryAfter)
}

func TestWrapDeliveryErrorPassthrough(t *testing.T) {
	plain := errors.New("connection reset")
	err := wrapDeliveryError(plain)

	var rl *fetch.RateLimitError
	require.False(t, errors.As(err, &rl))
	require.ErrorIs(t, err, plain)

	require.NoError(t, wrapDeliveryError(nil))
}

func TestDeliverVideo(t *testing.T) {
	api := &fakeAPI{}
	d := &chatDeliverer{api: api, chatID: 42, replyToID: 9}

	err := d.Deliver(context.Background(), &fetch.Artifact{
		Paths:   []string{"/tmp/clip.mp4"},
		Kind:    media.KindVideo,
		Caption: "a clip",
	})
	require.NoError(t, err)
	require.Len(t, api.sent, 1)

	video, ok := api.sent[0].(tgbotapi.VideoConfig)
	require.True(t, ok, "expected a video send, got %T", api.sent[0])
	require.Equal(t, int64(42), video.ChatID)
	require.Equal(t, 9, video.ReplyToMessageID)
	require.Equal(t, "a clip", video.Caption)
	require.True(t, video.SupportsStreaming)
}

func TestDeliverPhotoAlbum(t *testing.T) {
	api := &fakeAPI{}
	d := &chatDeliverer{api: api, chatID: 42}

	err := d.Deliver(context.Background(), &fetch.Artifact{
		Paths:   []string{"/tmp/a.jpg", "/tmp/b.jpg", "/tmp/c.jpg"},
		Kind:    media.KindPhoto,
		Caption: "slides",
	})
	require.NoError(t, err)
	require.Empty(t, api.sent)
	require.Len(t, api.groups, 1)
	require.Len(t, api.groups[0].Media, 3)

	// caption only on the leading item
	first, ok := api.groups[0].Media[0].(tgbotapi.InputMediaPhoto)
	require.True(t, ok)
	require.Equal(t, "slides", first.Caption)
	second, ok := api.groups[0].Media[1].(tgbotapi.InputMediaPhoto)
	require.True(t, ok)
	require.Empty(t, second.Caption)
}

func TestDeliverCancelledContext(t *testing.T) {
	api := &fakeAPI{}
	d := &chatDeliverer{api: api, chatID: 42}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := d.Deliver(ctx, &fetch.Artifact{Paths: []string{"/tmp/x.mp4"}, Kind: media.KindVideo})
	require.Error(t, err)
	require.Empty(t, api.sent)
}
