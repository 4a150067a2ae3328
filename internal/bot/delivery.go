package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/clipfetch/clipfetch/internal/fetch"
	"github.com/clipfetch/clipfetch/internal/media"
)

// chatDeliverer uploads finished artifacts to the originating chat,
// implementing fetch.Deliverer. Each download task gets its own
// deliverer bound to its chat and reply target.
type chatDeliverer struct {
	api       botAPI
	chatID    int64
	replyToID int
}

// botAPI is the slice of the Telegram client the deliverer needs;
// narrowed for tests.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	SendMediaGroup(c tgbotapi.MediaGroupConfig) ([]tgbotapi.Message, error)
}

func (d *chatDeliverer) Deliver(ctx context.Context, art *fetch.Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var err error
	switch {
	case art.Kind == media.KindPhoto && len(art.Paths) > 1:
		err = d.sendAlbum(art)
	case art.Kind == media.KindPhoto:
		msg := tgbotapi.NewPhoto(d.chatID, tgbotapi.FilePath(art.Paths[0]))
		msg.Caption = art.Caption
		msg.ParseMode = tgbotapi.ModeHTML
		msg.ReplyToMessageID = d.replyToID
		_, err = d.api.Send(msg)
	case art.Kind == media.KindVideo:
		msg := tgbotapi.NewVideo(d.chatID, tgbotapi.FilePath(art.Paths[0]))
		msg.Caption = art.Caption
		msg.ParseMode = tgbotapi.ModeHTML
		msg.ReplyToMessageID = d.replyToID
		msg.SupportsStreaming = true
		_, err = d.api.Send(msg)
	case art.Kind == media.KindAudio:
		msg := tgbotapi.NewAudio(d.chatID, tgbotapi.FilePath(art.Paths[0]))
		msg.Caption = art.Caption
		msg.ParseMode = tgbotapi.ModeHTML
		msg.ReplyToMessageID = d.replyToID
		_, err = d.api.Send(msg)
	default:
		// Unknown kinds still reach the user, just without inline playback
		msg := tgbotapi.NewDocument(d.chatID, tgbotapi.FilePath(art.Paths[0]))
		msg.Caption = art.Caption
		msg.ParseMode = tgbotapi.ModeHTML
		msg.ReplyToMessageID = d.replyToID
		_, err = d.api.Send(msg)
	}

	return wrapDeliveryError(err)
}

func (d *chatDeliverer) sendAlbum(art *fetch.Artifact) error {
	var group []interface{}
	for i, path := range art.Paths {
		photo := tgbotapi.NewInputMediaPhoto(tgbotapi.FilePath(path))
		if i == 0 {
			photo.Caption = art.Caption
			photo.ParseMode = tgbotapi.ModeHTML
		}
		group = append(group, photo)
	}

	cfg := tgbotapi.NewMediaGroup(d.chatID, group)
	cfg.ReplyToMessageID = d.replyToID
	_, err := d.api.SendMediaGroup(cfg)
	return err
}

// wrapDeliveryError converts the platform's retry-after signal into the
// pipeline's RateLimitError; other errors pass through.
func wrapDeliveryError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return &fetch.RateLimitError{RetryAfter: time.Duration(apiErr.RetryAfter) * time.Second}
	}
	return fmt.Errorf("delivery failed: %w", err)
}
