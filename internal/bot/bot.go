// Package bot is the Telegram transport: it turns updates into download
// requests and pipeline results back into chat messages.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/clipfetch/clipfetch/internal/config"
	"github.com/clipfetch/clipfetch/internal/extractor"
	"github.com/clipfetch/clipfetch/internal/fetch"
	"github.com/clipfetch/clipfetch/internal/platform"
	"github.com/clipfetch/clipfetch/internal/session"
	"github.com/clipfetch/clipfetch/internal/store"
	"github.com/clipfetch/clipfetch/internal/utils"
)

// Bot glues the Telegram API to the download pipeline.
type Bot struct {
	api      *tgbotapi.BotAPI
	pipeline *fetch.Pipeline
	sessions *session.Store
	store    *store.Store
	settings *config.Settings
}

// New wires up a Bot. The pipeline is shared by all chats; each
// download task hands it a deliverer bound to the originating chat.
func New(api *tgbotapi.BotAPI, pipeline *fetch.Pipeline, sessions *session.Store, st *store.Store, settings *config.Settings) *Bot {
	return &Bot{
		api:      api,
		pipeline: pipeline,
		sessions: sessions,
		store:    st,
		settings: settings,
	}
}

// Run consumes the update stream until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := b.api.GetUpdatesChan(u)
	utils.Debug("bot started as @%s", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			switch {
			case update.Message != nil:
				b.handleMessage(ctx, update.Message)
			case update.CallbackQuery != nil:
				b.handleCallback(ctx, update.CallbackQuery)
			}
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	// Auto-detection: only in enabled chats, only for supported links.
	enabled, err := b.store.IsChatEnabled(ctx, msg.Chat.ID)
	if err != nil {
		utils.Debug("chat toggle lookup failed: %v", err)
		return
	}
	if !enabled {
		return
	}

	text := platform.Normalize(msg.Text)
	if platform.Classify(text).Platform == platform.Unsupported {
		return
	}
	b.startDownload(ctx, msg, text, extractor.FormatVideo)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start", "help":
		b.reply(msg, "Send me a link or use /download <url> for video, /mp3 <url> for audio.")
	case "download":
		if args == "" {
			b.reply(msg, "Usage: /download <url>")
			return
		}
		b.startDownload(ctx, msg, platform.Normalize(args), extractor.FormatVideo)
	case "mp3":
		if args == "" {
			b.reply(msg, "Usage: /mp3 <url>")
			return
		}
		b.startDownload(ctx, msg, platform.Normalize(args), extractor.FormatAudio)
	case "toggle":
		b.handleToggle(ctx, msg)
	}
}

func (b *Bot) handleToggle(ctx context.Context, msg *tgbotapi.Message) {
	if !b.isChatAdmin(msg) {
		b.reply(msg, "Only chat admins can toggle link detection.")
		return
	}

	enabled, err := b.store.IsChatEnabled(ctx, msg.Chat.ID)
	if err != nil {
		b.reply(msg, "Storage error, try again later.")
		return
	}
	if enabled {
		err = b.store.DisableChat(ctx, msg.Chat.ID)
	} else {
		err = b.store.EnableChat(ctx, msg.Chat.ID)
	}
	if err != nil {
		b.reply(msg, "Storage error, try again later.")
		return
	}
	if enabled {
		b.reply(msg, "Link auto-detection is now off.")
	} else {
		b.reply(msg, "Link auto-detection is now on.")
	}
}

func (b *Bot) isChatAdmin(msg *tgbotapi.Message) bool {
	if msg.Chat.IsPrivate() {
		return true
	}
	member, err := b.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			ChatID: msg.Chat.ID,
			UserID: msg.From.ID,
		},
	})
	if err != nil {
		return false
	}
	return member.IsCreator() || member.IsAdministrator()
}

// startDownload gates the request (classification, entitlement) and
// either runs the pipeline directly or offers a resolution picker.
// Gate failures are reported once; no background task is spawned.
func (b *Bot) startDownload(ctx context.Context, msg *tgbotapi.Message, url string, format extractor.Format) {
	cls := platform.Classify(url)
	if cls.Platform == platform.Unsupported {
		b.reply(msg, "That link is not from a supported platform.")
		return
	}

	if cls.PremiumRequired {
		premium, err := b.store.IsPremium(ctx, msg.From.ID)
		if err != nil {
			utils.Debug("premium lookup failed: %v", err)
			b.reply(msg, "Storage error, try again later.")
			return
		}
		if !premium {
			b.reply(msg, "This site requires a premium entitlement.")
			return
		}
	}

	// Extractor-family video requests pick a resolution first; everything
	// else goes straight to the pipeline.
	if cls.Platform == platform.GenericExtractor && format == extractor.FormatVideo {
		go b.offerResolutions(ctx, msg, url)
		return
	}

	go b.runTask(ctx, msg.Chat.ID, msg.MessageID, fetch.Request{URL: url, Format: format})
}

// offerResolutions probes the URL and presents a pick-a-height keyboard.
func (b *Bot) offerResolutions(ctx context.Context, msg *tgbotapi.Message, url string) {
	defer logPanic()

	status := b.send(tgbotapi.NewMessage(msg.Chat.ID, "Looking up available resolutions..."))

	info, err := b.pipeline.ProbeResolutions(ctx, url)
	if err == nil && len(info.Candidates) == 0 {
		err = fetch.ErrNoValidResolution
	}
	if err != nil {
		b.edit(msg.Chat.ID, status, probeFailureText(err))
		return
	}

	sess := &session.Session{
		URL:             url,
		RequestingUser:  msg.From.ID,
		OriginChat:      msg.Chat.ID,
		OriginMessageID: msg.MessageID,
		Resolutions:     make(map[int]session.ResolutionChoice, len(info.Candidates)),
	}
	for _, c := range info.Candidates {
		sess.Resolutions[c.Height] = session.ResolutionChoice{
			FormatID:  c.FormatID,
			HasAudio:  c.HasAudio,
			TotalSize: c.TotalSize,
		}
	}
	token := b.sessions.Put(sess)

	edit := tgbotapi.NewEditMessageTextAndMarkup(msg.Chat.ID, status,
		"Pick a resolution:", resolutionKeyboard(token, info.Candidates))
	if _, err := b.api.Send(edit); err != nil {
		utils.Debug("failed to show resolution picker: %v", err)
		b.sessions.Cancel(token)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	action, token, arg := parseCallbackData(cq.Data)

	switch action {
	case "cancel":
		// Cancel means "stop caring about the result": the session record
		// is dropped, nothing in flight is interrupted.
		b.sessions.Cancel(token)
		b.answerCallback(cq, "Cancelled")
		if cq.Message != nil {
			b.delete(cq.Message.Chat.ID, cq.Message.MessageID)
		}
	case "res":
		sess, ok := b.sessions.Consume(token)
		if !ok {
			b.answerCallback(cq, "This request has expired.")
			return
		}
		if cq.From.ID != sess.RequestingUser {
			// Not the requester; put nothing back, the session is spent
			b.answerCallback(cq, "Only the requester can pick.")
			return
		}
		height, err := strconv.Atoi(arg)
		if err != nil {
			b.answerCallback(cq, "Bad choice.")
			return
		}
		choice, ok := sess.Resolutions[height]
		if !ok {
			b.answerCallback(cq, "Bad choice.")
			return
		}

		b.answerCallback(cq, fmt.Sprintf("Fetching %dp...", height))
		if cq.Message != nil {
			b.delete(cq.Message.Chat.ID, cq.Message.MessageID)
		}
		go b.runTask(ctx, sess.OriginChat, sess.OriginMessageID, fetch.Request{
			URL:      sess.URL,
			Format:   extractor.FormatVideo,
			FormatID: choice.FormatID,
			SizeHint: choice.TotalSize,
		})
	default:
		b.answerCallback(cq, "")
	}
}

// runTask is the detached background task for one download. All errors
// are caught here and become an edited status message; nothing
// propagates out.
func (b *Bot) runTask(ctx context.Context, chatID int64, replyToID int, req fetch.Request) {
	defer logPanic()

	statusID := b.send(tgbotapi.NewMessage(chatID, "Starting download..."))

	deliverer := &chatDeliverer{api: b.api, chatID: chatID, replyToID: replyToID}
	err := b.pipeline.Run(ctx, req, deliverer, func(pct float64) {
		b.edit(chatID, statusID, fmt.Sprintf("Downloading... %.0f%%", pct))
	})
	if err != nil {
		utils.Debug("download task failed for %s: %v", req.URL, err)
		b.edit(chatID, statusID, "Download failed: "+err.Error())
		return
	}

	b.delete(chatID, statusID)
}

// probeFailureText maps a resolution-probe failure to the message shown
// in chat.
func probeFailureText(err error) string {
	if errors.Is(err, fetch.ErrNoValidResolution) {
		return "No resolution of this video fits under the upload limit."
	}
	return "Could not read this video's available resolutions."
}

// --- small send helpers; failures are logged, never fatal ---

func (b *Bot) reply(msg *tgbotapi.Message, text string) {
	m := tgbotapi.NewMessage(msg.Chat.ID, text)
	m.ReplyToMessageID = msg.MessageID
	b.send(m)
}

func (b *Bot) send(c tgbotapi.Chattable) int {
	sent, err := b.api.Send(c)
	if err != nil {
		utils.Debug("send failed: %v", err)
		return 0
	}
	return sent.MessageID
}

func (b *Bot) edit(chatID int64, messageID int, text string) {
	if messageID == 0 {
		return
	}
	if _, err := b.api.Send(tgbotapi.NewEditMessageText(chatID, messageID, text)); err != nil {
		utils.Debug("edit failed: %v", err)
	}
}

func (b *Bot) delete(chatID int64, messageID int) {
	if messageID == 0 {
		return
	}
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		utils.Debug("delete failed: %v", err)
	}
}

func (b *Bot) answerCallback(cq *tgbotapi.CallbackQuery, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, text)); err != nil {
		utils.Debug("answer callback failed: %v", err)
	}
}

func logPanic() {
	if r := recover(); r != nil {
		utils.Debug("panic in background task: %v", r)
	}
}
