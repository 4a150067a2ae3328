package bot

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/clipfetch/clipfetch/internal/extractor"
	"github.com/clipfetch/clipfetch/internal/utils"
)

// resolutionKeyboard builds one button row per candidate plus a cancel
// row. Button labels carry the estimated size so users can pick with
// their data plan in mind.
func resolutionKeyboard(token string, candidates []extractor.ResolutionCandidate) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(candidates)+1)
	for _, c := range candidates {
		label := fmt.Sprintf("%dp", c.Height)
		if c.TotalSize > 0 {
			label += " (~" + utils.ConvertBytesToHumanReadable(c.TotalSize) + ")"
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("res:%s:%d", token, c.Height)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Cancel", "cancel:"+token),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// parseCallbackData splits "action:token[:arg]". Unknown shapes come
// back with an empty action.
func parseCallbackData(data string) (action, token, arg string) {
	parts := strings.SplitN(data, ":", 3)
	switch len(parts) {
	case 2:
		return parts[0], parts[1], ""
	case 3:
		return parts[0], parts[1], parts[2]
	}
	return "", "", ""
}
