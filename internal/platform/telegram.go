package platform

import (
	"fmt"
	"log/slog"
	"strconv"

	"imgseekbot/core/logger"
	tghelpers "imgseekbot/core/telegram/helpers"
	"imgseekbot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

// CallbackEnginePick is the callback unique for the engine keyboard.
const CallbackEnginePick = "engine_pick"

// CallbackCancel is the callback unique for the cancel button.
const CallbackCancel = "search_cancel"

// TelegramInbound adapts a telebot context to the Inbound capability.
type TelegramInbound struct {
	c tele.Context
}

// NewTelegramInbound wraps the context of the update being processed.
func NewTelegramInbound(c tele.Context) TelegramInbound {
	return TelegramInbound{c: c}
}

func (m TelegramInbound) SenderID() int64 {
	if u := m.c.Sender(); u != nil {
		return u.ID
	}
	return 0
}

func (m TelegramInbound) Text() string {
	return m.c.Text()
}

// ImageURLs resolves an attached photo to its Bot API file URL. Telegram
// photos are file references, so resolving requires a getFile round trip.
func (m TelegramInbound) ImageURLs() []string {
	msg := m.c.Message()
	if msg == nil || msg.Photo == nil {
		return nil
	}
	bot, ok := any(m.c.Bot()).(*tele.Bot)
	if !ok {
		return nil
	}
	file, err := bot.FileByID(msg.Photo.FileID)
	if err != nil || file.FilePath == "" {
		logger.Warn(tghelpers.BuildContext(m.c), "tg", "file.resolve.fail",
			slog.String("status", "fail"),
			slog.String("err", fmt.Sprint(err)),
		)
		return nil
	}
	return []string{fmt.Sprintf("%s/file/bot%s/%s", bot.URL, bot.Token, file.FilePath)}
}

// TelegramResponder adapts a telebot context to the Responder capability.
// All sends go through the async sender dispatcher via helpers.
type TelegramResponder struct {
	c tele.Context
}

// NewTelegramResponder wraps the context of the update being processed.
func NewTelegramResponder(c tele.Context) TelegramResponder {
	return TelegramResponder{c: c}
}

func (r TelegramResponder) ReplyText(text string) error {
	return tghelpers.SendText(r.c, text)
}

func (r TelegramResponder) ReplyImage(data []byte) error {
	return tghelpers.SendPhotoBytes(r.c, data, "")
}

func (r TelegramResponder) ReplyEngineMenu(text string, engines []string) error {
	buttons := make([]keyboard.InlineBtn, 0, len(engines))
	for _, name := range engines {
		buttons = append(buttons, keyboard.InlineBtn{
			Text:   name,
			Unique: CallbackEnginePick,
			Data:   name,
		})
	}
	markup := keyboard.InlineButtonsNPerRow(buttons, 2)
	cancel := keyboard.CancelButton(markup, CallbackCancel)
	markup.InlineKeyboard = append(markup.InlineKeyboard, []tele.InlineButton{*cancel.Inline()})
	return tghelpers.SendText(r.c, text, &tele.SendOptions{ReplyMarkup: markup})
}

// ReplyBatch sends each part as its own message. Telegram has no
// forward-bundle primitive, so the synthetic sender identity only shows
// up in the part body headers; a failed part yields a plain-text notice
// and delivery continues.
func (r TelegramResponder) ReplyBatch(parts []BatchPart) error {
	for i, part := range parts {
		if err := tghelpers.SendText(r.c, part.Text); err != nil {
			notice := fmt.Sprintf("第 %d/%d 段发送失败", i+1, len(parts))
			_ = tghelpers.SendText(r.c, notice)
			logger.Warn(tghelpers.BuildContext(r.c), "dispatch", "batch.part.fail",
				slog.String("status", "fail"),
				slog.Int("part", i+1),
				slog.Int("parts", len(parts)),
				slog.String("err", err.Error()),
			)
		}
	}
	return nil
}

func (r TelegramResponder) SelfID() string {
	bot, ok := any(r.c.Bot()).(*tele.Bot)
	if !ok || bot.Me == nil {
		return ""
	}
	return strconv.FormatInt(bot.Me.ID, 10)
}
