package router

import (
	"time"

	tg "imgseekbot/core/telegram"
	"imgseekbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Conversation is the minimal interface for a multi-turn dialog manager.
// Wants reports whether the update belongs to the dialog (a trigger
// command or an in-progress session); Handle consumes it.
type Conversation interface {
	Wants(c tele.Context) bool
	Handle(c tele.Context) error
}

// MessageOptions controls fallback behaviour for text/photo updates.
type MessageOptions struct {
	UnknownText  tele.HandlerFunc
	UnknownPhoto tele.HandlerFunc
}

// MessageRoutes builds handlers for text and photo routing. The dialog
// manager always gets the first look so that session continuations are
// never mistaken for commands.
func MessageRoutes(conv Conversation, reg *tg.Registry, opts MessageOptions) []tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		text := c.Text()

		if conv != nil && conv.Wants(c) {
			return handleWithSummary(c, "dialog", start, "", "", func() error {
				return conv.Handle(c)
			})
		}

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil {
				name := normalizeHandlerName(key)
				return handleWithSummary(c, name, start, "", "", func() error {
					return cmd.Handler(c)
				})
			}
		}

		if reg != nil {
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, "", "", func() error {
					return fb(c)
				})
			}
		}

		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, "", "", func() error {
				return opts.UnknownText(c)
			})
		}

		logHandlerSummary(c, "unknown_text", start, "skip", "ok", nil)
		return nil
	}

	photoHandler := func(c tele.Context) error {
		start := time.Now()
		if conv != nil && conv.Wants(c) {
			return handleWithSummary(c, "dialog_photo", start, "", "", func() error {
				return conv.Handle(c)
			})
		}
		if opts.UnknownPhoto != nil {
			return handleWithSummary(c, "unexpected_photo", start, "", "", func() error {
				return opts.UnknownPhoto(c)
			})
		}
		logHandlerSummary(c, "unexpected_photo", start, "skip", "ok", nil)
		return nil
	}

	return []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
		},
		{
			Endpoint: tele.OnPhoto,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(photoHandler)),
		},
	}
}
