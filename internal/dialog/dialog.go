// Package dialog implements the conversational search flow: the trigger
// command starts a per-user session, the per-step handlers collect the
// missing engine and image, and a finished search offers its plain-text
// form for a short confirmation window.
package dialog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"imgseekbot/core/logger"
	"imgseekbot/internal/command"
	"imgseekbot/internal/dispatch"
	"imgseekbot/internal/engine"
	"imgseekbot/internal/platform"
	"imgseekbot/internal/search"
	"imgseekbot/internal/session"
)

const (
	// interactiveTimeout bounds the gap between user replies while the
	// session is still collecting an engine or an image.
	interactiveTimeout = 30 * time.Second
	// textConfirmWindow bounds how long the plain-text offer stays valid.
	textConfirmWindow = 10 * time.Second
)

// Fetcher downloads candidate images.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, bool)
	FetchAll(ctx context.Context, urls []string) [][]byte
}

// Renderer draws the cards sent back to the user.
type Renderer interface {
	Result(eng engine.ID, resultText string, source []byte) []byte
	Error(eng engine.ID, message string) []byte
	Intro(enabled []engine.ID) []byte
}

// Recorder persists finished searches. It is optional; a nil recorder
// disables history.
type Recorder interface {
	Record(ctx context.Context, userID int64, eng engine.ID, resultChars int, took time.Duration) error
}

// Options wires a Machine's collaborators.
type Options struct {
	Store     session.Store
	Catalog   *engine.Catalog
	Fetcher   Fetcher
	Searcher  search.Service
	Renderer  Renderer
	Deliverer *dispatch.Deliverer
	Recorder  Recorder
	// Keyword is the trigger prefix; empty means the default.
	Keyword string
	// Now is the clock, injectable for tests.
	Now func() time.Time
}

// Machine routes each inbound message through the user's session step.
type Machine struct {
	store     session.Store
	catalog   *engine.Catalog
	fetcher   Fetcher
	searcher  search.Service
	renderer  Renderer
	deliverer *dispatch.Deliverer
	recorder  Recorder
	keyword   string
	now       func() time.Time
}

// NewMachine builds the state machine from its collaborators.
func NewMachine(opts Options) *Machine {
	m := &Machine{
		store:     opts.Store,
		catalog:   opts.Catalog,
		fetcher:   opts.Fetcher,
		searcher:  opts.Searcher,
		renderer:  opts.Renderer,
		deliverer: opts.Deliverer,
		recorder:  opts.Recorder,
		keyword:   opts.Keyword,
		now:       opts.Now,
	}
	if m.keyword == "" {
		m.keyword = command.DefaultKeyword
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.deliverer == nil {
		m.deliverer = dispatch.NewDeliverer()
	}
	return m
}

// Wants reports whether a text message belongs to this conversation:
// either it carries the trigger keyword or the user has a live session.
func (m *Machine) Wants(userID int64, text string) bool {
	if _, ok := command.StripKeyword(text, m.keyword); ok {
		return true
	}
	_, ok := m.store.Get(userID)
	return ok
}

// HandleMessage is the single entry point for inbound chat messages.
func (m *Machine) HandleMessage(ctx context.Context, msg platform.Inbound, out platform.Responder) error {
	userID := msg.SenderID()
	text := strings.TrimSpace(msg.Text())

	// The trigger always restarts the flow, discarding any prior session.
	if rest, ok := command.StripKeyword(text, m.keyword); ok {
		return m.handleEntry(ctx, userID, rest, msg.ImageURLs(), out)
	}

	sess, ok := m.store.Get(userID)
	if !ok {
		return nil
	}

	now := m.now()
	if tc, ok := sess.(*session.AwaitTextConfirm); ok {
		return m.handleTextConfirm(userID, tc, text, now, out)
	}
	if now.Sub(sess.LastActivity()) > interactiveTimeout {
		m.store.Delete(userID)
		logger.Debug(ctx, "dialog", "session.timeout",
			slog.Int64("user_id", userID),
			slog.String("step", string(sess.Step())))
		return out.ReplyText(promptTimeout)
	}

	switch s := sess.(type) {
	case *session.AwaitEngine:
		return m.handleAwaitEngine(ctx, userID, s, text, out)
	case *session.AwaitImage:
		return m.handleAwaitImage(ctx, userID, s, text, msg.ImageURLs(), out)
	case *session.AwaitBoth:
		return m.handleAwaitBoth(ctx, userID, s, text, msg.ImageURLs(), out)
	default:
		m.store.Delete(userID)
		return nil
	}
}

// handleEntry processes the text that followed the trigger keyword.
func (m *Machine) handleEntry(ctx context.Context, userID int64, rest string, imageURLs []string, out platform.Responder) error {
	m.store.Delete(userID)
	now := m.now()
	parsed := command.Parse(rest, m.catalog)

	image := m.entryImage(ctx, imageURLs, parsed.InlineImageURL)

	if parsed.EngineUnknown || parsed.EngineDisabled {
		m.store.Put(userID, session.NewAwaitEngine(now, image, 1))
		if err := out.ReplyText(fmt.Sprintf(promptEngineBadFmt, parsed.EngineToken)); err != nil {
			return err
		}
		return m.sendEnginePrompt(out, "", image != nil)
	}

	switch {
	case parsed.Engine != "" && image != nil:
		return m.performSearch(ctx, userID, parsed.Engine, image, out)
	case parsed.Engine != "":
		m.store.Put(userID, session.NewAwaitImage(now, parsed.Engine))
		return out.ReplyText(fmt.Sprintf(promptChosenWaitImgFmt, parsed.Engine))
	default:
		m.store.Put(userID, session.NewAwaitBoth(now, "", image))
		return m.sendEnginePrompt(out, "", image != nil)
	}
}

// entryImage resolves the image supplied with the trigger, preferring an
// attachment over an inline link.
func (m *Machine) entryImage(ctx context.Context, imageURLs []string, inlineURL string) []byte {
	if len(imageURLs) > 0 {
		if fetched := m.fetcher.FetchAll(ctx, imageURLs); len(fetched) > 0 {
			return fetched[0]
		}
	}
	if inlineURL != "" {
		if data, ok := m.fetcher.Fetch(ctx, inlineURL); ok {
			return data
		}
	}
	return nil
}

func (m *Machine) handleAwaitEngine(ctx context.Context, userID int64, s *session.AwaitEngine, text string, out platform.Responder) error {
	now := m.now()
	if text == "" {
		s.Touch(now)
		m.store.Put(userID, s)
		return out.ReplyText(promptEngineEmpty)
	}

	eng, status := m.catalog.Resolve(text)
	switch status {
	case engine.StatusOK:
		if s.Image != nil {
			return m.performSearch(ctx, userID, eng, s.Image, out)
		}
		m.store.Put(userID, session.NewAwaitImage(now, eng))
		return out.ReplyText(fmt.Sprintf(promptChosenWaitImgFmt, eng))
	case engine.StatusDisabled:
		s.Touch(now)
		m.store.Put(userID, s)
		if err := out.ReplyText(fmt.Sprintf(promptDisabledFmt, text)); err != nil {
			return err
		}
		return m.sendEnginePrompt(out, "", s.Image != nil)
	default:
		s.InvalidAttempts++
		if s.InvalidAttempts >= 2 {
			m.store.Delete(userID)
			return out.ReplyText(promptTooManyAttempts)
		}
		s.Touch(now)
		m.store.Put(userID, s)
		if err := out.ReplyText(fmt.Sprintf(promptEngineUnknownFmt, text)); err != nil {
			return err
		}
		return m.sendEnginePrompt(out, "", s.Image != nil)
	}
}

func (m *Machine) handleAwaitImage(ctx context.Context, userID int64, s *session.AwaitImage, text string, imageURLs []string, out platform.Responder) error {
	if image := m.incomingImage(ctx, text, imageURLs); image != nil {
		return m.performSearch(ctx, userID, s.Engine, image, out)
	}
	// Deliberately no Touch: a stream of non-images cannot keep the
	// session alive forever.
	return out.ReplyText(promptImageOnly)
}

func (m *Machine) handleAwaitBoth(ctx context.Context, userID int64, s *session.AwaitBoth, text string, imageURLs []string, out platform.Responder) error {
	now := m.now()
	updated := false

	var engToken string
	var engStatus engine.Status
	if s.Engine == "" && text != "" && !command.IsImageURL(text) {
		engToken = text
		var eng engine.ID
		eng, engStatus = m.catalog.Resolve(text)
		if engStatus == engine.StatusOK {
			s.Engine = eng
			updated = true
		}
	}
	if s.Image == nil {
		if image := m.incomingImage(ctx, text, imageURLs); image != nil {
			s.Image = image
			updated = true
		}
	}

	if s.Engine != "" && s.Image != nil {
		return m.performSearch(ctx, userID, s.Engine, s.Image, out)
	}

	if updated {
		s.Touch(now)
		m.store.Put(userID, s)
		return m.sendEnginePrompt(out, s.Engine, s.Image != nil)
	}

	// The reply advanced nothing; explain what is still missing.
	if engToken != "" && engStatus != engine.StatusOK {
		if engStatus == engine.StatusDisabled {
			s.Touch(now)
			m.store.Put(userID, s)
			if err := out.ReplyText(fmt.Sprintf(promptDisabledFmt, engToken)); err != nil {
				return err
			}
			return m.sendEnginePrompt(out, "", s.Image != nil)
		}
		s.InvalidAttempts++
		if s.InvalidAttempts >= 2 {
			m.store.Delete(userID)
			return out.ReplyText(promptTooManyAttempts)
		}
		s.Touch(now)
		m.store.Put(userID, s)
		if err := out.ReplyText(fmt.Sprintf(promptEngineUnknownFmt, engToken)); err != nil {
			return err
		}
		return m.sendEnginePrompt(out, "", s.Image != nil)
	}

	s.Touch(now)
	m.store.Put(userID, s)
	switch {
	case s.Engine == "" && s.Image == nil:
		return out.ReplyText(promptNeedBoth)
	case s.Engine == "":
		return out.ReplyText(promptNeedEngine)
	default:
		return out.ReplyText(promptNeedImage)
	}
}

func (m *Machine) handleTextConfirm(userID int64, tc *session.AwaitTextConfirm, text string, now time.Time, out platform.Responder) error {
	m.store.Delete(userID)
	if now.Sub(tc.LastActivity()) > textConfirmWindow {
		// The offer lapsed quietly; the message gets no reply.
		return nil
	}
	if isAffirmative(text) {
		return m.deliverer.Deliver(out, tc.ResultText)
	}
	return nil
}

// incomingImage resolves an image from a follow-up message: an attached
// image wins, then a bare image link in the text.
func (m *Machine) incomingImage(ctx context.Context, text string, imageURLs []string) []byte {
	if len(imageURLs) > 0 {
		if fetched := m.fetcher.FetchAll(ctx, imageURLs); len(fetched) > 0 {
			return fetched[0]
		}
	}
	if command.IsImageURL(text) {
		if data, ok := m.fetcher.Fetch(ctx, text); ok {
			return data
		}
	}
	return nil
}

// performSearch runs the search, replies with the rendered card, and
// opens the plain-text confirmation window. The new session replaces
// whatever step was active; callers must not delete it afterwards.
func (m *Machine) performSearch(ctx context.Context, userID int64, eng engine.ID, image []byte, out platform.Responder) error {
	start := m.now()
	resultText, err := m.searcher.Search(ctx, eng, image)
	took := m.now().Sub(start)
	if err != nil {
		m.store.Delete(userID)
		logger.Warn(ctx, "dialog", "search.fail",
			slog.Int64("user_id", userID),
			slog.String("engine", string(eng)),
			slog.Duration("duration", took),
			slog.String("err", err.Error()))
		return out.ReplyImage(m.renderer.Error(eng, err.Error()))
	}

	logger.Info(ctx, "dialog", "search.ok",
		slog.Int64("user_id", userID),
		slog.String("engine", string(eng)),
		slog.Int("chars", len(resultText)),
		slog.Duration("duration", took))

	if err := out.ReplyImage(m.renderer.Result(eng, resultText, image)); err != nil {
		m.store.Delete(userID)
		return err
	}
	if err := out.ReplyText(promptTextConfirm); err != nil {
		m.store.Delete(userID)
		return err
	}
	m.store.Put(userID, session.NewAwaitTextConfirm(m.now(), resultText))

	if m.recorder != nil {
		if err := m.recorder.Record(ctx, userID, eng, len(resultText), took); err != nil {
			logger.Warn(ctx, "dialog", "history.record.fail",
				slog.Int64("user_id", userID),
				slog.String("err", err.Error()))
		}
	}
	return nil
}

// ChooseEngine applies an engine picked from the inline keyboard. It is
// equivalent to the user typing the engine name.
func (m *Machine) ChooseEngine(ctx context.Context, userID int64, token string, out platform.Responder) error {
	sess, ok := m.store.Get(userID)
	if !ok {
		return out.ReplyText(promptNoActiveSession)
	}
	if m.now().Sub(sess.LastActivity()) > interactiveTimeout {
		m.store.Delete(userID)
		return out.ReplyText(promptTimeout)
	}
	switch s := sess.(type) {
	case *session.AwaitEngine:
		return m.handleAwaitEngine(ctx, userID, s, token, out)
	case *session.AwaitBoth:
		return m.handleAwaitBoth(ctx, userID, s, token, nil, out)
	default:
		return nil
	}
}

// Cancel aborts the user's session from the inline cancel button.
func (m *Machine) Cancel(userID int64, out platform.Responder) error {
	if _, ok := m.store.Get(userID); !ok {
		return out.ReplyText(promptNoActiveSession)
	}
	m.store.Delete(userID)
	return out.ReplyText(promptCancelled)
}

// sendEnginePrompt asks for whatever the session still needs. While no
// engine is chosen the prompt ships the intro card and the picker menu.
func (m *Machine) sendEnginePrompt(out platform.Responder, eng engine.ID, hasImage bool) error {
	names := make([]string, 0, len(m.catalog.Enabled()))
	for _, id := range m.catalog.Enabled() {
		names = append(names, string(id))
	}
	if eng != "" {
		return out.ReplyText(fmt.Sprintf(promptChosenSendFmt, eng))
	}
	if err := out.ReplyImage(m.renderer.Intro(m.catalog.Enabled())); err != nil {
		return err
	}
	if hasImage {
		return out.ReplyEngineMenu(promptPickWithImage, names)
	}
	return out.ReplyEngineMenu(promptPickNoImage, names)
}

func isAffirmative(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	return t == "是" || t == "yes"
}
