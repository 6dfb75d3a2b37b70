// Package app assembles the bot: configuration, infrastructure, the
// conversational search machine, and the Telegram wiring.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"imgseekbot/core/bootstrap"
	"imgseekbot/core/buildinfo"
	"imgseekbot/core/logger"
	coretelegram "imgseekbot/core/telegram"
	"imgseekbot/core/telegram/callbacks"
	"imgseekbot/core/telegram/commands"
	"imgseekbot/core/telegram/format"
	tghelpers "imgseekbot/core/telegram/helpers"
	"imgseekbot/core/telegram/router"
	tgsender "imgseekbot/core/telegram/sender"
	"imgseekbot/core/telegram/ui"
	"imgseekbot/internal/dialog"
	"imgseekbot/internal/dispatch"
	"imgseekbot/internal/engine"
	"imgseekbot/internal/fetch"
	"imgseekbot/internal/history"
	"imgseekbot/internal/platform"
	"imgseekbot/internal/render"
	"imgseekbot/internal/search"
	"imgseekbot/internal/session"
)

// App holds the assembled application components.
type App struct {
	cfg *Config

	catalog *engine.Catalog
	store   session.Store
	sweeper *session.Sweeper
	machine *dialog.Machine
	history *history.Store

	dispatcher *tgsender.Dispatcher
	result     *bootstrap.Result
}

var _ ui.FallbackProvider = (*App)(nil)

// Bootstrap initializes infrastructure and builds the application.
func Bootstrap(cfg *Config) (*App, error) {
	res, err := bootstrap.Run(bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.Database,
	})
	if err != nil {
		return nil, err
	}

	catalog, err := engine.NewCatalog(cfg.Search.DisabledEngines)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	store := session.NewMemoryStore()

	a := &App{
		cfg:     cfg,
		catalog: catalog,
		store:   store,
		sweeper: session.NewSweeper(store),
		result:  res,
	}
	if res.DB != nil {
		a.history = history.New(res.DB)
		logger.SVCHistory.Info("search history enabled",
			slog.String("event", "enable"),
		)
	}

	opts := dialog.Options{
		Store:     store,
		Catalog:   catalog,
		Fetcher:   fetch.NewClient(),
		Searcher:  search.NewClient(cfg.Search.clientOptions()),
		Renderer:  render.New(cfg.Search.FontPath),
		Deliverer: dispatch.NewDeliverer(),
		Keyword:   cfg.Search.TriggerKeyword,
	}
	if a.history != nil {
		opts.Recorder = a.history
	}
	a.machine = dialog.NewMachine(opts)

	return a, nil
}

// TelegramRunOptions builds the runtime wiring for the Telegram bot.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	a.dispatcher = tgsender.NewDispatcher(tgsender.Options{})

	reg := coretelegram.NewRegistry()
	a.registerCommands(reg)
	a.registerCallbacks(reg)

	conv := &conversation{machine: a.machine}

	routes := router.MessageRoutes(conv, reg, router.MessageOptions{
		UnknownText:  a.UnknownText(),
		UnknownPhoto: a.UnknownPhoto(),
	})
	routes = append(routes, router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: a.cfg.Core.Telegram.AdminID,
	})...)
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{
		NotFound: a.UnknownCallback(),
	}))

	return coretelegram.RunOptions{
		Config:      a.cfg.CoreConfig(),
		Registry:    reg,
		Dispatcher:  a.dispatcher,
		Middlewares: coretelegram.DefaultMiddlewares(a.cfg.CoreConfig(), nil),
		Routes:      routes,
		OnStart: func(ctx context.Context, rt coretelegram.Runtime) error {
			a.sweeper.Start()
			return nil
		},
		OnStop: func(ctx context.Context, rt coretelegram.Runtime) error {
			a.sweeper.Stop()
			if a.result != nil && a.result.DB != nil {
				return a.result.DB.Close()
			}
			return nil
		},
	}, nil
}

// conversation adapts the dialog machine to the message router.
type conversation struct {
	machine *dialog.Machine
}

func (cv *conversation) Wants(c tele.Context) bool {
	in := platform.NewTelegramInbound(c)
	if c.Message() != nil && c.Message().Photo != nil {
		// A photo always reaches the machine when a session exists;
		// captions alone decide for plain text.
		return cv.machine.Wants(in.SenderID(), c.Message().Caption) ||
			cv.machine.Wants(in.SenderID(), c.Text())
	}
	return cv.machine.Wants(in.SenderID(), c.Text())
}

func (cv *conversation) Handle(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	return cv.machine.HandleMessage(ctx, platform.NewTelegramInbound(c), platform.NewTelegramResponder(c))
}

func (a *App) registerCommands(reg *coretelegram.Registry) {
	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.handleStart,
		Description: "介绍与使用说明",
	})
	reg.RegisterCommand("/help", commands.Command{
		Handler:     a.handleStart,
		Description: "使用帮助",
		Aliases:     []string{"h"},
	})
	reg.RegisterCommand("/engines", commands.Command{
		Handler:     a.handleEngines,
		Description: "列出可用的搜索引擎",
	})
	reg.RegisterCommand("/history", commands.Command{
		Handler:     a.handleHistory,
		Description: "查看最近的搜索记录",
	})
	reg.RegisterCommand("/stats", commands.Command{
		Handler:     a.handleStats,
		Description: "运行状态统计",
		AdminOnly:   true,
		Hidden:      true,
	})
}

func (a *App) registerCallbacks(reg *coretelegram.Registry) {
	_ = reg.RegisterCallback(platform.CallbackEnginePick, func(c tele.Context) error {
		token := callbacks.CallbackPayload(c)
		ctx := tghelpers.BuildContext(c)
		in := platform.NewTelegramInbound(c)
		return a.machine.ChooseEngine(ctx, in.SenderID(), token, platform.NewTelegramResponder(c))
	})
	_ = reg.RegisterCallback(platform.CallbackCancel, func(c tele.Context) error {
		in := platform.NewTelegramInbound(c)
		return a.machine.Cancel(in.SenderID(), platform.NewTelegramResponder(c))
	})
}

func (a *App) handleStart(c tele.Context) error {
	kw, err := format.EscapeMarkdown(a.cfg.Search.TriggerKeyword, format.MarkdownV1, "")
	if err != nil {
		kw = a.cfg.Search.TriggerKeyword
	}
	var b strings.Builder
	b.WriteString("*以图搜图机器人*\n\n")
	b.WriteString("发送 \"")
	b.WriteString(kw)
	b.WriteString("\" 开始搜索，也可以直接带上引擎名和图片:\n")
	b.WriteString("`")
	b.WriteString(kw)
	b.WriteString(" baidu https://example.com/cat.jpg`\n\n")
	b.WriteString("引擎列表见 /engines")
	return tghelpers.SendMD(c, b.String())
}

func (a *App) handleEngines(c tele.Context) error {
	var b strings.Builder
	b.WriteString("可用引擎:\n")
	for _, id := range a.catalog.Enabled() {
		b.WriteString("· ")
		b.WriteString(string(id))
		b.WriteString("\n")
	}
	if disabled := a.catalog.Disabled(); len(disabled) > 0 {
		b.WriteString("\n已停用:\n")
		for _, id := range disabled {
			b.WriteString("· ")
			b.WriteString(string(id))
			b.WriteString("\n")
		}
	}
	return tghelpers.SendText(c, strings.TrimRight(b.String(), "\n"))
}

func (a *App) handleHistory(c tele.Context) error {
	if a.history == nil {
		return tghelpers.SendText(c, "未配置数据库，搜索记录不可用")
	}
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	entries, err := a.history.Recent(ctx, sender.ID, 10)
	if err != nil {
		return tghelpers.SendText(c, "查询搜索记录失败")
	}
	if len(entries) == 0 {
		return tghelpers.SendText(c, "暂无搜索记录")
	}
	var b strings.Builder
	b.WriteString("最近的搜索:\n")
	for _, e := range entries {
		b.WriteString(fmt.Sprintf("%s  %s  %d字  %dms\n",
			e.CreatedAt.Format("01-02 15:04"), e.Engine, e.ResultChars, e.TookMS))
	}
	return tghelpers.SendText(c, strings.TrimRight(b.String(), "\n"))
}

func (a *App) handleStats(c tele.Context) error {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("version: %s\n", buildinfo.Version))
	b.WriteString(fmt.Sprintf("sessions: %d\n", a.store.Len()))
	if a.dispatcher != nil {
		b.WriteString(fmt.Sprintf("send errors: %d\n", a.dispatcher.ErrorCount()))
	}
	if a.history != nil {
		ctx, cancel := context.WithTimeout(tghelpers.BuildContext(c), 5*time.Second)
		defer cancel()
		if totals, err := a.history.TotalsByEngine(ctx); err == nil {
			b.WriteString("searches by engine:\n")
			for _, t := range totals {
				b.WriteString(fmt.Sprintf("  %s: %d\n", t.Engine, t.Count))
			}
		}
	}
	return tghelpers.SendText(c, strings.TrimRight(b.String(), "\n"))
}

// UnknownText ignores plain text outside a session without replying.
func (a *App) UnknownText() tele.HandlerFunc {
	return func(c tele.Context) error { return nil }
}

// UnknownPhoto hints at the trigger when a bare photo arrives.
func (a *App) UnknownPhoto() tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.SendText(c, fmt.Sprintf("要搜索这张图片吗？发送 \"%s\" 开始", a.cfg.Search.TriggerKeyword))
	}
}

// UnknownCallback answers stale keyboard presses.
func (a *App) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		return c.Respond(&tele.CallbackResponse{Text: "该操作已失效"})
	}
}
