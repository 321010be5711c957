package bot

import (
	"context"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/ytmp3bot/core/bootstrap"
	"github.com/m3rciful/ytmp3bot/core/logger"
	coretelegram "github.com/m3rciful/ytmp3bot/core/telegram"
	"github.com/m3rciful/ytmp3bot/core/telegram/router"
	"github.com/m3rciful/ytmp3bot/core/telegram/state"
	"github.com/m3rciful/ytmp3bot/downloader"
	"github.com/m3rciful/ytmp3bot/history"
)

// App wires the downloader, the per-chat conversation state, and the
// optional history journal into one Telegram bot.
type App struct {
	cfg     *Config
	dl      *downloader.Downloader
	fsm     state.Manager
	reg     *coretelegram.Registry
	rec     history.Recorder
	db      *sqlx.DB
	running *runningTasks

	// deliverFn points at deliver; tests swap it out.
	deliverFn func(ctx context.Context, c tele.Context, taskID, rawURL string, playlist bool)
}

// New bootstraps infrastructure and builds a ready-to-run App.
func New(cfg *Config) (*App, error) {
	boot, err := bootstrap.Run(bootstrap.Options{
		Config:   &cfg.Core,
		Database: cfg.Database,
	})
	if err != nil {
		return nil, err
	}

	dlCfg := cfg.Core.Download
	a := &App{
		cfg: cfg,
		dl: downloader.New(downloader.Options{
			YtdlpPath:     dlCfg.YtdlpPath,
			FfprobePath:   dlCfg.FfprobePath,
			WorkDir:       dlCfg.WorkDir,
			AudioFormat:   dlCfg.AudioFormat,
			AudioQuality:  dlCfg.AudioQuality,
			Timeout:       time.Duration(dlCfg.TimeoutSeconds) * time.Second,
			PlaylistLimit: dlCfg.PlaylistLimit,
			Concurrency:   dlCfg.Concurrency,
		}),
		fsm:     state.NewMemoryManager(),
		reg:     coretelegram.NewRegistry(),
		db:      boot.DB,
		running: newRunningTasks(),
	}
	if boot.DB != nil {
		a.rec = history.NewStore(boot.DB)
	}
	a.deliverFn = a.deliver

	a.registerHandlers()
	return a, nil
}

// TelegramRunOptions assembles routes, middlewares, and lifecycle hooks
// for the shared bot runtime.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	core := &a.cfg.Core

	routes := router.CommandRoutes(a.reg, router.CommandRouteOptions{
		AdminID: core.Telegram.AdminID,
	})
	routes = append(routes, router.TextRoutes(a.fsm, a.reg, router.TextOptions{
		UnknownText:     a.handleUnknownText,
		UnknownDocument: a.handleUnexpectedDocument,
	})...)
	routes = append(routes, router.CallbackRoute(a.reg, router.CallbackOptions{}))

	return coretelegram.RunOptions{
		Config:      core,
		Registry:    a.reg,
		Middlewares: coretelegram.DefaultMiddlewares(core, nil),
		Routes:      routes,
		OnStart: func(ctx context.Context, _ coretelegram.Runtime) error {
			// A missing binary is reported but not fatal: every download
			// attempt surfaces its own error in chat.
			if err := a.dl.CheckBinaries(ctx); err != nil {
				logger.Warn(ctx, "dl", "binary.missing",
					slog.String("status", "fail"),
					slog.String("err", err.Error()),
				)
			}
			return nil
		},
		OnStop: func(ctx context.Context, _ coretelegram.Runtime) error {
			a.running.CancelAll()
			if a.db != nil {
				return a.db.Close()
			}
			return nil
		},
	}, nil
}
