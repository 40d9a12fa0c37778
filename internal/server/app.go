// Package server wires the notebook application together: configuration,
// storage, the chat handler, and the web viewer, with graceful shutdown on
// OS signals.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/thepicklr/notebook/internal/logging"
	"github.com/thepicklr/notebook/internal/scout"
	"github.com/thepicklr/notebook/internal/server/config"
	"github.com/thepicklr/notebook/internal/server/repositories/repomanager"
	"github.com/thepicklr/notebook/internal/server/services"
	"github.com/thepicklr/notebook/internal/server/web"
	"github.com/thepicklr/notebook/internal/slack"
)

type App struct {
	config    *config.Config
	logger    logging.Logger
	db        *sql.DB
	webServer *web.Server
}

func NewApp(cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(context.Background(), db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	httpClient := &http.Client{Timeout: cfg.ClientTimeout}

	chat := slack.NewClient(cfg.SlackToken, httpClient)
	notebook := services.NewNotebook(db, rm, chat, cfg.ChannelErrors, logger)
	archive := services.NewImages(cfg)
	stats := scout.NewClient(cfg.ScoutSeason, httpClient)
	sheets := scout.NewGoogleSheets(cfg.SheetsToken, cfg.SpreadsheetID, httpClient)

	events := slack.NewHandler(
		cfg.SlackSigningSecret,
		cfg.SlackToken,
		chat,
		notebook,
		archive,
		stats,
		sheets,
		slack.Channels{
			Notebook:    cfg.ChannelNotebook,
			Mechanical:  cfg.ChannelMechanical,
			Programming: cfg.ChannelProgramming,
			Errors:      cfg.ChannelErrors,
		},
		logger,
	)

	webServer, err := web.NewServer(
		cfg.HTTPAddr,
		notebook,
		rm.Users(db),
		archive,
		events,
		[]byte(cfg.SecretKey),
		[]byte(cfg.SessionKey),
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("web server init error: %w", err)
	}

	return &App{config: cfg, logger: logger, db: db, webServer: webServer}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app", "addr", app.config.HTTPAddr)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.webServer.Run(ctx); err != nil {
			app.logger.Error(ctx, "web server stopped", "error", err.Error())
			cancelFunc()
		}
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "closing database", "error", err.Error())
	}
}
