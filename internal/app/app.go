// Package app wires configuration, the token store, the Readeck client
// and the Telegram bot together, and owns process lifecycle.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/jmfederico/readeckbot/internal/bot"
	"github.com/jmfederico/readeckbot/internal/config"
	"github.com/jmfederico/readeckbot/internal/httpserver"
	"github.com/jmfederico/readeckbot/internal/logger"
	"github.com/jmfederico/readeckbot/internal/readeck"
	"github.com/jmfederico/readeckbot/internal/summary"
	"github.com/jmfederico/readeckbot/internal/telegraph"
	"github.com/jmfederico/readeckbot/internal/tokenstore"
	"github.com/jmfederico/readeckbot/internal/version"
)

type App struct {
	cfg    *config.Config
	logger logger.Logger
	bot    *bot.Bot
	server *httpserver.Server // nil when BOT_LISTEN_ADDR is unset
	store  *tokenstore.FileStore
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// The token file is the only persistent state; fail fast when it
	// cannot be opened or created.
	store, err := tokenstore.Open(cfg.DataFile)
	if err != nil {
		loggerClient.Errorf("failed to open token store %s: %v", cfg.DataFile, err)
		os.Exit(1)
	}
	loggerClient.Info("token store ready",
		logger.String("file", cfg.DataFile),
		logger.Int("users", store.Count()))

	readeckClient := readeck.New(cfg.ReadeckBaseURL, cfg.HTTPTimeout)
	readeckClient.RetryCount = cfg.RetryCount
	readeckClient.ListCap = cfg.PageLimit

	publisher := telegraph.NewPublisher(telegraph.NewClient(cfg.HTTPTimeout))

	var summarizer summary.Summarizer
	if cfg.LLMKey != "" {
		summarizer = summary.NewOpenAI(cfg.LLMKey, cfg.LLMModel, cfg.LLMBaseURL)
		loggerClient.Info("summary feature enabled", logger.String("model", cfg.LLMModel))
	} else {
		loggerClient.Info("summary feature disabled, LLM_KEY not set")
	}

	tg, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		loggerClient.Errorf("failed to connect to Telegram: %v", err)
		os.Exit(1)
	}

	botClient := bot.New(tg, bot.Options{
		Store:       store,
		Readeck:     readeckClient,
		Publisher:   publisher,
		Summarizer:  summarizer,
		Log:         loggerClient,
		ChunkLimit:  cfg.ChunkLimit,
		PageLimit:   cfg.PageLimit,
		SummaryMax:  cfg.LLMMaxLength,
		ReadeckCfg:  cfg.ReadeckConfig,
		ReadeckData: cfg.ReadeckData,
	})

	var server *httpserver.Server
	if cfg.ListenAddr != "" {
		server = httpserver.New(cfg.ListenAddr, loggerClient, httpserver.Deps{
			Log:          loggerClient,
			StartTime:    time.Now(),
			Version:      version.Version,
			Commit:       version.Commit,
			BuildDate:    version.BuildDate,
			GoVersion:    version.GoVersion,
			CheckReadeck: readeckClient.Ping,
			TokenCount:   store.Count,
		})
	}

	return &App{
		cfg:    cfg,
		logger: loggerClient,
		bot:    botClient,
		server: server,
		store:  store,
	}
}

func (a *App) Run() error {
	a.logger.Infof("readeckbot %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)
	a.logger.Infof("proxying to Readeck at %s", a.cfg.ReadeckBaseURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)

	if a.server != nil {
		go func() {
			if err := a.server.Start(); err != nil {
				errCh <- fmt.Errorf("ops server error: %w", err)
			}
		}()
	}

	go func() {
		if err := a.bot.Run(ctx); err != nil {
			errCh <- fmt.Errorf("bot error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	if a.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		if err := a.server.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("failed to stop ops server: %w", err)
		}
	}

	a.logger.Info("readeckbot stopped cleanly")
	_ = a.logger.Sync()
	return nil
}
