package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/els777/TGtoWP/internal/cms/wordpress"
	"github.com/els777/TGtoWP/internal/config"
	"github.com/els777/TGtoWP/internal/conversation"
	"github.com/els777/TGtoWP/internal/core/ports"
	"github.com/els777/TGtoWP/internal/logger"
	"github.com/els777/TGtoWP/internal/storage"
	"github.com/els777/TGtoWP/internal/ui/telegram"
)

func main() {
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store ports.SessionStore
	if cfg.DatabaseURL != "" {
		store, err = storage.NewPostgresStorage(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres session store init failed")
		}
		log.Info().Msg("session store: postgres")
	} else {
		store, err = storage.NewSQLiteStorage(cfg.SQLitePath)
		if err != nil {
			log.Fatal().Err(err).Msg("sqlite session store init failed")
		}
		log.Info().Str("path", cfg.SQLitePath).Msg("session store: sqlite")
	}

	wp := wordpress.NewClient(cfg.WPBaseURL, cfg.WPUsername, cfg.WPPassword, log)
	wp.RequireFeaturedImage = cfg.RequireCoverImage

	engine := conversation.New(store, wp, cfg.AllowedUsers, cfg.MarkdownBody, log)

	bot, err := telegram.NewBot(cfg.BotToken, engine, log)
	if err != nil {
		log.Fatal().Err(err).Msg("telegram bot init failed")
	}

	if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("bot stopped")
	}
	log.Info().Msg("shutting down")
}
