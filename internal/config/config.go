// Package config reads the bot's configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	BotToken     string
	AllowedUsers []int64

	WPBaseURL  string
	WPUsername string
	WPPassword string

	// DatabaseURL selects the Postgres session store when set; otherwise
	// drafts go to the sqlite file at SQLitePath.
	DatabaseURL string
	SQLitePath  string

	// RequireCoverImage aborts the submission when the cover cannot be
	// uploaded. MarkdownBody renders plain-text bodies as Markdown.
	RequireCoverImage bool
	MarkdownBody      bool

	LogLevel string
}

func Load() (*Config, error) {
	cfg := &Config{
		BotToken:          os.Getenv("TELEGRAM_BOT_TOKEN"),
		WPBaseURL:         os.Getenv("WP_URL"),
		WPUsername:        os.Getenv("WP_USERNAME"),
		WPPassword:        os.Getenv("WP_PASSWORD"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		SQLitePath:        envDefault("SQLITE_PATH", "data/bot_data.db"),
		RequireCoverImage: envBool("REQUIRE_COVER_IMAGE", true),
		MarkdownBody:      envBool("MARKDOWN_BODY", false),
		LogLevel:          envDefault("LOG_LEVEL", "info"),
	}

	if cfg.BotToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if cfg.WPBaseURL == "" || cfg.WPUsername == "" || cfg.WPPassword == "" {
		return nil, fmt.Errorf("WP_URL, WP_USERNAME and WP_PASSWORD are required")
	}

	users, err := parseUserIDs(os.Getenv("ALLOWED_USERS"))
	if err != nil {
		return nil, err
	}
	cfg.AllowedUsers = users
	return cfg, nil
}

func parseUserIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ALLOWED_USERS: bad user id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
