package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"

	"SupportChat/internal/chatbot"
	"SupportChat/internal/config"
)

func main() {
	var (
		configPath string
		baseURL    string
		token      string
		username   string
		password   string
		dbPath     string
		noStorage  bool
		sessionID  string
		debug      bool
	)

	flag.StringVar(&configPath, "config", "supportchat.yaml", "Path to the YAML config file")
	flag.StringVar(&baseURL, "base-url", "", "Assistant backend base URL (overrides config)")
	flag.StringVar(&token, "token", "", "Bearer token for the backend (overrides config)")
	flag.StringVar(&username, "username", "", "Sign in with this username at startup")
	flag.StringVar(&password, "password", "", "Password for -username")
	flag.StringVar(&dbPath, "db", "", "Path to the transcript archive (overrides config)")
	flag.BoolVar(&noStorage, "no-storage", false, "Do not archive transcripts")
	flag.StringVar(&sessionID, "session-id", "", "Resume an archived session by ID")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.Parse()

	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = config.Default()
	} else if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if baseURL != "" {
		cfg.Backend.BaseURL = baseURL
	}
	if token != "" {
		cfg.Auth.Token = token
	}
	if username != "" {
		cfg.Auth.Username = username
		cfg.Auth.Password = password
	}
	if dbPath != "" {
		cfg.Storage.Path = dbPath
	}
	if noStorage {
		cfg.Storage.Enabled = false
	}
	cfg.SessionID = sessionID
	cfg.Debug = debug

	if err := cfg.Finalize(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	bot, err := chatbot.NewChatBot(cfg, os.Stdin, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize chatbot: %v\n", err)
		os.Exit(1)
	}

	if err := bot.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
