package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trade-signal-bot/config"
	"trade-signal-bot/internal/api"
	"trade-signal-bot/internal/bot"
	"trade-signal-bot/internal/cache"
	"trade-signal-bot/internal/database"
	"trade-signal-bot/internal/discord"
	"trade-signal-bot/internal/events"
	"trade-signal-bot/internal/logging"
	sig "trade-signal-bot/internal/signal"
	"trade-signal-bot/internal/vault"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	authpkg "trade-signal-bot/internal/auth"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Failed to load configuration", "error", err)
	}

	logger := logging.New(&logging.Config{
		Level:       cfg.LoggingConfig.Level,
		Output:      cfg.LoggingConfig.Output,
		Component:   "main",
		IncludeFile: cfg.LoggingConfig.IncludeFile,
		JSONFormat:  cfg.LoggingConfig.JSONFormat,
	})
	logging.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Vault-held secrets overlay the config before validation so a
	// deployment can keep the Discord token out of env entirely.
	vaultClient, err := vault.NewClient(cfg.VaultConfig)
	if err != nil {
		logger.Fatal("Failed to create vault client", "error", err)
	}
	if vaultClient.IsEnabled() {
		if err := vaultClient.Health(ctx); err != nil {
			logger.Fatal("Vault health check failed", "error", err)
		}
		if err := vaultClient.ApplySecrets(ctx, cfg); err != nil {
			logger.Fatal("Failed to load secrets from vault", "error", err)
		}
		logger.Info("Secrets loaded from vault", "path", cfg.VaultConfig.SecretPath)
	}

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", "error", err)
	}

	db, err := database.NewDB(cfg.DatabaseConfig)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := db.RunMigrations(ctx); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}
	repo := database.NewRepository(db)

	dedup := cache.NewActionDedup(cfg.RedisConfig, cache.DefaultDedupTTL)
	defer dedup.Close()

	eventBus := events.NewEventBus()

	trackerLogger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	tracker := sig.NewTracker(trackerLogger)

	session, err := discordgo.New("Bot " + cfg.DiscordConfig.Token)
	if err != nil {
		logger.Fatal("Failed to create discord session", "error", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages

	messenger := discord.NewMessenger(session)
	signalBot := bot.New(cfg.DiscordConfig, repo, messenger, tracker, dedup, eventBus)

	handler := discord.NewHandler(signalBot, messenger, cfg.DiscordConfig)
	handler.Attach(session)

	if err := session.Open(); err != nil {
		logger.Fatal("Failed to open discord gateway", "error", err)
	}
	defer session.Close()

	if err := discord.RegisterCommands(session, cfg.DiscordConfig.ApplicationID, cfg.DiscordConfig.GuildID, cfg.DiscordConfig.CommandName); err != nil {
		logger.Error("Failed to register commands", "error", err)
	}

	// Reconcile the summary with whatever happened while we were down.
	if err := signalBot.RefreshSummary(ctx); err != nil {
		logger.Warn("Initial summary refresh failed", "error", err)
	}

	var server *api.Server
	if cfg.ServerConfig.Enabled {
		var authService *authpkg.Service
		if cfg.AuthConfig.Enabled {
			authService = authpkg.NewService(cfg.AuthConfig)
		}
		server = api.NewServer(cfg.ServerConfig, signalBot, eventBus, authService)
		server.Start()
	}

	eventBus.Publish(events.EventBotStarted, map[string]interface{}{
		"command": cfg.DiscordConfig.CommandName,
	})
	logger.Info("Trade signal bot started", "command", cfg.DiscordConfig.CommandName, "guild_id", cfg.DiscordConfig.GuildID)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	eventBus.Publish(events.EventBotStopped, nil)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
	defer shutdownCancel()
	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("API server shutdown failed", "error", err)
		}
	}
}
