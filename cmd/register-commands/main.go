// Registers the guild slash commands without starting the bot. Run once
// after deployment or whenever the command definition changes.
package main

import (
	"context"

	"trade-signal-bot/config"
	"trade-signal-bot/internal/discord"
	"trade-signal-bot/internal/logging"
	"trade-signal-bot/internal/vault"

	"github.com/bwmarrin/discordgo"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Failed to load configuration", "error", err)
	}

	vaultClient, err := vault.NewClient(cfg.VaultConfig)
	if err != nil {
		logging.Fatal("Failed to create vault client", "error", err)
	}
	if vaultClient.IsEnabled() {
		if err := vaultClient.ApplySecrets(context.Background(), cfg); err != nil {
			logging.Fatal("Failed to load secrets from vault", "error", err)
		}
	}

	if cfg.DiscordConfig.Token == "" || cfg.DiscordConfig.ApplicationID == "" || cfg.DiscordConfig.GuildID == "" {
		logging.Fatal("DISCORD_TOKEN, DISCORD_APPLICATION_ID and DISCORD_GUILD_ID are required")
	}

	session, err := discordgo.New("Bot " + cfg.DiscordConfig.Token)
	if err != nil {
		logging.Fatal("Failed to create discord session", "error", err)
	}

	logging.Info("Registering commands", "guild_id", cfg.DiscordConfig.GuildID, "command", cfg.DiscordConfig.CommandName)
	if err := discord.RegisterCommands(session, cfg.DiscordConfig.ApplicationID, cfg.DiscordConfig.GuildID, cfg.DiscordConfig.CommandName); err != nil {
		logging.Fatal("Failed to register commands", "error", err)
	}
	logging.Info("Commands registered")
}
