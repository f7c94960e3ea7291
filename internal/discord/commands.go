package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// Option names of the signal-creation slash command.
const (
	optionAsset     = "asset"
	optionDirection = "direction"
	optionEntry     = "entry"
	optionStopLoss  = "sl"
	optionPlan      = "plan"
	optionReason    = "reason"
	optionMentions  = "mentions"
)

func takeProfitOption(n int) string { return fmt.Sprintf("tp%d", n) }

// BuildCommands returns the guild command set. The command name is
// configurable so multiple deployments can coexist in one guild.
func BuildCommands(name string) []*discordgo.ApplicationCommand {
	options := []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        optionAsset,
			Description: "Asset symbol (e.g., BTC, ETH, SOL)",
			Required:    true,
		},
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        optionDirection,
			Description: "Long or Short",
			Required:    true,
			Choices: []*discordgo.ApplicationCommandOptionChoice{
				{Name: "Long", Value: "LONG"},
				{Name: "Short", Value: "SHORT"},
			},
		},
		{
			Type:        discordgo.ApplicationCommandOptionNumber,
			Name:        optionEntry,
			Description: "Entry price",
		},
		{
			Type:        discordgo.ApplicationCommandOptionNumber,
			Name:        optionStopLoss,
			Description: "Stop loss price",
		},
	}

	for n := 1; n <= 5; n++ {
		options = append(options, &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionNumber,
			Name:        takeProfitOption(n),
			Description: fmt.Sprintf("Take profit %d price", n),
		})
	}

	options = append(options,
		&discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        optionPlan,
			Description: "Planned close percentages per TP, comma separated (e.g., 50,25,25)",
		},
		&discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        optionReason,
			Description: "Optional reasoning",
		},
		&discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        optionMentions,
			Description: "Extra role IDs or mentions to ping",
		},
	)

	return []*discordgo.ApplicationCommand{
		{
			Name:        name,
			Description: "Create a trade signal",
			Options:     options,
		},
	}
}

// RegisterCommands overwrites the guild's command set with ours.
func RegisterCommands(session *discordgo.Session, appID, guildID, name string) error {
	_, err := session.ApplicationCommandBulkOverwrite(appID, guildID, BuildCommands(name))
	if err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}
	return nil
}
