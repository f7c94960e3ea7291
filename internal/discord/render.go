package discord

import (
	"fmt"
	"strings"
	"time"

	"trade-signal-bot/internal/signal"

	"github.com/bwmarrin/discordgo"
)

const (
	colorLong  = 0x00ff88
	colorShort = 0xff3b30
)

// Component custom IDs. Button IDs are resolved back to a signal through
// the message they sit on; modal IDs carry the signal ID after the colon.
const (
	customIDTakeProfitPrefix = "signal_tp:"
	customIDEdit             = "signal_edit"
	customIDMentions         = "signal_mentions"
	customIDClose            = "signal_close"
	customIDStopBreakeven    = "signal_stop_be"
	customIDStopOut          = "signal_stop_out"
	customIDDelete           = "signal_delete"

	modalEditPrefix          = "signal_edit_modal:"
	modalMentionsPrefix      = "signal_mentions_modal:"
	modalClosePrefix         = "signal_close_modal:"
	modalStopBreakevenPrefix = "signal_stop_be_modal:"
	modalStopOutPrefix       = "signal_stop_out_modal:"
)

// announcementEmbed renders a signal as its announcement embed.
func announcementEmbed(s *signal.Signal) *discordgo.MessageEmbed {
	body := signal.RenderSignal(s)
	title := body
	description := ""
	if idx := strings.Index(body, "\n"); idx >= 0 {
		title = body[:idx]
		description = body[idx+1:]
	}
	title = strings.Trim(title, "*")

	color := colorLong
	if s.Direction == signal.DirectionShort {
		color = colorShort
	}

	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   s.CreatedAt.Format(time.RFC3339),
	}
	if s.AuthorID != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "By <@" + s.AuthorID + ">"}
	}
	return embed
}

// announcementComponents builds the action buttons for a signal message.
// Terminal signals keep their buttons visible but disabled, so the message
// still reads as a closed trade.
func announcementComponents(s *signal.Signal) []discordgo.MessageComponent {
	terminal := s.IsTerminal()

	tpRow := discordgo.ActionsRow{}
	for _, key := range signal.TakeProfitKeys {
		_, hasPrice := s.TakeProfits[key]
		tpRow.Components = append(tpRow.Components, discordgo.Button{
			Label:    key + " Hit",
			Style:    discordgo.SecondaryButton,
			CustomID: customIDTakeProfitPrefix + key,
			Disabled: terminal || s.TPHits[key] || !hasPrice,
		})
	}

	actionRow := discordgo.ActionsRow{
		Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label:    "Update Levels",
				Style:    discordgo.PrimaryButton,
				CustomID: customIDEdit,
				Disabled: terminal,
			},
			discordgo.Button{
				Label:    "Close Trade",
				Style:    discordgo.DangerButton,
				CustomID: customIDClose,
				Disabled: terminal,
			},
			discordgo.Button{
				Label:    "Stop BE",
				Style:    discordgo.SecondaryButton,
				CustomID: customIDStopBreakeven,
				Disabled: terminal,
			},
			discordgo.Button{
				Label:    "Stop Out",
				Style:    discordgo.DangerButton,
				CustomID: customIDStopOut,
				Disabled: terminal,
			},
		},
	}

	manageRow := discordgo.ActionsRow{
		Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label:    "Mentions",
				Style:    discordgo.SecondaryButton,
				CustomID: customIDMentions,
				Disabled: terminal,
			},
			discordgo.Button{
				Label:    "Delete",
				Style:    discordgo.DangerButton,
				CustomID: customIDDelete,
			},
		},
	}

	return []discordgo.MessageComponent{tpRow, actionRow, manageRow}
}

// mentionContent renders the role mention line above the embed.
func mentionContent(roleIDs []string) string {
	if len(roleIDs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(roleIDs))
	for _, id := range roleIDs {
		parts = append(parts, fmt.Sprintf("<@&%s>", id))
	}
	return strings.Join(parts, " ")
}
