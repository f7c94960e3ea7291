// Package discord is the chat boundary: it turns slash commands, buttons
// and modals into bot actions, and renders signals back into messages.
// All numeric input is parsed and validated here before anything mutates.
package discord

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"trade-signal-bot/config"
	"trade-signal-bot/internal/bot"
	"trade-signal-bot/internal/logging"
	"trade-signal-bot/internal/signal"

	"github.com/bwmarrin/discordgo"
)

// Handler routes gateway interactions to the bot.
type Handler struct {
	bot       *bot.Bot
	messenger *Messenger
	cfg       config.DiscordConfig
	logger    *logging.Logger
}

func NewHandler(b *bot.Bot, messenger *Messenger, cfg config.DiscordConfig) *Handler {
	return &Handler{
		bot:       b,
		messenger: messenger,
		cfg:       cfg,
		logger:    logging.WithComponent("discord_handler"),
	}
}

// Attach registers the gateway event handlers on the session.
func (h *Handler) Attach(session *discordgo.Session) {
	session.AddHandler(h.onReady)
	session.AddHandler(h.onInteraction)
}

func (h *Handler) onReady(s *discordgo.Session, r *discordgo.Ready) {
	h.logger.Info("Gateway ready", "user", r.User.Username)
}

func (h *Handler) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	// Each interaction gets a trace ID so its log lines can be correlated
	// across the handler and the bot.
	ctx, logger := logging.WithTraceContext(context.Background())
	logger.Debug("Interaction received", "type", i.Type, "interaction_id", i.ID)
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		h.handleCommand(ctx, s, i)
	case discordgo.InteractionMessageComponent:
		h.handleComponent(ctx, s, i)
	case discordgo.InteractionModalSubmit:
		h.handleModal(ctx, s, i)
	}
}

// ============================================================================
// SLASH COMMAND
// ============================================================================

func (h *Handler) handleCommand(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	if data.Name != h.cfg.CommandName {
		return
	}
	if !h.guard(s, i) {
		return
	}
	if !h.bot.FirstDelivery(ctx, i.ID) {
		return
	}

	userID, _ := interactionActor(i)
	logger := logging.InteractionContext(ctx, i.ID, userID)
	draft, err := draftFromOptions(data, userID)
	if err != nil {
		h.replyEphemeral(s, i, friendlyError(err))
		return
	}

	sig, err := h.bot.CreateSignal(ctx, draft)
	if err != nil {
		logger.Error("Failed to create signal", "error", err)
		h.replyEphemeral(s, i, "Something went wrong creating the signal.")
		return
	}

	roles := h.bot.MentionRoles(sig)
	respErr := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:         mentionContent(roles),
			Embeds:          []*discordgo.MessageEmbed{announcementEmbed(sig)},
			Components:      announcementComponents(sig),
			AllowedMentions: &discordgo.MessageAllowedMentions{Roles: roles},
		},
	})
	if respErr != nil {
		// No announcement means no signal: a record nobody can see or
		// act on would only haunt the summary.
		logger.Error("Failed to post announcement", "signal_id", sig.ID, "error", respErr)
		if delErr := h.bot.DeleteSignal(ctx, sig.ID); delErr != nil {
			logger.Error("Failed to roll back signal", "signal_id", sig.ID, "error", delErr)
		}
		return
	}

	msg, err := s.InteractionResponse(i.Interaction, discordgo.WithContext(ctx))
	if err != nil {
		logger.Error("Failed to fetch announcement message", "signal_id", sig.ID, "error", err)
		return
	}
	url := messageURL(h.cfg.GuildID, msg.ChannelID, msg.ID)
	if _, err := h.bot.AttachMessage(ctx, sig.ID, msg.ChannelID, msg.ID, url); err != nil {
		logger.Error("Failed to attach message to signal", "signal_id", sig.ID, "error", err)
	}
}

func draftFromOptions(data discordgo.ApplicationCommandInteractionData, authorID string) (bot.Draft, error) {
	opts := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(data.Options))
	for _, o := range data.Options {
		opts[o.Name] = o
	}
	strOpt := func(name string) string {
		if o, ok := opts[name]; ok {
			return o.StringValue()
		}
		return ""
	}
	numOpt := func(name string) *float64 {
		if o, ok := opts[name]; ok {
			v := o.FloatValue()
			return &v
		}
		return nil
	}

	takeProfits := make(map[string]float64)
	for n, key := range signal.TakeProfitKeys {
		if price := numOpt(takeProfitOption(n + 1)); price != nil {
			takeProfits[key] = *price
		}
	}

	plan, err := parsePercentList(optionPlan, strOpt(optionPlan))
	if err != nil {
		return bot.Draft{}, err
	}

	return bot.Draft{
		Asset:         strOpt(optionAsset),
		Direction:     parseDirection(strOpt(optionDirection)),
		Entry:         numOpt(optionEntry),
		StopLoss:      numOpt(optionStopLoss),
		TakeProfits:   takeProfits,
		Plan:          plan,
		Reason:        strOpt(optionReason),
		ExtraMentions: strOpt(optionMentions),
		AuthorID:      authorID,
	}, nil
}

// ============================================================================
// BUTTONS
// ============================================================================

func (h *Handler) handleComponent(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !h.guard(s, i) {
		return
	}
	if i.Message == nil {
		return
	}

	sig, err := h.bot.FindByMessage(ctx, i.Message.ID)
	if err != nil {
		h.replyEphemeral(s, i, "This message is not linked to a signal.")
		return
	}

	customID := i.MessageComponentData().CustomID
	switch {
	case strings.HasPrefix(customID, customIDTakeProfitPrefix):
		if !h.bot.FirstDelivery(ctx, i.ID) {
			return
		}
		key := strings.TrimPrefix(customID, customIDTakeProfitPrefix)
		updated, err := h.bot.TakeProfitHit(ctx, sig.ID, key, nil)
		if err != nil {
			h.replyEphemeral(s, i, friendlyError(err))
			return
		}
		h.refreshAnnouncement(ctx, updated)
		h.replyEphemeral(s, i, fmt.Sprintf("%s hit recorded for %s.", key, updated.Asset))

	case customID == customIDEdit:
		h.openEditModal(s, i, sig)

	case customID == customIDMentions:
		h.openMentionsModal(s, i, sig)

	case customID == customIDClose:
		h.openCloseModal(s, i, sig)

	case customID == customIDStopBreakeven:
		h.openStopModal(s, i, sig, modalStopBreakevenPrefix, "Stop at Breakeven")

	case customID == customIDStopOut:
		h.openStopModal(s, i, sig, modalStopOutPrefix, "Stop Out")

	case customID == customIDDelete:
		if !h.bot.FirstDelivery(ctx, i.ID) {
			return
		}
		if err := h.bot.DeleteSignal(ctx, sig.ID); err != nil {
			h.replyEphemeral(s, i, friendlyError(err))
			return
		}
		h.replyEphemeral(s, i, fmt.Sprintf("Signal %s deleted.", sig.Asset))
	}
}

// ============================================================================
// MODALS
// ============================================================================

func (h *Handler) openEditModal(s *discordgo.Session, i *discordgo.InteractionCreate, sig *signal.Signal) {
	h.respondModal(s, i, modalEditPrefix+sig.ID, "Update "+sig.Asset, []discordgo.MessageComponent{
		inputRow("entry", "Entry", priceValue(sig.Entry), "e.g., 64250", false),
		inputRow("sl", "Stop Loss", priceValue(sig.StopLoss), "e.g., 61000", false),
		inputRow("tps", "Take Profits (TP1..TP5, comma separated)", priceListValue(sig.TakeProfits), "e.g., 66000,68000,71000", false),
		inputRow("plan", "Close % per TP (comma separated)", priceListValue(sig.Plan), "e.g., 50,25,25", false),
		inputRow("reason", "Reasoning", sig.Reason, "", false),
	})
}

func (h *Handler) openMentionsModal(s *discordgo.Session, i *discordgo.InteractionCreate, sig *signal.Signal) {
	h.respondModal(s, i, modalMentionsPrefix+sig.ID, "Mention Roles", []discordgo.MessageComponent{
		inputRow("mentions", "Extra role IDs or mentions", sig.ExtraMentions, "e.g., <@&123456789012345678>", false),
	})
}

func (h *Handler) openCloseModal(s *discordgo.Session, i *discordgo.InteractionCreate, sig *signal.Signal) {
	h.respondModal(s, i, modalClosePrefix+sig.ID, "Close "+sig.Asset, []discordgo.MessageComponent{
		inputRow("price", "Close price", "", "required unless Final R is set", false),
		inputRow("percent", "Percent to close", "", "defaults to the remaining position", false),
		inputRow("final_r", "Final R (overrides calculation)", "", "e.g., 2.35", false),
	})
}

func (h *Handler) openStopModal(s *discordgo.Session, i *discordgo.InteractionCreate, sig *signal.Signal, prefix, title string) {
	h.respondModal(s, i, prefix+sig.ID, title+" "+sig.Asset, []discordgo.MessageComponent{
		inputRow("final_r", "Final R (optional override)", "", "leave empty to calculate", false),
	})
}

func (h *Handler) handleModal(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !h.guard(s, i) {
		return
	}
	if !h.bot.FirstDelivery(ctx, i.ID) {
		return
	}

	data := i.ModalSubmitData()
	values := modalValues(data)

	switch {
	case strings.HasPrefix(data.CustomID, modalEditPrefix):
		h.submitEdit(ctx, s, i, strings.TrimPrefix(data.CustomID, modalEditPrefix), values)
	case strings.HasPrefix(data.CustomID, modalMentionsPrefix):
		h.submitMentions(ctx, s, i, strings.TrimPrefix(data.CustomID, modalMentionsPrefix), values)
	case strings.HasPrefix(data.CustomID, modalClosePrefix):
		h.submitClose(ctx, s, i, strings.TrimPrefix(data.CustomID, modalClosePrefix), values)
	case strings.HasPrefix(data.CustomID, modalStopBreakevenPrefix):
		h.submitStop(ctx, s, i, strings.TrimPrefix(data.CustomID, modalStopBreakevenPrefix), values, h.bot.StopBreakeven)
	case strings.HasPrefix(data.CustomID, modalStopOutPrefix):
		h.submitStop(ctx, s, i, strings.TrimPrefix(data.CustomID, modalStopOutPrefix), values, h.bot.StopOut)
	}
}

func (h *Handler) submitEdit(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, id string, values map[string]string) {
	entry, err := parsePrice("Entry", values["entry"])
	if err != nil {
		h.replyEphemeral(s, i, friendlyError(err))
		return
	}
	stop, err := parsePrice("Stop Loss", values["sl"])
	if err != nil {
		h.replyEphemeral(s, i, friendlyError(err))
		return
	}
	takeProfits, err := parsePriceList("Take Profits", values["tps"])
	if err != nil {
		h.replyEphemeral(s, i, friendlyError(err))
		return
	}
	plan, err := parsePercentList("Close %", values["plan"])
	if err != nil {
		h.replyEphemeral(s, i, friendlyError(err))
		return
	}
	reason := strings.TrimSpace(values["reason"])

	// The modal opens with every field prefilled, so the submission is
	// authoritative: a blanked entry or stop and absent list slots all
	// clear their values.
	patch := bot.LevelsPatch{
		Entry:         entry,
		ClearEntry:    entry == nil,
		StopLoss:      stop,
		ClearStopLoss: stop == nil,
		TakeProfits:   make(map[string]*float64, len(signal.TakeProfitKeys)),
		Plan:          make(map[string]*float64, len(signal.TakeProfitKeys)),
		Reason:        &reason,
	}
	for _, key := range signal.TakeProfitKeys {
		patch.TakeProfits[key] = nil
		patch.Plan[key] = nil
		if v, ok := takeProfits[key]; ok {
			vv := v
			patch.TakeProfits[key] = &vv
		}
		if v, ok := plan[key]; ok {
			vv := v
			patch.Plan[key] = &vv
		}
	}

	updated, err := h.bot.ApplyLevels(ctx, id, patch)
	if err != nil {
		h.replyEphemeral(s, i, friendlyError(err))
		return
	}
	h.refreshAnnouncement(ctx, updated)
	h.replyEphemeral(s, i, fmt.Sprintf("Levels updated for %s.", updated.Asset))
}

func (h *Handler) submitMentions(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, id string, values map[string]string) {
	mentions := strings.TrimSpace(values["mentions"])
	updated, err := h.bot.ApplyLevels(ctx, id, bot.LevelsPatch{ExtraMentions: &mentions})
	if err != nil {
		h.replyEphemeral(s, i, friendlyError(err))
		return
	}
	h.replyEphemeral(s, i, fmt.Sprintf("Mention roles updated for %s.", updated.Asset))
}

func (h *Handler) submitClose(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, id string, values map[string]string) {
	price, err := parsePrice("Close price", values["price"])
	if err != nil {
		h.replyEphemeral(s, i, friendlyError(err))
		return
	}
	percent, err := parsePercent("Percent to close", values["percent"])
	if err != nil {
		h.replyEphemeral(s, i, friendlyError(err))
		return
	}
	finalR, err := parseR("Final R", values["final_r"])
	if err != nil {
		h.replyEphemeral(s, i, friendlyError(err))
		return
	}

	updated, err := h.bot.CloseSignal(ctx, id, price, percent, finalR)
	if err != nil {
		h.replyEphemeral(s, i, friendlyError(err))
		return
	}
	h.refreshAnnouncement(ctx, updated)
	h.replyEphemeral(s, i, closedMessage(updated))
}

func (h *Handler) submitStop(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, id string, values map[string]string, stop func(context.Context, string, *float64) (*signal.Signal, error)) {
	finalR, err := parseR("Final R", values["final_r"])
	if err != nil {
		h.replyEphemeral(s, i, friendlyError(err))
		return
	}

	updated, err := stop(ctx, id, finalR)
	if err != nil {
		h.replyEphemeral(s, i, friendlyError(err))
		return
	}
	h.refreshAnnouncement(ctx, updated)
	h.replyEphemeral(s, i, closedMessage(updated))
}

func closedMessage(s *signal.Signal) string {
	verb := "closed"
	switch s.Status {
	case signal.StatusStoppedBreakeven:
		verb = "stopped at breakeven"
	case signal.StatusStoppedOut:
		verb = "stopped out"
	}
	if r, ok := signal.RealizedR(s); ok {
		return fmt.Sprintf("%s %s at %.2fR.", s.Asset, verb, r)
	}
	return fmt.Sprintf("%s %s.", s.Asset, verb)
}

// ============================================================================
// HELPERS
// ============================================================================

func (h *Handler) guard(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	userID, roles := interactionActor(i)
	if h.bot.Allowed(userID, roles) {
		return true
	}
	h.replyEphemeral(s, i, "You don't have permission to use this command.")
	return false
}

func interactionActor(i *discordgo.InteractionCreate) (string, []string) {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID, i.Member.Roles
	}
	if i.User != nil {
		return i.User.ID, nil
	}
	return "", nil
}

func (h *Handler) replyEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		h.logger.Warn("Failed to send ephemeral reply", "error", err)
	}
}

func (h *Handler) respondModal(s *discordgo.Session, i *discordgo.InteractionCreate, customID, title string, components []discordgo.MessageComponent) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID:   customID,
			Title:      title,
			Components: components,
		},
	})
	if err != nil {
		h.logger.Warn("Failed to open modal", "custom_id", customID, "error", err)
	}
}

func (h *Handler) refreshAnnouncement(ctx context.Context, sig *signal.Signal) {
	if err := h.messenger.UpdateAnnouncement(ctx, sig); err != nil {
		h.logger.Warn("Failed to refresh announcement", "signal_id", sig.ID, "error", err)
	}
}

func inputRow(id, label, value, placeholder string, required bool) discordgo.ActionsRow {
	return discordgo.ActionsRow{
		Components: []discordgo.MessageComponent{
			discordgo.TextInput{
				CustomID:    id,
				Label:       label,
				Style:       discordgo.TextInputShort,
				Value:       value,
				Placeholder: placeholder,
				Required:    required,
			},
		},
	}
}

func modalValues(data discordgo.ModalSubmitInteractionData) map[string]string {
	out := make(map[string]string)
	for _, row := range data.Components {
		actionsRow, ok := row.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, component := range actionsRow.Components {
			if input, ok := component.(*discordgo.TextInput); ok {
				out[input.CustomID] = input.Value
			}
		}
	}
	return out
}

func friendlyError(err error) string {
	var validationErr *ValidationError
	switch {
	case errors.As(err, &validationErr):
		return validationErr.Error()
	case errors.Is(err, signal.ErrAlreadyRecorded):
		return "That take-profit was already recorded."
	case errors.Is(err, signal.ErrDuplicateSource):
		return "That close was already recorded."
	case errors.Is(err, signal.ErrInvalidTransition):
		return "This signal is no longer running."
	case errors.Is(err, signal.ErrUnknownTakeProfit):
		return "Unknown take-profit level."
	case errors.Is(err, signal.ErrInvalidPercent):
		return "Close percentages cannot exceed the remaining position."
	case errors.Is(err, signal.ErrInvalidPrice):
		return "A valid price is required for this action."
	case errors.Is(err, signal.ErrSignalNotFound):
		return "Signal not found."
	default:
		return "Something went wrong."
	}
}

func priceValue(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// priceListValue renders a TP1..TP5 keyed map back into the comma list the
// modals use, with trailing empty slots trimmed.
func priceListValue(m map[string]float64) string {
	parts := make([]string, len(signal.TakeProfitKeys))
	last := -1
	for i, key := range signal.TakeProfitKeys {
		if v, ok := m[key]; ok {
			parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
			last = i
		}
	}
	if last < 0 {
		return ""
	}
	return strings.Join(parts[:last+1], ",")
}

func messageURL(guildID, channelID, messageID string) string {
	return fmt.Sprintf("https://discord.com/channels/%s/%s/%s", guildID, channelID, messageID)
}
