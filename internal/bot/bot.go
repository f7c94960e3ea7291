// Package bot orchestrates operator actions against the signal engine:
// it loads the stored record, applies the action through the lifecycle
// tracker, persists only on success and keeps the active-trades summary in
// sync after every mutation.
package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"trade-signal-bot/config"
	"trade-signal-bot/internal/cache"
	"trade-signal-bot/internal/events"
	"trade-signal-bot/internal/logging"
	"trade-signal-bot/internal/signal"

	"github.com/google/uuid"
)

// StateSummaryMessageID is the bot_state key holding the ID of the
// summary message being upserted.
const StateSummaryMessageID = "summary_message_id"

// SignalStore is the persistence collaborator. Implementations must apply
// each put atomically per signal.
type SignalStore interface {
	CreateSignal(ctx context.Context, s *signal.Signal) error
	UpdateSignal(ctx context.Context, s *signal.Signal) error
	GetSignal(ctx context.Context, id string) (*signal.Signal, error)
	ListSignals(ctx context.Context) ([]*signal.Signal, error)
	DeleteSignal(ctx context.Context, id string) error
	GetState(ctx context.Context, key string) (string, error)
	SetState(ctx context.Context, key, value string) error
}

// Messenger is the chat-platform collaborator. Calls are fallible and are
// never retried; the bot treats one best-effort attempt as final.
type Messenger interface {
	PostMessage(ctx context.Context, channelID, content string, mentionRoles []string) (string, error)
	EditMessage(ctx context.Context, channelID, messageID, content string) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	MessageExists(ctx context.Context, channelID, messageID string) bool
}

// Capability decides whether a user may act on signals. All role gating
// goes through this one function.
type Capability func(userID string, roleIDs []string) bool

// NewCapability builds the capability check from config: the owner and the
// admin users always may act, everyone else needs one of the allowed roles.
func NewCapability(cfg config.DiscordConfig) Capability {
	admins := make(map[string]bool, len(cfg.AdminUserIDs))
	for _, id := range cfg.AdminUserIDs {
		admins[id] = true
	}
	allowedRoles := make(map[string]bool, len(cfg.CommandAllowedRoleIDs))
	for _, id := range cfg.CommandAllowedRoleIDs {
		allowedRoles[id] = true
	}

	return func(userID string, roleIDs []string) bool {
		if userID == "" {
			return false
		}
		if userID == cfg.OwnerID || admins[userID] {
			return true
		}
		for _, role := range roleIDs {
			if allowedRoles[role] {
				return true
			}
		}
		return false
	}
}

// Draft carries the parsed operator input for a new signal. All numeric
// fields have already been through the boundary's parse-and-validate step.
type Draft struct {
	Asset         string
	Direction     signal.Direction
	Entry         *float64
	StopLoss      *float64
	TakeProfits   map[string]float64
	Plan          map[string]float64
	Reason        string
	ExtraMentions string
	AuthorID      string
}

// LevelsPatch is a partial edit of a signal's prices and texts. Nil fields
// are left unchanged; a take-profit entry with a nil value clears that
// level, and the Clear flags blank entry or stop outright (a nil pointer
// alone cannot distinguish "unchanged" from "cleared").
type LevelsPatch struct {
	Entry         *float64
	ClearEntry    bool
	StopLoss      *float64
	ClearStopLoss bool
	TakeProfits   map[string]*float64
	Plan          map[string]*float64
	Reason        *string
	ExtraMentions *string
}

// Bot ties the signal engine to its collaborators.
type Bot struct {
	cfg       config.DiscordConfig
	store     SignalStore
	messenger Messenger
	tracker   *signal.Tracker
	dedup     *cache.ActionDedup
	eventBus  *events.EventBus
	allowed   Capability

	// Serializes summary upserts so two refreshes cannot race on the
	// stored message ID.
	summaryMu sync.Mutex
}

// New creates the bot
func New(
	cfg config.DiscordConfig,
	store SignalStore,
	messenger Messenger,
	tracker *signal.Tracker,
	dedup *cache.ActionDedup,
	eventBus *events.EventBus,
) *Bot {
	return &Bot{
		cfg:       cfg,
		store:     store,
		messenger: messenger,
		tracker:   tracker,
		dedup:     dedup,
		eventBus:  eventBus,
		allowed:   NewCapability(cfg),
	}
}

// Allowed reports whether the user may act on signals.
func (b *Bot) Allowed(userID string, roleIDs []string) bool {
	return b.allowed(userID, roleIDs)
}

// FirstDelivery reports whether this action ID has not been processed yet.
// Every interaction handler must check it before mutating anything.
func (b *Bot) FirstDelivery(ctx context.Context, actionID string) bool {
	if b.dedup == nil {
		return true
	}
	return b.dedup.FirstDelivery(ctx, actionID)
}

// MentionRoles resolves the role allow-list for a signal's announcements.
func (b *Bot) MentionRoles(s *signal.Signal) []string {
	return signal.ResolveMentionRoles(b.cfg.TraderRoleID, s.ExtraMentions)
}

// ============================================================================
// OPERATOR ACTIONS
// ============================================================================

// CreateSignal stores a new signal from a draft. The chat message linkage
// is attached afterwards via AttachMessage, once the announcement is
// posted.
func (b *Bot) CreateSignal(ctx context.Context, draft Draft) (*signal.Signal, error) {
	now := time.Now()
	s := signal.Normalize(&signal.Signal{
		ID:              newSignalID(),
		Asset:           draft.Asset,
		Direction:       draft.Direction,
		Entry:           draft.Entry,
		StopLoss:        draft.StopLoss,
		TakeProfits:     draft.TakeProfits,
		Plan:            draft.Plan,
		Reason:          draft.Reason,
		ExtraMentions:   draft.ExtraMentions,
		AuthorID:        draft.AuthorID,
		Status:          signal.StatusRunning,
		ValidForSummary: true,
		CreatedAt:       now,
		UpdatedAt:       now,
	})

	if err := b.store.CreateSignal(ctx, s); err != nil {
		return nil, err
	}

	logging.SignalContext(ctx, s.ID, s.Asset).Info("Signal created", "direction", string(s.Direction))
	b.publish(events.EventSignalCreated, s)
	return s, nil
}

// AttachMessage stores the chat message backing a signal.
func (b *Bot) AttachMessage(ctx context.Context, id, channelID, messageID, messageURL string) (*signal.Signal, error) {
	s, err := b.mutate(ctx, id, func(s *signal.Signal) error {
		s.ChannelID = channelID
		s.MessageID = messageID
		s.MessageURL = messageURL
		return nil
	})
	if err != nil {
		return nil, err
	}
	b.refreshSummaryBestEffort(ctx)
	return s, nil
}

// TakeProfitHit records a one-time take-profit hit, booking the planned
// fill when plan percentage and price are available.
func (b *Bot) TakeProfitHit(ctx context.Context, id, key string, percentOverride *float64) (*signal.Signal, error) {
	s, err := b.mutate(ctx, id, func(s *signal.Signal) error {
		return b.tracker.RecordTakeProfitHit(s, key, percentOverride)
	})
	if err != nil {
		return nil, err
	}
	b.publish(events.EventSignalUpdated, s)
	b.refreshSummaryBestEffort(ctx)
	return s, nil
}

// ApplyLevels applies an info edit and re-runs the breakeven check.
func (b *Bot) ApplyLevels(ctx context.Context, id string, patch LevelsPatch) (*signal.Signal, error) {
	s, err := b.mutate(ctx, id, func(s *signal.Signal) error {
		if s.IsTerminal() {
			return fmt.Errorf("%w: edit on %s signal", signal.ErrInvalidTransition, s.Status)
		}
		switch {
		case patch.ClearEntry:
			s.Entry = nil
		case patch.Entry != nil:
			s.Entry = patch.Entry
		}
		// stopLossOriginal stays put; only the live stop moves
		switch {
		case patch.ClearStopLoss:
			s.StopLoss = nil
		case patch.StopLoss != nil:
			s.StopLoss = patch.StopLoss
		}
		for key, price := range patch.TakeProfits {
			if price == nil {
				delete(s.TakeProfits, key)
			} else {
				s.TakeProfits[key] = *price
			}
		}
		for key, percent := range patch.Plan {
			if percent == nil {
				delete(s.Plan, key)
			} else {
				s.Plan[key] = *percent
			}
		}
		if patch.Reason != nil {
			s.Reason = *patch.Reason
		}
		if patch.ExtraMentions != nil {
			s.ExtraMentions = *patch.ExtraMentions
		}
		signal.Normalize(s)
		b.tracker.ApplyBreakevenCheck(s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	b.publish(events.EventSignalUpdated, s)
	b.refreshSummaryBestEffort(ctx)
	return s, nil
}

// CloseSignal fully closes a running signal.
func (b *Bot) CloseSignal(ctx context.Context, id string, price, percent, finalR *float64) (*signal.Signal, error) {
	s, err := b.mutate(ctx, id, func(s *signal.Signal) error {
		return b.tracker.Close(s, price, percent, finalR)
	})
	if err != nil {
		return nil, err
	}
	b.publish(events.EventSignalClosed, s)
	b.refreshSummaryBestEffort(ctx)
	return s, nil
}

// StopBreakeven stops a running signal at its entry price.
func (b *Bot) StopBreakeven(ctx context.Context, id string, finalR *float64) (*signal.Signal, error) {
	s, err := b.mutate(ctx, id, func(s *signal.Signal) error {
		return b.tracker.StopBreakeven(s, finalR)
	})
	if err != nil {
		return nil, err
	}
	b.publish(events.EventSignalClosed, s)
	b.refreshSummaryBestEffort(ctx)
	return s, nil
}

// StopOut stops a running signal at its original stop price.
func (b *Bot) StopOut(ctx context.Context, id string, finalR *float64) (*signal.Signal, error) {
	s, err := b.mutate(ctx, id, func(s *signal.Signal) error {
		return b.tracker.StopOut(s, finalR)
	})
	if err != nil {
		return nil, err
	}
	b.publish(events.EventSignalClosed, s)
	b.refreshSummaryBestEffort(ctx)
	return s, nil
}

// DeleteSignal removes a signal entirely. Deleting the backing chat
// message is best-effort cleanup: the record is gone either way.
func (b *Bot) DeleteSignal(ctx context.Context, id string) error {
	s, err := b.store.GetSignal(ctx, id)
	if err != nil {
		return err
	}
	if err := b.store.DeleteSignal(ctx, id); err != nil {
		return err
	}

	logger := logging.SignalContext(ctx, id, s.Asset)
	if s.MessageID != "" {
		if err := b.messenger.DeleteMessage(ctx, s.ChannelID, s.MessageID); err != nil {
			logger.Warn("Failed to delete signal message", "error", err)
		}
	}

	logger.Info("Signal deleted")
	b.publish(events.EventSignalDeleted, s)
	b.refreshSummaryBestEffort(ctx)
	return nil
}

// GetSignal loads one signal.
func (b *Bot) GetSignal(ctx context.Context, id string) (*signal.Signal, error) {
	return b.store.GetSignal(ctx, id)
}

// ListSignals loads all signals in creation order.
func (b *Bot) ListSignals(ctx context.Context) ([]*signal.Signal, error) {
	return b.store.ListSignals(ctx)
}

// FindByMessage resolves the signal backed by a chat message, for button
// interactions that only know the message they were clicked on.
func (b *Bot) FindByMessage(ctx context.Context, messageID string) (*signal.Signal, error) {
	all, err := b.store.ListSignals(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range all {
		if s.MessageID == messageID {
			return s, nil
		}
	}
	return nil, signal.ErrSignalNotFound
}

// ============================================================================
// SUMMARY
// ============================================================================

// RefreshSummary recomputes the active set and replaces the summary
// message wholesale, so the view never shows stale state. Signals whose
// backing message no longer exists are removed from the store: the chat
// side is the source of truth for what is still visible.
func (b *Bot) RefreshSummary(ctx context.Context) error {
	b.summaryMu.Lock()
	defer b.summaryMu.Unlock()

	all, err := b.store.ListSignals(ctx)
	if err != nil {
		return fmt.Errorf("failed to load signals for summary: %w", err)
	}

	logger := logging.FromContext(ctx).WithComponent("bot")
	active := signal.SelectActive(all, func(s *signal.Signal) bool {
		if s.MessageID == "" {
			return false
		}
		if b.messenger.MessageExists(ctx, s.ChannelID, s.MessageID) {
			return true
		}
		if err := b.store.DeleteSignal(ctx, s.ID); err != nil {
			logger.Warn("Failed to delete orphaned signal", "signal_id", s.ID, "error", err)
		} else {
			logger.Info("Removed signal with missing backing message", "signal_id", s.ID)
			b.publish(events.EventSignalDeleted, s)
		}
		return false
	})

	content := signal.RenderSummary(active)
	channel := b.cfg.CurrentTradesChannel

	if messageID, err := b.store.GetState(ctx, StateSummaryMessageID); err == nil && messageID != "" {
		if err := b.messenger.EditMessage(ctx, channel, messageID, content); err == nil {
			b.publish(events.EventSummaryRefreshed, nil)
			return nil
		}
		// Stale or deleted summary message; fall through and post a new one.
	}

	messageID, err := b.messenger.PostMessage(ctx, channel, content, nil)
	if err != nil {
		return fmt.Errorf("failed to post summary message: %w", err)
	}
	if err := b.store.SetState(ctx, StateSummaryMessageID, messageID); err != nil {
		return fmt.Errorf("failed to store summary message id: %w", err)
	}
	b.publish(events.EventSummaryRefreshed, nil)
	return nil
}

func (b *Bot) refreshSummaryBestEffort(ctx context.Context) {
	if err := b.RefreshSummary(ctx); err != nil {
		logging.FromContext(ctx).WithComponent("bot").Warn("Summary refresh failed", "error", err)
	}
}

// ============================================================================
// INTERNALS
// ============================================================================

// mutate loads a signal, applies op to a normalized copy and persists only
// when op succeeds. A failed op leaves the stored record untouched.
func (b *Bot) mutate(ctx context.Context, id string, op func(*signal.Signal) error) (*signal.Signal, error) {
	stored, err := b.store.GetSignal(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := signal.Normalize(stored.Clone())
	if err := op(updated); err != nil {
		return nil, err
	}
	updated.UpdatedAt = time.Now()

	if err := b.store.UpdateSignal(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

func (b *Bot) publish(eventType events.EventType, s *signal.Signal) {
	if b.eventBus == nil {
		return
	}
	data := map[string]interface{}{}
	if s != nil {
		data["signal_id"] = s.ID
		data["asset"] = s.Asset
		data["status"] = s.Status
	}
	b.eventBus.Publish(eventType, data)
}

// newSignalID returns an opaque short identifier.
func newSignalID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}
