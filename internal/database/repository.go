package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"trade-signal-bot/internal/signal"

	"github.com/jackc/pgx/v5"
)

// Repository provides data access methods
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck performs a database health check
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// ============================================================================
// SIGNALS
// ============================================================================

const signalColumns = `id, asset, direction, entry, stop_loss, stop_loss_original,
	take_profits, plan, tp_hits, fills, latest_tp_hit, status, valid_for_summary,
	reason, extra_mentions, final_r, author_id, channel_id, message_id, message_url,
	created_at, updated_at`

// CreateSignal inserts a new signal
func (r *Repository) CreateSignal(ctx context.Context, s *signal.Signal) error {
	takeProfits, plan, tpHits, fills, err := marshalCollections(s)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO signals (id, asset, direction, entry, stop_loss, stop_loss_original,
			take_profits, plan, tp_hits, fills, latest_tp_hit, status, valid_for_summary,
			reason, extra_mentions, final_r, author_id, channel_id, message_id, message_url,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`
	_, err = r.db.Pool.Exec(
		ctx, query,
		s.ID, s.Asset, string(s.Direction), s.Entry, s.StopLoss, s.StopLossOriginal,
		takeProfits, plan, tpHits, fills, s.LatestTPHit, s.Status, s.ValidForSummary,
		s.Reason, s.ExtraMentions, s.FinalR, s.AuthorID, s.ChannelID, s.MessageID, s.MessageURL,
		s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert signal %s: %w", s.ID, err)
	}
	return nil
}

// UpdateSignal replaces the stored row with the given signal. The whole row
// is written in one statement so concurrent readers see either the old or
// the new record, never a torn one.
func (r *Repository) UpdateSignal(ctx context.Context, s *signal.Signal) error {
	takeProfits, plan, tpHits, fills, err := marshalCollections(s)
	if err != nil {
		return err
	}

	query := `
		UPDATE signals
		SET asset = $2, direction = $3, entry = $4, stop_loss = $5, stop_loss_original = $6,
		    take_profits = $7, plan = $8, tp_hits = $9, fills = $10, latest_tp_hit = $11,
		    status = $12, valid_for_summary = $13, reason = $14, extra_mentions = $15,
		    final_r = $16, author_id = $17, channel_id = $18, message_id = $19,
		    message_url = $20, updated_at = $21
		WHERE id = $1
	`
	tag, err := r.db.Pool.Exec(
		ctx, query,
		s.ID, s.Asset, string(s.Direction), s.Entry, s.StopLoss, s.StopLossOriginal,
		takeProfits, plan, tpHits, fills, s.LatestTPHit,
		s.Status, s.ValidForSummary, s.Reason, s.ExtraMentions,
		s.FinalR, s.AuthorID, s.ChannelID, s.MessageID,
		s.MessageURL, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update signal %s: %w", s.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return signal.ErrSignalNotFound
	}
	return nil
}

// GetSignal retrieves a signal by ID
func (r *Repository) GetSignal(ctx context.Context, id string) (*signal.Signal, error) {
	query := `SELECT ` + signalColumns + ` FROM signals WHERE id = $1`
	s, err := scanSignal(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, signal.ErrSignalNotFound
		}
		return nil, fmt.Errorf("failed to get signal %s: %w", id, err)
	}
	return s, nil
}

// ListSignals returns all signals in creation order
func (r *Repository) ListSignals(ctx context.Context) ([]*signal.Signal, error) {
	query := `SELECT ` + signalColumns + ` FROM signals ORDER BY created_at, id`
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list signals: %w", err)
	}
	defer rows.Close()

	var signals []*signal.Signal
	for rows.Next() {
		s, err := scanSignal(rows)
		if err != nil {
			return nil, err
		}
		signals = append(signals, s)
	}
	return signals, rows.Err()
}

// DeleteSignal removes a signal permanently
func (r *Repository) DeleteSignal(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM signals WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete signal %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return signal.ErrSignalNotFound
	}
	return nil
}

// ============================================================================
// BOT STATE
// ============================================================================

// GetState reads a bookkeeping value; missing keys return an empty string.
func (r *Repository) GetState(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.Pool.QueryRow(ctx, `SELECT value FROM bot_state WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get state %s: %w", key, err)
	}
	return value, nil
}

// SetState upserts a bookkeeping value
func (r *Repository) SetState(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO bot_state (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`
	if _, err := r.db.Pool.Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to set state %s: %w", key, err)
	}
	return nil
}

// ============================================================================
// ROW MAPPING
// ============================================================================

func marshalCollections(s *signal.Signal) (takeProfits, plan, tpHits, fills []byte, err error) {
	if takeProfits, err = json.Marshal(s.TakeProfits); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to marshal take_profits: %w", err)
	}
	if plan, err = json.Marshal(s.Plan); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to marshal plan: %w", err)
	}
	if tpHits, err = json.Marshal(s.TPHits); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to marshal tp_hits: %w", err)
	}
	if fills, err = json.Marshal(s.Fills); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to marshal fills: %w", err)
	}
	return takeProfits, plan, tpHits, fills, nil
}

func scanSignal(row pgx.Row) (*signal.Signal, error) {
	var (
		s           signal.Signal
		direction   string
		takeProfits []byte
		plan        []byte
		tpHits      []byte
		fills       []byte
	)
	err := row.Scan(
		&s.ID, &s.Asset, &direction, &s.Entry, &s.StopLoss, &s.StopLossOriginal,
		&takeProfits, &plan, &tpHits, &fills, &s.LatestTPHit, &s.Status, &s.ValidForSummary,
		&s.Reason, &s.ExtraMentions, &s.FinalR, &s.AuthorID, &s.ChannelID, &s.MessageID, &s.MessageURL,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Direction = signal.Direction(direction)

	if err := json.Unmarshal(takeProfits, &s.TakeProfits); err != nil {
		return nil, fmt.Errorf("failed to unmarshal take_profits for %s: %w", s.ID, err)
	}
	if err := json.Unmarshal(plan, &s.Plan); err != nil {
		return nil, fmt.Errorf("failed to unmarshal plan for %s: %w", s.ID, err)
	}
	if err := json.Unmarshal(tpHits, &s.TPHits); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tp_hits for %s: %w", s.ID, err)
	}
	if err := json.Unmarshal(fills, &s.Fills); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fills for %s: %w", s.ID, err)
	}

	// Persisted records are normalized on the way in, so legacy rows with
	// missing defaults repair themselves on read.
	return signal.Normalize(&s), nil
}
