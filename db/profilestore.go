package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/onnwee/chatscope/rollup"
)

// ProfileStore keeps user and channel rollups as JSONB rows. Missing or
// unreadable rows load as fresh profiles, matching the file store.
type ProfileStore struct {
	DB *sql.DB
}

func NewProfileStore(db *sql.DB) *ProfileStore {
	return &ProfileStore{DB: db}
}

func (s *ProfileStore) LoadUser(ctx context.Context, key string) (*rollup.UserProfile, error) {
	p := rollup.NewUserProfile(key)
	s.loadPayload(ctx, `SELECT payload FROM user_profiles WHERE user_name = $1`, key, p, func() {
		p = rollup.NewUserProfile(key)
	})
	p.UserName = key
	if p.Facts == nil {
		p.Facts = map[string]any{}
	}
	return p, nil
}

func (s *ProfileStore) SaveUser(ctx context.Context, p *rollup.UserProfile) error {
	return s.savePayload(ctx, `
		INSERT INTO user_profiles (user_name, payload, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_name) DO UPDATE SET payload = EXCLUDED.payload, updated_at = NOW()`,
		p.UserName, p)
}

func (s *ProfileStore) LoadChannel(ctx context.Context, key string) (*rollup.ChannelProfile, error) {
	p := rollup.NewChannelProfile(key)
	s.loadPayload(ctx, `SELECT payload FROM channel_profiles WHERE channel = $1`, key, p, func() {
		p = rollup.NewChannelProfile(key)
	})
	p.Channel = key
	if p.StreamerSignals == nil {
		p.StreamerSignals = map[string][]rollup.SignalAggregate{}
	}
	return p, nil
}

func (s *ProfileStore) SaveChannel(ctx context.Context, p *rollup.ChannelProfile) error {
	return s.savePayload(ctx, `
		INSERT INTO channel_profiles (channel, payload, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (channel) DO UPDATE SET payload = EXCLUDED.payload, updated_at = NOW()`,
		p.Channel, p)
}

func (s *ProfileStore) loadPayload(ctx context.Context, query, key string, dst any, reset func()) {
	var payload []byte
	err := s.DB.QueryRowContext(ctx, query, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return
	}
	if err != nil {
		slog.Warn("profile load failed, starting fresh", slog.String("key", key), slog.Any("err", err), slog.String("component", "db_profilestore"))
		return
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		slog.Warn("profile payload corrupt, starting fresh", slog.String("key", key), slog.Any("err", err), slog.String("component", "db_profilestore"))
		reset()
	}
}

func (s *ProfileStore) savePayload(ctx context.Context, query, key string, src any) error {
	payload, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("marshal profile %s: %w", key, err)
	}
	if _, err := s.DB.ExecContext(ctx, query, key, payload); err != nil {
		return fmt.Errorf("save profile %s: %w", key, err)
	}
	return nil
}
