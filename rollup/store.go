package rollup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ProfileStore is the keyed read-modify-write storage behind the engine.
// Load methods never fail on missing or unreadable state: they return a
// fresh profile instead, which is how a corrupted record silently resets.
// Save rewrites the full record for the key. Single writer per key assumed;
// a backend with real concurrency control (see db.ProfileStore) slots in
// behind this interface.
type ProfileStore interface {
	LoadUser(ctx context.Context, key string) (*UserProfile, error)
	SaveUser(ctx context.Context, p *UserProfile) error
	LoadChannel(ctx context.Context, key string) (*ChannelProfile, error)
	SaveChannel(ctx context.Context, p *ChannelProfile) error
}

// FileStore keeps one JSON document per profile under
// <dir>/users/<key>.json and <dir>/channels/<key>.json.
type FileStore struct {
	Dir string
}

// NewFileStore returns a store rooted at dir (created lazily on save).
func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

func (s *FileStore) userPath(key string) string {
	return filepath.Join(s.Dir, "users", key+".json")
}

func (s *FileStore) channelPath(key string) string {
	return filepath.Join(s.Dir, "channels", key+".json")
}

// LoadUser reads the profile for key, or returns a fresh one when the file
// is missing or does not parse.
func (s *FileStore) LoadUser(ctx context.Context, key string) (*UserProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := NewUserProfile(key)
	loadJSON(s.userPath(key), p, func() { *p = *NewUserProfile(key) })
	p.UserName = key
	if p.Facts == nil {
		p.Facts = map[string]any{}
	}
	return p, nil
}

func (s *FileStore) SaveUser(ctx context.Context, p *UserProfile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return writeJSON(s.userPath(p.UserName), p)
}

// LoadChannel mirrors LoadUser for channel profiles.
func (s *FileStore) LoadChannel(ctx context.Context, key string) (*ChannelProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := NewChannelProfile(key)
	loadJSON(s.channelPath(key), p, func() { *p = *NewChannelProfile(key) })
	p.Channel = key
	if p.StreamerSignals == nil {
		p.StreamerSignals = map[string][]SignalAggregate{}
	}
	return p, nil
}

func (s *FileStore) SaveChannel(ctx context.Context, p *ChannelProfile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return writeJSON(s.channelPath(p.Channel), p)
}

// loadJSON fills dst from path; on any read or decode error it calls reset
// and returns. Corrupt state is indistinguishable from absent state here.
func loadJSON(path string, dst any, reset func()) {
	b, err := os.ReadFile(path)
	if err != nil {
		return
	}
	if err := json.Unmarshal(b, dst); err != nil {
		reset()
	}
}

// writeJSON rewrites the document at path via temp file + rename so readers
// never observe a half-written profile.
func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace profile: %w", err)
	}
	return nil
}
