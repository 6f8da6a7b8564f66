package twitchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

var emailPattern = regexp.MustCompile(`[\w\.\-]+@[\w\.\-]+\.\w+`)

// FetchedProfile is what the fetcher persists for a streamer login.
type FetchedProfile struct {
	Login       string `json:"login"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	Email       string `json:"email,omitempty"`
	ProfileImg  string `json:"profile_image_url,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
	FetchedAt   string `json:"fetched_at"`
}

// ProfileFetcher pulls streamer metadata from Helix and persists it under
// Dir as <login>.json. Business emails are extracted from the channel
// description when present.
type ProfileFetcher struct {
	Client *HelixClient
	Dir    string
}

// Fetch looks up a login, extracts contact details from the description and
// writes the profile to disk. Returns the persisted profile.
func (f *ProfileFetcher) Fetch(ctx context.Context, login string) (*FetchedProfile, error) {
	u, err := f.Client.GetUser(ctx, login)
	if err != nil {
		return nil, fmt.Errorf("fetch profile %s: %w", login, err)
	}
	p := &FetchedProfile{
		Login:       u.Login,
		UserID:      u.ID,
		DisplayName: u.DisplayName,
		Description: u.Description,
		Email:       emailPattern.FindString(u.Description),
		ProfileImg:  u.ProfileImg,
		CreatedAt:   u.CreatedAt,
		FetchedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create profile dir: %w", err)
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal profile %s: %w", login, err)
	}
	path := filepath.Join(f.Dir, u.Login+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return nil, fmt.Errorf("write profile %s: %w", login, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return nil, fmt.Errorf("persist profile %s: %w", login, err)
	}
	return p, nil
}
