package twitchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

const defaultBaseURL = "https://api.twitch.tv/helix"

// HelixClient provides the minimal Helix surface needed for profile
// enrichment: user lookup by login.
type HelixClient struct {
	ClientID   string
	HTTPClient *http.Client
	BaseURL    string
}

// User is the subset of the Helix users payload we keep.
type User struct {
	ID          string `json:"id"`
	Login       string `json:"login"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	ProfileImg  string `json:"profile_image_url"`
	CreatedAt   string `json:"created_at"`
}

func (hc *HelixClient) http() *http.Client {
	if hc.HTTPClient != nil {
		return hc.HTTPClient
	}
	return http.DefaultClient
}

func (hc *HelixClient) base() string {
	if hc.BaseURL != "" {
		return hc.BaseURL
	}
	return defaultBaseURL
}

// GetUser resolves a login name to its Helix user record.
func (hc *HelixClient) GetUser(ctx context.Context, login string) (*User, error) {
	if login == "" {
		return nil, fmt.Errorf("login empty")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hc.base()+"/users", nil)
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	q.Set("login", login)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Client-Id", hc.ClientID)
	resp, err := hc.http().Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("helix users: status %d", resp.StatusCode)
	}
	var body struct {
		Data []User `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	if len(body.Data) == 0 {
		return nil, fmt.Errorf("user %q not found", login)
	}
	return &body.Data[0], nil
}
