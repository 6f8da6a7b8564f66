// Package twitchapi contains minimal helpers to interact with Twitch Helix APIs
// for user profile lookups, using an app access (client credentials) token.
package twitchapi

import (
	"context"
	"net/http"

	"golang.org/x/oauth2/clientcredentials"
)

const defaultTokenURL = "https://id.twitch.tv/oauth2/token"

// NewAppClient returns an http.Client that injects a cached app access token
// into every request, refreshing it when it expires.
// NOTE: this token CANNOT be used for IRC chat; chat requires a user (bot)
// OAuth token with chat:read/chat:edit scopes.
func NewAppClient(ctx context.Context, clientID, clientSecret, tokenURL string) *http.Client {
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
	}
	return cfg.Client(ctx)
}
