package providers

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Result is one provider's findings for a subject.
type Result struct {
	Provider string         `json:"provider"`
	Found    bool           `json:"found"`
	Data     map[string]any `json:"data,omitempty"`
}

// Provider enriches subjects it declares support for.
type Provider interface {
	Name() string
	Supports(subjectType string) bool
	Enrich(ctx context.Context, s Subject) (Result, error)
}

// GravatarProvider derives the avatar URL for an email from its md5 hash.
// The lookup is deterministic and needs no network round trip.
type GravatarProvider struct{}

func (GravatarProvider) Name() string { return "gravatar" }

func (GravatarProvider) Supports(subjectType string) bool { return subjectType == TypeEmail }

func (GravatarProvider) Enrich(_ context.Context, s Subject) (Result, error) {
	sum := md5.Sum([]byte(s.NormalizedValue))
	hash := hex.EncodeToString(sum[:])
	return Result{
		Provider: "gravatar",
		Found:    true,
		Data: map[string]any{
			"hash":       hash,
			"avatar_url": fmt.Sprintf("https://www.gravatar.com/avatar/%s?d=404", hash),
		},
	}, nil
}

// HandlePresenceProvider checks a username against a fixture of known
// handles per platform (fixtures/handles.json: platform -> [handles]).
type HandlePresenceProvider struct {
	FixturePath string
}

func (HandlePresenceProvider) Name() string { return "handle_presence" }

func (HandlePresenceProvider) Supports(subjectType string) bool { return subjectType == TypeUsername }

func (p HandlePresenceProvider) Enrich(_ context.Context, s Subject) (Result, error) {
	res := Result{Provider: "handle_presence"}
	data, err := os.ReadFile(p.FixturePath)
	if err != nil {
		if os.IsNotExist(err) {
			return res, nil
		}
		return res, fmt.Errorf("read handles fixture: %w", err)
	}
	var byPlatform map[string][]string
	if err := json.Unmarshal(data, &byPlatform); err != nil {
		return res, fmt.Errorf("parse handles fixture: %w", err)
	}
	var platforms []string
	for platform, handles := range byPlatform {
		for _, h := range handles {
			if strings.ToLower(h) == s.NormalizedValue {
				platforms = append(platforms, platform)
				break
			}
		}
	}
	if len(platforms) > 0 {
		res.Found = true
		res.Data = map[string]any{"platforms": platforms}
	}
	return res, nil
}
