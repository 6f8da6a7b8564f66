// Package rollup maintains the per-user and per-channel aggregate profiles.
// Profiles are updated one message at a time with a load-merge-save cycle
// against a ProfileStore; unreadable persisted state is treated as absent,
// so a corrupt profile resets rather than crashing ingestion.
package rollup

import (
	"time"
)

// Fact keys accumulated on UserProfile.Facts.
const (
	FactAskedAboutRelationship = "asked_about_streamer_relationship"
	FactSuspectedTargets       = "suspected_relationship_targets"
	FactEvidence               = "evidence"
)

// UserProfile aggregates everything observed about one chat user, keyed by
// lower-cased user name. It only ever grows; nothing is deleted.
type UserProfile struct {
	UserName             string         `json:"user_name"`
	ChannelsParticipated []string       `json:"channels_participated"`
	MessageCount         int            `json:"message_count"`
	TopKeywords          []string       `json:"top_keywords"`
	LastSeen             string         `json:"last_seen,omitempty"`
	Facts                map[string]any `json:"facts"`
}

// NewUserProfile returns an empty profile for key.
func NewUserProfile(key string) *UserProfile {
	return &UserProfile{
		UserName:             key,
		ChannelsParticipated: []string{},
		TopKeywords:          []string{},
		Facts:                map[string]any{},
	}
}

// SignalAggregate is one merged streamer-signal entry on a channel profile.
// Entries merge by Target: repeats bump EvidenceCount and append any snippet
// not already present in Examples.
type SignalAggregate struct {
	Target        string   `json:"target"`
	EvidenceCount int      `json:"evidence_count"`
	Examples      []string `json:"examples"`
}

// ChannelProfile aggregates activity in one channel, keyed by lower-cased
// channel name. UniqueUsers approximates the distinct-user count as the
// length of TopUsers, which is never pruned.
type ChannelProfile struct {
	Channel         string                       `json:"channel"`
	UniqueUsers     int                          `json:"unique_users"`
	MessageCount    int                          `json:"message_count"`
	TopUsers        []string                     `json:"top_users"`
	TopKeywords     []string                     `json:"top_keywords"`
	LastSeen        string                       `json:"last_seen,omitempty"`
	StreamerSignals map[string][]SignalAggregate `json:"streamer_signals"`
}

// NewChannelProfile returns an empty profile for key.
func NewChannelProfile(key string) *ChannelProfile {
	return &ChannelProfile{
		Channel:         key,
		TopUsers:        []string{},
		TopKeywords:     []string{},
		StreamerSignals: map[string][]SignalAggregate{},
	}
}

// advanceLastSeen moves cur forward to ts, never backward. It returns cur
// unchanged for out-of-order timestamps.
func advanceLastSeen(cur string, ts time.Time) string {
	if cur != "" {
		prev, err := time.Parse(time.RFC3339, cur)
		if err == nil && !ts.After(prev) {
			return cur
		}
	}
	return ts.UTC().Format(time.RFC3339)
}

func appendUnique(list []string, v string) []string {
	for _, have := range list {
		if have == v {
			return list
		}
	}
	return append(list, v)
}
