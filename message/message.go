// Package message defines the canonical chat message shape shared by the
// adapters, the log store, and the rollup engine, plus the text-derivation
// helpers (mentions, URLs, content-hash IDs) used to fill it in.
package message

import (
	"crypto/md5" //nolint:gosec // G401: content fingerprint for dedup, not a security boundary
	"encoding/hex"
	"fmt"
	"regexp"
	"time"
)

// Source tags identifying the producing adapter.
const (
	SourceTwitchIRC     = "twitch-irc"
	SourceFixtureReplay = "fixture-replay"
)

// Message is a single chat message. Instances are immutable once built:
// adapters create them, the log store and rollup engine only read them.
type Message struct {
	TS        string   `json:"ts"` // RFC3339, UTC
	Channel   string   `json:"channel"`
	MessageID string   `json:"message_id"`
	UserID    string   `json:"user_id,omitempty"`
	UserName  string   `json:"user_name"`
	Text      string   `json:"text"`
	Mentions  []string `json:"mentions"`
	URLs      []string `json:"urls"`
	Emotes    []string `json:"emotes"`
	Source    string   `json:"source"`
}

// ParseTS parses the message timestamp. The boolean is false for empty or
// malformed timestamps; callers treat those as "leave state unchanged".
func (m Message) ParseTS() (time.Time, bool) {
	if m.TS == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, m.TS)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

var (
	mentionPattern = regexp.MustCompile(`@(\w+)`)
	urlPattern     = regexp.MustCompile(`https?://[^\s<>"]+|www\.[^\s<>"]+`)
)

// ExtractMentions returns the @name tokens in text, sigil stripped.
func ExtractMentions(text string) []string {
	var out []string
	for _, m := range mentionPattern.FindAllStringSubmatch(text, -1) {
		out = append(out, m[1])
	}
	return out
}

// ExtractURLs returns the http(s) and www links in text.
func ExtractURLs(text string) []string {
	return urlPattern.FindAllString(text, -1)
}

// ContentID derives the deterministic message id used for replay input, so
// re-running the same fixture always produces the same dedup key.
func ContentID(channel, userName, text, ts string) string {
	sum := md5.Sum(fmt.Appendf(nil, "%s:%s:%s:%s", channel, userName, text, ts)) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// LiveID builds the id for live messages: channel, user, and a coarse
// one-second timestamp. Two rapid messages from the same user in the same
// second collide; the log's dedup then keeps only the first. Documented
// behavior, kept as-is.
func LiveID(channel, userName string, at time.Time) string {
	return fmt.Sprintf("%s_%s_%d", channel, userName, at.Unix())
}
