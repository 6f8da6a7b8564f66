package logstore

import (
	"fmt"
	"strings"
	"time"

	"github.com/onnwee/chatscope/message"
)

// Filter selects messages from a log. Zero-value fields match everything.
type Filter struct {
	User     string
	Channel  string
	Since    time.Time
	Until    time.Time
	Contains string
	Limit    int
}

// ParseWindow parses optional RFC3339 since/until bounds into a filter.
func (f *Filter) ParseWindow(since, until string) error {
	if since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return fmt.Errorf("invalid --since (RFC3339): %w", err)
		}
		f.Since = t.UTC()
	}
	if until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			return fmt.Errorf("invalid --until (RFC3339): %w", err)
		}
		f.Until = t.UTC()
	}
	return nil
}

// Search scans the log in order and returns messages matching the filter.
// Messages with unparsable timestamps are excluded when a time bound is set.
func Search(log Log, f Filter) []message.Message {
	user := strings.ToLower(f.User)
	channel := strings.ToLower(f.Channel)
	contains := strings.ToLower(f.Contains)

	var out []message.Message
	for msg := range log.All() {
		if user != "" && strings.ToLower(msg.UserName) != user {
			continue
		}
		if channel != "" && strings.ToLower(msg.Channel) != channel {
			continue
		}
		if !f.Since.IsZero() || !f.Until.IsZero() {
			ts, ok := msg.ParseTS()
			if !ok {
				continue
			}
			if !f.Since.IsZero() && ts.Before(f.Since) {
				continue
			}
			if !f.Until.IsZero() && ts.After(f.Until) {
				continue
			}
		}
		if contains != "" && !strings.Contains(strings.ToLower(msg.Text), contains) {
			continue
		}
		out = append(out, msg)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out
}
