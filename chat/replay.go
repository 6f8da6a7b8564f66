package chat

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/onnwee/chatscope/message"
	"github.com/onnwee/chatscope/telemetry"
)

// Replay adapter states: idle until Run, streaming while records flow,
// stopped when the duration elapses or the fixtures run out.
const (
	replayIdle int32 = iota
	replayStreaming
	replayStopped
)

// DefaultReplayDelay paces fixture records to feel like live chat.
const DefaultReplayDelay = 100 * time.Millisecond

// ReplayClient replays fixture chat files through the pipeline. One fixture
// file per channel, one JSON record per line; fields the fixture omits
// (message_id, mentions, urls, emotes, source) are derived on the fly so
// hand-written fixtures stay minimal.
type ReplayClient struct {
	Channels   []string
	FixtureDir string
	Delay      time.Duration
	Pipeline   *Pipeline

	state atomic.Int32
}

// NewReplayClient builds a replay adapter over fixtureDir.
func NewReplayClient(channels []string, fixtureDir string, delay time.Duration, p *Pipeline) *ReplayClient {
	if delay <= 0 {
		delay = DefaultReplayDelay
	}
	return &ReplayClient{Channels: channels, FixtureDir: fixtureDir, Delay: delay, Pipeline: p}
}

// State reports the adapter's lifecycle state for status surfaces.
func (c *ReplayClient) State() string {
	switch c.state.Load() {
	case replayStreaming:
		return "streaming"
	case replayStopped:
		return "stopped"
	default:
		return "idle"
	}
}

// Run replays each channel's fixture until the duration elapses. A missing
// fixture is reported and skipped; malformed lines are skipped; storage
// errors abort the run.
func (c *ReplayClient) Run(ctx context.Context, duration time.Duration) error {
	c.state.Store(replayStreaming)
	defer c.state.Store(replayStopped)

	deadline := time.Now().Add(duration)
	for _, channel := range c.Channels {
		if err := c.replayChannel(ctx, channel, deadline); err != nil {
			if errors.Is(err, errDeadline) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
	return nil
}

var errDeadline = errors.New("replay duration elapsed")

func (c *ReplayClient) replayChannel(ctx context.Context, channel string, deadline time.Time) error {
	path := filepath.Join(c.FixtureDir, channel+".jsonl")
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Warn("fixture file not found, skipping channel", slog.String("channel", channel), slog.String("path", path))
			return nil
		}
		return fmt.Errorf("open fixture %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if time.Now().After(deadline) {
			return errDeadline
		}

		var msg message.Message
		if err := json.Unmarshal(sc.Bytes(), &msg); err != nil {
			telemetry.Inc(telemetry.ParseErrors)
			continue
		}
		fillDerived(&msg)

		if err := c.Pipeline.Process(ctx, msg); err != nil {
			return fmt.Errorf("process replay message: %w", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.Delay):
		}
	}
	return sc.Err()
}

// fillDerived completes a fixture record in place: a stable content-hash id,
// extracted mentions and URLs, an empty emote list, and the replay source
// tag. Fields the fixture already carries are left alone.
func fillDerived(msg *message.Message) {
	if msg.MessageID == "" {
		msg.MessageID = message.ContentID(msg.Channel, msg.UserName, msg.Text, msg.TS)
	}
	if msg.Mentions == nil {
		msg.Mentions = message.ExtractMentions(msg.Text)
		if msg.Mentions == nil {
			msg.Mentions = []string{}
		}
	}
	if msg.URLs == nil {
		msg.URLs = message.ExtractURLs(msg.Text)
		if msg.URLs == nil {
			msg.URLs = []string{}
		}
	}
	if msg.Emotes == nil {
		msg.Emotes = []string{}
	}
	if msg.Source == "" {
		msg.Source = message.SourceFixtureReplay
	}
}
