package chat

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/chatscope/message"
	"github.com/onnwee/chatscope/telemetry"
)

// DefaultIRCAddr is the Twitch IRC endpoint (TLS).
const DefaultIRCAddr = "irc.chat.twitch.tv:6697"

// Live adapter states.
const (
	liveDisconnected int32 = iota
	liveAuthenticating
	liveJoined
	liveListening
)

// LiveClient is a minimal IRC chat client: it dials the server over TLS,
// authenticates with PASS/NICK, joins the configured channels, and feeds
// each PRIVMSG through the pipeline. Keep-alive PINGs are answered in the
// read loop; everything else on the wire is ignored.
//
// Message ids are channel_user_unixsecond: two messages from one user in
// the same second collide, and the log keeps only the first. Known and
// accepted; the replay path's content-hash ids do not have this window.
type LiveClient struct {
	Nick     string
	Token    string
	Channels []string
	Addr     string
	Pipeline *Pipeline

	// Insecure dials plain TCP instead of TLS; only the tests use it.
	Insecure bool

	state atomic.Int32
}

// NewLiveClient builds a live adapter. Missing credentials are a
// configuration error and fail construction, not the run.
func NewLiveClient(nick, token string, channels []string, addr string, p *Pipeline) (*LiveClient, error) {
	if nick == "" || token == "" {
		return nil, errors.New("live chat requires TWITCH_NICK and TWITCH_OAUTH_TOKEN")
	}
	if addr == "" {
		addr = DefaultIRCAddr
	}
	return &LiveClient{Nick: nick, Token: token, Channels: channels, Addr: addr, Pipeline: p}, nil
}

// State reports the adapter's lifecycle state for status surfaces.
func (c *LiveClient) State() string {
	switch c.state.Load() {
	case liveAuthenticating:
		return "authenticating"
	case liveJoined:
		return "joined"
	case liveListening:
		return "listening"
	default:
		return "disconnected"
	}
}

// Run connects, joins, and listens until the duration elapses or the
// connection drops. Duration expiry is a clean stop; a dropped connection
// surfaces as an error for the caller to log. No retries.
func (c *LiveClient) Run(ctx context.Context, duration time.Duration) error {
	runCtx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()
	runCtx = telemetry.WithCorrelation(runCtx, uuid.NewString())
	log := telemetry.LoggerWithCorr(runCtx)

	conn, err := c.dial(runCtx)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", c.Addr, err)
	}
	defer c.state.Store(liveDisconnected)

	// Cooperative stop: closing the conn unblocks the read loop below.
	go func() {
		<-runCtx.Done()
		conn.Close()
	}()

	c.state.Store(liveAuthenticating)
	if _, err := fmt.Fprintf(conn, "PASS %s\r\nNICK %s\r\n", c.Token, c.Nick); err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	for _, channel := range c.Channels {
		if _, err := fmt.Fprintf(conn, "JOIN #%s\r\n", channel); err != nil {
			return fmt.Errorf("join #%s: %w", channel, err)
		}
		log.Info("joined channel", slog.String("channel", channel))
	}
	c.state.Store(liveJoined)
	log.Info("connected to chat", slog.String("addr", c.Addr), slog.String("nick", c.Nick))

	c.state.Store(liveListening)
	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 0, 16*1024), 512*1024)
	for sc.Scan() {
		c.handleLine(runCtx, conn, sc.Text(), log)
	}

	if runCtx.Err() != nil {
		log.Info("chat run finished", slog.Duration("duration", duration))
		return nil
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("connection lost: %w", err)
	}
	return errors.New("connection closed by server")
}

func (c *LiveClient) dial(ctx context.Context) (net.Conn, error) {
	d := &net.Dialer{Timeout: 10 * time.Second}
	if c.Insecure {
		return d.DialContext(ctx, "tcp", c.Addr)
	}
	td := &tls.Dialer{NetDialer: d}
	return td.DialContext(ctx, "tcp", c.Addr)
}

// handleLine dispatches one complete wire line. Unparsable chat lines are
// counted and skipped; nothing here terminates the loop.
func (c *LiveClient) handleLine(ctx context.Context, conn net.Conn, line string, log *slog.Logger) {
	switch {
	case strings.HasPrefix(line, "PING"):
		// Echo the payload back or the server drops us.
		if _, err := fmt.Fprintf(conn, "PONG%s\r\n", strings.TrimPrefix(line, "PING")); err != nil {
			log.Warn("pong write failed", slog.Any("err", err))
			return
		}
		telemetry.Inc(telemetry.PingsAnswered)
	case strings.Contains(line, "PRIVMSG"):
		msg, ok := parsePrivMsg(line, time.Now().UTC())
		if !ok {
			telemetry.Inc(telemetry.ParseErrors)
			log.Debug("unparsable chat line", slog.String("line", line))
			return
		}
		if err := c.Pipeline.Process(ctx, msg); err != nil {
			log.Error("failed to ingest message", slog.Any("err", err), slog.String("channel", msg.Channel))
		}
	}
}

// parsePrivMsg parses the wire format
//
//	:user!user@host PRIVMSG #channel :text
//
// splitting on the PRIVMSG marker: sender before the !, leading colon
// stripped; channel after the #, trailing fragment dropped; text after the
// first space-colon.
func parsePrivMsg(line string, at time.Time) (message.Message, bool) {
	parts := strings.SplitN(line, " PRIVMSG ", 2)
	if len(parts) != 2 {
		return message.Message{}, false
	}

	user := strings.TrimPrefix(strings.SplitN(parts[0], "!", 2)[0], ":")

	rest := parts[1]
	channelPart, text, _ := strings.Cut(rest, " :")
	channel := strings.TrimPrefix(strings.SplitN(channelPart, " ", 2)[0], "#")
	if user == "" || channel == "" {
		return message.Message{}, false
	}

	mentions := message.ExtractMentions(text)
	if mentions == nil {
		mentions = []string{}
	}
	urls := message.ExtractURLs(text)
	if urls == nil {
		urls = []string{}
	}

	return message.Message{
		TS:        at.Format(time.RFC3339),
		Channel:   channel,
		MessageID: message.LiveID(channel, user, at),
		UserName:  user,
		Text:      text,
		Mentions:  mentions,
		URLs:      urls,
		Emotes:    []string{},
		Source:    message.SourceTwitchIRC,
	}, true
}
