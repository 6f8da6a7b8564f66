// Command chatscope ingests Twitch chat (live IRC or fixture replay),
// appends messages to a deduplicated log, extracts conversational signals
// and maintains incremental per-user and per-channel profiles.
//
// Subcommands: chat run, search, subjects load, profile.
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/onnwee/chatscope/chat"
	"github.com/onnwee/chatscope/config"
	"github.com/onnwee/chatscope/db"
	"github.com/onnwee/chatscope/logstore"
	"github.com/onnwee/chatscope/providers"
	"github.com/onnwee/chatscope/rollup"
	"github.com/onnwee/chatscope/server"
	"github.com/onnwee/chatscope/telemetry"
	"github.com/onnwee/chatscope/twitchapi"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	setupLogging()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	root := &cobra.Command{
		Use:           "chatscope",
		Short:         "Twitch chat ingestion and profile rollups",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newChatCmd(cfg), newSearchCmd(cfg), newSubjectsCmd(cfg), newProfileCmd(cfg))

	if err := root.Execute(); err != nil {
		slog.Error("command failed", slog.Any("err", err))
		os.Exit(1)
	}
}

// setupLogging configures the default slog logger from LOG_LEVEL and
// LOG_FORMAT. Defaults: level=info, format=text.
func setupLogging() {
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	var handler slog.Handler
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
}

// openBackend wires the log and profile store for the configured backend.
// The returned close func is a no-op for the file backend.
func openBackend(ctx context.Context, cfg *config.Config) (logstore.Log, rollup.ProfileStore, func(), error) {
	if cfg.DataBackend == "postgres" {
		database, err := db.Connect()
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := db.RunMigrations(database); err != nil {
			slog.Warn("versioned migrations unavailable, using embedded schema", slog.Any("err", err))
			if err := db.Migrate(ctx, database); err != nil {
				database.Close()
				return nil, nil, nil, fmt.Errorf("migrate: %w", err)
			}
		}
		return db.NewMessageLog(database), db.NewProfileStore(database), func() {
			if err := database.Close(); err != nil {
				slog.Warn("close database", slog.Any("err", err))
			}
		}, nil
	}
	log := &logstore.JSONLLog{Path: filepath.Join(cfg.DataDir, "logs", "messages.jsonl")}
	store := &rollup.FileStore{Dir: filepath.Join(cfg.DataDir, "profiles")}
	return log, store, func() {}, nil
}

func newChatCmd(cfg *config.Config) *cobra.Command {
	var (
		channels []string
		duration time.Duration
		offline  bool
	)
	run := &cobra.Command{
		Use:   "run",
		Short: "Ingest chat for a fixed duration (live IRC, or fixture replay with --offline)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			telemetry.Init()
			shutdown, err := telemetry.InitTracing("chatscope", "1.0.0")
			if err != nil {
				slog.Warn("tracing init failed", slog.Any("err", err))
			} else {
				defer shutdown()
			}

			if len(channels) > 0 {
				cfg.Channels = channels
			}
			if len(cfg.Channels) == 0 {
				return fmt.Errorf("no channels: pass --channels or set CHAT_CHANNELS")
			}

			log, store, closeBackend, err := openBackend(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeBackend()
			pipeline := chat.NewPipeline(log, store)

			srv := server.New(pipeline, cfg.DataBackend)
			go func() {
				if err := srv.Start(ctx, cfg.HTTPAddr); err != nil {
					slog.Error("http server exited", slog.Any("err", err))
				}
			}()

			if offline {
				client := chat.NewReplayClient(cfg.Channels, cfg.FixtureDir, cfg.ReplayDelay, pipeline)
				return client.Run(ctx, duration)
			}
			if err := cfg.ValidateLiveReady(); err != nil {
				return err
			}
			client, err := chat.NewLiveClient(cfg.TwitchNick, cfg.TwitchOAuthToken, cfg.Channels, cfg.IRCAddr, pipeline)
			if err != nil {
				return err
			}
			return client.Run(ctx, duration)
		},
	}
	run.Flags().StringSliceVar(&channels, "channels", nil, "channels to join (overrides CHAT_CHANNELS)")
	run.Flags().DurationVar(&duration, "duration", 60*time.Second, "how long to ingest before stopping")
	run.Flags().BoolVar(&offline, "offline", false, "replay fixtures instead of connecting to Twitch")

	cmd := &cobra.Command{Use: "chat", Short: "Chat ingestion"}
	cmd.AddCommand(run)
	return cmd
}

func newSearchCmd(cfg *config.Config) *cobra.Command {
	var (
		by, value    string
		since, until string
		contains     string
		limit        int
	)
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search the message log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var f logstore.Filter
			switch by {
			case "user":
				f.User = value
			case "channel":
				f.Channel = value
			default:
				return fmt.Errorf("invalid --by %q: want user or channel", by)
			}
			if err := f.ParseWindow(since, until); err != nil {
				return err
			}
			f.Contains = contains
			f.Limit = limit

			log, _, closeBackend, err := openBackend(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeBackend()

			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, msg := range logstore.Search(log, f) {
				if err := enc.Encode(msg); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&by, "by", "user", "search key: user or channel")
	cmd.Flags().StringVar(&value, "value", "", "value to match")
	cmd.Flags().StringVar(&since, "since", "", "lower time bound (RFC3339)")
	cmd.Flags().StringVar(&until, "until", "", "upper time bound (RFC3339)")
	cmd.Flags().StringVar(&contains, "contains", "", "substring to match in message text")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum results (0 = unlimited)")
	if err := cmd.MarkFlagRequired("value"); err != nil {
		panic(err)
	}
	return cmd
}

func newSubjectsCmd(cfg *config.Config) *cobra.Command {
	var path string
	load := &cobra.Command{
		Use:   "load",
		Short: "Load subjects from CSV and run enrichment providers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			subjects, err := providers.LoadCSV(path)
			if err != nil {
				return err
			}
			runner := &providers.Runner{
				Providers: []providers.Provider{
					providers.GravatarProvider{},
					providers.HandlePresenceProvider{FixturePath: filepath.Join("fixtures", "handles.json")},
				},
				Dir: filepath.Join(cfg.DataDir, "enrichment"),
			}
			reports, err := runner.Run(cmd.Context(), subjects)
			if err != nil {
				return err
			}
			slog.Info("subjects enriched", slog.Int("count", len(reports)))
			return nil
		},
	}
	load.Flags().StringVar(&path, "path", "subjects.csv", "path to the subjects CSV")

	cmd := &cobra.Command{Use: "subjects", Short: "Subject enrichment"}
	cmd.AddCommand(load)
	return cmd
}

func newProfileCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "profile <login>",
		Short: "Fetch a streamer profile from the Twitch Helix API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.TwitchClientID == "" || cfg.TwitchClientSecret == "" {
				return fmt.Errorf("missing twitch env: require TWITCH_CLIENT_ID, TWITCH_CLIENT_SECRET")
			}
			ctx := cmd.Context()
			fetcher := &twitchapi.ProfileFetcher{
				Client: &twitchapi.HelixClient{
					ClientID:   cfg.TwitchClientID,
					HTTPClient: twitchapi.NewAppClient(ctx, cfg.TwitchClientID, cfg.TwitchClientSecret, ""),
				},
				Dir: filepath.Join(cfg.DataDir, "profiles", "twitch"),
			}
			p, err := fetcher.Fetch(ctx, strings.ToLower(args[0]))
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(p, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}
