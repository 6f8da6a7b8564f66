package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/onnwee/chatscope/db"
	"github.com/onnwee/chatscope/message"
	"github.com/onnwee/chatscope/rollup"
	"github.com/onnwee/chatscope/signals"
	"github.com/onnwee/chatscope/testutil"
)

func TestMessageLogDedup(t *testing.T) {
	database := testutil.SetupTestDB(t)
	log := db.NewMessageLog(database)
	ctx := context.Background()

	msg := message.Message{
		TS:        time.Now().UTC().Format(time.RFC3339),
		Channel:   "testchan",
		MessageID: "dedup-test-1",
		UserName:  "alice",
		Text:      "hello there",
	}
	appended, err := log.Append(ctx, msg)
	if err != nil {
		t.Fatalf("first append: %v", err)
	}
	if !appended {
		t.Fatal("expected first append to write a row")
	}
	appended, err = log.Append(ctx, msg)
	if err != nil {
		t.Fatalf("second append: %v", err)
	}
	if appended {
		t.Fatal("expected duplicate append to be skipped")
	}

	var got []message.Message
	for m := range log.All() {
		if m.MessageID == "dedup-test-1" {
			got = append(got, m)
		}
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 stored message, got %d", len(got))
	}
	if got[0].UserName != "alice" || got[0].Text != "hello there" {
		t.Fatalf("unexpected stored payload: %+v", got[0])
	}
}

func TestProfileStoreRoundTrip(t *testing.T) {
	database := testutil.SetupTestDB(t)
	store := db.NewProfileStore(database)
	ctx := context.Background()

	p, err := store.LoadUser(ctx, "pg_round_trip_user")
	if err != nil {
		t.Fatalf("load missing user: %v", err)
	}
	if p.MessageCount != 0 {
		t.Fatalf("expected fresh profile, got count %d", p.MessageCount)
	}
	p.MessageCount = 3
	p.ChannelsParticipated = []string{"testchan"}
	p.Facts["asked_about_relationship"] = true
	if err := store.SaveUser(ctx, p); err != nil {
		t.Fatalf("save user: %v", err)
	}

	loaded, err := store.LoadUser(ctx, "pg_round_trip_user")
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if loaded.MessageCount != 3 {
		t.Fatalf("expected count 3 after reload, got %d", loaded.MessageCount)
	}
	if v, ok := loaded.Facts["asked_about_relationship"].(bool); !ok || !v {
		t.Fatalf("expected fact to survive reload, got %v", loaded.Facts["asked_about_relationship"])
	}
}

func TestProfileStoreCorruptPayloadResets(t *testing.T) {
	database := testutil.SetupTestDB(t)
	store := db.NewProfileStore(database)
	ctx := context.Background()

	if _, err := database.Exec(`
		INSERT INTO channel_profiles (channel, payload)
		VALUES ($1, $2::jsonb)
		ON CONFLICT (channel) DO UPDATE SET payload = EXCLUDED.payload`,
		"corrupt_chan", `{"message_count": "not a number"}`); err != nil {
		t.Fatalf("seed corrupt payload: %v", err)
	}

	p, err := store.LoadChannel(ctx, "corrupt_chan")
	if err != nil {
		t.Fatalf("load corrupt channel: %v", err)
	}
	if p.MessageCount != 0 {
		t.Fatalf("expected fresh profile after corrupt payload, got count %d", p.MessageCount)
	}
	if p.Channel != "corrupt_chan" {
		t.Fatalf("expected channel key restored, got %q", p.Channel)
	}
}

func TestEngineOverPostgresStore(t *testing.T) {
	database := testutil.SetupTestDB(t)
	engine := rollup.NewEngine(db.NewProfileStore(database))
	ctx := context.Background()

	msg := message.Message{
		TS:        time.Now().UTC().Format(time.RFC3339),
		Channel:   "pg_engine_chan",
		MessageID: "pg-engine-1",
		UserName:  "pg_engine_user",
		Text:      "is the streamer still dating sara?",
	}
	if err := engine.Apply(ctx, msg, signals.Extract(msg)); err != nil {
		t.Fatalf("apply: %v", err)
	}

	store := db.NewProfileStore(database)
	cp, err := store.LoadChannel(ctx, "pg_engine_chan")
	if err != nil {
		t.Fatalf("load channel: %v", err)
	}
	aggs := cp.StreamerSignals["relationship_mentions"]
	if len(aggs) != 1 || aggs[0].Target != "sara" {
		t.Fatalf("expected signal aggregate for sara, got %+v", aggs)
	}
}
