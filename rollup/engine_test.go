package rollup

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/onnwee/chatscope/message"
	"github.com/onnwee/chatscope/signals"
)

func newTestEngine(t *testing.T) (*Engine, string) {
	t.Helper()
	dir := t.TempDir()
	return NewEngine(NewFileStore(dir)), dir
}

func msg(channel, user, text, ts string) message.Message {
	return message.Message{
		TS:       ts,
		Channel:  channel,
		UserName: user,
		Text:     text,
	}
}

func TestApplyCreatesProfiles(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	m := msg("Chan", "Alice", "hello stream", "2024-05-01T12:00:00Z")
	if err := e.Apply(ctx, m, signals.Extract(m)); err != nil {
		t.Fatalf("apply: %v", err)
	}

	up, err := e.Store.LoadUser(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if up.MessageCount != 1 {
		t.Errorf("user message_count = %d, want 1", up.MessageCount)
	}
	if len(up.ChannelsParticipated) != 1 || up.ChannelsParticipated[0] != "chan" {
		t.Errorf("channels = %v, want [chan]", up.ChannelsParticipated)
	}
	if up.LastSeen != "2024-05-01T12:00:00Z" {
		t.Errorf("last_seen = %q", up.LastSeen)
	}

	cp, err := e.Store.LoadChannel(ctx, "chan")
	if err != nil {
		t.Fatal(err)
	}
	if cp.MessageCount != 1 || cp.UniqueUsers != 1 {
		t.Errorf("channel counts = %d/%d, want 1/1", cp.MessageCount, cp.UniqueUsers)
	}
	if len(cp.TopUsers) != 1 || cp.TopUsers[0] != "alice" {
		t.Errorf("top_users = %v", cp.TopUsers)
	}
}

func TestApplyEmptyKeysSkipped(t *testing.T) {
	ctx := context.Background()
	e, dir := newTestEngine(t)

	m := msg("", "", "orphan text", "2024-05-01T12:00:00Z")
	if err := e.Apply(ctx, m, signals.Set{}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	for _, sub := range []string{"users", "channels"} {
		entries, _ := os.ReadDir(filepath.Join(dir, sub))
		if len(entries) != 0 {
			t.Errorf("%s: %d profiles written, want none", sub, len(entries))
		}
	}
}

func TestLastSeenMonotonic(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	for _, ts := range []string{
		"2024-05-01T12:00:00Z",
		"2024-05-01T11:00:00Z", // out of order: ignored
		"garbage",              // unparsable: ignored
		"2024-05-01T13:00:00Z",
	} {
		m := msg("chan", "alice", "hi", ts)
		if err := e.Apply(ctx, m, signals.Set{}); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}

	up, _ := e.Store.LoadUser(ctx, "alice")
	if up.LastSeen != "2024-05-01T13:00:00Z" {
		t.Errorf("last_seen = %q, want 2024-05-01T13:00:00Z", up.LastSeen)
	}
	if up.MessageCount != 4 {
		t.Errorf("message_count = %d, want 4 (bad timestamps still count)", up.MessageCount)
	}
}

func TestChannelSignalMergeByTarget(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	for _, text := range []string{
		"is the streamer still dating sara?",
		"lol dating sara again",
	} {
		m := msg("chan", "alice", text, "2024-05-01T12:00:00Z")
		if err := e.Apply(ctx, m, signals.Extract(m)); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}

	cp, _ := e.Store.LoadChannel(ctx, "chan")
	entries := cp.StreamerSignals[signals.KindRelationshipMentions]
	if len(entries) == 0 {
		t.Fatal("no streamer signals recorded")
	}
	var sara *SignalAggregate
	for i := range entries {
		if entries[i].Target == "sara" {
			sara = &entries[i]
		}
	}
	if sara == nil {
		t.Fatalf("no entry for sara: %+v", entries)
	}
	if sara.EvidenceCount != 2 {
		t.Errorf("evidence_count = %d, want 2", sara.EvidenceCount)
	}
	if len(sara.Examples) != 2 {
		t.Errorf("examples = %v, want both snippets", sara.Examples)
	}
}

func TestChannelSignalSnippetsDeduped(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	m := msg("chan", "alice", "still dating sara?", "2024-05-01T12:00:00Z")
	for range 2 {
		if err := e.Apply(ctx, m, signals.Extract(m)); err != nil {
			t.Fatal(err)
		}
	}

	cp, _ := e.Store.LoadChannel(ctx, "chan")
	entries := cp.StreamerSignals[signals.KindRelationshipMentions]
	if len(entries) != 1 {
		t.Fatalf("entries = %+v, want one target", entries)
	}
	if entries[0].EvidenceCount != 2 {
		t.Errorf("evidence_count = %d, want 2", entries[0].EvidenceCount)
	}
	if len(entries[0].Examples) != 1 {
		t.Errorf("examples = %v, want single deduped snippet", entries[0].Examples)
	}
}

func TestUserFactsAccumulate(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	for _, text := range []string{
		"is the streamer still dating sara?",
		"they's dating morgan now",
	} {
		m := msg("chan", "alice", text, "2024-05-01T12:00:00Z")
		if err := e.Apply(ctx, m, signals.Extract(m)); err != nil {
			t.Fatal(err)
		}
	}

	up, _ := e.Store.LoadUser(ctx, "alice")
	if v, _ := up.Facts[FactAskedAboutRelationship].(bool); !v {
		t.Errorf("fact %s not set", FactAskedAboutRelationship)
	}
	targets := factStrings(up.Facts, FactSuspectedTargets)
	if len(targets) != 2 {
		t.Errorf("targets = %v, want [sara morgan]", targets)
	}
	evidence := factSlice(up.Facts, FactEvidence)
	if len(evidence) != 2 {
		t.Errorf("evidence entries = %d, want 2", len(evidence))
	}
}

func TestCorruptProfileResets(t *testing.T) {
	ctx := context.Background()
	e, dir := newTestEngine(t)

	m := msg("chan", "alice", "hello there friends", "2024-05-01T12:00:00Z")
	for range 3 {
		if err := e.Apply(ctx, m, signals.Set{}); err != nil {
			t.Fatal(err)
		}
	}

	userPath := filepath.Join(dir, "users", "alice.json")
	if err := os.WriteFile(userPath, []byte("{definitely not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := e.Apply(ctx, m, signals.Set{}); err != nil {
		t.Fatalf("apply over corrupt profile: %v", err)
	}
	up, _ := e.Store.LoadUser(ctx, "alice")
	if up.MessageCount != 1 {
		t.Errorf("message_count = %d, want 1 (fresh profile)", up.MessageCount)
	}

	// Channel profile was untouched by the corruption.
	cp, _ := e.Store.LoadChannel(ctx, "chan")
	if cp.MessageCount != 4 {
		t.Errorf("channel message_count = %d, want 4", cp.MessageCount)
	}
}

func TestProfilesSurviveReload(t *testing.T) {
	ctx := context.Background()
	e, dir := newTestEngine(t)

	m1 := msg("chan", "alice", "is he dating frankie??", "2024-05-01T12:00:00Z")
	if err := e.Apply(ctx, m1, signals.Extract(m1)); err != nil {
		t.Fatal(err)
	}

	// A second engine over the same directory picks up persisted state.
	e2 := NewEngine(NewFileStore(dir))
	m2 := msg("chan", "alice", "still dating frankie i bet", "2024-05-01T12:05:00Z")
	if err := e2.Apply(ctx, m2, signals.Extract(m2)); err != nil {
		t.Fatal(err)
	}

	cp, _ := e2.Store.LoadChannel(ctx, "chan")
	entries := cp.StreamerSignals[signals.KindRelationshipMentions]
	if len(entries) != 1 || entries[0].Target != "frankie" {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[0].EvidenceCount != 2 {
		t.Errorf("evidence_count = %d, want 2 across engine restarts", entries[0].EvidenceCount)
	}
}
