package twitchapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func helixStub(t *testing.T, users map[string]User) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users" {
			http.NotFound(w, r)
			return
		}
		login := r.URL.Query().Get("login")
		resp := struct {
			Data []User `json:"data"`
		}{}
		if u, ok := users[login]; ok {
			resp.Data = append(resp.Data, u)
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("encode stub response: %v", err)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGetUser(t *testing.T) {
	srv := helixStub(t, map[string]User{
		"somestreamer": {ID: "123", Login: "somestreamer", DisplayName: "SomeStreamer", Description: "business: mail@example.com"},
	})
	hc := &HelixClient{ClientID: "cid", BaseURL: srv.URL}

	u, err := hc.GetUser(context.Background(), "somestreamer")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.ID != "123" || u.DisplayName != "SomeStreamer" {
		t.Fatalf("unexpected user: %+v", u)
	}

	if _, err := hc.GetUser(context.Background(), "nobody"); err == nil {
		t.Fatal("expected error for unknown login")
	}
	if _, err := hc.GetUser(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty login")
	}
}

func TestProfileFetcherWritesFileWithEmail(t *testing.T) {
	srv := helixStub(t, map[string]User{
		"somestreamer": {ID: "123", Login: "somestreamer", DisplayName: "SomeStreamer", Description: "contact: booking@talent.example.org for collabs"},
	})
	dir := t.TempDir()
	f := &ProfileFetcher{
		Client: &HelixClient{ClientID: "cid", BaseURL: srv.URL},
		Dir:    dir,
	}

	p, err := f.Fetch(context.Background(), "somestreamer")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if p.Email != "booking@talent.example.org" {
		t.Fatalf("expected email extracted from description, got %q", p.Email)
	}

	data, err := os.ReadFile(filepath.Join(dir, "somestreamer.json"))
	if err != nil {
		t.Fatalf("read persisted profile: %v", err)
	}
	var onDisk FetchedProfile
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("unmarshal persisted profile: %v", err)
	}
	if onDisk.UserID != "123" || onDisk.FetchedAt == "" {
		t.Fatalf("unexpected persisted profile: %+v", onDisk)
	}
}

func TestProfileFetcherNoEmail(t *testing.T) {
	srv := helixStub(t, map[string]User{
		"quiet": {ID: "9", Login: "quiet", DisplayName: "Quiet", Description: "no contact info here"},
	})
	f := &ProfileFetcher{
		Client: &HelixClient{ClientID: "cid", BaseURL: srv.URL},
		Dir:    t.TempDir(),
	}
	p, err := f.Fetch(context.Background(), "quiet")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if p.Email != "" {
		t.Fatalf("expected no email, got %q", p.Email)
	}
}
