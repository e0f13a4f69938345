package youtube_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"loopforge/internal/services"
	"loopforge/internal/services/youtube"
)

func writeJSON(t *testing.T, path string, value any) {
	t.Helper()
	raw, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestAccessTokenUsesLiveToken(t *testing.T) {
	dir := t.TempDir()
	tokenPath := filepath.Join(dir, "token.json")
	writeJSON(t, tokenPath, map[string]any{
		"access_token":  "live-token",
		"refresh_token": "refresh-1",
		"expiry":        time.Now().Add(time.Hour).Format(time.RFC3339),
	})

	auth := youtube.NewAuthenticator(filepath.Join(dir, "client_secrets.json"), tokenPath)
	token, err := auth.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	if token != "live-token" {
		t.Fatalf("token = %q", token)
	}
}

func TestAccessTokenRefreshesAndPersists(t *testing.T) {
	dir := t.TempDir()
	tokenPath := filepath.Join(dir, "token.json")
	secretsPath := filepath.Join(dir, "client_secrets.json")
	writeJSON(t, tokenPath, map[string]any{
		"access_token":  "stale-token",
		"refresh_token": "refresh-1",
		"expiry":        time.Now().Add(-time.Hour).Format(time.RFC3339),
	})
	writeJSON(t, secretsPath, map[string]any{
		"installed": map[string]string{
			"client_id":     "cid",
			"client_secret": "csecret",
		},
	})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.FormValue("grant_type") != "refresh_token" || r.FormValue("refresh_token") != "refresh-1" {
			t.Errorf("unexpected form: %v", r.Form)
		}
		if r.FormValue("client_id") != "cid" || r.FormValue("client_secret") != "csecret" {
			t.Errorf("secrets not forwarded: %v", r.Form)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "fresh-token",
			"expires_in":   3600,
			"token_type":   "Bearer",
		})
	}))
	defer server.Close()

	auth := youtube.NewAuthenticator(secretsPath, tokenPath, youtube.WithTokenURL(server.URL))
	token, err := auth.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	if token != "fresh-token" {
		t.Fatalf("token = %q", token)
	}

	// The refreshed token is written back so the next run skips the refresh.
	raw, err := os.ReadFile(tokenPath)
	if err != nil {
		t.Fatalf("read token file: %v", err)
	}
	var persisted struct {
		AccessToken  string    `json:"access_token"`
		RefreshToken string    `json:"refresh_token"`
		Expiry       time.Time `json:"expiry"`
	}
	if err := json.Unmarshal(raw, &persisted); err != nil {
		t.Fatalf("parse persisted token: %v", err)
	}
	if persisted.AccessToken != "fresh-token" || persisted.RefreshToken != "refresh-1" {
		t.Fatalf("persisted token wrong: %+v", persisted)
	}
	if !persisted.Expiry.After(time.Now()) {
		t.Fatalf("persisted expiry not in the future: %v", persisted.Expiry)
	}
}

func TestAccessTokenMissingFiles(t *testing.T) {
	dir := t.TempDir()
	auth := youtube.NewAuthenticator(filepath.Join(dir, "client_secrets.json"), filepath.Join(dir, "token.json"))
	_, err := auth.AccessToken(context.Background())
	if !errors.Is(err, services.ErrAuthUnavailable) {
		t.Fatalf("expected auth unavailable, got %v", err)
	}
}

func TestAccessTokenRefreshRejected(t *testing.T) {
	dir := t.TempDir()
	tokenPath := filepath.Join(dir, "token.json")
	secretsPath := filepath.Join(dir, "client_secrets.json")
	writeJSON(t, tokenPath, map[string]any{
		"access_token":  "stale",
		"refresh_token": "revoked",
		"expiry":        time.Now().Add(-time.Hour).Format(time.RFC3339),
	})
	writeJSON(t, secretsPath, map[string]any{
		"installed": map[string]string{"client_id": "cid", "client_secret": "cs"},
	})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	auth := youtube.NewAuthenticator(secretsPath, tokenPath, youtube.WithTokenURL(server.URL))
	_, err := auth.AccessToken(context.Background())
	if !errors.Is(err, services.ErrAuthUnavailable) {
		t.Fatalf("expected auth unavailable for rejected refresh, got %v", err)
	}
}

func TestAccessTokenNoRefreshToken(t *testing.T) {
	dir := t.TempDir()
	tokenPath := filepath.Join(dir, "token.json")
	writeJSON(t, tokenPath, map[string]any{
		"access_token": "stale",
		"expiry":       time.Now().Add(-time.Hour).Format(time.RFC3339),
	})

	auth := youtube.NewAuthenticator(filepath.Join(dir, "client_secrets.json"), tokenPath)
	_, err := auth.AccessToken(context.Background())
	if !errors.Is(err, services.ErrAuthUnavailable) {
		t.Fatalf("expected auth unavailable, got %v", err)
	}
}
